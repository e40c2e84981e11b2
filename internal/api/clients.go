package api

import (
	"net/http"
	"net/mail"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/rotisserie/eris"

	"github.com/sells-group/leadgen/internal/apperr"
	"github.com/sells-group/leadgen/internal/model"
)

type createClientRequest struct {
	Name            string     `json:"name"`
	Email           string     `json:"email"`
	Company         string     `json:"company"`
	Plan            model.Plan `json:"plan"`
	APIQuotaMonthly int        `json:"api_quota_monthly"`
}

func (req createClientRequest) validate() error {
	if strings.TrimSpace(req.Name) == "" {
		return eris.Wrap(apperr.ErrValidation, "name is required")
	}
	if _, err := mail.ParseAddress(req.Email); err != nil {
		return eris.Wrapf(apperr.ErrValidation, "invalid email %q", req.Email)
	}
	switch req.Plan {
	case "", model.PlanStarter, model.PlanProfessional, model.PlanEnterprise:
	default:
		return eris.Wrapf(apperr.ErrValidation, "unknown plan %q", req.Plan)
	}
	if req.APIQuotaMonthly < 0 {
		return eris.Wrap(apperr.ErrValidation, "api_quota_monthly must not be negative")
	}
	return nil
}

func (s *server) createClient(w http.ResponseWriter, r *http.Request) {
	var req createClientRequest
	if err := decode(r, &req); err != nil {
		writeError(w, err)
		return
	}
	if err := req.validate(); err != nil {
		writeError(w, err)
		return
	}

	c := &model.Client{
		Name:            strings.TrimSpace(req.Name),
		Email:           req.Email,
		Company:         req.Company,
		Plan:            req.Plan,
		APIQuotaMonthly: req.APIQuotaMonthly,
	}
	if err := s.Store.CreateClient(r.Context(), c); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, c)
}

func (s *server) getClient(w http.ResponseWriter, r *http.Request) {
	c, err := s.Store.GetClient(r.Context(), chi.URLParam(r, "clientID"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"client":              c,
		"api_usage_remaining": c.Remaining(),
	})
}
