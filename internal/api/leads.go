package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/sells-group/leadgen/internal/apperr"
	"github.com/sells-group/leadgen/internal/model"
	"github.com/sells-group/leadgen/internal/pipeline"
	"github.com/sells-group/leadgen/internal/store"
)

const maxLeadPage = 500

// generateLeads runs the pipeline synchronously. Failures keep the result
// shape with success false.
func (s *server) generateLeads(w http.ResponseWriter, r *http.Request) {
	var criteria model.LeadCriteria
	if err := decode(r, &criteria); err != nil {
		writeError(w, err)
		return
	}

	res, err := s.Pipeline.Generate(r.Context(), pipeline.GenerateRequest{
		ClientID: chi.URLParam(r, "clientID"),
		Criteria: criteria,
	})
	if err != nil {
		if res == nil {
			res = &pipeline.Result{}
		}
		writeJSON(w, apperr.HTTPStatus(err), map[string]any{
			"success":   false,
			"error":     err.Error(),
			"api_calls": res.Calls,
		})
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *server) suggestLeads(w http.ResponseWriter, r *http.Request) {
	var criteria model.LeadCriteria
	if err := decode(r, &criteria); err != nil {
		writeError(w, err)
		return
	}
	sug, err := s.Pipeline.Suggest(r.Context(), chi.URLParam(r, "clientID"), criteria)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, sug)
}

func (s *server) listLeads(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	clientID := chi.URLParam(r, "clientID")
	if _, err := s.Store.GetClient(ctx, clientID); err != nil {
		writeError(w, err)
		return
	}

	f := store.LeadFilter{ClientID: clientID, CampaignID: r.URL.Query().Get("campaign_id")}
	if raw := r.URL.Query().Get("status"); raw != "" {
		st, err := model.ParseLeadStatus(raw)
		if err != nil {
			writeError(w, err)
			return
		}
		f.Status = st
	}
	var err error
	if f.MinScore, err = intParam(r, "min_score", 0); err != nil {
		writeError(w, err)
		return
	}
	if f.Limit, err = intParam(r, "limit", 100); err != nil {
		writeError(w, err)
		return
	}
	f.Limit = min(max(f.Limit, 1), maxLeadPage)
	if f.Offset, err = intParam(r, "offset", 0); err != nil {
		writeError(w, err)
		return
	}

	leads, err := s.Store.ListLeads(ctx, f)
	if err != nil {
		writeError(w, err)
		return
	}
	total, err := s.Store.CountLeads(ctx, store.LeadFilter{ClientID: f.ClientID, CampaignID: f.CampaignID, Status: f.Status, MinScore: f.MinScore})
	if err != nil {
		writeError(w, err)
		return
	}
	if leads == nil {
		leads = []model.Lead{}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"leads":  leads,
		"total":  total,
		"limit":  f.Limit,
		"offset": f.Offset,
	})
}

type leadStatusRequest struct {
	Status string `json:"status"`
	Notes  string `json:"notes"`
}

func (s *server) updateLeadStatus(w http.ResponseWriter, r *http.Request) {
	var req leadStatusRequest
	if err := decode(r, &req); err != nil {
		writeError(w, err)
		return
	}
	to, err := model.ParseLeadStatus(req.Status)
	if err != nil {
		writeError(w, err)
		return
	}

	ctx := r.Context()
	lead, err := s.Store.GetLead(ctx, chi.URLParam(r, "clientID"), chi.URLParam(r, "leadID"))
	if err != nil {
		writeError(w, err)
		return
	}
	lead.TransitionStatus(to, req.Notes, s.nowFunc().UTC())
	if err := s.Store.UpdateLead(ctx, lead); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, lead)
}
