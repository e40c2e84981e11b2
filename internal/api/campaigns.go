package api

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/sells-group/leadgen/internal/campaign"
	"github.com/sells-group/leadgen/internal/model"
	"github.com/sells-group/leadgen/internal/store"
)

type createCampaignRequest struct {
	Name           string             `json:"name"`
	Description    string             `json:"description"`
	Criteria       model.LeadCriteria `json:"criteria"`
	Frequency      model.Frequency    `json:"schedule"`
	PreferredTime  string             `json:"preferred_time"`
	Timezone       string             `json:"timezone"`
	MaxLeadsPerRun int                `json:"max_leads_per_run"`
	MaxLeadsTotal  int                `json:"max_leads_total"`
}

func (s *server) createCampaign(w http.ResponseWriter, r *http.Request) {
	var req createCampaignRequest
	if err := decode(r, &req); err != nil {
		writeError(w, err)
		return
	}
	c := &model.Campaign{
		ClientID:       chi.URLParam(r, "clientID"),
		Name:           req.Name,
		Description:    req.Description,
		Criteria:       req.Criteria,
		Frequency:      req.Frequency,
		PreferredTime:  req.PreferredTime,
		Timezone:       req.Timezone,
		MaxLeadsPerRun: req.MaxLeadsPerRun,
		MaxLeadsTotal:  req.MaxLeadsTotal,
	}
	if c.MaxLeadsPerRun == 0 {
		c.MaxLeadsPerRun = campaign.DefaultLeadsPerRun
	}
	if err := s.Campaigns.Create(r.Context(), c); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, c)
}

func (s *server) createFromOnboarding(w http.ResponseWriter, r *http.Request) {
	var req campaign.Onboarding
	if err := decode(r, &req); err != nil {
		writeError(w, err)
		return
	}
	c, err := s.Campaigns.CreateFromOnboarding(r.Context(), chi.URLParam(r, "clientID"), req)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, c)
}

func (s *server) listCampaigns(w http.ResponseWriter, r *http.Request) {
	f := store.CampaignFilter{
		ClientID: chi.URLParam(r, "clientID"),
		Status:   model.CampaignStatus(r.URL.Query().Get("status")),
	}
	var err error
	if f.Limit, err = intParam(r, "limit", 50); err != nil {
		writeError(w, err)
		return
	}
	if f.Offset, err = intParam(r, "offset", 0); err != nil {
		writeError(w, err)
		return
	}
	list, err := s.Campaigns.List(r.Context(), f)
	if err != nil {
		writeError(w, err)
		return
	}
	if list == nil {
		list = []model.Campaign{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"campaigns": list, "count": len(list)})
}

func (s *server) getCampaign(w http.ResponseWriter, r *http.Request) {
	c, err := s.Campaigns.Get(r.Context(), chi.URLParam(r, "clientID"), chi.URLParam(r, "campaignID"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, c)
}

func (s *server) updateCampaign(w http.ResponseWriter, r *http.Request) {
	var p campaign.Patch
	if err := decode(r, &p); err != nil {
		writeError(w, err)
		return
	}
	c, err := s.Campaigns.Update(r.Context(), chi.URLParam(r, "clientID"), chi.URLParam(r, "campaignID"), p)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, c)
}

func (s *server) deleteCampaign(w http.ResponseWriter, r *http.Request) {
	if err := s.Campaigns.Delete(r.Context(), chi.URLParam(r, "clientID"), chi.URLParam(r, "campaignID")); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// transitionFunc matches the campaign.Service status methods.
type transitionFunc func(svc *campaign.Service, ctx context.Context, clientID, id string) (*model.Campaign, error)

func (s *server) transition(fn transitionFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		c, err := fn(s.Campaigns, r.Context(), chi.URLParam(r, "clientID"), chi.URLParam(r, "campaignID"))
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, c)
	}
}

func (s *server) runCampaign(w http.ResponseWriter, r *http.Request) {
	exec, err := s.Campaigns.RunNow(r.Context(), chi.URLParam(r, "clientID"), chi.URLParam(r, "campaignID"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, exec)
}

func (s *server) campaignExecutions(w http.ResponseWriter, r *http.Request) {
	limit, err := intParam(r, "limit", 20)
	if err != nil {
		writeError(w, err)
		return
	}
	offset, err := intParam(r, "offset", 0)
	if err != nil {
		writeError(w, err)
		return
	}
	execs, err := s.Campaigns.Executions(r.Context(), chi.URLParam(r, "clientID"), chi.URLParam(r, "campaignID"), limit, offset)
	if err != nil {
		writeError(w, err)
		return
	}
	if execs == nil {
		execs = []model.CampaignExecution{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"executions": execs, "limit": limit, "offset": offset})
}

func (s *server) campaignStats(w http.ResponseWriter, r *http.Request) {
	st, err := s.Campaigns.Stats(r.Context(), chi.URLParam(r, "clientID"), chi.URLParam(r, "campaignID"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, st)
}

func (s *server) executionStats(w http.ResponseWriter, r *http.Request) {
	days, err := intParam(r, "days", 30)
	if err != nil {
		writeError(w, err)
		return
	}
	st, err := s.Campaigns.ExecutionStats(r.Context(), chi.URLParam(r, "clientID"), days)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, st)
}

func (s *server) recentExecutions(w http.ResponseWriter, r *http.Request) {
	limit, err := intParam(r, "limit", 10)
	if err != nil {
		writeError(w, err)
		return
	}
	execs, err := s.Campaigns.RecentExecutions(r.Context(), chi.URLParam(r, "clientID"), limit)
	if err != nil {
		writeError(w, err)
		return
	}
	if execs == nil {
		execs = []model.CampaignExecution{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"executions": execs})
}
