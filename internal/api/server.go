// Package api exposes leads, campaigns and the scheduler over HTTP.
package api

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/sells-group/leadgen/internal/campaign"
	"github.com/sells-group/leadgen/internal/model"
	"github.com/sells-group/leadgen/internal/monitoring"
	"github.com/sells-group/leadgen/internal/pipeline"
	"github.com/sells-group/leadgen/internal/provider"
	"github.com/sells-group/leadgen/internal/store"
)

// LeadGenerator runs and previews lead generation.
type LeadGenerator interface {
	Generate(ctx context.Context, req pipeline.GenerateRequest) (*pipeline.Result, error)
	Suggest(ctx context.Context, clientID string, criteria model.LeadCriteria) (*pipeline.Suggestions, error)
}

// UsageReporter reports provider quota usage.
type UsageReporter interface {
	Usage() []provider.Usage
}

// Deps are the services the handlers call.
type Deps struct {
	Store          store.Store
	Pipeline       LeadGenerator
	Campaigns      *campaign.Service
	Scheduler      *campaign.Scheduler
	Providers      UsageReporter
	AllowedOrigins []string
}

type server struct {
	Deps
	nowFunc func() time.Time
}

// New builds the API router.
func New(d Deps) http.Handler {
	s := &server{Deps: d, nowFunc: time.Now}

	origins := d.AllowedOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(monitoring.Middleware)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Authorization", "Content-Type"},
		MaxAge:         300,
	}))

	r.Get("/health", s.health)
	r.Method(http.MethodGet, "/metrics", monitoring.Handler())

	r.Route("/api", func(r chi.Router) {
		r.Post("/clients", s.createClient)
		r.Route("/clients/{clientID}", func(r chi.Router) {
			r.Get("/", s.getClient)

			r.Post("/leads/generate", s.generateLeads)
			r.Post("/leads/suggest", s.suggestLeads)
			r.Get("/leads", s.listLeads)
			r.Patch("/leads/{leadID}/status", s.updateLeadStatus)

			r.Get("/campaigns", s.listCampaigns)
			r.Post("/campaigns", s.createCampaign)
			r.Post("/campaigns/onboarding", s.createFromOnboarding)
			r.Route("/campaigns/{campaignID}", func(r chi.Router) {
				r.Get("/", s.getCampaign)
				r.Put("/", s.updateCampaign)
				r.Delete("/", s.deleteCampaign)
				r.Post("/pause", s.transition((*campaign.Service).Pause))
				r.Post("/resume", s.transition((*campaign.Service).Resume))
				r.Post("/cancel", s.transition((*campaign.Service).Cancel))
				r.Post("/run", s.runCampaign)
				r.Get("/executions", s.campaignExecutions)
				r.Get("/stats", s.campaignStats)
			})

			r.Get("/executions/stats", s.executionStats)
			r.Get("/executions/recent", s.recentExecutions)
		})

		r.Get("/scheduler/status", s.schedulerStatus)
		r.Post("/scheduler/run", s.schedulerRun)
		r.Get("/providers/usage", s.providerUsage)
	})

	return r
}

func (s *server) health(w http.ResponseWriter, r *http.Request) {
	status := http.StatusOK
	body := map[string]string{"status": "ok"}
	if err := s.Store.Ping(r.Context()); err != nil {
		status = http.StatusServiceUnavailable
		body = map[string]string{"status": "degraded", "database": err.Error()}
	}
	writeJSON(w, status, body)
}

func (s *server) schedulerStatus(w http.ResponseWriter, _ *http.Request) {
	if s.Scheduler == nil {
		writeJSON(w, http.StatusOK, campaign.SchedulerStatus{})
		return
	}
	writeJSON(w, http.StatusOK, s.Scheduler.Status())
}

func (s *server) schedulerRun(w http.ResponseWriter, r *http.Request) {
	if s.Scheduler == nil {
		writeMessage(w, http.StatusServiceUnavailable, "scheduler is not configured")
		return
	}
	res, err := s.Scheduler.RunDue(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *server) providerUsage(w http.ResponseWriter, _ *http.Request) {
	if s.Providers == nil {
		writeJSON(w, http.StatusOK, map[string]any{"providers": []provider.Usage{}})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"providers": s.Providers.Usage()})
}
