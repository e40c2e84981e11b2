// Package pipeline turns lead criteria into saved, scored leads: search,
// filter, enrich, score, rank, then persist in one transaction that also
// charges the client's quota.
package pipeline

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/leadgen/internal/apperr"
	"github.com/sells-group/leadgen/internal/config"
	"github.com/sells-group/leadgen/internal/crm"
	"github.com/sells-group/leadgen/internal/model"
	"github.com/sells-group/leadgen/internal/monitoring"
	"github.com/sells-group/leadgen/internal/provider"
	"github.com/sells-group/leadgen/internal/scoring"
	"github.com/sells-group/leadgen/internal/store"
)

// LeadPusher exports saved leads to an external CRM.
type LeadPusher interface {
	Push(ctx context.Context, leads []model.Lead) (crm.PushResult, error)
}

// GenerateRequest is one pipeline invocation.
type GenerateRequest struct {
	ClientID   string             `json:"client_id"`
	Criteria   model.LeadCriteria `json:"criteria"`
	CampaignID string             `json:"campaign_id,omitempty"`
}

// Result is the structured outcome of Generate. On failure Success is false
// and Error holds the message; the counts reached so far are kept.
type Result struct {
	Success           bool                    `json:"success"`
	Error             string                  `json:"error,omitempty"`
	Leads             []model.Lead            `json:"leads,omitempty"`
	LeadsGenerated    int                     `json:"leads_generated"`
	AverageScore      float64                 `json:"average_score"`
	APIUsageRemaining int                     `json:"api_usage_remaining"`
	Summary           model.GenerationSummary `json:"generation_summary"`
	Filter            FilterStats             `json:"filter_stats"`
	Calls             model.ProviderCalls     `json:"api_calls"`
	DurationMs        int64                   `json:"duration_ms"`
}

// ExecutionSummary converts the result into the summary stored on a
// campaign execution.
func (r *Result) ExecutionSummary() *model.ExecutionSummary {
	ids := make([]string, 0, len(r.Leads))
	for _, l := range r.Leads {
		ids = append(ids, l.ID)
	}
	return &model.ExecutionSummary{
		Message:           "leads generated",
		Generation:        r.Summary,
		AverageScore:      r.AverageScore,
		APIUsageRemaining: r.APIUsageRemaining,
		LeadIDs:           ids,
	}
}

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithPusher exports every successful run's leads. Export failures are
// logged and never fail the run.
func WithPusher(p LeadPusher) Option {
	return func(pl *Pipeline) { pl.pusher = p }
}

// WithClock overrides time.Now.
func WithClock(now func() time.Time) Option {
	return func(pl *Pipeline) { pl.nowFunc = now }
}

// Pipeline orchestrates lead generation for all clients. It is safe for
// concurrent use; runs for the same client are serialized.
type Pipeline struct {
	store    store.Store
	searcher provider.Searcher
	enricher *Enricher
	scorer   *scoring.Engine
	pusher   LeadPusher

	minCompanySize int
	suggestSample  int

	locks   clientLocks
	nowFunc func() time.Time
}

// New creates a Pipeline.
func New(
	st store.Store,
	searcher provider.Searcher,
	verifier provider.EmailVerifier,
	profiles provider.ProfileValidator,
	scorer *scoring.Engine,
	cfg config.PipelineConfig,
	opts ...Option,
) *Pipeline {
	p := &Pipeline{
		store:          st,
		searcher:       searcher,
		enricher:       NewEnricher(verifier, profiles, cfg.EnrichConcurrency),
		scorer:         scorer,
		minCompanySize: cfg.MinCompanySize,
		suggestSample:  cfg.SuggestSample,
		nowFunc:        time.Now,
	}
	if p.suggestSample <= 0 {
		p.suggestSample = 5
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Generate runs the full pipeline for one client. The returned Result is
// never nil; a non-nil error means the run failed and nothing was saved.
func (p *Pipeline) Generate(ctx context.Context, req GenerateRequest) (*Result, error) {
	start := time.Now()
	res := &Result{}
	tally := &provider.Tally{}
	ctx = provider.WithTally(ctx, tally)

	log := zap.L().With(zap.String("client_id", req.ClientID))
	if req.CampaignID != "" {
		log = log.With(zap.String("campaign_id", req.CampaignID))
	}

	err := p.generate(ctx, log, req, res)

	res.Calls = tally.Calls()
	res.DurationMs = time.Since(start).Milliseconds()
	monitoring.PipelineDuration.Observe(time.Since(start).Seconds())

	if err != nil {
		res.Success = false
		res.Error = err.Error()
		res.Leads = nil
		res.LeadsGenerated = 0
		monitoring.PipelineRuns.WithLabelValues(apperr.Kind(err)).Inc()
		log.Error("pipeline: run failed", zap.Error(err), zap.Int64("duration_ms", res.DurationMs))
		return res, err
	}

	res.Success = true
	monitoring.PipelineRuns.WithLabelValues("success").Inc()
	monitoring.LeadsSaved.Add(float64(res.LeadsGenerated))
	log.Info("pipeline: run complete",
		zap.Int("leads", res.LeadsGenerated),
		zap.Float64("average_score", res.AverageScore),
		zap.Int64("duration_ms", res.DurationMs),
	)

	if p.pusher != nil && len(res.Leads) > 0 {
		if _, pushErr := p.pusher.Push(ctx, res.Leads); pushErr != nil {
			log.Warn("pipeline: crm export failed", zap.Error(pushErr))
		}
	}
	return res, nil
}

func (p *Pipeline) generate(ctx context.Context, log *zap.Logger, req GenerateRequest, res *Result) error {
	criteria := req.Criteria.WithDefaults()
	if err := criteria.Validate(); err != nil {
		return err
	}

	unlock := p.locks.lock(req.ClientID)
	defer unlock()

	client, err := p.store.GetClient(ctx, req.ClientID)
	if err != nil {
		return eris.Wrap(err, "pipeline: load client")
	}
	if client.Status != model.ClientStatusActive {
		return eris.Wrapf(apperr.ErrInvalidState, "client %s is %s", client.ID, client.Status)
	}
	if !client.CanGenerate(criteria.MaxResults) {
		return eris.Wrapf(apperr.ErrQuotaExceeded, "client %s: requested %d leads with %d of %d remaining",
			client.ID, criteria.MaxResults, client.Remaining(), client.APIQuotaMonthly)
	}

	done := func(name string, t time.Time) {
		log.Debug("pipeline: stage complete",
			zap.String("stage", name),
			zap.Int64("duration_ms", time.Since(t).Milliseconds()),
		)
	}
	stage := func(name string, fn func() error) error {
		t := time.Now()
		if err := fn(); err != nil {
			return err
		}
		done(name, t)
		return nil
	}
	// step is a stage that cannot fail.
	step := func(name string, fn func()) {
		t := time.Now()
		fn()
		done(name, t)
	}

	var cands []model.CandidateLead
	if err := stage("search", func() error {
		var err error
		cands, err = p.searcher.Search(ctx, SearchParams(criteria))
		if err != nil {
			return eris.Wrap(err, "pipeline: search")
		}
		res.Summary.RawResults = len(cands)
		return nil
	}); err != nil {
		return err
	}

	if err := stage("filter", func() error {
		existing, err := p.store.LeadEmails(ctx, client.ID)
		if err != nil {
			return eris.Wrap(err, "pipeline: load existing emails")
		}
		cands, res.Filter = Filter(cands, existing, p.minCompanySize)
		res.Summary.AfterFiltering = len(cands)
		return nil
	}); err != nil {
		return err
	}

	step("enrich", func() {
		p.enricher.Enrich(ctx, cands, criteria)
		res.Summary.AfterEnrichment = len(cands)
	})
	if err := ctx.Err(); err != nil {
		return eris.Wrap(err, "pipeline: enrich")
	}

	step("score", func() {
		p.scorer.ScoreAll(cands)
		cands = Rank(cands, criteria.Threshold(), criteria.MaxResults)
		res.Summary.Qualified = len(cands)
	})

	now := p.nowFunc().UTC()
	var campaignID *string
	if req.CampaignID != "" {
		id := req.CampaignID
		campaignID = &id
	}
	leads := make([]model.Lead, 0, len(cands))
	for _, c := range cands {
		leads = append(leads, model.NewLeadFromCandidate(uuid.NewString(), client.ID, campaignID, c, now))
	}

	if err := stage("persist", func() error {
		return p.persist(ctx, client.ID, req.CampaignID, leads, now)
	}); err != nil {
		return err
	}

	res.Leads = leads
	res.LeadsGenerated = len(leads)
	res.Summary.Final = len(leads)
	res.AverageScore = averageScore(leads)
	res.APIUsageRemaining = max(client.APIQuotaMonthly-client.APIUsageCurrent-len(leads), 0)
	return nil
}

// persist saves leads, charges usage by the number saved and refreshes
// campaign stats in one transaction.
func (p *Pipeline) persist(ctx context.Context, clientID, campaignID string, leads []model.Lead, now time.Time) error {
	if len(leads) == 0 {
		return nil
	}
	err := p.store.WithTx(ctx, func(ctx context.Context, tx store.Tx) error {
		if err := tx.InsertLeads(ctx, leads); err != nil {
			return err
		}
		if err := tx.IncrementUsage(ctx, clientID, len(leads), now); err != nil {
			return err
		}
		if campaignID != "" {
			return tx.RefreshCampaignStats(ctx, campaignID, len(leads), now)
		}
		return nil
	})
	switch {
	case err == nil:
		return nil
	case errors.Is(err, apperr.ErrQuotaExceeded):
		return eris.Wrap(err, "pipeline: save leads")
	default:
		return eris.Wrapf(apperr.ErrPersistence, "pipeline: save leads: %v", err)
	}
}

// Rank keeps candidates scoring at least minScore, best first, capped at
// limit. Equal scores keep their input order.
func Rank(cands []model.CandidateLead, minScore, limit int) []model.CandidateLead {
	out := cands[:0:0]
	for _, c := range cands {
		if c.Score >= minScore {
			out = append(out, c)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Score > out[j].Score })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}

func averageScore(leads []model.Lead) float64 {
	if len(leads) == 0 {
		return 0
	}
	total := 0
	for _, l := range leads {
		total += l.Score
	}
	return float64(total) / float64(len(leads))
}

// clientLocks hands out one mutex per client id.
type clientLocks struct {
	mu sync.Mutex
	m  map[string]*sync.Mutex
}

func (c *clientLocks) lock(id string) (unlock func()) {
	c.mu.Lock()
	if c.m == nil {
		c.m = make(map[string]*sync.Mutex)
	}
	l, ok := c.m[id]
	if !ok {
		l = &sync.Mutex{}
		c.m[id] = l
	}
	c.mu.Unlock()

	l.Lock()
	return l.Unlock
}
