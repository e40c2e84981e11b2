// Package campaign manages recurring lead-generation campaigns: their
// lifecycle, their schedule, and the executions that record each run.
package campaign

import (
	"context"
	"sync"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/leadgen/internal/apperr"
	"github.com/sells-group/leadgen/internal/events"
	"github.com/sells-group/leadgen/internal/model"
	"github.com/sells-group/leadgen/internal/pipeline"
	"github.com/sells-group/leadgen/internal/store"
)

// Generator runs the lead pipeline.
type Generator interface {
	Generate(ctx context.Context, req pipeline.GenerateRequest) (*pipeline.Result, error)
}

// Service owns campaign lifecycle and execution recording.
type Service struct {
	store  store.Store
	gen    Generator
	events events.Publisher

	// inFlight holds the campaigns with a run in progress in this process.
	mu       sync.Mutex
	inFlight map[string]struct{}

	nowFunc func() time.Time
}

// NewService creates a Service. A nil publisher discards events.
func NewService(st store.Store, gen Generator, pub events.Publisher) *Service {
	if pub == nil {
		pub = events.Nop{}
	}
	return &Service{
		store:    st,
		gen:      gen,
		events:   pub,
		inFlight: make(map[string]struct{}),
		nowFunc:  time.Now,
	}
}

func (s *Service) now() time.Time { return s.nowFunc().UTC() }

// Create validates c, fills defaults, computes its first run and saves it.
func (s *Service) Create(ctx context.Context, c *model.Campaign) error {
	if _, err := s.store.GetClient(ctx, c.ClientID); err != nil {
		return eris.Wrap(err, "campaign: create")
	}
	if c.Status == "" {
		c.Status = model.CampaignStatusActive
	}
	if c.Timezone == "" {
		c.Timezone = model.DefaultTimezone
	}
	if c.Criteria.MaxResults == 0 {
		c.Criteria.MaxResults = c.MaxLeadsPerRun
	}
	if err := c.Validate(); err != nil {
		return err
	}
	if c.Status == model.CampaignStatusActive {
		next := ComputeNextRun(c, s.now())
		c.NextRunAt = &next
	}
	if err := s.store.CreateCampaign(ctx, c); err != nil {
		return eris.Wrap(err, "campaign: create")
	}
	zap.L().Info("campaign: created",
		zap.String("campaign_id", c.ID),
		zap.String("client_id", c.ClientID),
		zap.Timep("next_run_at", c.NextRunAt),
	)
	return nil
}

// CreateFromOnboarding builds and saves a campaign from a questionnaire.
func (s *Service) CreateFromOnboarding(ctx context.Context, clientID string, o Onboarding) (*model.Campaign, error) {
	c, err := FromOnboarding(clientID, o, s.now())
	if err != nil {
		return nil, err
	}
	if err := s.Create(ctx, c); err != nil {
		return nil, err
	}
	return c, nil
}

// Get returns a campaign owned by clientID. An empty clientID skips the
// ownership check.
func (s *Service) Get(ctx context.Context, clientID, id string) (*model.Campaign, error) {
	c, err := s.store.GetCampaign(ctx, id)
	if err != nil {
		return nil, err
	}
	if clientID != "" && c.ClientID != clientID {
		return nil, eris.Wrapf(apperr.ErrNotFound, "campaign %s", id)
	}
	return c, nil
}

// List returns campaigns matching filter.
func (s *Service) List(ctx context.Context, filter store.CampaignFilter) ([]model.Campaign, error) {
	return s.store.ListCampaigns(ctx, filter)
}

// Patch holds the editable campaign fields. Nil fields are left unchanged.
type Patch struct {
	Name           *string             `json:"name,omitempty"`
	Description    *string             `json:"description,omitempty"`
	Criteria       *model.LeadCriteria `json:"criteria,omitempty"`
	Frequency      *model.Frequency    `json:"schedule,omitempty"`
	PreferredTime  *string             `json:"preferred_time,omitempty"`
	Timezone       *string             `json:"timezone,omitempty"`
	MaxLeadsPerRun *int                `json:"max_leads_per_run,omitempty"`
	MaxLeadsTotal  *int                `json:"max_leads_total,omitempty"`
}

// Update applies p. Changing the schedule of an active campaign recomputes
// its next run.
func (s *Service) Update(ctx context.Context, clientID, id string, p Patch) (*model.Campaign, error) {
	c, err := s.Get(ctx, clientID, id)
	if err != nil {
		return nil, err
	}
	if c.Status.Terminal() {
		return nil, eris.Wrapf(apperr.ErrInvalidState, "campaign %s is %s", id, c.Status)
	}

	rescheduled := false
	if p.Name != nil {
		c.Name = *p.Name
	}
	if p.Description != nil {
		c.Description = *p.Description
	}
	if p.Criteria != nil {
		c.Criteria = *p.Criteria
	}
	if p.Frequency != nil {
		c.Frequency = *p.Frequency
		rescheduled = true
	}
	if p.PreferredTime != nil {
		c.PreferredTime = *p.PreferredTime
		rescheduled = true
	}
	if p.Timezone != nil {
		c.Timezone = *p.Timezone
		rescheduled = true
	}
	if p.MaxLeadsPerRun != nil {
		c.MaxLeadsPerRun = *p.MaxLeadsPerRun
	}
	if p.MaxLeadsTotal != nil {
		c.MaxLeadsTotal = *p.MaxLeadsTotal
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	if rescheduled && c.Status == model.CampaignStatusActive {
		next := ComputeNextRun(c, s.now())
		c.NextRunAt = &next
	}
	c.UpdatedAt = s.now()
	if err := s.store.UpdateCampaign(ctx, c); err != nil {
		return nil, eris.Wrap(err, "campaign: update")
	}
	return c, nil
}

// Delete removes a campaign with its executions and leads.
func (s *Service) Delete(ctx context.Context, clientID, id string) error {
	if _, err := s.Get(ctx, clientID, id); err != nil {
		return err
	}
	return s.store.DeleteCampaign(ctx, id)
}

// Pause stops scheduling an active campaign.
func (s *Service) Pause(ctx context.Context, clientID, id string) (*model.Campaign, error) {
	return s.transition(ctx, clientID, id, func(c *model.Campaign) error {
		if c.Status != model.CampaignStatusActive {
			return eris.Wrapf(apperr.ErrInvalidState, "cannot pause %s campaign", c.Status)
		}
		c.Status = model.CampaignStatusPaused
		c.NextRunAt = nil
		return nil
	})
}

// Resume reactivates a paused campaign and recomputes its next run.
func (s *Service) Resume(ctx context.Context, clientID, id string) (*model.Campaign, error) {
	return s.transition(ctx, clientID, id, func(c *model.Campaign) error {
		if c.Status != model.CampaignStatusPaused {
			return eris.Wrapf(apperr.ErrInvalidState, "cannot resume %s campaign", c.Status)
		}
		c.Status = model.CampaignStatusActive
		next := ComputeNextRun(c, s.now())
		c.NextRunAt = &next
		return nil
	})
}

// Cancel ends a campaign for good and cancels its running executions.
func (s *Service) Cancel(ctx context.Context, clientID, id string) (*model.Campaign, error) {
	c, err := s.transition(ctx, clientID, id, func(c *model.Campaign) error {
		if c.Status.Terminal() {
			return eris.Wrapf(apperr.ErrInvalidState, "campaign is already %s", c.Status)
		}
		c.Status = model.CampaignStatusCancelled
		c.NextRunAt = nil
		return nil
	})
	if err != nil {
		return nil, err
	}
	if _, err := s.CancelRunning(ctx, id, "campaign cancelled"); err != nil {
		return c, err
	}
	return c, nil
}

func (s *Service) transition(ctx context.Context, clientID, id string, apply func(c *model.Campaign) error) (*model.Campaign, error) {
	c, err := s.Get(ctx, clientID, id)
	if err != nil {
		return nil, err
	}
	from := c.Status
	if err := apply(c); err != nil {
		return nil, eris.Wrapf(err, "campaign %s", id)
	}
	c.UpdatedAt = s.now()
	if err := s.store.UpdateCampaign(ctx, c); err != nil {
		return nil, eris.Wrap(err, "campaign: save status")
	}
	zap.L().Info("campaign: status changed",
		zap.String("campaign_id", id),
		zap.String("from", string(from)),
		zap.String("to", string(c.Status)),
	)
	return c, nil
}

// RunNow runs a campaign immediately and records the execution the same
// way a scheduled run does. Terminal campaigns cannot run.
func (s *Service) RunNow(ctx context.Context, clientID, id string) (*model.CampaignExecution, error) {
	c, err := s.Get(ctx, clientID, id)
	if err != nil {
		return nil, err
	}
	if c.Status.Terminal() {
		return nil, eris.Wrapf(apperr.ErrInvalidState, "campaign %s is %s", id, c.Status)
	}
	exec, err := s.Run(ctx, c)
	if err != nil {
		return nil, err
	}
	if exec == nil {
		return nil, eris.Wrapf(apperr.ErrInvalidState, "campaign %s reached its lead ceiling", id)
	}
	return exec, nil
}
