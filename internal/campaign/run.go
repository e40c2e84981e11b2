package campaign

import (
	"context"
	"errors"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/leadgen/internal/apperr"
	"github.com/sells-group/leadgen/internal/events"
	"github.com/sells-group/leadgen/internal/model"
	"github.com/sells-group/leadgen/internal/monitoring"
	"github.com/sells-group/leadgen/internal/pipeline"
	"github.com/sells-group/leadgen/internal/store"
)

// ceilingMessage is stored on executions skipped because the campaign's
// total lead ceiling was already met.
const ceilingMessage = "total lead limit reached"

// Run executes one campaign now and records the outcome. The campaign is
// reloaded once claimed, so its run limit reflects every earlier run. It
// returns a nil execution when the campaign was already at its ceiling and
// was completed without a run. A terminal campaign, or one with another
// execution in flight, fails with ErrInvalidState. Pipeline failures are
// recorded on the execution, not returned; the error is for failures to
// record.
func (s *Service) Run(ctx context.Context, c *model.Campaign) (*model.CampaignExecution, error) {
	release, err := s.claim(ctx, c.ID)
	if err != nil {
		return nil, err
	}
	defer release()

	fresh, err := s.store.GetCampaign(ctx, c.ID)
	if err != nil {
		return nil, eris.Wrap(err, "campaign: reload before run")
	}
	if fresh.Status.Terminal() {
		return nil, eris.Wrapf(apperr.ErrInvalidState, "campaign %s is %s", fresh.ID, fresh.Status)
	}
	return s.execute(ctx, fresh)
}

// runScheduled is Run for the scheduler. A campaign that is already running
// or is no longer due once claimed is skipped with a nil execution.
func (s *Service) runScheduled(ctx context.Context, id string) (*model.CampaignExecution, error) {
	release, err := s.claim(ctx, id)
	if errors.Is(err, apperr.ErrInvalidState) {
		zap.L().Info("campaign: skipped, execution in flight", zap.String("campaign_id", id))
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	defer release()

	fresh, err := s.store.GetCampaign(ctx, id)
	if err != nil {
		return nil, eris.Wrap(err, "campaign: reload before run")
	}
	if !IsDue(fresh, s.now()) {
		return nil, nil
	}
	return s.execute(ctx, fresh)
}

// claim reserves a campaign for one run. It fails with ErrInvalidState when
// a run is in flight here or a running execution is stored for it.
func (s *Service) claim(ctx context.Context, id string) (release func(), err error) {
	s.mu.Lock()
	if _, busy := s.inFlight[id]; busy {
		s.mu.Unlock()
		return nil, eris.Wrapf(apperr.ErrInvalidState, "campaign %s is already running", id)
	}
	if s.inFlight == nil {
		s.inFlight = make(map[string]struct{})
	}
	s.inFlight[id] = struct{}{}
	s.mu.Unlock()

	release = func() {
		s.mu.Lock()
		delete(s.inFlight, id)
		s.mu.Unlock()
	}

	running, err := s.store.ListExecutions(ctx, store.ExecutionFilter{
		CampaignID: id,
		Status:     model.ExecutionRunning,
		Limit:      1,
	})
	if err != nil {
		release()
		return nil, eris.Wrap(err, "campaign: check running executions")
	}
	if len(running) > 0 {
		release()
		return nil, eris.Wrapf(apperr.ErrInvalidState, "campaign %s has execution %s running", id, running[0].ID)
	}
	return release, nil
}

func (s *Service) execute(ctx context.Context, c *model.Campaign) (*model.CampaignExecution, error) {
	log := zap.L().With(
		zap.String("campaign_id", c.ID),
		zap.String("client_id", c.ClientID),
	)

	if c.ReachedTotalLimit() {
		log.Info("campaign: lead ceiling reached, completing")
		return nil, s.complete(ctx, c)
	}

	started := s.now()
	exec := model.NewExecution("", c.ID, started)
	exec.CampaignName = c.Name
	if err := s.store.CreateExecution(ctx, &exec); err != nil {
		return nil, eris.Wrap(err, "campaign: create execution")
	}
	log = log.With(zap.String("execution_id", exec.ID))

	limit := c.EffectiveRunLimit()
	if limit <= 0 {
		if err := exec.Complete(0, 0, &model.ExecutionSummary{Message: ceilingMessage}, model.ProviderCalls{}, s.now()); err != nil {
			return nil, err
		}
		if _, err := s.finish(ctx, c.ClientID, &exec); err != nil {
			return nil, err
		}
		return &exec, s.complete(ctx, c)
	}

	criteria := c.Criteria
	criteria.MaxResults = limit
	log.Info("campaign: run started", zap.Int("max_results", limit))

	res, genErr := s.generate(ctx, pipeline.GenerateRequest{
		ClientID:   c.ClientID,
		Criteria:   criteria,
		CampaignID: c.ID,
	})

	if genErr != nil {
		msg := genErr.Error()
		var calls model.ProviderCalls
		if res != nil {
			calls = res.Calls
			if res.Error != "" {
				msg = res.Error
			}
		}
		if err := exec.Fail(msg, calls, s.now()); err != nil {
			return nil, err
		}
		log.Warn("campaign: run failed", zap.String("error", msg))
		_, err := s.finish(ctx, c.ClientID, &exec)
		return &exec, err
	}

	if err := exec.Complete(res.LeadsGenerated, res.Summary.RawResults, res.ExecutionSummary(), res.Calls, s.now()); err != nil {
		return nil, err
	}
	if _, err := s.finish(ctx, c.ClientID, &exec); err != nil {
		return &exec, err
	}
	log.Info("campaign: run complete",
		zap.Int("leads", res.LeadsGenerated),
		zap.String("status", string(exec.Status)),
	)
	return &exec, s.afterRun(ctx, c.ID, started)
}

// generate shields the caller from a panicking pipeline.
func (s *Service) generate(ctx context.Context, req pipeline.GenerateRequest) (res *pipeline.Result, err error) {
	defer func() {
		if r := recover(); r != nil {
			res, err = nil, eris.Errorf("campaign: pipeline panic: %v", r)
		}
	}()
	return s.gen.Generate(ctx, req)
}

// afterRun reloads the campaign (the pipeline updated its totals), stamps
// the run and schedules the next one, completing it at its ceiling.
func (s *Service) afterRun(ctx context.Context, id string, ranAt time.Time) error {
	c, err := s.store.GetCampaign(ctx, id)
	if err != nil {
		return eris.Wrap(err, "campaign: reload after run")
	}
	c.LastRunAt = &ranAt
	if c.Status == model.CampaignStatusActive {
		if c.ReachedTotalLimit() {
			c.Status = model.CampaignStatusCompleted
			c.NextRunAt = nil
		} else {
			next := ComputeNextRun(c, s.now())
			c.NextRunAt = &next
		}
	}
	c.UpdatedAt = s.now()
	if err := s.store.UpdateCampaign(ctx, c); err != nil {
		return eris.Wrap(err, "campaign: save after run")
	}
	return nil
}

func (s *Service) complete(ctx context.Context, c *model.Campaign) error {
	c.Status = model.CampaignStatusCompleted
	c.NextRunAt = nil
	c.UpdatedAt = s.now()
	if err := s.store.UpdateCampaign(ctx, c); err != nil {
		return eris.Wrap(err, "campaign: complete")
	}
	return nil
}

// finish saves a terminal execution and announces it. When the stored row
// already reached a terminal state (a cancel or reap got there first), exec
// is replaced by the stored execution, nothing is announced and finish
// reports false.
func (s *Service) finish(ctx context.Context, clientID string, exec *model.CampaignExecution) (bool, error) {
	err := s.store.UpdateExecution(ctx, exec)
	if errors.Is(err, apperr.ErrInvalidState) {
		stored, getErr := s.store.GetExecution(ctx, exec.ID)
		if getErr != nil {
			return false, eris.Wrap(getErr, "campaign: reload execution")
		}
		zap.L().Info("campaign: execution already finished",
			zap.String("execution_id", exec.ID),
			zap.String("wanted", string(exec.Status)),
			zap.String("stored", string(stored.Status)),
		)
		*exec = *stored
		return false, nil
	}
	if err != nil {
		return false, eris.Wrap(err, "campaign: save execution")
	}
	monitoring.Executions.WithLabelValues(string(exec.Status)).Inc()
	if err := s.events.Publish(ctx, events.ExecutionEvent(clientID, exec)); err != nil {
		zap.L().Warn("campaign: publish execution event failed",
			zap.String("execution_id", exec.ID),
			zap.Error(err),
		)
	}
	return true, nil
}
