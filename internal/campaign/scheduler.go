package campaign

import (
	"context"
	"sync"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sells-group/leadgen/internal/apperr"
	"github.com/sells-group/leadgen/internal/config"
	"github.com/sells-group/leadgen/internal/model"
	"github.com/sells-group/leadgen/internal/monitoring"
)

// TickResult reports one pass over due campaigns.
type TickResult struct {
	Due       int `json:"due"`
	Executed  int `json:"executed"`
	Completed int `json:"completed"`
	Failed    int `json:"failed"`
	Skipped   int `json:"skipped"`
	Reaped    int `json:"reaped"`
}

// SchedulerStatus is a point-in-time view of the scheduler.
type SchedulerStatus struct {
	Running      bool       `json:"running"`
	StartedAt    *time.Time `json:"started_at,omitempty"`
	LastTickAt   *time.Time `json:"last_tick_at,omitempty"`
	LastError    string     `json:"last_error,omitempty"`
	Ticks        int64      `json:"ticks"`
	PollInterval string     `json:"poll_interval"`
	MaxParallel  int        `json:"max_parallel"`
	InFlight     bool       `json:"in_flight"`
}

// Scheduler polls for due campaigns and runs them.
type Scheduler struct {
	svc         *Service
	interval    time.Duration
	maxParallel int
	staleAfter  time.Duration

	tickMu sync.Mutex // serializes RunDue

	mu        sync.Mutex
	cancel    context.CancelFunc
	done      chan struct{}
	startedAt *time.Time
	lastTick  *time.Time
	lastErr   string
	ticks     int64
	inFlight  bool
}

// NewScheduler creates a scheduler for svc.
func NewScheduler(svc *Service, cfg config.SchedulerConfig) *Scheduler {
	interval := time.Duration(cfg.PollIntervalSecs) * time.Second
	if interval <= 0 {
		interval = time.Minute
	}
	parallel := cfg.MaxParallel
	if parallel <= 0 {
		parallel = 1
	}
	stale := time.Duration(cfg.StaleExecutionHours) * time.Hour
	if stale <= 0 {
		stale = 2 * time.Hour
	}
	return &Scheduler{svc: svc, interval: interval, maxParallel: parallel, staleAfter: stale}
}

// Start launches the polling loop. It is an error to start twice.
func (sc *Scheduler) Start(ctx context.Context) error {
	sc.mu.Lock()
	defer sc.mu.Unlock()
	if sc.cancel != nil {
		return eris.Wrap(apperr.ErrInvalidState, "scheduler: already running")
	}

	ctx, cancel := context.WithCancel(ctx)
	now := sc.svc.now()
	sc.cancel = cancel
	sc.done = make(chan struct{})
	sc.startedAt = &now

	go sc.loop(ctx, sc.done)
	return nil
}

// Stop cancels the loop and waits for the current tick to finish.
func (sc *Scheduler) Stop() {
	sc.mu.Lock()
	cancel, done := sc.cancel, sc.done
	sc.cancel, sc.done = nil, nil
	sc.mu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	<-done
}

// Status reports whether the loop runs and how recent ticks went.
func (sc *Scheduler) Status() SchedulerStatus {
	sc.mu.Lock()
	defer sc.mu.Unlock()
	return SchedulerStatus{
		Running:      sc.cancel != nil,
		StartedAt:    sc.startedAt,
		LastTickAt:   sc.lastTick,
		LastError:    sc.lastErr,
		Ticks:        sc.ticks,
		PollInterval: sc.interval.String(),
		MaxParallel:  sc.maxParallel,
		InFlight:     sc.inFlight,
	}
}

func (sc *Scheduler) loop(ctx context.Context, done chan struct{}) {
	defer close(done)

	log := zap.L().With(zap.String("component", "campaign.scheduler"))
	log.Info("starting campaign scheduler",
		zap.Duration("interval", sc.interval),
		zap.Int("max_parallel", sc.maxParallel),
	)

	ticker := time.NewTicker(sc.interval)
	defer ticker.Stop()

	for {
		if _, err := sc.RunDue(ctx); err != nil && ctx.Err() == nil {
			log.Error("scheduler: tick failed", zap.Error(err))
		}
		select {
		case <-ctx.Done():
			log.Info("campaign scheduler stopped")
			return
		case <-ticker.C:
		}
	}
}

// RunDue reaps stale executions and runs every due campaign once. One
// campaign's failure or panic never stops the others.
func (sc *Scheduler) RunDue(ctx context.Context) (TickResult, error) {
	sc.tickMu.Lock()
	defer sc.tickMu.Unlock()

	sc.setInFlight(true)
	res, err := sc.runDue(ctx)
	sc.recordTick(err)
	monitoring.SchedulerTicks.Inc()
	return res, err
}

func (sc *Scheduler) runDue(ctx context.Context) (TickResult, error) {
	var res TickResult

	reaped, err := sc.svc.ReapStale(ctx, sc.staleAfter)
	if err != nil {
		zap.L().Warn("scheduler: reap stale executions failed", zap.Error(err))
	}
	res.Reaped = reaped

	now := sc.svc.now()
	due, err := sc.svc.store.ListDueCampaigns(ctx, now)
	if err != nil {
		return res, eris.Wrap(err, "scheduler: list due campaigns")
	}
	res.Due = len(due)
	if len(due) == 0 {
		return res, nil
	}

	var mu sync.Mutex
	tally := func(exec *model.CampaignExecution) {
		mu.Lock()
		defer mu.Unlock()
		switch {
		case exec == nil:
			res.Skipped++
		case exec.Status == model.ExecutionFailed:
			res.Executed++
			res.Failed++
		case exec.Status == model.ExecutionCancelled:
			res.Executed++
		default:
			res.Executed++
			res.Completed++
		}
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(sc.maxParallel)
	for i := range due {
		c := &due[i]
		if !IsDue(c, now) {
			continue
		}
		g.Go(func() error {
			exec, err := sc.runOne(gctx, c)
			if err != nil {
				zap.L().Error("scheduler: campaign run failed",
					zap.String("campaign_id", c.ID),
					zap.Error(err),
				)
				mu.Lock()
				res.Failed++
				mu.Unlock()
				return nil
			}
			tally(exec)
			return nil
		})
	}
	_ = g.Wait()

	zap.L().Info("scheduler: tick complete",
		zap.Int("due", res.Due),
		zap.Int("executed", res.Executed),
		zap.Int("failed", res.Failed),
	)
	return res, nil
}

// runOne isolates a campaign run from panics outside the pipeline.
func (sc *Scheduler) runOne(ctx context.Context, c *model.Campaign) (exec *model.CampaignExecution, err error) {
	defer func() {
		if r := recover(); r != nil {
			exec, err = nil, eris.Errorf("scheduler: campaign %s panicked: %v", c.ID, r)
		}
	}()
	return sc.svc.runScheduled(ctx, c.ID)
}

func (sc *Scheduler) setInFlight(v bool) {
	sc.mu.Lock()
	sc.inFlight = v
	sc.mu.Unlock()
}

func (sc *Scheduler) recordTick(err error) {
	now := sc.svc.now()
	sc.mu.Lock()
	defer sc.mu.Unlock()
	sc.inFlight = false
	sc.lastTick = &now
	sc.ticks++
	sc.lastErr = ""
	if err != nil {
		sc.lastErr = err.Error()
	}
}
