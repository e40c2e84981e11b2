package campaign

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/leadgen/internal/apperr"
	"github.com/sells-group/leadgen/internal/config"
	"github.com/sells-group/leadgen/internal/events"
	"github.com/sells-group/leadgen/internal/model"
	"github.com/sells-group/leadgen/internal/store"
)

// dueCampaign creates an active campaign whose next run has passed.
func dueCampaign(t *testing.T, svc *Service, clientID string, mutate func(c *model.Campaign)) *model.Campaign {
	t.Helper()
	ctx := context.Background()
	c := newCampaign(clientID)
	if mutate != nil {
		mutate(c)
	}
	require.NoError(t, svc.Create(ctx, c))
	past := svc.now().Add(-time.Minute)
	c.NextRunAt = &past
	require.NoError(t, svc.store.UpdateCampaign(ctx, c))
	return c
}

func TestRun_LimitIsRemainingAllowance(t *testing.T) {
	gen := &fakeGenerator{available: 100}
	svc, st, _ := newTestService(t, gen)
	ctx := context.Background()
	client := seedClient(t, st)

	c := dueCampaign(t, svc, client.ID, func(c *model.Campaign) {
		c.MaxLeadsPerRun = 50
		c.MaxLeadsTotal = 100
	})
	c.TotalLeadsGenerated = 90
	require.NoError(t, st.UpdateCampaign(ctx, c))

	exec, err := svc.Run(ctx, c)
	require.NoError(t, err)
	require.NotNil(t, exec)

	reqs := gen.requests()
	require.Len(t, reqs, 1)
	assert.Equal(t, 10, reqs[0].Criteria.MaxResults)
	assert.Equal(t, c.ID, reqs[0].CampaignID)
	assert.Equal(t, model.ExecutionCompleted, exec.Status)
	assert.Equal(t, 10, exec.LeadsGenerated)

	after, err := st.GetCampaign(ctx, c.ID)
	require.NoError(t, err)
	assert.Equal(t, 100, after.TotalLeadsGenerated)
	assert.Equal(t, model.CampaignStatusCompleted, after.Status, "crossing the ceiling completes the campaign")
	assert.Nil(t, after.NextRunAt)
	assert.NotNil(t, after.LastRunAt)
}

func TestRun_SchedulesNextRunFromStart(t *testing.T) {
	gen := &fakeGenerator{available: 5}
	svc, st, pub := newTestService(t, gen)
	ctx := context.Background()
	client := seedClient(t, st)

	started := time.Date(2026, 5, 11, 9, 0, 0, 0, time.UTC)
	svc.nowFunc = func() time.Time { return started }
	c := dueCampaign(t, svc, client.ID, nil)

	exec, err := svc.Run(ctx, c)
	require.NoError(t, err)
	assert.Equal(t, 5, exec.LeadsGenerated)
	assert.Equal(t, 10, exec.LeadsProcessed)
	require.NotNil(t, exec.Summary)
	assert.Equal(t, 5, exec.Summary.Generation.Final)

	after, err := st.GetCampaign(ctx, c.ID)
	require.NoError(t, err)
	assert.Equal(t, model.CampaignStatusActive, after.Status)
	assert.Equal(t, started, after.LastRunAt.UTC())
	assert.Equal(t, started.Add(24*time.Hour), after.NextRunAt.UTC())
	assert.Equal(t, 5, after.TotalLeadsGenerated)

	require.Len(t, pub.events, 1)
	assert.Equal(t, events.TypeExecutionCompleted, pub.events[0].Type)
	assert.Equal(t, 5, pub.events[0].LeadsGenerated)
}

func TestRun_FailureRecordedCampaignStaysActive(t *testing.T) {
	gen := &fakeGenerator{err: errors.New("apollo: rate limited")}
	svc, st, pub := newTestService(t, gen)
	ctx := context.Background()
	client := seedClient(t, st)
	c := dueCampaign(t, svc, client.ID, nil)

	exec, err := svc.Run(ctx, c)
	require.NoError(t, err)
	assert.Equal(t, model.ExecutionFailed, exec.Status)
	assert.Equal(t, "apollo: rate limited", exec.ErrorMessage)
	assert.Equal(t, 1, exec.Calls.Apollo)

	stored, err := st.GetExecution(ctx, exec.ID)
	require.NoError(t, err)
	assert.Equal(t, model.ExecutionFailed, stored.Status)
	assert.NotNil(t, stored.CompletedAt)

	after, err := st.GetCampaign(ctx, c.ID)
	require.NoError(t, err)
	assert.Equal(t, model.CampaignStatusActive, after.Status)
	assert.Nil(t, after.LastRunAt)
	require.NotNil(t, after.NextRunAt)
	assert.WithinDuration(t, *c.NextRunAt, *after.NextRunAt, time.Second, "a failed run is retried on the next tick")

	require.Len(t, pub.events, 1)
	assert.Equal(t, events.TypeExecutionFailed, pub.events[0].Type)
}

func TestRun_PanicBecomesFailedExecution(t *testing.T) {
	gen := &fakeGenerator{panicMsg: "nil map"}
	svc, st, _ := newTestService(t, gen)
	client := seedClient(t, st)
	c := dueCampaign(t, svc, client.ID, nil)

	exec, err := svc.Run(context.Background(), c)
	require.NoError(t, err)
	assert.Equal(t, model.ExecutionFailed, exec.Status)
	assert.Contains(t, exec.ErrorMessage, "pipeline panic: nil map")
}

func TestRun_AtCeilingCompletesWithoutExecution(t *testing.T) {
	gen := &fakeGenerator{available: 10}
	svc, st, _ := newTestService(t, gen)
	ctx := context.Background()
	client := seedClient(t, st)

	c := dueCampaign(t, svc, client.ID, func(c *model.Campaign) { c.MaxLeadsTotal = 20 })
	c.TotalLeadsGenerated = 20
	require.NoError(t, st.UpdateCampaign(ctx, c))

	exec, err := svc.Run(ctx, c)
	require.NoError(t, err)
	assert.Nil(t, exec)
	assert.Empty(t, gen.requests())

	after, err := st.GetCampaign(ctx, c.ID)
	require.NoError(t, err)
	assert.Equal(t, model.CampaignStatusCompleted, after.Status)

	execs, err := st.ListExecutions(ctx, store.ExecutionFilter{CampaignID: c.ID})
	require.NoError(t, err)
	assert.Empty(t, execs)
}

func TestRunNow(t *testing.T) {
	gen := &fakeGenerator{available: 3}
	svc, st, _ := newTestService(t, gen)
	ctx := context.Background()
	client := seedClient(t, st)
	c := newCampaign(client.ID)
	require.NoError(t, svc.Create(ctx, c))
	_, err := svc.Pause(ctx, client.ID, c.ID)
	require.NoError(t, err)

	exec, err := svc.RunNow(ctx, client.ID, c.ID)
	require.NoError(t, err)
	assert.Equal(t, 3, exec.LeadsGenerated)

	after, err := st.GetCampaign(ctx, c.ID)
	require.NoError(t, err)
	assert.Equal(t, model.CampaignStatusPaused, after.Status, "manual run keeps a paused campaign paused")
	assert.Nil(t, after.NextRunAt)
}

func TestScheduler_RunDueRunsUntilCeiling(t *testing.T) {
	gen := &fakeGenerator{available: 100}
	svc, st, _ := newTestService(t, gen)
	ctx := context.Background()
	client := seedClient(t, st)

	c := dueCampaign(t, svc, client.ID, func(c *model.Campaign) {
		c.MaxLeadsPerRun = 50
		c.MaxLeadsTotal = 120
		c.Frequency = model.Frequency{Kind: model.FrequencyCustom, Value: 1, Unit: model.UnitHour}
	})

	sched := NewScheduler(svc, config.SchedulerConfig{MaxParallel: 2})
	clock := svc.now()
	svc.nowFunc = func() time.Time { return clock }

	var generated []int
	for i := 0; i < 5; i++ {
		res, err := sched.RunDue(ctx)
		require.NoError(t, err)
		if res.Executed == 1 {
			generated = append(generated, gen.requests()[len(gen.requests())-1].Criteria.MaxResults)
		}
		clock = clock.Add(2 * time.Hour)
	}
	assert.Equal(t, []int{50, 50, 20}, generated)

	after, err := st.GetCampaign(ctx, c.ID)
	require.NoError(t, err)
	assert.Equal(t, model.CampaignStatusCompleted, after.Status)
	assert.Equal(t, 120, after.TotalLeadsGenerated)

	execs, err := st.ListExecutions(ctx, store.ExecutionFilter{CampaignID: c.ID})
	require.NoError(t, err)
	assert.Len(t, execs, 3, "no executions after completion")
}

func TestScheduler_FailureIsolated(t *testing.T) {
	gen := &fakeGenerator{available: 4, failFor: map[string]bool{}}
	svc, st, _ := newTestService(t, gen)
	ctx := context.Background()
	client := seedClient(t, st)

	bad := dueCampaign(t, svc, client.ID, func(c *model.Campaign) { c.Name = "bad" })
	good := dueCampaign(t, svc, client.ID, func(c *model.Campaign) { c.Name = "good" })
	gen.failFor[bad.ID] = true

	// Not yet due.
	later := newCampaign(client.ID)
	require.NoError(t, svc.Create(ctx, later))

	sched := NewScheduler(svc, config.SchedulerConfig{MaxParallel: 4})
	res, err := sched.RunDue(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, res.Due)
	assert.Equal(t, 2, res.Executed)
	assert.Equal(t, 1, res.Completed)
	assert.Equal(t, 1, res.Failed)

	g, err := st.GetCampaign(ctx, good.ID)
	require.NoError(t, err)
	assert.Equal(t, 4, g.TotalLeadsGenerated)
	assert.True(t, g.NextRunAt.After(svc.now()))

	b, err := st.GetCampaign(ctx, bad.ID)
	require.NoError(t, err)
	assert.Equal(t, model.CampaignStatusActive, b.Status)
	assert.False(t, b.NextRunAt.After(svc.now()), "failed campaign stays due")

	status := sched.Status()
	assert.False(t, status.Running)
	assert.Equal(t, int64(1), status.Ticks)
	assert.NotNil(t, status.LastTickAt)
}

func TestScheduler_PanicDoesNotStopTick(t *testing.T) {
	gen := &fakeGenerator{panicMsg: "boom"}
	svc, st, _ := newTestService(t, gen)
	client := seedClient(t, st)
	dueCampaign(t, svc, client.ID, nil)
	dueCampaign(t, svc, client.ID, nil)

	res, err := NewScheduler(svc, config.SchedulerConfig{}).RunDue(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, res.Failed)
}

func TestScheduler_ReapsStaleExecutions(t *testing.T) {
	svc, st, _ := newTestService(t, &fakeGenerator{})
	ctx := context.Background()
	client := seedClient(t, st)
	c := newCampaign(client.ID)
	require.NoError(t, svc.Create(ctx, c))

	stale := model.NewExecution("", c.ID, svc.now().Add(-5*time.Hour))
	require.NoError(t, st.CreateExecution(ctx, &stale))
	fresh := model.NewExecution("", c.ID, svc.now().Add(-10*time.Minute))
	require.NoError(t, st.CreateExecution(ctx, &fresh))

	res, err := NewScheduler(svc, config.SchedulerConfig{StaleExecutionHours: 2}).RunDue(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Reaped)

	got, err := st.GetExecution(ctx, stale.ID)
	require.NoError(t, err)
	assert.Equal(t, model.ExecutionCancelled, got.Status)

	got, err = st.GetExecution(ctx, fresh.ID)
	require.NoError(t, err)
	assert.Equal(t, model.ExecutionRunning, got.Status)
}

func TestScheduler_StartStop(t *testing.T) {
	svc, _, _ := newTestService(t, &fakeGenerator{})
	sched := NewScheduler(svc, config.SchedulerConfig{PollIntervalSecs: 3600})

	require.NoError(t, sched.Start(context.Background()))
	err := sched.Start(context.Background())
	assert.True(t, errors.Is(err, apperr.ErrInvalidState))
	assert.True(t, sched.Status().Running)
	assert.Equal(t, "1h0m0s", sched.Status().PollInterval)

	sched.Stop()
	assert.False(t, sched.Status().Running)
	sched.Stop()
}

func TestStats(t *testing.T) {
	gen := &fakeGenerator{available: 6, failFor: map[string]bool{}}
	svc, st, _ := newTestService(t, gen)
	ctx := context.Background()
	client := seedClient(t, st)
	c := dueCampaign(t, svc, client.ID, nil)

	for i := 0; i < 3; i++ {
		_, err := svc.Run(ctx, c)
		require.NoError(t, err)
	}
	gen.failFor[c.ID] = true
	_, err := svc.Run(ctx, c)
	require.NoError(t, err)

	stats, err := svc.Stats(ctx, client.ID, c.ID)
	require.NoError(t, err)
	assert.Equal(t, 4, stats.TotalExecutions)
	assert.Equal(t, 3, stats.SuccessfulExecutions)
	assert.Equal(t, 1, stats.FailedExecutions)
	assert.Equal(t, 75.0, stats.SuccessRate)
	assert.Equal(t, 6.0, stats.AvgLeadsPerRun)
	assert.Len(t, stats.RecentExecutions, 4)

	daily, err := svc.ExecutionStats(ctx, client.ID, 7)
	require.NoError(t, err)
	assert.Equal(t, 4, daily.TotalExecutions)
	assert.Equal(t, 18, daily.TotalLeadsGenerated)
	require.Len(t, daily.ByDay, 1)
	assert.Equal(t, 4, daily.ByDay[0].Executions)
	assert.Equal(t, 1, daily.ByDay[0].Failed)

	recent, err := svc.RecentExecutions(ctx, client.ID, 2)
	require.NoError(t, err)
	assert.Len(t, recent, 2)
	assert.Equal(t, c.Name, recent[0].CampaignName)

	page, err := svc.Executions(ctx, client.ID, c.ID, 3, 3)
	require.NoError(t, err)
	assert.Len(t, page, 1)
}

// blockingGenerator returns a generator whose runs wait until release is
// closed.
func blockingGenerator(available int) *fakeGenerator {
	return &fakeGenerator{
		available: available,
		entered:   make(chan struct{}, 4),
		release:   make(chan struct{}),
	}
}

type runOutcome struct {
	exec *model.CampaignExecution
	err  error
}

func TestRun_ConcurrentRunNowRejectedWhileScheduled(t *testing.T) {
	gen := blockingGenerator(100)
	svc, st, _ := newTestService(t, gen)
	ctx := context.Background()
	client := seedClient(t, st)

	c := dueCampaign(t, svc, client.ID, func(c *model.Campaign) {
		c.MaxLeadsPerRun = 50
		c.MaxLeadsTotal = 100
	})
	c.TotalLeadsGenerated = 90
	require.NoError(t, st.UpdateCampaign(ctx, c))

	sched := NewScheduler(svc, config.SchedulerConfig{})
	done := make(chan TickResult, 1)
	go func() {
		res, _ := sched.RunDue(ctx)
		done <- res
	}()
	<-gen.entered

	_, err := svc.RunNow(ctx, client.ID, c.ID)
	assert.True(t, errors.Is(err, apperr.ErrInvalidState))

	close(gen.release)
	res := <-done
	assert.Equal(t, 1, res.Executed)
	assert.Equal(t, 1, res.Completed)

	after, err := st.GetCampaign(ctx, c.ID)
	require.NoError(t, err)
	assert.Equal(t, 100, after.TotalLeadsGenerated)
	assert.Equal(t, model.CampaignStatusCompleted, after.Status)

	execs, err := st.ListExecutions(ctx, store.ExecutionFilter{CampaignID: c.ID})
	require.NoError(t, err)
	assert.Len(t, execs, 1)
	assert.Len(t, gen.requests(), 1)
}

func TestScheduler_SkipsCampaignAlreadyRunning(t *testing.T) {
	gen := blockingGenerator(5)
	svc, st, _ := newTestService(t, gen)
	ctx := context.Background()
	client := seedClient(t, st)
	c := dueCampaign(t, svc, client.ID, nil)

	done := make(chan runOutcome, 1)
	go func() {
		exec, err := svc.Run(ctx, c)
		done <- runOutcome{exec, err}
	}()
	<-gen.entered

	res, err := NewScheduler(svc, config.SchedulerConfig{}).RunDue(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Due)
	assert.Equal(t, 1, res.Skipped)
	assert.Zero(t, res.Executed)

	close(gen.release)
	out := <-done
	require.NoError(t, out.err)
	assert.Equal(t, model.ExecutionCompleted, out.exec.Status)
	assert.Len(t, gen.requests(), 1)
}

func TestRun_RejectedWhileExecutionStoredRunning(t *testing.T) {
	gen := &fakeGenerator{available: 5}
	svc, st, _ := newTestService(t, gen)
	ctx := context.Background()
	client := seedClient(t, st)
	c := dueCampaign(t, svc, client.ID, nil)

	// Another process holds a running execution for the campaign.
	other := model.NewExecution("", c.ID, svc.now().Add(-time.Minute))
	require.NoError(t, st.CreateExecution(ctx, &other))

	_, err := svc.Run(ctx, c)
	assert.True(t, errors.Is(err, apperr.ErrInvalidState))

	res, err := NewScheduler(svc, config.SchedulerConfig{StaleExecutionHours: 2}).RunDue(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Skipped)
	assert.Empty(t, gen.requests())
}

func TestRun_CancelDuringRunKeepsCancelled(t *testing.T) {
	gen := blockingGenerator(5)
	svc, st, pub := newTestService(t, gen)
	ctx := context.Background()
	client := seedClient(t, st)
	c := dueCampaign(t, svc, client.ID, nil)

	done := make(chan runOutcome, 1)
	go func() {
		exec, err := svc.Run(ctx, c)
		done <- runOutcome{exec, err}
	}()
	<-gen.entered

	_, err := svc.Cancel(ctx, client.ID, c.ID)
	require.NoError(t, err)

	close(gen.release)
	out := <-done
	require.NoError(t, out.err)
	require.NotNil(t, out.exec)
	assert.Equal(t, model.ExecutionCancelled, out.exec.Status)

	got, err := st.GetExecution(ctx, out.exec.ID)
	require.NoError(t, err)
	assert.Equal(t, model.ExecutionCancelled, got.Status)
	assert.Equal(t, "campaign cancelled", got.ErrorMessage)

	pub.mu.Lock()
	defer pub.mu.Unlock()
	require.Len(t, pub.events, 1)
	assert.Equal(t, events.TypeExecutionCancelled, pub.events[0].Type)

	after, err := st.GetCampaign(ctx, c.ID)
	require.NoError(t, err)
	assert.Equal(t, model.CampaignStatusCancelled, after.Status)
	assert.Nil(t, after.NextRunAt)
}

func TestRun_ReapDuringRunKeepsCancelled(t *testing.T) {
	gen := blockingGenerator(5)
	svc, st, pub := newTestService(t, gen)
	ctx := context.Background()

	base := time.Date(2026, 5, 11, 9, 0, 0, 0, time.UTC)
	var elapsed atomic.Int64
	svc.nowFunc = func() time.Time { return base.Add(time.Duration(elapsed.Load())) }

	client := seedClient(t, st)
	c := dueCampaign(t, svc, client.ID, nil)

	done := make(chan runOutcome, 1)
	go func() {
		exec, err := svc.Run(ctx, c)
		done <- runOutcome{exec, err}
	}()
	<-gen.entered

	elapsed.Store(int64(5 * time.Hour))
	n, err := svc.ReapStale(ctx, 2*time.Hour)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	close(gen.release)
	out := <-done
	require.NoError(t, out.err)
	assert.Equal(t, model.ExecutionCancelled, out.exec.Status)

	got, err := st.GetExecution(ctx, out.exec.ID)
	require.NoError(t, err)
	assert.Equal(t, model.ExecutionCancelled, got.Status)
	assert.Equal(t, "stale execution reaped", got.ErrorMessage)
	assert.Zero(t, got.LeadsGenerated)

	pub.mu.Lock()
	defer pub.mu.Unlock()
	require.Len(t, pub.events, 1)
	assert.Equal(t, events.TypeExecutionCancelled, pub.events[0].Type)
}
