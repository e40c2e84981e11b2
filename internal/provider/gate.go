// Package provider wraps the external lead data sources behind shared,
// process-wide gates that enforce request spacing, quota windows, bounded
// throttle retries and circuit breaking, and normalizes their payloads into
// model.CandidateLead.
package provider

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rotisserie/eris"
	"golang.org/x/time/rate"

	"github.com/sells-group/leadgen/internal/apperr"
	"github.com/sells-group/leadgen/internal/model"
	"github.com/sells-group/leadgen/internal/monitoring"
	"github.com/sells-group/leadgen/internal/resilience"
	"github.com/sells-group/leadgen/pkg/httperr"
)

// Provider names, also used as metric labels and tally keys.
const (
	NameApollo   = "apollo"
	NameHunter   = "hunter"
	NameLinkedIn = "linkedin"
)

// DefaultRetryAfter applies when a throttled response carries no usable
// Retry-After header.
const DefaultRetryAfter = 60 * time.Second

// GateConfig configures one provider gate.
type GateConfig struct {
	MinInterval time.Duration
	Quota       int
	Period      Period
	Retry       resilience.RetryConfig
	Circuit     resilience.CircuitBreakerConfig
}

// Gate serializes calls to one provider. All pipeline runs share one Gate per
// provider so spacing and quota are process-wide.
type Gate struct {
	name    string
	limiter *rate.Limiter
	quota   *Quota
	breaker *resilience.CircuitBreaker
	retry   resilience.RetryConfig
	calls   atomic.Int64

	nowFunc func() time.Time
}

// NewGate creates a gate for the named provider.
func NewGate(name string, cfg GateConfig) *Gate {
	if cfg.Retry.MaxAttempts <= 0 {
		cfg.Retry.MaxAttempts = resilience.DefaultRetryConfig().MaxAttempts
	}
	limit := rate.Inf
	if cfg.MinInterval > 0 {
		limit = rate.Every(cfg.MinInterval)
	}
	return &Gate{
		name:    name,
		limiter: rate.NewLimiter(limit, 1),
		quota:   NewQuota(cfg.Quota, cfg.Period),
		breaker: resilience.NewCircuitBreaker(name, cfg.Circuit),
		retry:   cfg.Retry,
		nowFunc: time.Now,
	}
}

// Name returns the provider name.
func (g *Gate) Name() string { return g.name }

// Do runs fn under the gate. Each attempt spends one quota unit and waits for
// the minimum interval. A throttled answer is retried after its Retry-After
// delay up to the retry policy's attempt limit, then surfaces as
// apperr.ErrRateLimited. Quota exhaustion is never retried.
func (g *Gate) Do(ctx context.Context, op string, fn func(ctx context.Context) error) error {
	retry := g.retry
	retry.ShouldRetry = resilience.IsThrottled
	retry.OnRetry = resilience.RetryLogger(g.name, op)

	err := resilience.Do(ctx, retry, func(ctx context.Context) error {
		if err := g.quota.Acquire(); err != nil {
			return err
		}
		if err := g.limiter.Wait(ctx); err != nil {
			return eris.Wrapf(err, "%s: wait for rate limiter", g.name)
		}
		g.calls.Add(1)
		tallyFrom(ctx).add(g.name)

		return g.breaker.Execute(ctx, func(ctx context.Context) error {
			return g.classify(fn(ctx))
		})
	})

	monitoring.ProviderCalls.WithLabelValues(g.name, outcome(err)).Inc()
	return g.mapError(op, err)
}

// Usage returns the gate's quota snapshot and counters.
func (g *Gate) Usage() Usage {
	used, limit, remaining, resetsAt := g.quota.Snapshot()
	return Usage{
		Provider:  g.name,
		Period:    g.quota.period,
		Used:      used,
		Limit:     limit,
		Remaining: remaining,
		ResetsAt:  resetsAt,
		Calls:     g.calls.Load(),
		Circuit:   g.breaker.State().String(),
	}
}

// classify turns wire-level HTTP errors into the resilience error types.
func (g *Gate) classify(err error) error {
	if err == nil {
		return nil
	}
	he, ok := httperr.As(err)
	if !ok {
		return err
	}
	if he.Throttled() {
		return resilience.NewThrottledError(err, resilience.ParseRetryAfter(he.RetryAfter, g.nowFunc(), DefaultRetryAfter))
	}
	if resilience.IsTransientHTTPStatus(he.StatusCode) {
		return resilience.NewTransientError(err, he.StatusCode)
	}
	return err
}

func (g *Gate) mapError(op string, err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, apperr.ErrQuotaExceeded):
		return eris.Wrapf(err, "%s: %s", g.name, op)
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return eris.Wrapf(err, "%s: %s", g.name, op)
	case resilience.IsThrottled(err):
		return eris.Wrapf(apperr.ErrRateLimited, "%s: %s: still throttled after %d attempts: %v", g.name, op, g.retry.MaxAttempts, err)
	default:
		return eris.Wrapf(apperr.ErrProvider, "%s: %s: %v", g.name, op, err)
	}
}

func outcome(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, apperr.ErrQuotaExceeded):
		return "quota_exceeded"
	case resilience.IsThrottled(err):
		return "throttled"
	default:
		return "error"
	}
}

// Tally counts gate attempts per provider for one pipeline run.
type Tally struct {
	mu     sync.Mutex
	counts map[string]int
}

type tallyKey struct{}

// WithTally returns a context whose gate calls are counted into t.
func WithTally(ctx context.Context, t *Tally) context.Context {
	return context.WithValue(ctx, tallyKey{}, t)
}

func tallyFrom(ctx context.Context) *Tally {
	t, _ := ctx.Value(tallyKey{}).(*Tally)
	return t
}

func (t *Tally) add(name string) {
	if t == nil {
		return
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.counts == nil {
		t.counts = make(map[string]int)
	}
	t.counts[name]++
}

// Calls returns the counts as execution call counters.
func (t *Tally) Calls() model.ProviderCalls {
	if t == nil {
		return model.ProviderCalls{}
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	return model.ProviderCalls{
		Apollo:   t.counts[NameApollo],
		Hunter:   t.counts[NameHunter],
		LinkedIn: t.counts[NameLinkedIn],
	}
}
