package provider

import (
	"sync"
	"time"

	"github.com/rotisserie/eris"

	"github.com/sells-group/leadgen/internal/apperr"
)

// Period is the window a provider quota applies to.
type Period string

// Supported quota periods.
const (
	PeriodDaily   Period = "daily"
	PeriodMonthly Period = "monthly"
)

// ParsePeriod maps a config value to a Period, defaulting to daily.
func ParsePeriod(s string) Period {
	if Period(s) == PeriodMonthly {
		return PeriodMonthly
	}
	return PeriodDaily
}

// Usage is a snapshot of a provider's quota window.
type Usage struct {
	Provider  string    `json:"provider"`
	Period    Period    `json:"period"`
	Used      int       `json:"used"`
	Limit     int       `json:"limit"`
	Remaining int       `json:"remaining"`
	ResetsAt  time.Time `json:"resets_at"`
	Calls     int64     `json:"calls_total"`
	Circuit   string    `json:"circuit"`
}

// Quota counts calls in a calendar window (UTC day or UTC month). A limit of
// zero or less disables the ceiling.
type Quota struct {
	mu          sync.Mutex
	limit       int
	period      Period
	used        int
	windowStart time.Time

	nowFunc func() time.Time
}

// NewQuota creates a quota tracker.
func NewQuota(limit int, period Period) *Quota {
	q := &Quota{limit: limit, period: period, nowFunc: time.Now}
	q.windowStart = q.startOf(q.nowFunc())
	return q
}

// Acquire reserves one call or fails with ErrQuotaExceeded.
func (q *Quota) Acquire() error {
	q.mu.Lock()
	defer q.mu.Unlock()

	q.roll()
	if q.limit > 0 && q.used >= q.limit {
		return eris.Wrapf(apperr.ErrQuotaExceeded, "provider %s quota of %d reached, resets at %s",
			q.period, q.limit, q.nextStart().Format(time.RFC3339))
	}
	q.used++
	return nil
}

// Snapshot returns used, limit, remaining and the reset time.
func (q *Quota) Snapshot() (used, limit, remaining int, resetsAt time.Time) {
	q.mu.Lock()
	defer q.mu.Unlock()

	q.roll()
	remaining = -1
	if q.limit > 0 {
		remaining = max(q.limit-q.used, 0)
	}
	return q.used, q.limit, remaining, q.nextStart()
}

// roll must be called with mu held.
func (q *Quota) roll() {
	if start := q.startOf(q.nowFunc()); start.After(q.windowStart) {
		q.windowStart = start
		q.used = 0
	}
}

func (q *Quota) startOf(t time.Time) time.Time {
	t = t.UTC()
	if q.period == PeriodMonthly {
		return time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, time.UTC)
	}
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

func (q *Quota) nextStart() time.Time {
	if q.period == PeriodMonthly {
		return q.windowStart.AddDate(0, 1, 0)
	}
	return q.windowStart.AddDate(0, 0, 1)
}
