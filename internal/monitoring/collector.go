// Package monitoring exposes Prometheus metrics and runs periodic health
// checks over campaign executions and client quota usage, posting webhook
// alerts when thresholds are crossed.
package monitoring

import (
	"context"
	"sort"
	"time"

	"github.com/rotisserie/eris"

	"github.com/sells-group/leadgen/internal/model"
	"github.com/sells-group/leadgen/internal/store"
)

// ClientUsage is one client's consumption of its monthly quota.
type ClientUsage struct {
	ClientID string  `json:"client_id"`
	Name     string  `json:"name"`
	Used     int     `json:"used"`
	Quota    int     `json:"quota"`
	Ratio    float64 `json:"ratio"`
}

// MetricsSnapshot holds a point-in-time view of system health.
type MetricsSnapshot struct {
	// Execution metrics (within lookback window).
	ExecutionsTotal     int     `json:"executions_total"`
	ExecutionsCompleted int     `json:"executions_completed"`
	ExecutionsFailed    int     `json:"executions_failed"`
	ExecutionsRunning   int     `json:"executions_running"`
	ExecutionsCancelled int     `json:"executions_cancelled"`
	FailureRate         float64 `json:"failure_rate"`
	LeadsGenerated      int     `json:"leads_generated"`
	AvgLeadsPerRun      float64 `json:"avg_leads_per_run"`

	// Running executions older than the stuck threshold, regardless of window.
	StuckExecutions int `json:"stuck_executions"`

	// Clients, highest usage ratio first.
	Clients []ClientUsage `json:"clients"`

	// Metadata.
	LookbackHours int       `json:"lookback_hours"`
	CollectedAt   time.Time `json:"collected_at"`
}

// Source is the read surface the collector needs. store.Store satisfies it.
type Source interface {
	ListExecutions(ctx context.Context, filter store.ExecutionFilter) ([]model.CampaignExecution, error)
	ListClients(ctx context.Context) ([]model.Client, error)
}

// Collector gathers metrics from the store.
type Collector struct {
	src        Source
	stuckAfter time.Duration
	nowFunc    func() time.Time
}

// NewCollector creates a new metrics collector. Running executions older
// than stuckAfter are reported as stuck.
func NewCollector(src Source, stuckAfter time.Duration) *Collector {
	if stuckAfter <= 0 {
		stuckAfter = 2 * time.Hour
	}
	return &Collector{src: src, stuckAfter: stuckAfter, nowFunc: time.Now}
}

// Collect gathers a snapshot of system metrics over the given lookback window.
func (c *Collector) Collect(ctx context.Context, lookbackHours int) (*MetricsSnapshot, error) {
	now := c.nowFunc().UTC()
	snap := &MetricsSnapshot{
		LookbackHours: lookbackHours,
		CollectedAt:   now,
	}

	execs, err := c.src.ListExecutions(ctx, store.ExecutionFilter{
		Since: now.Add(-time.Duration(lookbackHours) * time.Hour),
	})
	if err != nil {
		return nil, eris.Wrap(err, "monitoring: list executions")
	}

	snap.ExecutionsTotal = len(execs)
	for _, e := range execs {
		switch e.Status {
		case model.ExecutionCompleted:
			snap.ExecutionsCompleted++
			snap.LeadsGenerated += e.LeadsGenerated
		case model.ExecutionFailed:
			snap.ExecutionsFailed++
		case model.ExecutionRunning:
			snap.ExecutionsRunning++
		case model.ExecutionCancelled:
			snap.ExecutionsCancelled++
		}
	}
	if finished := snap.ExecutionsCompleted + snap.ExecutionsFailed; finished > 0 {
		snap.FailureRate = float64(snap.ExecutionsFailed) / float64(finished)
	}
	if snap.ExecutionsCompleted > 0 {
		snap.AvgLeadsPerRun = float64(snap.LeadsGenerated) / float64(snap.ExecutionsCompleted)
	}

	stuck, err := c.src.ListExecutions(ctx, store.ExecutionFilter{
		Status:        model.ExecutionRunning,
		StartedBefore: now.Add(-c.stuckAfter),
	})
	if err != nil {
		return nil, eris.Wrap(err, "monitoring: list stuck executions")
	}
	snap.StuckExecutions = len(stuck)

	clients, err := c.src.ListClients(ctx)
	if err != nil {
		return nil, eris.Wrap(err, "monitoring: list clients")
	}
	for _, cl := range clients {
		if cl.Status != model.ClientStatusActive || cl.APIQuotaMonthly <= 0 {
			continue
		}
		snap.Clients = append(snap.Clients, ClientUsage{
			ClientID: cl.ID,
			Name:     cl.Name,
			Used:     cl.APIUsageCurrent,
			Quota:    cl.APIQuotaMonthly,
			Ratio:    float64(cl.APIUsageCurrent) / float64(cl.APIQuotaMonthly),
		})
	}
	sort.SliceStable(snap.Clients, func(i, j int) bool { return snap.Clients[i].Ratio > snap.Clients[j].Ratio })

	return snap, nil
}
