package campaign

import (
	"context"
	"math"
	"sort"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/leadgen/internal/model"
	"github.com/sells-group/leadgen/internal/store"
)

// recentForStats is how many executions Stats returns.
const recentForStats = 10

// Stats summarizes one campaign's execution history.
type Stats struct {
	Campaign             *model.Campaign           `json:"campaign"`
	TotalExecutions      int                       `json:"total_executions"`
	SuccessfulExecutions int                       `json:"successful_executions"`
	FailedExecutions     int                       `json:"failed_executions"`
	SuccessRate          float64                   `json:"success_rate"`
	AvgLeadsPerRun       float64                   `json:"avg_leads_per_execution"`
	RecentExecutions     []model.CampaignExecution `json:"recent_executions"`
}

// Stats returns execution totals for a campaign.
func (s *Service) Stats(ctx context.Context, clientID, id string) (*Stats, error) {
	c, err := s.Get(ctx, clientID, id)
	if err != nil {
		return nil, err
	}
	execs, err := s.store.ListExecutions(ctx, store.ExecutionFilter{CampaignID: id})
	if err != nil {
		return nil, eris.Wrap(err, "campaign: list executions")
	}

	st := &Stats{Campaign: c, TotalExecutions: len(execs)}
	leads := 0
	for _, e := range execs {
		switch e.Status {
		case model.ExecutionCompleted:
			st.SuccessfulExecutions++
			leads += e.LeadsGenerated
		case model.ExecutionFailed:
			st.FailedExecutions++
		}
	}
	st.SuccessRate = percent(st.SuccessfulExecutions, st.TotalExecutions)
	st.AvgLeadsPerRun = ratio(leads, st.SuccessfulExecutions)
	st.RecentExecutions = execs[:min(len(execs), recentForStats)]
	return st, nil
}

// DayStats is one day bucket of ExecutionStats.
type DayStats struct {
	Date           string `json:"date"`
	Executions     int    `json:"executions"`
	Successful     int    `json:"successful"`
	Failed         int    `json:"failed"`
	LeadsGenerated int    `json:"leads_generated"`
}

// ExecutionStats summarizes a client's executions over a window.
type ExecutionStats struct {
	Days                 int        `json:"days"`
	TotalExecutions      int        `json:"total_executions"`
	SuccessfulExecutions int        `json:"successful_executions"`
	FailedExecutions     int        `json:"failed_executions"`
	TotalLeadsGenerated  int        `json:"total_leads_generated"`
	SuccessRate          float64    `json:"success_rate"`
	AvgLeadsPerRun       float64    `json:"avg_leads_per_execution"`
	ByDay                []DayStats `json:"executions_by_day"`
}

// ExecutionStats returns totals and per-day buckets (UTC dates, oldest
// first) for executions started in the last days days.
func (s *Service) ExecutionStats(ctx context.Context, clientID string, days int) (*ExecutionStats, error) {
	if days <= 0 {
		days = 30
	}
	since := s.now().Add(-time.Duration(days) * 24 * time.Hour)
	execs, err := s.store.ListExecutions(ctx, store.ExecutionFilter{ClientID: clientID, Since: since})
	if err != nil {
		return nil, eris.Wrap(err, "campaign: list executions")
	}

	st := &ExecutionStats{Days: days, TotalExecutions: len(execs), ByDay: []DayStats{}}
	buckets := map[string]*DayStats{}
	for _, e := range execs {
		date := e.StartedAt.UTC().Format(time.DateOnly)
		b, ok := buckets[date]
		if !ok {
			b = &DayStats{Date: date}
			buckets[date] = b
		}
		b.Executions++
		switch e.Status {
		case model.ExecutionCompleted:
			st.SuccessfulExecutions++
			st.TotalLeadsGenerated += e.LeadsGenerated
			b.Successful++
			b.LeadsGenerated += e.LeadsGenerated
		case model.ExecutionFailed:
			st.FailedExecutions++
			b.Failed++
		}
	}
	for _, b := range buckets {
		st.ByDay = append(st.ByDay, *b)
	}
	sort.Slice(st.ByDay, func(i, j int) bool { return st.ByDay[i].Date < st.ByDay[j].Date })

	st.SuccessRate = percent(st.SuccessfulExecutions, st.TotalExecutions)
	st.AvgLeadsPerRun = ratio(st.TotalLeadsGenerated, st.SuccessfulExecutions)
	return st, nil
}

// RecentExecutions returns a client's latest executions with campaign names.
func (s *Service) RecentExecutions(ctx context.Context, clientID string, limit int) ([]model.CampaignExecution, error) {
	if limit <= 0 {
		limit = 10
	}
	return s.store.ListExecutions(ctx, store.ExecutionFilter{ClientID: clientID, Limit: limit})
}

// Executions pages through one campaign's executions.
func (s *Service) Executions(ctx context.Context, clientID, id string, limit, offset int) ([]model.CampaignExecution, error) {
	if _, err := s.Get(ctx, clientID, id); err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = 20
	}
	return s.store.ListExecutions(ctx, store.ExecutionFilter{CampaignID: id, Limit: limit, Offset: offset})
}

// CancelRunning marks every running execution of a campaign cancelled.
func (s *Service) CancelRunning(ctx context.Context, campaignID, reason string) (int, error) {
	running, err := s.store.ListExecutions(ctx, store.ExecutionFilter{
		CampaignID: campaignID,
		Status:     model.ExecutionRunning,
	})
	if err != nil {
		return 0, eris.Wrap(err, "campaign: list running executions")
	}
	return s.cancelAll(ctx, running, reason)
}

// ReapStale cancels executions stuck in running for longer than olderThan.
func (s *Service) ReapStale(ctx context.Context, olderThan time.Duration) (int, error) {
	stuck, err := s.store.ListExecutions(ctx, store.ExecutionFilter{
		Status:        model.ExecutionRunning,
		StartedBefore: s.now().Add(-olderThan),
	})
	if err != nil {
		return 0, eris.Wrap(err, "campaign: list stale executions")
	}
	n, err := s.cancelAll(ctx, stuck, "stale execution reaped")
	if n > 0 {
		zap.L().Warn("campaign: reaped stale executions", zap.Int("count", n))
	}
	return n, err
}

func (s *Service) cancelAll(ctx context.Context, execs []model.CampaignExecution, reason string) (int, error) {
	owners := map[string]string{}
	n := 0
	for i := range execs {
		e := &execs[i]
		if err := e.Cancel(reason, s.now()); err != nil {
			continue
		}
		clientID, ok := owners[e.CampaignID]
		if !ok {
			if c, err := s.store.GetCampaign(ctx, e.CampaignID); err == nil {
				clientID = c.ClientID
			}
			owners[e.CampaignID] = clientID
		}
		won, err := s.finish(ctx, clientID, e)
		if err != nil {
			return n, eris.Wrapf(err, "campaign: cancel execution %s", e.ID)
		}
		if won {
			n++
		}
	}
	return n, nil
}

func percent(part, total int) float64 {
	if total == 0 {
		return 0
	}
	return math.Round(float64(part)/float64(total)*1000) / 10
}

func ratio(n, d int) float64 {
	if d == 0 {
		return 0
	}
	return math.Round(float64(n)/float64(d)*10) / 10
}
