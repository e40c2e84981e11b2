package monitoring

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/sells-group/leadgen/internal/config"
)

// Checker evaluates execution health and provider quota on an interval and
// posts any alerts to the configured webhook.
type Checker struct {
	collector *Collector
	alerter   *Alerter
	cfg       config.MonitoringConfig
}

// NewChecker creates a background alert checker.
func NewChecker(collector *Collector, alerter *Alerter, cfg config.MonitoringConfig) *Checker {
	return &Checker{
		collector: collector,
		alerter:   alerter,
		cfg:       cfg,
	}
}

// Run checks once immediately, then on every interval. It blocks until ctx
// is cancelled.
func (c *Checker) Run(ctx context.Context) {
	interval := time.Duration(c.cfg.CheckIntervalSecs) * time.Second
	if interval <= 0 {
		interval = 5 * time.Minute
	}

	log := zap.L().With(zap.String("component", "monitoring.checker"))
	log.Info("starting alert checker",
		zap.Duration("interval", interval),
		zap.Int("lookback_hours", c.cfg.LookbackWindowHours),
	)

	c.check(ctx, log)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Info("alert checker stopped")
			return
		case <-ticker.C:
			c.check(ctx, log)
		}
	}
}

func (c *Checker) check(ctx context.Context, log *zap.Logger) {
	snap, err := c.collector.Collect(ctx, c.cfg.LookbackWindowHours)
	if err != nil {
		log.Error("monitoring: failed to collect metrics", zap.Error(err))
		return
	}

	record(snap)
	log.Debug("monitoring: health snapshot", snapshotFields(snap)...)

	alerts := c.alerter.Evaluate(snap)
	if len(alerts) == 0 {
		return
	}
	for _, a := range alerts {
		AlertsTriggered.WithLabelValues(string(a.Type)).Inc()
	}

	sent := c.alerter.SendAlerts(ctx, alerts)
	log.Info("monitoring: alert check complete",
		zap.Int("alerts_triggered", len(alerts)),
		zap.Int("alerts_sent", sent),
	)
}

// record publishes the snapshot's point-in-time values as gauges.
func record(snap *MetricsSnapshot) {
	ExecutionFailureRate.Set(snap.FailureRate)
	StuckExecutions.Set(float64(snap.StuckExecutions))
	top := 0.0
	if len(snap.Clients) > 0 {
		top = snap.Clients[0].Ratio
	}
	QuotaUsageMax.Set(top)
}

func snapshotFields(snap *MetricsSnapshot) []zap.Field {
	fields := []zap.Field{
		zap.Int("executions", snap.ExecutionsTotal),
		zap.Int("failed", snap.ExecutionsFailed),
		zap.Int("running", snap.ExecutionsRunning),
		zap.Float64("failure_rate", snap.FailureRate),
		zap.Int("stuck", snap.StuckExecutions),
		zap.Int("leads", snap.LeadsGenerated),
	}
	if len(snap.Clients) > 0 {
		top := snap.Clients[0]
		fields = append(fields,
			zap.String("top_client_id", top.ClientID),
			zap.Int("top_client_used", top.Used),
			zap.Int("top_client_quota", top.Quota),
		)
	}
	return fields
}
