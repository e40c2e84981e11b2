package monitoring

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/leadgen/internal/config"
)

// AlertType identifies the kind of alert.
type AlertType string

const (
	AlertExecutionFailureRate AlertType = "execution_failure_rate"
	AlertStuckExecutions      AlertType = "stuck_executions"
	AlertQuotaUsage           AlertType = "quota_usage"
)

// minFinishedForRate avoids alerting on one failure out of two runs.
const minFinishedForRate = 5

// Alert represents a single alert to be sent.
type Alert struct {
	Type      AlertType      `json:"type"`
	Severity  string         `json:"severity"`
	Message   string         `json:"message"`
	Details   map[string]any `json:"details,omitempty"`
	Timestamp time.Time      `json:"timestamp"`
}

// Alerter evaluates a MetricsSnapshot against configured thresholds
// and sends alerts via webhook when thresholds are breached.
type Alerter struct {
	cfg    config.MonitoringConfig
	client *http.Client
}

// NewAlerter creates a new Alerter with the given monitoring config.
func NewAlerter(cfg config.MonitoringConfig) *Alerter {
	return &Alerter{
		cfg:    cfg,
		client: &http.Client{Timeout: 10 * time.Second},
	}
}

// Evaluate checks the snapshot against thresholds and returns any alerts.
func (a *Alerter) Evaluate(snap *MetricsSnapshot) []Alert {
	var alerts []Alert
	now := time.Now().UTC()

	finished := snap.ExecutionsCompleted + snap.ExecutionsFailed
	if finished >= minFinishedForRate && a.cfg.FailureRateThreshold > 0 && snap.FailureRate > a.cfg.FailureRateThreshold {
		alerts = append(alerts, Alert{
			Type:     AlertExecutionFailureRate,
			Severity: "high",
			Message: fmt.Sprintf(
				"Campaign execution failure rate %.1f%% exceeds threshold %.1f%% (%d failed / %d finished in last %dh)",
				snap.FailureRate*100, a.cfg.FailureRateThreshold*100,
				snap.ExecutionsFailed, finished, snap.LookbackHours,
			),
			Details: map[string]any{
				"failure_rate": snap.FailureRate,
				"threshold":    a.cfg.FailureRateThreshold,
				"failed":       snap.ExecutionsFailed,
				"finished":     finished,
			},
			Timestamp: now,
		})
	}

	if snap.StuckExecutions > 0 {
		alerts = append(alerts, Alert{
			Type:     AlertStuckExecutions,
			Severity: "medium",
			Message:  fmt.Sprintf("%d campaign execution(s) stuck in running", snap.StuckExecutions),
			Details: map[string]any{
				"stuck": snap.StuckExecutions,
			},
			Timestamp: now,
		})
	}

	if a.cfg.QuotaUsageThreshold > 0 {
		for _, cu := range snap.Clients {
			if cu.Ratio < a.cfg.QuotaUsageThreshold {
				continue
			}
			alerts = append(alerts, Alert{
				Type:     AlertQuotaUsage,
				Severity: "low",
				Message: fmt.Sprintf("Client %s has used %.0f%% of its monthly quota (%d/%d)",
					cu.Name, cu.Ratio*100, cu.Used, cu.Quota),
				Details: map[string]any{
					"client_id": cu.ClientID,
					"used":      cu.Used,
					"quota":     cu.Quota,
				},
				Timestamp: now,
			})
		}
	}

	return alerts
}

// SendAlerts delivers alerts to the configured webhook URL.
// Returns the number of alerts successfully sent.
func (a *Alerter) SendAlerts(ctx context.Context, alerts []Alert) int {
	if a.cfg.WebhookURL == "" || len(alerts) == 0 {
		return 0
	}

	sent := 0
	for _, alert := range alerts {
		if err := a.sendWebhook(ctx, alert); err != nil {
			zap.L().Error("monitoring: failed to send alert",
				zap.String("type", string(alert.Type)),
				zap.Error(err),
			)
			continue
		}
		zap.L().Info("monitoring: alert sent",
			zap.String("type", string(alert.Type)),
			zap.String("severity", alert.Severity),
		)
		sent++
	}
	return sent
}

func (a *Alerter) sendWebhook(ctx context.Context, alert Alert) error {
	payload, err := json.Marshal(alert)
	if err != nil {
		return eris.Wrap(err, "monitoring: marshal alert")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.cfg.WebhookURL, bytes.NewReader(payload))
	if err != nil {
		return eris.Wrap(err, "monitoring: create webhook request")
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := a.client.Do(req)
	if err != nil {
		return eris.Wrap(err, "monitoring: webhook request")
	}
	defer resp.Body.Close() //nolint:errcheck

	if resp.StatusCode >= 400 {
		return eris.Errorf("monitoring: webhook returned status %d", resp.StatusCode)
	}
	return nil
}
