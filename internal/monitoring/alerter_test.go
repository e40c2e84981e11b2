package monitoring

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/leadgen/internal/config"
)

func TestAlerter_Evaluate_NoAlerts(t *testing.T) {
	a := NewAlerter(config.MonitoringConfig{
		FailureRateThreshold: 0.25,
		QuotaUsageThreshold:  0.9,
	})

	snap := &MetricsSnapshot{
		ExecutionsTotal:     40,
		ExecutionsCompleted: 38,
		ExecutionsFailed:    2,
		FailureRate:         0.05,
		Clients:             []ClientUsage{{ClientID: "c1", Name: "Acme", Used: 100, Quota: 1000, Ratio: 0.1}},
		LookbackHours:       24,
	}

	assert.Empty(t, a.Evaluate(snap))
}

func TestAlerter_Evaluate_FailureRate(t *testing.T) {
	a := NewAlerter(config.MonitoringConfig{FailureRateThreshold: 0.25})

	snap := &MetricsSnapshot{
		ExecutionsTotal:     10,
		ExecutionsCompleted: 6,
		ExecutionsFailed:    4,
		FailureRate:         0.4,
		LookbackHours:       24,
	}

	alerts := a.Evaluate(snap)
	require.Len(t, alerts, 1)
	assert.Equal(t, AlertExecutionFailureRate, alerts[0].Type)
	assert.Equal(t, "high", alerts[0].Severity)
	assert.Contains(t, alerts[0].Message, "40.0%")
}

func TestAlerter_Evaluate_MinimumRunsRequired(t *testing.T) {
	a := NewAlerter(config.MonitoringConfig{FailureRateThreshold: 0.10})

	// Only 3 finished runs, below the minimum for a rate alert.
	snap := &MetricsSnapshot{
		ExecutionsCompleted: 1,
		ExecutionsFailed:    2,
		FailureRate:         0.666,
		LookbackHours:       24,
	}

	assert.Empty(t, a.Evaluate(snap))
}

func TestAlerter_Evaluate_StuckAndQuota(t *testing.T) {
	a := NewAlerter(config.MonitoringConfig{QuotaUsageThreshold: 0.9})

	snap := &MetricsSnapshot{
		StuckExecutions: 2,
		Clients: []ClientUsage{
			{ClientID: "c1", Name: "Acme", Used: 950, Quota: 1000, Ratio: 0.95},
			{ClientID: "c2", Name: "Globex", Used: 10, Quota: 1000, Ratio: 0.01},
		},
	}

	alerts := a.Evaluate(snap)
	require.Len(t, alerts, 2)
	assert.Equal(t, AlertStuckExecutions, alerts[0].Type)
	assert.Equal(t, AlertQuotaUsage, alerts[1].Type)
	assert.Contains(t, alerts[1].Message, "Acme")
	assert.Contains(t, alerts[1].Message, "95%")
}

func TestAlerter_Evaluate_ZeroThresholdsDisabled(t *testing.T) {
	a := NewAlerter(config.MonitoringConfig{})

	snap := &MetricsSnapshot{
		ExecutionsCompleted: 0,
		ExecutionsFailed:    10,
		FailureRate:         1,
		Clients:             []ClientUsage{{Ratio: 1}},
	}

	assert.Empty(t, a.Evaluate(snap))
}

func TestAlerter_SendAlerts_Webhook(t *testing.T) {
	var received atomic.Int32
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		var alert Alert
		err := json.NewDecoder(r.Body).Decode(&alert)
		require.NoError(t, err)
		assert.NotEmpty(t, alert.Type)
		received.Add(1)
		w.WriteHeader(http.StatusOK)
	}))
	defer ts.Close()

	a := NewAlerter(config.MonitoringConfig{WebhookURL: ts.URL})

	alerts := []Alert{
		{Type: AlertExecutionFailureRate, Severity: "high", Message: "test alert 1"},
		{Type: AlertStuckExecutions, Severity: "medium", Message: "test alert 2"},
	}

	sent := a.SendAlerts(context.Background(), alerts)
	assert.Equal(t, 2, sent)
	assert.Equal(t, int32(2), received.Load())
}

func TestAlerter_SendAlerts_EmptyURL(t *testing.T) {
	a := NewAlerter(config.MonitoringConfig{WebhookURL: ""})

	sent := a.SendAlerts(context.Background(), []Alert{
		{Type: AlertExecutionFailureRate, Message: "test"},
	})
	assert.Equal(t, 0, sent)
}

func TestAlerter_SendAlerts_WebhookError(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer ts.Close()

	a := NewAlerter(config.MonitoringConfig{WebhookURL: ts.URL})

	sent := a.SendAlerts(context.Background(), []Alert{{Type: AlertQuotaUsage, Message: "test"}})
	assert.Equal(t, 0, sent)
}
