package monitoring

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	httpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "leadgen_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "route", "status"},
	)

	httpRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "leadgen_http_request_duration_seconds",
			Help:    "Duration of HTTP requests in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route"},
	)

	// PipelineRuns counts lead generation runs by outcome.
	PipelineRuns = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "leadgen_pipeline_runs_total",
			Help: "Lead generation runs by outcome",
		},
		[]string{"outcome"},
	)

	// LeadsSaved counts leads persisted by the pipeline.
	LeadsSaved = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "leadgen_leads_saved_total",
			Help: "Leads persisted by the pipeline",
		},
	)

	// PipelineDuration observes end-to-end run time.
	PipelineDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "leadgen_pipeline_duration_seconds",
			Help:    "Duration of lead generation runs",
			Buckets: []float64{1, 5, 15, 30, 60, 120, 300, 600},
		},
	)

	// ProviderCalls counts outbound provider calls by provider and outcome.
	ProviderCalls = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "leadgen_provider_calls_total",
			Help: "Outbound provider calls by provider and outcome",
		},
		[]string{"provider", "outcome"},
	)

	// SchedulerTicks counts scheduler passes over due campaigns.
	SchedulerTicks = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "leadgen_scheduler_ticks_total",
			Help: "Scheduler passes over due campaigns",
		},
	)

	// Executions counts finished campaign executions by status.
	Executions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "leadgen_campaign_executions_total",
			Help: "Finished campaign executions by status",
		},
		[]string{"status"},
	)

	// AlertsTriggered counts health alerts raised by the checker, by type.
	AlertsTriggered = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "leadgen_alerts_triggered_total",
			Help: "Health alerts raised by the checker",
		},
		[]string{"type"},
	)

	// ExecutionFailureRate is the failure rate over the checker's lookback window.
	ExecutionFailureRate = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "leadgen_execution_failure_rate",
			Help: "Campaign execution failure rate over the lookback window",
		},
	)

	// StuckExecutions is the number of running executions past the stuck threshold.
	StuckExecutions = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "leadgen_stuck_executions",
			Help: "Running executions older than the stuck threshold",
		},
	)

	// QuotaUsageMax is the highest monthly quota usage ratio across clients.
	QuotaUsageMax = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "leadgen_quota_usage_max_ratio",
			Help: "Highest client monthly quota usage ratio",
		},
	)
)

type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

// Middleware records request counts and latency per chi route pattern, so
// path parameters do not inflate label cardinality.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rw := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}

		next.ServeHTTP(rw, r)

		route := "unmatched"
		if rc := chi.RouteContext(r.Context()); rc != nil {
			if p := rc.RoutePattern(); p != "" {
				route = p
			}
		}
		httpRequestsTotal.WithLabelValues(r.Method, route, strconv.Itoa(rw.statusCode)).Inc()
		httpRequestDuration.WithLabelValues(r.Method, route).Observe(time.Since(start).Seconds())
	})
}

// Handler serves the Prometheus exposition endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}
