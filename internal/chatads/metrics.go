package chatads

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// MetricsCollector exposes relay behavior through Prometheus. All record
// methods are safe on a nil receiver so callers never branch on whether
// metrics are enabled.
type MetricsCollector struct {
	attemptsTotal   *prometheus.CounterVec
	attemptDuration *prometheus.HistogramVec
	retriesTotal    *prometheus.CounterVec
	resultsTotal    *prometheus.CounterVec
	breakerState    *prometheus.GaugeVec
	registry        *prometheus.Registry
}

// NewMetricsCollector creates a collector backed by its own registry, keeping
// relay metrics separate from any default-registry instrumentation.
func NewMetricsCollector() *MetricsCollector {
	registry := prometheus.NewRegistry()
	factory := promauto.With(registry)

	return &MetricsCollector{
		attemptsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "chatads_attempts_total",
				Help: "Upstream request attempts by HTTP status code.",
			},
			[]string{"status_code"},
		),
		attemptDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "chatads_attempt_duration_seconds",
				Help:    "Latency of individual upstream attempts.",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"status_code"},
		),
		retriesTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "chatads_retries_total",
				Help: "Retried attempts by attempt number.",
			},
			[]string{"attempt"},
		),
		resultsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "chatads_results_total",
				Help: "Normalized results by status (success, no_match, error).",
			},
			[]string{"status"},
		),
		breakerState: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "chatads_circuit_breaker_state",
				Help: "Circuit breaker state (0=closed, 1=open, 2=half-open).",
			},
			[]string{"client"},
		),
		registry: registry,
	}
}

func (m *MetricsCollector) RecordAttempt(statusCode string, duration time.Duration) {
	if m == nil || m.attemptsTotal == nil {
		return
	}
	m.attemptsTotal.WithLabelValues(statusCode).Inc()
	m.attemptDuration.WithLabelValues(statusCode).Observe(duration.Seconds())
}

func (m *MetricsCollector) RecordRetry(attempt string) {
	if m == nil || m.retriesTotal == nil {
		return
	}
	m.retriesTotal.WithLabelValues(attempt).Inc()
}

func (m *MetricsCollector) RecordResult(status string) {
	if m == nil || m.resultsTotal == nil {
		return
	}
	m.resultsTotal.WithLabelValues(status).Inc()
}

func (m *MetricsCollector) RecordBreakerState(client string, state BreakerState) {
	if m == nil || m.breakerState == nil {
		return
	}
	m.breakerState.WithLabelValues(client).Set(float64(state))
}

// Registry returns the backing registry for HTTP exposition, or nil when the
// collector is disabled.
func (m *MetricsCollector) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}
