// Package observability holds the Prometheus collectors of the query service.
package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics bundles Prometheus collectors for queries and fallback attempts.
type Metrics struct {
	registry        *prometheus.Registry
	Queries         *prometheus.CounterVec
	QueryDuration   *prometheus.HistogramVec
	Attempts        *prometheus.CounterVec
	AttemptDuration *prometheus.HistogramVec
	Events          *prometheus.CounterVec
	ActiveQueries   prometheus.Gauge
	TempFileLeaks   prometheus.Counter
}

// NewMetrics constructs a metrics registry with query collectors.
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()

	queries := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "agentquery_queries_total",
		Help: "Queries by terminal outcome",
	}, []string{"outcome", "backend"})

	queryDur := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "agentquery_query_duration_seconds",
		Help:    "Query duration in seconds",
		Buckets: prometheus.DefBuckets,
	}, []string{"outcome"})

	attempts := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "agentquery_attempts_total",
		Help: "Fallback strategy attempts by strategy and outcome",
	}, []string{"strategy", "outcome"})

	attemptDur := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "agentquery_attempt_duration_seconds",
		Help:    "Strategy attempt duration in seconds",
		Buckets: prometheus.DefBuckets,
	}, []string{"strategy"})

	events := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "agentquery_events_total",
		Help: "Stream events delivered to callers by type",
	}, []string{"type"})

	active := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "agentquery_active_queries",
		Help: "Queries currently in flight",
	})

	leaks := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "agentquery_tempfile_cleanup_failures_total",
		Help: "Request files that could not be removed after a CLI run",
	})

	reg.MustRegister(queries, queryDur, attempts, attemptDur, events, active, leaks)

	return &Metrics{
		registry:        reg,
		Queries:         queries,
		QueryDuration:   queryDur,
		Attempts:        attempts,
		AttemptDuration: attemptDur,
		Events:          events,
		ActiveQueries:   active,
		TempFileLeaks:   leaks,
	}
}

// Registry returns the underlying Prometheus registry.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// RecordAttempt records one fallback strategy attempt.
func (m *Metrics) RecordAttempt(strategy, outcome string, duration time.Duration) {
	if m == nil {
		return
	}
	if strategy == "" {
		strategy = "unknown"
	}
	m.Attempts.WithLabelValues(strategy, outcome).Inc()
	m.AttemptDuration.WithLabelValues(strategy).Observe(duration.Seconds())
}

// RecordQuery records a finished query.
func (m *Metrics) RecordQuery(outcome, backend string, duration time.Duration) {
	if m == nil {
		return
	}
	if backend == "" {
		backend = "unknown"
	}
	m.Queries.WithLabelValues(outcome, backend).Inc()
	m.QueryDuration.WithLabelValues(outcome).Observe(duration.Seconds())
}

// RecordEvent counts one delivered event.
func (m *Metrics) RecordEvent(eventType string) {
	if m == nil {
		return
	}
	m.Events.WithLabelValues(eventType).Inc()
}

// IncActive increments the in-flight gauge.
func (m *Metrics) IncActive() {
	if m == nil {
		return
	}
	m.ActiveQueries.Inc()
}

// DecActive decrements the in-flight gauge.
func (m *Metrics) DecActive() {
	if m == nil {
		return
	}
	m.ActiveQueries.Dec()
}

// RecordTempFileLeak counts a request file that survived cleanup.
func (m *Metrics) RecordTempFileLeak() {
	if m == nil {
		return
	}
	m.TempFileLeaks.Inc()
}
