// Package metrics defines the prometheus collectors exported while a benchmark runs.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "spatialbench"

// Metrics groups every collector used by the index client, the harness and the logger.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	// QueryDuration observes the timed region of each benchmark sample
	QueryDuration *prometheus.HistogramVec

	// QueryRows observes the number of rows each benchmark sample returned
	QueryRows *prometheus.HistogramVec

	// IndexRequestsTotal counts requests to the index service by kind and status class
	IndexRequestsTotal *prometheus.CounterVec

	// IndexRequestDuration observes round-trip latency per request kind
	IndexRequestDuration *prometheus.HistogramVec

	// WorkerFailuresTotal counts workers that stopped on an error
	WorkerFailuresTotal *prometheus.CounterVec

	// RunPhase exposes the current harness phase as an ordinal
	RunPhase prometheus.Gauge

	// LogEntriesTotal counts log entries by level
	LogEntriesTotal *prometheus.CounterVec
}

// New creates the collectors and registers them on reg.
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		QueryDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "query_duration_seconds",
				Help:      "Wall-clock duration of timed benchmark queries",
				Buckets:   prometheus.ExponentialBuckets(0.0005, 2, 16),
			},
			[]string{"query"},
		),
		QueryRows: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "query_rows",
				Help:      "Number of documents returned by timed benchmark queries",
				Buckets:   prometheus.ExponentialBuckets(1, 4, 12),
			},
			[]string{"query"},
		),
		IndexRequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "index_requests_total",
				Help:      "Total requests sent to the index service",
			},
			[]string{"kind", "status"},
		),
		IndexRequestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "index_request_duration_seconds",
				Help:      "Round-trip latency of index service requests",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"kind"},
		),
		WorkerFailuresTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "worker_failures_total",
				Help:      "Total benchmark workers stopped by a failing query",
			},
			[]string{"query"},
		),
		RunPhase: factory.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "run_phase",
				Help:      "Current benchmark phase (0=configured .. 5=reported)",
			},
		),
		LogEntriesTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "log_entries_total",
				Help:      "Total number of log entries by level",
			},
			[]string{"level"},
		),
	}
}

// ObserveQuery records one timed benchmark sample.
func (m *Metrics) ObserveQuery(query string, elapsed time.Duration, rows int) {
	if m == nil {
		return
	}
	m.QueryDuration.WithLabelValues(query).Observe(elapsed.Seconds())
	m.QueryRows.WithLabelValues(query).Observe(float64(rows))
}

// ObserveRequest records one index service round trip.
func (m *Metrics) ObserveRequest(kind, status string, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.IndexRequestsTotal.WithLabelValues(kind, status).Inc()
	m.IndexRequestDuration.WithLabelValues(kind).Observe(elapsed.Seconds())
}

// WorkerFailed records a worker stopped by a failing query.
func (m *Metrics) WorkerFailed(query string) {
	if m == nil {
		return
	}
	m.WorkerFailuresTotal.WithLabelValues(query).Inc()
}

// SetPhase records the current harness phase ordinal.
func (m *Metrics) SetPhase(phase int) {
	if m == nil {
		return
	}
	m.RunPhase.Set(float64(phase))
}

// LogEntry counts a log entry at the given level.
func (m *Metrics) LogEntry(level string) {
	if m == nil {
		return
	}
	m.LogEntriesTotal.WithLabelValues(level).Inc()
}

// StatusClass maps an HTTP status to the label used by IndexRequestsTotal.
func StatusClass(code int) string {
	switch {
	case code == 0:
		return "error"
	case code < 300:
		return "2xx"
	case code < 400:
		return "3xx"
	case code < 500:
		return "4xx"
	default:
		return "5xx"
	}
}
