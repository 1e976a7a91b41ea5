// Package metrics provides Prometheus metrics for the quote revision service
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/garyjia/quote-revision/internal/application/port"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics of the service
type Metrics struct {
	registry *prometheus.Registry

	// Review metrics
	SessionsStartedTotal   prometheus.Counter
	SessionsFinalizedTotal *prometheus.CounterVec
	SessionsActive         prometheus.Gauge
	CommandsQueuedTotal    *prometheus.CounterVec
	BatchesCommittedTotal  prometheus.Counter
	BatchSize              prometheus.Histogram
	CommitConflictsTotal   prometheus.Counter
	ApplyFailuresTotal     prometheus.Counter

	// HTTP metrics
	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec
}

// NewMetrics creates all metrics on a fresh registry, together with the Go
// runtime and process collectors
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	factory := promauto.With(reg)

	m := &Metrics{registry: reg}

	m.SessionsStartedTotal = factory.NewCounter(
		prometheus.CounterOpts{
			Name: "quote_review_sessions_started_total",
			Help: "Total number of review sessions opened",
		},
	)

	m.SessionsFinalizedTotal = factory.NewCounterVec(
		prometheus.CounterOpts{
			Name: "quote_review_sessions_finalized_total",
			Help: "Total number of review sessions finalized, by outcome",
		},
		[]string{"outcome"},
	)

	m.SessionsActive = factory.NewGauge(
		prometheus.GaugeOpts{
			Name: "quote_review_sessions_active",
			Help: "Number of review sessions currently open",
		},
	)

	m.CommandsQueuedTotal = factory.NewCounterVec(
		prometheus.CounterOpts{
			Name: "quote_review_commands_queued_total",
			Help: "Total number of edit commands queued, by kind and confidence flag",
		},
		[]string{"kind", "low_confidence"},
	)

	m.BatchesCommittedTotal = factory.NewCounter(
		prometheus.CounterOpts{
			Name: "quote_review_batches_committed_total",
			Help: "Total number of edit batches committed as a new quote version",
		},
	)

	m.BatchSize = factory.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "quote_review_batch_commands",
			Help:    "Number of commands per committed batch",
			Buckets: []float64{1, 2, 3, 5, 8, 13, 21},
		},
	)

	m.CommitConflictsTotal = factory.NewCounter(
		prometheus.CounterOpts{
			Name: "quote_review_commit_conflicts_total",
			Help: "Total number of commits rejected because the quote version moved",
		},
	)

	m.ApplyFailuresTotal = factory.NewCounter(
		prometheus.CounterOpts{
			Name: "quote_review_apply_failures_total",
			Help: "Total number of batches rejected by the edit applier",
		},
	)

	m.HTTPRequestsTotal = factory.NewCounterVec(
		prometheus.CounterOpts{
			Name: "quote_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "route", "status"},
	)

	m.HTTPRequestDuration = factory.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "quote_http_request_duration_seconds",
			Help:    "Duration of HTTP requests in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route"},
	)

	return m
}

// Registry returns the registry the metrics are registered on
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// SessionStarted records an opened session
func (m *Metrics) SessionStarted() {
	m.SessionsStartedTotal.Inc()
}

// CommandQueued records a queued command
func (m *Metrics) CommandQueued(kind string, lowConfidence bool) {
	m.CommandsQueuedTotal.WithLabelValues(kind, strconv.FormatBool(lowConfidence)).Inc()
}

// BatchCommitted records a committed batch of n commands
func (m *Metrics) BatchCommitted(commands int) {
	m.BatchesCommittedTotal.Inc()
	m.BatchSize.Observe(float64(commands))
}

// CommitConflict records a commit lost to a newer version
func (m *Metrics) CommitConflict() {
	m.CommitConflictsTotal.Inc()
}

// ApplyFailed records a batch the applier rejected
func (m *Metrics) ApplyFailed() {
	m.ApplyFailuresTotal.Inc()
}

// SessionFinalized records a finalized session
func (m *Metrics) SessionFinalized(outcome string) {
	m.SessionsFinalizedTotal.WithLabelValues(outcome).Inc()
}

// ActiveSessions sets the open session gauge
func (m *Metrics) ActiveSessions(n int) {
	m.SessionsActive.Set(float64(n))
}

// ObserveHTTPRequest records one served HTTP request
func (m *Metrics) ObserveHTTPRequest(method, route string, status int, duration time.Duration) {
	m.HTTPRequestsTotal.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	m.HTTPRequestDuration.WithLabelValues(method, route).Observe(duration.Seconds())
}

// Verify interface compliance
var _ port.ReviewMetrics = (*Metrics)(nil)
