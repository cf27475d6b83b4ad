package observability

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "helpdesk"

// Metrics holds the collectors for one process. A nil *Metrics is valid and
// records nothing.
type Metrics struct {
	registry *prometheus.Registry

	answers         *prometheus.CounterVec
	failures        *prometheus.CounterVec
	askDuration     *prometheus.HistogramVec
	matchScore      prometheus.Histogram
	backendCalls    *prometheus.CounterVec
	backendDuration *prometheus.HistogramVec
	auditDropped    prometheus.Counter
}

// NewMetrics registers all collectors on a fresh registry
func NewMetrics() *Metrics {
	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	factory := promauto.With(registry)

	return &Metrics{
		registry: registry,
		answers: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "ask",
			Name:      "answers_total",
			Help:      "Answers returned by source and escalation flag",
		}, []string{"source", "escalated"}),
		failures: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "ask",
			Name:      "failures_total",
			Help:      "Requests that ended without an answer, by error kind",
		}, []string{"error_kind"}),
		askDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "ask",
			Name:      "duration_seconds",
			Help:      "End-to-end ask latency by outcome",
			Buckets:   []float64{0.001, 0.01, 0.05, 0.1, 0.5, 1, 2.5, 5, 10, 30},
		}, []string{"outcome"}),
		matchScore: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "similarity",
			Name:      "best_score",
			Help:      "Best knowledge base similarity score per request",
			Buckets:   prometheus.LinearBuckets(0, 0.1, 11),
		}),
		backendCalls: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "backend",
			Name:      "calls_total",
			Help:      "Model backend attempts by provider and outcome",
		}, []string{"provider", "outcome"}),
		backendDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "backend",
			Name:      "latency_seconds",
			Help:      "Model backend attempt latency",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60},
		}, []string{"provider"}),
		auditDropped: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "audit",
			Name:      "dropped_total",
			Help:      "Interaction records dropped because the audit buffer was full",
		}),
	}
}

// RecordAnswer counts a successful ask
func (m *Metrics) RecordAnswer(source string, escalated bool, d time.Duration) {
	if m == nil {
		return
	}
	m.answers.WithLabelValues(source, strconv.FormatBool(escalated)).Inc()
	m.askDuration.WithLabelValues(source).Observe(d.Seconds())
}

// RecordFailure counts an ask that returned an error
func (m *Metrics) RecordFailure(errorKind string, d time.Duration) {
	if m == nil {
		return
	}
	m.failures.WithLabelValues(errorKind).Inc()
	m.askDuration.WithLabelValues("error").Observe(d.Seconds())
}

// RecordMatchScore observes the best similarity score of a request
func (m *Metrics) RecordMatchScore(score float64) {
	if m == nil {
		return
	}
	m.matchScore.Observe(score)
}

// RecordBackendCall counts one model backend attempt. outcome is "ok" or a
// failure kind.
func (m *Metrics) RecordBackendCall(provider, outcome string, d time.Duration) {
	if m == nil {
		return
	}
	if provider == "" {
		provider = "unknown"
	}
	m.backendCalls.WithLabelValues(provider, outcome).Inc()
	m.backendDuration.WithLabelValues(provider).Observe(d.Seconds())
}

// RecordAuditDropped counts an interaction record lost to a full buffer
func (m *Metrics) RecordAuditDropped() {
	if m == nil {
		return
	}
	m.auditDropped.Inc()
}

// Registry exposes the underlying registry for tests and extra collectors
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// Handler serves the registry in the Prometheus text format
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}
