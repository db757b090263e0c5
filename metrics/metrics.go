// Package metrics exposes Prometheus instrumentation for the execution loop.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Outcome labels for atlas_runs_total.
const (
	OutcomeAchieved  = "achieved"
	OutcomeExhausted = "exhausted"
	OutcomeCanceled  = "canceled"
)

// Metrics holds the loop's Prometheus collectors. A nil *Metrics is valid
// and disables instrumentation.
type Metrics struct {
	registry *prometheus.Registry

	attempts      prometheus.Counter
	regenerations prometheus.Counter
	runs          *prometheus.CounterVec
	attemptTime   prometheus.Histogram
}

// New creates and registers the loop collectors on a dedicated registry.
func New() *Metrics {
	reg := prometheus.NewRegistry()

	m := &Metrics{
		registry: reg,
		attempts: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "atlas_run_attempts_total",
			Help: "Total plan execution attempts.",
		}),
		regenerations: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "atlas_regenerations_total",
			Help: "Total self-regeneration passes.",
		}),
		runs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "atlas_runs_total",
			Help: "Total execution loop runs by outcome.",
		}, []string{"outcome"}),
		attemptTime: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "atlas_attempt_duration_seconds",
			Help:    "Duration of individual plan execution attempts.",
			Buckets: prometheus.ExponentialBuckets(0.1, 2, 12),
		}),
	}

	reg.MustRegister(m.attempts, m.regenerations, m.runs, m.attemptTime)

	return m
}

// ObserveAttempt records one execution attempt and its duration in seconds.
func (m *Metrics) ObserveAttempt(seconds float64) {
	if m == nil {
		return
	}
	m.attempts.Inc()
	m.attemptTime.Observe(seconds)
}

// IncRegeneration records one regeneration pass.
func (m *Metrics) IncRegeneration() {
	if m == nil {
		return
	}
	m.regenerations.Inc()
}

// IncRun records a finished run with its outcome label.
func (m *Metrics) IncRun(outcome string) {
	if m == nil {
		return
	}
	m.runs.WithLabelValues(outcome).Inc()
}

// Handler returns an HTTP handler serving the metrics registry.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
