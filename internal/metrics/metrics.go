// Package metrics exposes Prometheus collectors for batch and job activity.
package metrics

import (
	"net/http"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "storyforge"

// Metrics holds the collectors for one registry. It satisfies the planner's
// Recorder and the queue's Observer.
type Metrics struct {
	registry *prometheus.Registry

	JobsInFlight   *prometheus.GaugeVec
	JobsTotal      *prometheus.CounterVec
	JobDuration    *prometheus.HistogramVec
	BatchesTotal   *prometheus.CounterVec
	BatchDuration  *prometheus.HistogramVec
	StatusFailures prometheus.Counter
}

// New creates a Metrics with its own registry.
// Go runtime and process collectors are registered alongside.
func New() *Metrics {
	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	factory := promauto.With(registry)

	// Remote generation runs from seconds to many minutes.
	buckets := []float64{1, 5, 15, 30, 60, 120, 300, 600, 1200, 2400}

	return &Metrics{
		registry: registry,
		JobsInFlight: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "jobs_in_flight",
				Help:      "Jobs currently running against the backend",
			},
			[]string{"kind"},
		),
		JobsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "jobs_total",
				Help:      "Jobs finished, by kind and result",
			},
			[]string{"kind", "result"},
		),
		JobDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "job_duration_seconds",
				Help:      "Time spent running a single job",
				Buckets:   buckets,
			},
			[]string{"kind"},
		),
		BatchesTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "batches_total",
				Help:      "Batches finished, by kind and outcome",
			},
			[]string{"kind", "outcome"},
		),
		BatchDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "batch_duration_seconds",
				Help:      "Time from batch start to drain",
				Buckets:   buckets,
			},
			[]string{"kind"},
		),
		StatusFailures: factory.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "status_unavailable_total",
				Help:      "Status snapshot fetches that failed and fell open",
			},
		),
	}
}

// Registry returns the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// JobStarted implements queue.Observer.
func (m *Metrics) JobStarted(name string) {
	m.JobsInFlight.WithLabelValues(KindOf(name)).Inc()
}

// JobFinished implements queue.Observer.
func (m *Metrics) JobFinished(name string, err error, elapsed time.Duration) {
	kind := KindOf(name)
	result := "success"
	if err != nil {
		result = "failure"
	}
	m.JobsInFlight.WithLabelValues(kind).Dec()
	m.JobsTotal.WithLabelValues(kind, result).Inc()
	m.JobDuration.WithLabelValues(kind).Observe(elapsed.Seconds())
}

// StatusUnavailable counts a fail-open snapshot fetch.
func (m *Metrics) StatusUnavailable() {
	m.StatusFailures.Inc()
}

// BatchFinished records a batch outcome.
func (m *Metrics) BatchFinished(kind, outcome string, elapsed time.Duration) {
	m.BatchesTotal.WithLabelValues(kind, outcome).Inc()
	m.BatchDuration.WithLabelValues(kind).Observe(elapsed.Seconds())
}

// KindOf extracts the kind label from a job name such as "image/3" or
// "audio/3/en".
func KindOf(name string) string {
	kind, _, _ := strings.Cut(name, "/")
	if kind == "" {
		return "unknown"
	}
	return kind
}
