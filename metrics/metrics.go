// Package metrics collects per-backend run statistics in a private
// prometheus registry that can be dumped in the textfile format.
package metrics

import (
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "ppbench"

// Metrics holds the collectors for one benchmark invocation.
type Metrics struct {
	registry *prometheus.Registry

	latency  *prometheus.HistogramVec
	failures *prometheus.CounterVec
	cycles   *prometheus.GaugeVec
	runs     *prometheus.CounterVec
}

// New creates a Metrics with its own registry.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		latency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "run_seconds",
			Help:      "Wall-clock time of the execute or prove step.",
			Buckets:   prometheus.ExponentialBuckets(0.001, 4, 12),
		}, []string{"backend", "mode"}),
		failures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "failures_total",
			Help:      "Failed backend runs by step.",
		}, []string{"backend", "step"}),
		cycles: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "cycles",
			Help:      "Cycles reported by the last run.",
		}, []string{"backend", "mode"}),
		runs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "runs_total",
			Help:      "Completed backend runs.",
		}, []string{"backend", "mode"}),
	}

	m.registry.MustRegister(m.latency, m.failures, m.cycles, m.runs)

	return m
}

// ObserveRun records a successful run.
func (m *Metrics) ObserveRun(backend, mode string, latency time.Duration, cycles uint64) {
	m.latency.WithLabelValues(backend, mode).Observe(latency.Seconds())
	m.cycles.WithLabelValues(backend, mode).Set(float64(cycles))
	m.runs.WithLabelValues(backend, mode).Inc()
}

// ObserveFailure records a run that failed at step.
func (m *Metrics) ObserveFailure(backend, step string) {
	m.failures.WithLabelValues(backend, step).Inc()
}

// WriteFile writes all metrics to path in the node exporter textfile
// format.
func (m *Metrics) WriteFile(path string) error {
	if err := prometheus.WriteToTextfile(path, m.registry); err != nil {
		return fmt.Errorf("write metrics %s: %w", path, err)
	}

	return nil
}
