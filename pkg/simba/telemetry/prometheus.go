package telemetry

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// PrometheusMonitor implements Monitor using promauto-registered
// Prometheus metrics: the per-step and error counters are labeled by
// correlation_id, the run total and duration by success, and
// OptimizerStart/IterationStart record nothing.
type PrometheusMonitor struct {
	iterations   *prometheus.CounterVec
	trajectories *prometheus.CounterVec
	buckets      *prometheus.CounterVec
	candidates   *prometheus.CounterVec
	errors       *prometheus.CounterVec
	runDuration  *prometheus.HistogramVec
	runsTotal    *prometheus.CounterVec
}

// NewPrometheusMonitor creates a Monitor that records the optimizer's
// lifecycle events as Prometheus metrics under namespace (defaults to
// "simba").
func NewPrometheusMonitor(namespace string) *PrometheusMonitor {
	if namespace == "" {
		namespace = "simba"
	}

	return &PrometheusMonitor{
		runsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "optimizer_runs_total",
				Help:      "Total number of optimizer.compile calls, labeled by success.",
			},
			[]string{"success"},
		),
		runDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "optimizer_run_duration_seconds",
				Help:      "Duration of a full optimizer.compile call in seconds.",
				Buckets:   prometheus.ExponentialBuckets(0.1, 2, 15),
			},
			[]string{"success"},
		),
		iterations: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "optimizer_iterations_total",
				Help:      "Total number of completed SIMBA steps.",
			},
			[]string{"correlation_id"},
		),
		trajectories: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "optimizer_trajectories_sampled_total",
				Help:      "Total number of trajectories sampled across all steps.",
			},
			[]string{"correlation_id"},
		),
		buckets: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "optimizer_buckets_created_total",
				Help:      "Total number of buckets formed across all steps.",
			},
			[]string{"correlation_id"},
		),
		candidates: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "optimizer_candidates_created_total",
				Help:      "Total number of candidate programs produced by strategies.",
			},
			[]string{"correlation_id"},
		),
		errors: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "optimizer_errors_total",
				Help:      "Total number of absorbed errors, labeled by kind.",
			},
			[]string{"correlation_id", "kind"},
		),
	}
}

func (m *PrometheusMonitor) OptimizerStart(trainsetSize int, correlationID string) {}

func (m *PrometheusMonitor) OptimizerStop(duration time.Duration, success bool, correlationID, reason string) {
	label := boolLabel(success)
	m.runsTotal.WithLabelValues(label).Inc()
	m.runDuration.WithLabelValues(label).Observe(duration.Seconds())
}

func (m *PrometheusMonitor) IterationStart(step int, correlationID string) {}

func (m *PrometheusMonitor) IterationStop(step int, correlationID string) {
	m.iterations.WithLabelValues(correlationID).Inc()
}

func (m *PrometheusMonitor) TrajectorySampled(count int, correlationID string) {
	m.trajectories.WithLabelValues(correlationID).Add(float64(count))
}

func (m *PrometheusMonitor) BucketCreated(count int, correlationID string) {
	m.buckets.WithLabelValues(correlationID).Add(float64(count))
}

func (m *PrometheusMonitor) StrategyApplied(candidatesCreated int, correlationID string) {
	m.candidates.WithLabelValues(correlationID).Add(float64(candidatesCreated))
}

func (m *PrometheusMonitor) Error(kind, description, correlationID string) {
	m.errors.WithLabelValues(correlationID, kind).Inc()
}

func boolLabel(b bool) string {
	if b {
		return "true"
	}
	return "false"
}
