// Package metrics provides Prometheus instrumentation for batch processing.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds Prometheus collectors for the batch orchestrator.
type Metrics struct {
	batchesSubmitted *prometheus.CounterVec
	batchesCompleted *prometheus.CounterVec
	unitOutcomes     *prometheus.CounterVec
	batchDuration    prometheus.Histogram
}

// New creates and registers batch metrics with the default registry.
func New() *Metrics {
	return &Metrics{
		batchesSubmitted: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "cardplatform_batches_submitted_total",
			Help: "Batch operations submitted, by operation kind.",
		}, []string{"kind"}),
		batchesCompleted: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "cardplatform_batches_completed_total",
			Help: "Batch operations reaching a terminal state, by final status.",
		}, []string{"status"}),
		unitOutcomes: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "cardplatform_batch_units_total",
			Help: "Per-target unit outcomes within batches.",
		}, []string{"outcome"}),
		batchDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "cardplatform_batch_duration_seconds",
			Help:    "Wall time from dispatch start to terminal state.",
			Buckets: prometheus.ExponentialBuckets(0.05, 2, 12),
		}),
	}
}

// IncrementSubmitted records a submitted batch.
func (m *Metrics) IncrementSubmitted(kind string) {
	m.batchesSubmitted.WithLabelValues(kind).Inc()
}

// IncrementCompleted records a batch reaching a terminal state.
func (m *Metrics) IncrementCompleted(status string) {
	m.batchesCompleted.WithLabelValues(status).Inc()
}

// AddUnitOutcomes records n unit outcomes of the given class.
func (m *Metrics) AddUnitOutcomes(outcome string, n int) {
	if n == 0 {
		return
	}
	m.unitOutcomes.WithLabelValues(outcome).Add(float64(n))
}

// ObserveBatchDuration records how long a batch ran.
func (m *Metrics) ObserveBatchDuration(seconds float64) {
	m.batchDuration.Observe(seconds)
}
