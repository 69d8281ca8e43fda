// Package metrics holds the Prometheus instrumentation for widetriple.
//
// Metrics are registered once on the default registry the first time any
// record helper runs, so packages that never record pay nothing.
package metrics

import (
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Outcome labels for store calls.
const (
	OutcomeOK       = "ok"
	OutcomeNotFound = "not_found"
	OutcomeError    = "error"
)

// storeMetrics holds Prometheus metrics for the store, index and codec layers.
type storeMetrics struct {
	once sync.Once

	// Store primitives
	calls       *prometheus.CounterVec
	callSeconds *prometheus.HistogramVec

	// Writes
	batchesFlushed  prometheus.Counter
	batchTriples    prometheus.Histogram
	triplesInserted prometheus.Counter
	triplesDeleted  prometheus.Counter

	// Index maintenance
	membershipsRemoved  *prometheus.CounterVec
	membershipsRetained *prometheus.CounterVec
	driftDetected       *prometheus.CounterVec

	// Decode
	decodeErrors prometheus.Counter
}

var storeMet storeMetrics

func (m *storeMetrics) init() {
	m.once.Do(func() {
		m.calls = prometheus.NewCounterVec(prometheus.CounterOpts{Name: "widetriple_store_calls_total", Help: "Store primitive calls by operation and outcome"}, []string{"op", "outcome"})
		m.callSeconds = prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "widetriple_store_call_seconds",
			Help:    "Store primitive latency",
			Buckets: []float64{0.0005, 0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5},
		}, []string{"op"})

		m.batchesFlushed = prometheus.NewCounter(prometheus.CounterOpts{Name: "widetriple_batches_flushed_total", Help: "Bulk-insert batches sent to the store"})
		m.batchTriples = prometheus.NewHistogram(prometheus.HistogramOpts{Name: "widetriple_batch_triples", Help: "Triples per flushed batch", Buckets: prometheus.ExponentialBuckets(1, 2, 12)})
		m.triplesInserted = prometheus.NewCounter(prometheus.CounterOpts{Name: "widetriple_triples_inserted_total", Help: "Triples written"})
		m.triplesDeleted = prometheus.NewCounter(prometheus.CounterOpts{Name: "widetriple_triples_deleted_total", Help: "Triples deleted"})

		m.membershipsRemoved = prometheus.NewCounterVec(prometheus.CounterOpts{Name: "widetriple_index_memberships_removed_total", Help: "Index memberships removed after the reference check"}, []string{"direction"})
		m.membershipsRetained = prometheus.NewCounterVec(prometheus.CounterOpts{Name: "widetriple_index_memberships_retained_total", Help: "Index memberships kept because a triple still justifies them"}, []string{"direction"})
		m.driftDetected = prometheus.NewCounterVec(prometheus.CounterOpts{Name: "widetriple_index_drift_total", Help: "Index memberships found without a justifying triple"}, []string{"direction"})

		m.decodeErrors = prometheus.NewCounter(prometheus.CounterOpts{Name: "widetriple_decode_errors_total", Help: "Stored values skipped because they failed to decode"})

		prometheus.MustRegister(
			m.calls, m.callSeconds,
			m.batchesFlushed, m.batchTriples, m.triplesInserted, m.triplesDeleted,
			m.membershipsRemoved, m.membershipsRetained, m.driftDetected,
			m.decodeErrors,
		)
	})
}

// record helpers - used by the store client, index maintainer and codec

// ObserveStoreCall records one store primitive call.
func ObserveStoreCall(op, outcome string, d time.Duration) {
	storeMet.init()
	storeMet.calls.WithLabelValues(op, outcome).Inc()
	storeMet.callSeconds.WithLabelValues(op).Observe(d.Seconds())
}

// RecordBatchFlush records one flushed bulk-insert batch.
func RecordBatchFlush(triples int) {
	storeMet.init()
	storeMet.batchesFlushed.Inc()
	storeMet.batchTriples.Observe(float64(triples))
}

func RecordInserted(n int) { storeMet.init(); storeMet.triplesInserted.Add(float64(n)) }
func RecordDeleted(n int)  { storeMet.init(); storeMet.triplesDeleted.Add(float64(n)) }

func RecordMembershipRemoved(direction string) {
	storeMet.init()
	storeMet.membershipsRemoved.WithLabelValues(direction).Inc()
}

func RecordMembershipRetained(direction string) {
	storeMet.init()
	storeMet.membershipsRetained.WithLabelValues(direction).Inc()
}

func RecordDrift(direction string) { storeMet.init(); storeMet.driftDetected.WithLabelValues(direction).Inc() }

func RecordDecodeError() { storeMet.init(); storeMet.decodeErrors.Inc() }

// Handler serves the default registry in the Prometheus text format.
func Handler() http.Handler {
	storeMet.init()
	return promhttp.Handler()
}
