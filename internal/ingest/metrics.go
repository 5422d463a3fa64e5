package ingest

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

// metricsIngest holds Prometheus metrics for the ingestion pipeline.
type metricsIngest struct {
	once sync.Once

	// Collection
	itemsCollected prometheus.Counter
	batchesSealed  prometheus.Counter

	// Dispatch
	batchesDispatched prometheus.Counter
	batchesDropped    prometheus.Counter
	rowsStaged        prometheus.Counter

	// Merge
	mergesSucceeded prometheus.Counter
	mergesFailed    prometheus.Counter
	rowsPromoted    prometheus.Counter

	// Durations
	dispatchDuration prometheus.Histogram
	mergeDuration    prometheus.Histogram
}

var ingMetrics metricsIngest

func (m *metricsIngest) init() {
	m.once.Do(func() {
		m.itemsCollected = prometheus.NewCounter(prometheus.CounterOpts{Name: "dictimport_items_collected_total", Help: "Batch items accumulated by producers"})
		m.batchesSealed = prometheus.NewCounter(prometheus.CounterOpts{Name: "dictimport_batches_sealed_total", Help: "Batches sealed and enqueued for flush"})

		m.batchesDispatched = prometheus.NewCounter(prometheus.CounterOpts{Name: "dictimport_batches_dispatched_total", Help: "Batches bulk-inserted into staging"})
		m.batchesDropped = prometheus.NewCounter(prometheus.CounterOpts{Name: "dictimport_batches_dropped_total", Help: "Batches dropped after a dispatch failure"})
		m.rowsStaged = prometheus.NewCounter(prometheus.CounterOpts{Name: "dictimport_rows_staged_total", Help: "Rows written to staging tables"})

		m.mergesSucceeded = prometheus.NewCounter(prometheus.CounterOpts{Name: "dictimport_merges_succeeded_total", Help: "Per-source staging merges committed"})
		m.mergesFailed = prometheus.NewCounter(prometheus.CounterOpts{Name: "dictimport_merges_failed_total", Help: "Per-source staging merges rolled back"})
		m.rowsPromoted = prometheus.NewCounter(prometheus.CounterOpts{Name: "dictimport_rows_promoted_total", Help: "Production rows inserted by merges"})

		buckets := []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10}
		m.dispatchDuration = prometheus.NewHistogram(prometheus.HistogramOpts{Name: "dictimport_dispatch_seconds", Help: "Duration of one bulk dispatch", Buckets: buckets})
		m.mergeDuration = prometheus.NewHistogram(prometheus.HistogramOpts{Name: "dictimport_merge_seconds", Help: "Duration of one per-source merge", Buckets: buckets})

		prometheus.MustRegister(
			m.itemsCollected, m.batchesSealed,
			m.batchesDispatched, m.batchesDropped, m.rowsStaged,
			m.mergesSucceeded, m.mergesFailed, m.rowsPromoted,
			m.dispatchDuration, m.mergeDuration,
		)
	})
}
