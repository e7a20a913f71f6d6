package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

const metricNamespace = "percona_doctree_migrate"

// Export metrics.
var (
	//nolint:gochecknoglobals
	exportDocumentsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name:      "export_documents_total",
		Help:      "Total number of documents read from the source.",
		Namespace: metricNamespace,
	})

	//nolint:gochecknoglobals
	exportCollectionsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name:      "export_collections_total",
		Help:      "Total number of collections walked on the source.",
		Namespace: metricNamespace,
	})

	//nolint:gochecknoglobals
	exportDurationSeconds = prometheus.NewGauge(prometheus.GaugeOpts{
		Name:      "export_duration_seconds",
		Help:      "Duration of the export phase in seconds.",
		Namespace: metricNamespace,
	})

	//nolint:gochecknoglobals
	snapshotSizeBytes = prometheus.NewGauge(prometheus.GaugeOpts{
		Name:      "snapshot_size_bytes",
		Help:      "Estimated size of the exported snapshot in bytes.",
		Namespace: metricNamespace,
	})
)

// Import metrics.
var (
	//nolint:gochecknoglobals
	importDocumentsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name:      "import_documents_total",
		Help:      "Total number of documents committed to the target.",
		Namespace: metricNamespace,
	})

	//nolint:gochecknoglobals
	importBatchesTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name:      "import_batches_total",
		Help:      "Total number of batches committed to the target.",
		Namespace: metricNamespace,
	})

	//nolint:gochecknoglobals
	importBatchFailuresTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name:      "import_batch_failures_total",
		Help:      "Total number of batches that failed to commit.",
		Namespace: metricNamespace,
	})

	//nolint:gochecknoglobals
	importBatchDurationSeconds = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:      "import_batch_duration_seconds",
		Help:      "Duration of batch commits in seconds.",
		Namespace: metricNamespace,
		Buckets:   []float64{.01, .05, .1, .25, .5, 1, 2.5, 5, 10, 30},
	})

	//nolint:gochecknoglobals
	importDurationSeconds = prometheus.NewGauge(prometheus.GaugeOpts{
		Name:      "import_duration_seconds",
		Help:      "Duration of the import phase in seconds.",
		Namespace: metricNamespace,
	})
)

//nolint:gochecknoglobals
var retriesTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
	Name:      "retries_total",
	Help:      "Total number of retried store operations.",
	Namespace: metricNamespace,
}, []string{"op"})

// Init initializes and registers the metrics.
func Init(reg prometheus.Registerer) {
	reg.MustRegister(collectors.NewGoCollector())
	reg.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{
		Namespace: metricNamespace,
	}))

	reg.MustRegister(
		exportDocumentsTotal,
		exportCollectionsTotal,
		exportDurationSeconds,
		snapshotSizeBytes,

		importDocumentsTotal,
		importBatchesTotal,
		importBatchFailuresTotal,
		importBatchDurationSeconds,
		importDurationSeconds,

		retriesTotal,
	)
}

// AddExportDocuments increments the total count of the read documents.
func AddExportDocuments(v int) {
	exportDocumentsTotal.Add(float64(v))
}

// IncExportCollections increments the total count of the walked collections.
func IncExportCollections() {
	exportCollectionsTotal.Inc()
}

// SetExportDuration sets the export phase duration gauge.
func SetExportDuration(dur time.Duration) {
	exportDurationSeconds.Set(dur.Seconds())
}

// SetSnapshotSizeBytes sets the estimated snapshot size gauge.
func SetSnapshotSizeBytes(v uint64) {
	snapshotSizeBytes.Set(float64(v))
}

// AddImportDocuments increments the total count of the committed documents.
func AddImportDocuments(v int) {
	importDocumentsTotal.Add(float64(v))
}

// IncImportBatches increments the committed batches counter.
func IncImportBatches() {
	importBatchesTotal.Inc()
}

// IncImportBatchFailures increments the failed batches counter.
func IncImportBatchFailures() {
	importBatchFailuresTotal.Inc()
}

// ObserveImportBatchDuration records the duration of one batch commit.
func ObserveImportBatchDuration(dur time.Duration) {
	importBatchDurationSeconds.Observe(dur.Seconds())
}

// SetImportDuration sets the import phase duration gauge.
func SetImportDuration(dur time.Duration) {
	importDurationSeconds.Set(dur.Seconds())
}

// IncRetries increments the retry counter for a store operation.
func IncRetries(op string) {
	retriesTotal.WithLabelValues(op).Inc()
}
