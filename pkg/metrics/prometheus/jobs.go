package prometheus

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/kvasirlab/connwatch/pkg/metrics"
)

func init() {
	metrics.RegisterImporterMetricsConstructor(NewImporterMetrics)
	metrics.RegisterRetentionMetricsConstructor(NewRetentionMetrics)
}

// importerMetrics is the Prometheus implementation of
// metrics.ImporterMetrics.
type importerMetrics struct {
	jobs        *prometheus.CounterVec
	jobDuration prometheus.Histogram
}

// NewImporterMetrics creates the Prometheus-backed ImporterMetrics. Returns
// nil when metrics are disabled.
func NewImporterMetrics() metrics.ImporterMetrics {
	if !metrics.IsEnabled() {
		return nil
	}
	reg := metrics.GetRegistry()

	return &importerMetrics{
		jobs: promauto.With(reg).NewCounterVec(prometheus.CounterOpts{
			Name: "connwatch_import_jobs_total",
			Help: "Finished import jobs by terminal status",
		}, []string{"status"}), // "done", "error", "canceled"
		jobDuration: promauto.With(reg).NewHistogram(prometheus.HistogramOpts{
			Name: "connwatch_import_job_duration_seconds",
			Help: "Time from claim to terminal state",
			Buckets: []float64{
				0.1,
				1,
				10,
				60,
				300,  // a large upload
				1800,
			},
		}),
	}
}

func (m *importerMetrics) RecordJob(status string, duration time.Duration) {
	m.jobs.WithLabelValues(status).Inc()
	m.jobDuration.Observe(duration.Seconds())
}

// retentionMetrics is the Prometheus implementation of
// metrics.RetentionMetrics.
type retentionMetrics struct {
	deletedRows *prometheus.CounterVec
	runDuration prometheus.Histogram
}

// NewRetentionMetrics creates the Prometheus-backed RetentionMetrics.
// Returns nil when metrics are disabled.
func NewRetentionMetrics() metrics.RetentionMetrics {
	if !metrics.IsEnabled() {
		return nil
	}
	reg := metrics.GetRegistry()

	return &retentionMetrics{
		deletedRows: promauto.With(reg).NewCounterVec(prometheus.CounterOpts{
			Name: "connwatch_retention_deleted_rows_total",
			Help: "Rows deleted by retention passes, by table",
		}, []string{"table"}), // "events", "raw_logs"
		runDuration: promauto.With(reg).NewHistogram(prometheus.HistogramOpts{
			Name:    "connwatch_retention_run_duration_seconds",
			Help:    "Duration of retention passes",
			Buckets: prometheus.DefBuckets,
		}),
	}
}

func (m *retentionMetrics) RecordCleanup(deletedEvents, deletedRawLogs int64, duration time.Duration) {
	m.deletedRows.WithLabelValues("events").Add(float64(deletedEvents))
	m.deletedRows.WithLabelValues("raw_logs").Add(float64(deletedRawLogs))
	m.runDuration.Observe(duration.Seconds())
}
