package prometheus

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/kvasirlab/connwatch/pkg/metrics"
)

func init() {
	metrics.RegisterStorageMetricsConstructor(NewStorageMetrics)
}

// storageMetrics is the Prometheus implementation of metrics.StorageMetrics.
type storageMetrics struct {
	writeBatchDuration *prometheus.HistogramVec
	lockRetries        prometheus.Counter
	rowsWritten        *prometheus.CounterVec
}

// NewStorageMetrics creates the Prometheus-backed StorageMetrics. Returns
// nil when metrics are disabled.
func NewStorageMetrics() metrics.StorageMetrics {
	if !metrics.IsEnabled() {
		return nil
	}
	reg := metrics.GetRegistry()

	return &storageMetrics{
		writeBatchDuration: promauto.With(reg).NewHistogramVec(prometheus.HistogramOpts{
			Name:    "connwatch_storage_write_batch_duration_seconds",
			Help:    "Duration of WriteBatch transactions",
			Buckets: prometheus.DefBuckets,
		}, []string{"outcome"}), // "ok", "error"
		lockRetries: promauto.With(reg).NewCounter(prometheus.CounterOpts{
			Name: "connwatch_storage_lock_retries_total",
			Help: "Transient database lock retries",
		}),
		rowsWritten: promauto.With(reg).NewCounterVec(prometheus.CounterOpts{
			Name: "connwatch_storage_rows_written_total",
			Help: "Rows written by table",
		}, []string{"table"}),
	}
}

func (m *storageMetrics) ObserveWriteBatch(duration time.Duration, success bool) {
	outcome := "ok"
	if !success {
		outcome = "error"
	}
	m.writeBatchDuration.WithLabelValues(outcome).Observe(duration.Seconds())
}

func (m *storageMetrics) RecordLockRetry() {
	m.lockRetries.Inc()
}

func (m *storageMetrics) RecordRows(table string, n int) {
	m.rowsWritten.WithLabelValues(table).Add(float64(n))
}
