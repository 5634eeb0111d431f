package metrics

import "time"

// StorageMetrics provides observability for the analytics store. Optional;
// pass nil to disable collection.
type StorageMetrics interface {
	// ObserveWriteBatch records one WriteBatch transaction.
	ObserveWriteBatch(duration time.Duration, success bool)

	// RecordLockRetry counts one transient lock retry.
	RecordLockRetry()

	// RecordRows counts rows written to a table.
	RecordRows(table string, n int)
}

// NewStorageMetrics returns the Prometheus-backed StorageMetrics, or nil
// when metrics are disabled.
func NewStorageMetrics() StorageMetrics {
	if !IsEnabled() || newPrometheusStorageMetrics == nil {
		return nil
	}
	return newPrometheusStorageMetrics()
}

var newPrometheusStorageMetrics func() StorageMetrics

// RegisterStorageMetricsConstructor installs the StorageMetrics constructor.
func RegisterStorageMetricsConstructor(constructor func() StorageMetrics) {
	newPrometheusStorageMetrics = constructor
}

// ObserveWriteBatch records a batch write when m is non-nil.
func ObserveWriteBatch(m StorageMetrics, duration time.Duration, success bool) {
	if m != nil {
		m.ObserveWriteBatch(duration, success)
	}
}

// RecordLockRetry counts a retry when m is non-nil.
func RecordLockRetry(m StorageMetrics) {
	if m != nil {
		m.RecordLockRetry()
	}
}

// RecordRows counts written rows when m is non-nil.
func RecordRows(m StorageMetrics, table string, n int) {
	if m != nil && n > 0 {
		m.RecordRows(table, n)
	}
}
