package metrics

import "time"

// ImporterMetrics provides observability for the import worker. Optional;
// pass nil to disable collection.
type ImporterMetrics interface {
	// RecordJob records one finished job with its terminal status and the
	// time from claim to terminal state.
	RecordJob(status string, duration time.Duration)
}

// RetentionMetrics provides observability for retention passes.
type RetentionMetrics interface {
	// RecordCleanup records one completed pass.
	RecordCleanup(deletedEvents, deletedRawLogs int64, duration time.Duration)
}

// NewImporterMetrics returns the Prometheus-backed ImporterMetrics, or nil
// when metrics are disabled.
func NewImporterMetrics() ImporterMetrics {
	if !IsEnabled() || newPrometheusImporterMetrics == nil {
		return nil
	}
	return newPrometheusImporterMetrics()
}

// NewRetentionMetrics returns the Prometheus-backed RetentionMetrics, or nil
// when metrics are disabled.
func NewRetentionMetrics() RetentionMetrics {
	if !IsEnabled() || newPrometheusRetentionMetrics == nil {
		return nil
	}
	return newPrometheusRetentionMetrics()
}

var (
	newPrometheusImporterMetrics  func() ImporterMetrics
	newPrometheusRetentionMetrics func() RetentionMetrics
)

// RegisterImporterMetricsConstructor installs the ImporterMetrics
// constructor.
func RegisterImporterMetricsConstructor(constructor func() ImporterMetrics) {
	newPrometheusImporterMetrics = constructor
}

// RegisterRetentionMetricsConstructor installs the RetentionMetrics
// constructor.
func RegisterRetentionMetricsConstructor(constructor func() RetentionMetrics) {
	newPrometheusRetentionMetrics = constructor
}

// RecordJob records a finished import job when m is non-nil.
func RecordJob(m ImporterMetrics, status string, duration time.Duration) {
	if m != nil {
		m.RecordJob(status, duration)
	}
}

// RecordCleanup records a retention pass when m is non-nil.
func RecordCleanup(m RetentionMetrics, deletedEvents, deletedRawLogs int64, duration time.Duration) {
	if m != nil {
		m.RecordCleanup(deletedEvents, deletedRawLogs, duration)
	}
}
