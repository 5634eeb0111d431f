package metrics

import "time"

// Record outcomes accepted by IngestMetrics.RecordRecord.
const (
	RecordOK       = "ok"
	RecordParseErr = "parse_err"
	RecordFiltered = "filtered_id"
)

// IngestMetrics provides observability for the record pipeline shared by the
// live listener and file imports. This interface is optional; pass nil to
// disable collection with zero overhead.
type IngestMetrics interface {
	// RecordLine counts one non-blank input line.
	RecordLine()

	// RecordRecord counts one assembled record by outcome: RecordOK,
	// RecordParseErr, or RecordFiltered.
	RecordRecord(outcome string)

	// ObserveFlush records one batch flush with its row count, duration,
	// and whether the write succeeded.
	ObserveFlush(rows int, duration time.Duration, success bool)
}

// SyslogMetrics provides observability for the UDP listener.
type SyslogMetrics interface {
	// RecordDatagram counts one received datagram and its size.
	RecordDatagram(bytes int)

	// RecordDrops counts lines the record assembler discarded.
	RecordDrops(n int64)
}

// NewIngestMetrics returns the Prometheus-backed IngestMetrics, or nil when
// metrics are disabled (InitRegistry not called).
func NewIngestMetrics() IngestMetrics {
	if !IsEnabled() || newPrometheusIngestMetrics == nil {
		return nil
	}
	return newPrometheusIngestMetrics()
}

// NewSyslogMetrics returns the Prometheus-backed SyslogMetrics, or nil when
// metrics are disabled.
func NewSyslogMetrics() SyslogMetrics {
	if !IsEnabled() || newPrometheusSyslogMetrics == nil {
		return nil
	}
	return newPrometheusSyslogMetrics()
}

// Constructors are installed by pkg/metrics/prometheus during package
// initialization. The indirection keeps this package free of the
// implementation import.
var (
	newPrometheusIngestMetrics func() IngestMetrics
	newPrometheusSyslogMetrics func() SyslogMetrics
)

// RegisterIngestMetricsConstructor installs the IngestMetrics constructor.
func RegisterIngestMetricsConstructor(constructor func() IngestMetrics) {
	newPrometheusIngestMetrics = constructor
}

// RegisterSyslogMetricsConstructor installs the SyslogMetrics constructor.
func RegisterSyslogMetricsConstructor(constructor func() SyslogMetrics) {
	newPrometheusSyslogMetrics = constructor
}

// RecordLine counts a line when m is non-nil.
func RecordLine(m IngestMetrics) {
	if m != nil {
		m.RecordLine()
	}
}

// RecordRecord counts a record outcome when m is non-nil.
func RecordRecord(m IngestMetrics, outcome string) {
	if m != nil {
		m.RecordRecord(outcome)
	}
}

// ObserveFlush records a flush when m is non-nil.
func ObserveFlush(m IngestMetrics, rows int, duration time.Duration, success bool) {
	if m != nil {
		m.ObserveFlush(rows, duration, success)
	}
}

// RecordDatagram counts a datagram when m is non-nil.
func RecordDatagram(m SyslogMetrics, bytes int) {
	if m != nil {
		m.RecordDatagram(bytes)
	}
}

// RecordDrops counts assembler drops when m is non-nil.
func RecordDrops(m SyslogMetrics, n int64) {
	if m != nil && n > 0 {
		m.RecordDrops(n)
	}
}
