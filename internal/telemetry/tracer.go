package telemetry

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// Attribute keys for pipeline operations. Protocol-agnostic keys follow
// OpenTelemetry semantic conventions where one exists; pipeline-specific
// keys use the component's prefix.
const (
	// Syslog source attributes
	AttrPeerAddr = "peer.address"
	AttrDevice   = "fw.device"
	AttrFirewall = "fw.key"

	// Batch attributes
	AttrBatchSource = "batch.source"
	AttrBatchRows   = "batch.rows"
	AttrBatchEvents = "batch.events"

	// Import job attributes
	AttrJobID    = "job.id"
	AttrJobPhase = "job.phase"
	AttrFilename = "job.filename"
	AttrLines    = "job.lines"

	// Retention attributes
	AttrKeepDays    = "retention.keep_days"
	AttrDeletedRows = "retention.deleted_rows"
)

// Span names. Format: <component>.<operation>.
const (
	SpanBatchWrite   = "store.write_batch"
	SpanImportJob    = "importer.job"
	SpanCleanup      = "retention.cleanup"
	SpanPurge        = "maintenance.purge"
	SpanFlowDedup    = "store.dedup_flows"
	SpanClassifyLoad = "classify.load_rules"
)

// Device returns an attribute for the raw device name from a log record.
func Device(name string) attribute.KeyValue {
	return attribute.String(AttrDevice, name)
}

// Firewall returns an attribute for a canonical firewall key.
func Firewall(key string) attribute.KeyValue {
	return attribute.String(AttrFirewall, key)
}

// PeerAddr returns an attribute for a syslog sender address.
func PeerAddr(addr string) attribute.KeyValue {
	return attribute.String(AttrPeerAddr, addr)
}

// BatchSource returns an attribute for a batch's origin (syslog or import).
func BatchSource(source string) attribute.KeyValue {
	return attribute.String(AttrBatchSource, source)
}

// BatchRows returns an attribute for the row count of a batch.
func BatchRows(n int) attribute.KeyValue {
	return attribute.Int(AttrBatchRows, n)
}

// BatchEvents returns an attribute for the event count of a batch.
func BatchEvents(n int) attribute.KeyValue {
	return attribute.Int(AttrBatchEvents, n)
}

// JobID returns an attribute for an import or maintenance job id.
func JobID(id string) attribute.KeyValue {
	return attribute.String(AttrJobID, id)
}

// JobPhase returns an attribute for an import job phase.
func JobPhase(phase string) attribute.KeyValue {
	return attribute.String(AttrJobPhase, phase)
}

// Filename returns an attribute for an uploaded file name.
func Filename(name string) attribute.KeyValue {
	return attribute.String(AttrFilename, name)
}

// Lines returns an attribute for a processed line count.
func Lines(n int64) attribute.KeyValue {
	return attribute.Int64(AttrLines, n)
}

// KeepDays returns an attribute for the retention window.
func KeepDays(days int) attribute.KeyValue {
	return attribute.Int(AttrKeepDays, days)
}

// DeletedRows returns an attribute for rows removed by a cleanup pass.
func DeletedRows(n int64) attribute.KeyValue {
	return attribute.Int64(AttrDeletedRows, n)
}

// StartBatchSpan starts a span for one batch write.
func StartBatchSpan(ctx context.Context, source string, rows, events int) (context.Context, trace.Span) {
	return StartSpan(ctx, SpanBatchWrite, trace.WithAttributes(
		BatchSource(source),
		BatchRows(rows),
		BatchEvents(events),
	))
}

// StartJobSpan starts a span covering one import job run.
func StartJobSpan(ctx context.Context, jobID, filename string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	allAttrs := []attribute.KeyValue{JobID(jobID), Filename(filename)}
	allAttrs = append(allAttrs, attrs...)
	return StartSpan(ctx, SpanImportJob, trace.WithAttributes(allAttrs...))
}

// StartCleanupSpan starts a span for one retention cleanup pass.
func StartCleanupSpan(ctx context.Context, keepDays int) (context.Context, trace.Span) {
	return StartSpan(ctx, SpanCleanup, trace.WithAttributes(KeepDays(keepDays)))
}

// StartPurgeSpan starts a span for a firewall purge.
func StartPurgeSpan(ctx context.Context, key string) (context.Context, trace.Span) {
	return StartSpan(ctx, SpanPurge, trace.WithAttributes(Firewall(key)))
}
