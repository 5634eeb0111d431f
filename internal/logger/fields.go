package logger

import (
	"log/slog"
)

// Standard field keys for structured logging.
// Use these keys consistently across all log statements so entries can be
// aggregated and queried by device, job, table, and stage.
const (
	// ========================================================================
	// Distributed Tracing
	// ========================================================================
	KeyTraceID = "trace_id" // OpenTelemetry trace ID for request correlation
	KeySpanID  = "span_id"  // OpenTelemetry span ID for operation tracking

	// ========================================================================
	// Firewalls & Devices
	// ========================================================================
	KeyDevice    = "device"     // Canonical firewall key (ha:base or member)
	KeyMember    = "member"     // Raw member hostname (gw-1_Master)
	KeyFirewall  = "firewall"   // Display label of a firewall
	KeySource    = "source"     // Ingest source: syslog, upload, file
	KeyDirection = "direction"  // Direction bucket (inside_to_outside, ...)
	KeyKind      = "kind"       // zone or interface
	KeyName      = "name"       // Zone/interface/classification name
	KeyLogID     = "log_id"     // NetWall log id field (00600001, ...)
	KeyEventType = "event_type" // conn_open, conn_close, ...

	// ========================================================================
	// Jobs
	// ========================================================================
	KeyJobID     = "job_id"     // Import or maintenance job UUID
	KeyJobType   = "job_type"   // purge_firewall, ...
	KeyJobStatus = "job_status" // queued, running, done, error, canceled
	KeyStage     = "stage"      // upload, parse, persist, flow_aggregation
	KeyFilename  = "filename"   // Uploaded file name
	KeyPath      = "path"       // Spool or config file path
	KeyProgress  = "progress"   // Fractional job progress (0..1)

	// ========================================================================
	// Ingest & Batches
	// ========================================================================
	KeyLines     = "lines"      // Line count
	KeyRecords   = "records"    // Reconstructed record count
	KeyParseOK   = "parse_ok"   // Successfully parsed records
	KeyParseErr  = "parse_err"  // Parse failures
	KeyFiltered  = "filtered"   // Records dropped by the id filter
	KeyBatchSize = "batch_size" // Records in a write batch
	KeyTable     = "table"      // Database table name
	KeyRows      = "rows"       // Rows affected
	KeyBytes     = "bytes"      // Byte count

	// ========================================================================
	// Client Identification
	// ========================================================================
	KeyClientIP   = "client_ip"   // Client IP address
	KeyClientPort = "client_port" // Client source port
	KeyRequestID  = "request_id"  // HTTP request ID

	// ========================================================================
	// Operation Metadata
	// ========================================================================
	KeyDurationMs = "duration_ms" // Operation duration in milliseconds
	KeyError      = "error"       // Error message
	KeyOperation  = "operation"   // Sub-operation type for complex operations
	KeyAttempt    = "attempt"     // Retry attempt number
	KeyMaxRetries = "max_retries" // Maximum retry attempts
	KeyCount      = "count"       // Generic count
	KeyCutoff     = "cutoff"      // Retention cutoff timestamp
	KeyPort       = "port"        // Listening port
)

// ============================================================================
// Field constructors for type safety
// These functions provide type-safe construction of slog.Attr values.
// ============================================================================

// TraceID returns a slog.Attr for OpenTelemetry trace ID
func TraceID(id string) slog.Attr {
	return slog.String(KeyTraceID, id)
}

// SpanID returns a slog.Attr for OpenTelemetry span ID
func SpanID(id string) slog.Attr {
	return slog.String(KeySpanID, id)
}

// Device returns a slog.Attr for a canonical firewall key
func Device(key string) slog.Attr {
	return slog.String(KeyDevice, key)
}

// Member returns a slog.Attr for a raw member hostname
func Member(name string) slog.Attr {
	return slog.String(KeyMember, name)
}

// Source returns a slog.Attr for the ingest source
func Source(src string) slog.Attr {
	return slog.String(KeySource, src)
}

// Kind returns a slog.Attr for a classification kind (zone, interface)
func Kind(kind string) slog.Attr {
	return slog.String(KeyKind, kind)
}

// Name returns a slog.Attr for a zone/interface/classification name
func Name(name string) slog.Attr {
	return slog.String(KeyName, name)
}

// JobID returns a slog.Attr for a job UUID
func JobID(id string) slog.Attr {
	return slog.String(KeyJobID, id)
}

// JobStatus returns a slog.Attr for a job status
func JobStatus(status string) slog.Attr {
	return slog.String(KeyJobStatus, status)
}

// Stage returns a slog.Attr for a processing stage
func Stage(stage string) slog.Attr {
	return slog.String(KeyStage, stage)
}

// Filename returns a slog.Attr for an uploaded file name
func Filename(name string) slog.Attr {
	return slog.String(KeyFilename, name)
}

// Path returns a slog.Attr for a filesystem path
func Path(p string) slog.Attr {
	return slog.String(KeyPath, p)
}

// Lines returns a slog.Attr for a line count
func Lines(n int64) slog.Attr {
	return slog.Int64(KeyLines, n)
}

// Records returns a slog.Attr for a record count
func Records(n int) slog.Attr {
	return slog.Int(KeyRecords, n)
}

// BatchSize returns a slog.Attr for a write batch size
func BatchSize(n int) slog.Attr {
	return slog.Int(KeyBatchSize, n)
}

// Table returns a slog.Attr for a database table name
func Table(name string) slog.Attr {
	return slog.String(KeyTable, name)
}

// Rows returns a slog.Attr for rows affected
func Rows(n int64) slog.Attr {
	return slog.Int64(KeyRows, n)
}

// Bytes returns a slog.Attr for a byte count
func Bytes(n int64) slog.Attr {
	return slog.Int64(KeyBytes, n)
}

// ClientIP returns a slog.Attr for client IP address
func ClientIP(addr string) slog.Attr {
	return slog.String(KeyClientIP, addr)
}

// ClientPort returns a slog.Attr for client source port
func ClientPort(port int) slog.Attr {
	return slog.Int(KeyClientPort, port)
}

// RequestIDStr returns a slog.Attr for an HTTP request ID
func RequestIDStr(id string) slog.Attr {
	return slog.String(KeyRequestID, id)
}

// DurationMs returns a slog.Attr for duration in milliseconds
func DurationMs(ms float64) slog.Attr {
	return slog.Float64(KeyDurationMs, ms)
}

// Err returns a slog.Attr for an error
func Err(err error) slog.Attr {
	if err == nil {
		return slog.Attr{}
	}
	return slog.String(KeyError, err.Error())
}

// Operation returns a slog.Attr for sub-operation type
func Operation(op string) slog.Attr {
	return slog.String(KeyOperation, op)
}

// Attempt returns a slog.Attr for retry attempt number
func Attempt(n int) slog.Attr {
	return slog.Int(KeyAttempt, n)
}

// MaxRetries returns a slog.Attr for maximum retry attempts
func MaxRetries(n int) slog.Attr {
	return slog.Int(KeyMaxRetries, n)
}

// Count returns a slog.Attr for a generic count
func Count(n int) slog.Attr {
	return slog.Int(KeyCount, n)
}

// Port returns a slog.Attr for a listening port
func Port(p int) slog.Attr {
	return slog.Int(KeyPort, p)
}
