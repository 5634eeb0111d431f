package logger

import (
	"context"
	"time"
)

// contextKey is a private type for context keys to avoid collisions
type contextKey struct{}

// logContextKey is the key for LogContext in context.Context
var logContextKey = contextKey{}

// LogContext holds request-scoped logging context
type LogContext struct {
	TraceID   string    // OpenTelemetry trace ID
	SpanID    string    // OpenTelemetry span ID
	JobID     string    // Import or maintenance job ID
	Device    string    // Canonical firewall key (ha:base or member name)
	Source    string    // Ingest source: syslog, upload, file
	ClientIP  string    // Client IP address (without port)
	StartTime time.Time // For duration calculation
}

// WithContext returns a new context with the given LogContext
func WithContext(ctx context.Context, lc *LogContext) context.Context {
	return context.WithValue(ctx, logContextKey, lc)
}

// FromContext retrieves the LogContext from context, or nil if not present
func FromContext(ctx context.Context) *LogContext {
	if ctx == nil {
		return nil
	}
	lc, _ := ctx.Value(logContextKey).(*LogContext)
	return lc
}

// NewLogContext creates a new LogContext with the given client IP
func NewLogContext(clientIP string) *LogContext {
	return &LogContext{
		ClientIP:  clientIP,
		StartTime: time.Now(),
	}
}

// Clone creates a copy of the LogContext
func (lc *LogContext) Clone() *LogContext {
	if lc == nil {
		return nil
	}
	return &LogContext{
		TraceID:   lc.TraceID,
		SpanID:    lc.SpanID,
		JobID:     lc.JobID,
		Device:    lc.Device,
		Source:    lc.Source,
		ClientIP:  lc.ClientIP,
		StartTime: lc.StartTime,
	}
}

// WithJob returns a copy with the job ID set
func (lc *LogContext) WithJob(jobID string) *LogContext {
	clone := lc.Clone()
	if clone != nil {
		clone.JobID = jobID
	}
	return clone
}

// WithDevice returns a copy with the device key set
func (lc *LogContext) WithDevice(device string) *LogContext {
	clone := lc.Clone()
	if clone != nil {
		clone.Device = device
	}
	return clone
}

// WithSource returns a copy with the ingest source set
func (lc *LogContext) WithSource(source string) *LogContext {
	clone := lc.Clone()
	if clone != nil {
		clone.Source = source
	}
	return clone
}

// WithTrace returns a copy with trace info set
func (lc *LogContext) WithTrace(traceID, spanID string) *LogContext {
	clone := lc.Clone()
	if clone != nil {
		clone.TraceID = traceID
		clone.SpanID = spanID
	}
	return clone
}

// DurationMs returns the duration since StartTime in milliseconds
func (lc *LogContext) DurationMs() float64 {
	if lc == nil || lc.StartTime.IsZero() {
		return 0
	}
	return float64(time.Since(lc.StartTime).Microseconds()) / 1000.0
}
