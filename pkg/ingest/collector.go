package ingest

import (
	"strings"
	"time"
)

// UploadCollector aggregates per-upload counters for one import job: parse
// outcomes, rows staged, the devices seen, and the covered time range. Each
// job owns one; it is not safe for concurrent use.
type UploadCollector struct {
	ParseOK        int64
	ParseErrors    int64
	FilteredID     int64
	RawInserted    int64
	EventsInserted int64

	deviceCounts map[string]int64
	timeMin      time.Time
	timeMax      time.Time
}

// NewUploadCollector returns an empty collector.
func NewUploadCollector() *UploadCollector {
	return &UploadCollector{deviceCounts: make(map[string]int64)}
}

// NoteRaw counts one staged raw log row for device and widens the time range.
func (c *UploadCollector) NoteRaw(device string, ts time.Time) {
	c.RawInserted++
	c.deviceCounts[device]++
	c.widen(ts)
}

// NoteEvent counts one staged event row and widens the time range.
func (c *UploadCollector) NoteEvent(ts time.Time) {
	c.EventsInserted++
	c.widen(ts)
}

func (c *UploadCollector) widen(ts time.Time) {
	if ts.IsZero() {
		return
	}
	ts = ts.UTC()
	if c.timeMin.IsZero() || ts.Before(c.timeMin) {
		c.timeMin = ts
	}
	if c.timeMax.IsZero() || ts.After(c.timeMax) {
		c.timeMax = ts
	}
}

// PrimaryDevice picks the device the upload is attributed to: the operator's
// choice when given, otherwise the device with the most raw records,
// otherwise "unknown". Count ties break to the lexicographically first name
// so the result is stable.
func (c *UploadCollector) PrimaryDevice(provided string) string {
	if p := strings.TrimSpace(provided); p != "" {
		return p
	}
	best := ""
	bestCount := int64(0)
	for device, count := range c.deviceCounts {
		if count > bestCount || (count == bestCount && bestCount > 0 && device < best) {
			best = device
			bestCount = count
		}
	}
	if best == "" {
		return "unknown"
	}
	return best
}

// TimeMinISO returns the earliest covered timestamp as RFC 3339 UTC, "" when
// nothing carried one.
func (c *UploadCollector) TimeMinISO() string {
	if c.timeMin.IsZero() {
		return ""
	}
	return c.timeMin.Format(time.RFC3339)
}

// TimeMaxISO returns the latest covered timestamp as RFC 3339 UTC.
func (c *UploadCollector) TimeMaxISO() string {
	if c.timeMax.IsZero() {
		return ""
	}
	return c.timeMax.Format(time.RFC3339)
}

// TimeRange returns the covered timestamp range; ok is false when no record
// carried a timestamp.
func (c *UploadCollector) TimeRange() (min, max time.Time, ok bool) {
	if c.timeMin.IsZero() {
		return time.Time{}, time.Time{}, false
	}
	return c.timeMin, c.timeMax, true
}
