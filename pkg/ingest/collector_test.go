package ingest

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestCollectorPrimaryDevice(t *testing.T) {
	c := NewUploadCollector()
	ts := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)

	assert.Equal(t, "unknown", c.PrimaryDevice(""), "empty collector falls back to unknown")

	c.NoteRaw("gw-a", ts)
	c.NoteRaw("gw-b", ts)
	c.NoteRaw("gw-b", ts)

	assert.Equal(t, "gw-b", c.PrimaryDevice(""))
	assert.Equal(t, "gw-chosen", c.PrimaryDevice("  gw-chosen  "), "operator choice wins, trimmed")

	// A count tie resolves to the lexicographically first device.
	c.NoteRaw("gw-a", ts)
	assert.Equal(t, "gw-a", c.PrimaryDevice(""))
}

func TestCollectorTimeRange(t *testing.T) {
	c := NewUploadCollector()

	assert.Empty(t, c.TimeMinISO())
	assert.Empty(t, c.TimeMaxISO())

	mid := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)
	early := mid.Add(-time.Hour)
	late := mid.Add(2 * time.Hour)

	c.NoteRaw("gw-a", mid)
	c.NoteEvent(late)
	c.NoteRaw("gw-a", early)
	c.NoteEvent(time.Time{}) // zero timestamps never move the range

	assert.Equal(t, "2026-05-01T11:00:00Z", c.TimeMinISO())
	assert.Equal(t, "2026-05-01T14:00:00Z", c.TimeMaxISO())
	assert.Equal(t, int64(2), c.RawInserted)
	assert.Equal(t, int64(2), c.EventsInserted)
}
