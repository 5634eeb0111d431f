package ingest

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStatsCounters(t *testing.T) {
	stats := NewStats()

	snap := stats.Snapshot()
	assert.Zero(t, snap.UDPPackets)
	assert.Nil(t, snap.LastUpdated, "last_updated starts unset")

	stats.NotePacket(120)
	stats.NotePacket(80)
	stats.NoteLine("line one")
	stats.NoteLine("line two")
	stats.NoteRecord()
	stats.NoteParseOK()
	stats.NoteRecord()
	stats.NoteParseError()
	stats.NoteRecord()
	stats.NoteFiltered()
	stats.NoteRawLog()
	stats.NoteRawLog()
	stats.NoteEvent()
	stats.BatchError()

	snap = stats.Snapshot()
	assert.Equal(t, int64(2), snap.UDPPackets)
	assert.Equal(t, int64(200), snap.UDPBytes)
	assert.Equal(t, int64(2), snap.Lines)
	assert.Equal(t, int64(3), snap.RecordsTotal)
	assert.Equal(t, int64(1), snap.RecordsOK)
	assert.Equal(t, int64(1), snap.ParseErrors)
	assert.Equal(t, int64(1), snap.FilteredID)
	assert.Equal(t, int64(2), snap.RawLogsSaved)
	assert.Equal(t, int64(1), snap.EventsSaved)
	assert.Equal(t, int64(1), snap.BatchErrors)
	assert.Equal(t, "line two", snap.SampleRawLine, "sample keeps the latest line")
	require.NotNil(t, snap.LastUpdated)
	assert.GreaterOrEqual(t, snap.UptimeSeconds, 0.0)
}

func TestStatsSampleTruncation(t *testing.T) {
	stats := NewStats()
	long := strings.Repeat("x", SampleRawLineMax+100)

	stats.NoteLine(long)

	snap := stats.Snapshot()
	assert.Len(t, snap.SampleRawLine, SampleRawLineMax+3)
	assert.True(t, strings.HasSuffix(snap.SampleRawLine, "..."))

	stats.NoteLine("short")
	assert.Equal(t, "short", stats.Snapshot().SampleRawLine)
}

func TestStatsReset(t *testing.T) {
	stats := NewStats()
	stats.NotePacket(10)
	stats.NoteLine("sample")
	stats.NoteRecord()
	stats.BatchError()

	stats.Reset()

	snap := stats.Snapshot()
	assert.Zero(t, snap.UDPPackets)
	assert.Zero(t, snap.UDPBytes)
	assert.Zero(t, snap.Lines)
	assert.Zero(t, snap.RecordsTotal)
	assert.Zero(t, snap.BatchErrors)
	assert.Empty(t, snap.SampleRawLine)
	assert.Nil(t, snap.LastUpdated)
}
