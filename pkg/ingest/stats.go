package ingest

import (
	"math"
	"sync"
	"sync/atomic"
	"time"

	"github.com/kvasirlab/connwatch/internal/logger"
	"github.com/kvasirlab/connwatch/pkg/metrics"
)

// SampleRawLineMax bounds the stored sample line so stats payloads stay
// small even when a sender frames whole files into one line.
const SampleRawLineMax = 600

// Stats tracks the live ingest pipeline from UDP datagrams down to rows
// staged for persistence. The UDP read loop, import jobs, the flusher, and
// API readers all touch it concurrently, so counters are atomic and the
// sample line sits behind its own mutex.
type Stats struct {
	udpPackets   atomic.Int64
	udpBytes     atomic.Int64
	lines        atomic.Int64
	records      atomic.Int64
	parseOK      atomic.Int64
	parseErrors  atomic.Int64
	filteredID   atomic.Int64
	rawLogsSaved atomic.Int64
	eventsSaved  atomic.Int64
	batchErrors  atomic.Int64

	// unix nanos of the last counter change; 0 means never
	lastUpdated atomic.Int64

	mu         sync.Mutex
	sampleLine string
	startedAt  time.Time

	// pm mirrors the line and record counters into Prometheus. Attach
	// before the listeners start; nil leaves the counters dashboard-only.
	pm metrics.IngestMetrics
}

// Snapshot is a point-in-time copy of the counters. Field names are the
// stable wire names the dashboard reads.
type Snapshot struct {
	UDPPackets    int64      `json:"udp_packets"`
	UDPBytes      int64      `json:"udp_bytes"`
	Lines         int64      `json:"lines"`
	RecordsTotal  int64      `json:"records_total"`
	RecordsOK     int64      `json:"records_ok"`
	ParseErrors   int64      `json:"parse_err"`
	FilteredID    int64      `json:"filtered_id"`
	RawLogsSaved  int64      `json:"db_raw_logs"`
	EventsSaved   int64      `json:"db_events"`
	BatchErrors   int64      `json:"batch_errors"`
	UptimeSeconds float64    `json:"uptime_seconds"`
	LastUpdated   *time.Time `json:"last_updated,omitempty"`
	SampleRawLine string     `json:"sample_raw_line,omitempty"`
}

// NewStats returns zeroed counters with the uptime clock started.
func NewStats() *Stats {
	return &Stats{startedAt: time.Now()}
}

// AttachPipelineMetrics mirrors line and record counts into m.
func (s *Stats) AttachPipelineMetrics(m metrics.IngestMetrics) {
	s.pm = m
}

func (s *Stats) touch() {
	s.lastUpdated.Store(time.Now().UnixNano())
}

// NotePacket counts one received datagram of n bytes.
func (s *Stats) NotePacket(n int) {
	s.udpPackets.Add(1)
	s.udpBytes.Add(int64(n))
	s.touch()
}

// NoteLine counts one non-blank line and keeps it (truncated) as the sample,
// so a stream that never assembles into records can still be inspected.
func (s *Stats) NoteLine(line string) {
	s.lines.Add(1)
	metrics.RecordLine(s.pm)
	if len(line) > SampleRawLineMax {
		line = line[:SampleRawLineMax] + "..."
	}
	s.mu.Lock()
	s.sampleLine = line
	s.mu.Unlock()
}

// NoteRecord counts one assembled record handed to the parser.
func (s *Stats) NoteRecord() { s.records.Add(1) }

// NoteParseOK counts one record the parser understood.
func (s *Stats) NoteParseOK() {
	s.parseOK.Add(1)
	metrics.RecordRecord(s.pm, metrics.RecordOK)
}

// NoteParseError counts one record that defeated every dialect.
func (s *Stats) NoteParseError() {
	s.parseErrors.Add(1)
	metrics.RecordRecord(s.pm, metrics.RecordParseErr)
}

// NoteFiltered counts one record dropped by the id filter.
func (s *Stats) NoteFiltered() {
	s.filteredID.Add(1)
	metrics.RecordRecord(s.pm, metrics.RecordFiltered)
}

// NoteRawLog counts one raw log row staged for persistence.
func (s *Stats) NoteRawLog() { s.rawLogsSaved.Add(1) }

// NoteEvent counts one event row staged for persistence.
func (s *Stats) NoteEvent() { s.eventsSaved.Add(1) }

// NoteFlushed marks a successful batch write.
func (s *Stats) NoteFlushed() { s.touch() }

// BatchError counts one failed batch write.
func (s *Stats) BatchError() {
	s.batchErrors.Add(1)
	s.touch()
}

// Reset zeroes every counter and restarts the uptime clock.
func (s *Stats) Reset() {
	s.udpPackets.Store(0)
	s.udpBytes.Store(0)
	s.lines.Store(0)
	s.records.Store(0)
	s.parseOK.Store(0)
	s.parseErrors.Store(0)
	s.filteredID.Store(0)
	s.rawLogsSaved.Store(0)
	s.eventsSaved.Store(0)
	s.batchErrors.Store(0)
	s.lastUpdated.Store(0)
	s.mu.Lock()
	s.sampleLine = ""
	s.startedAt = time.Now()
	s.mu.Unlock()
}

// Snapshot copies the counters.
func (s *Stats) Snapshot() Snapshot {
	s.mu.Lock()
	sample := s.sampleLine
	startedAt := s.startedAt
	s.mu.Unlock()

	snap := Snapshot{
		UDPPackets:    s.udpPackets.Load(),
		UDPBytes:      s.udpBytes.Load(),
		Lines:         s.lines.Load(),
		RecordsTotal:  s.records.Load(),
		RecordsOK:     s.parseOK.Load(),
		ParseErrors:   s.parseErrors.Load(),
		FilteredID:    s.filteredID.Load(),
		RawLogsSaved:  s.rawLogsSaved.Load(),
		EventsSaved:   s.eventsSaved.Load(),
		BatchErrors:   s.batchErrors.Load(),
		UptimeSeconds: math.Round(time.Since(startedAt).Seconds()*10) / 10,
		SampleRawLine: sample,
	}
	if nanos := s.lastUpdated.Load(); nanos > 0 {
		t := time.Unix(0, nanos).UTC()
		snap.LastUpdated = &t
	}
	return snap
}

// LogSummary writes one periodic stats line, and warns when lines arrive but
// no record was ever assembled, which usually means the sender does not frame
// its stream as NetWall syslog.
func (s *Stats) LogSummary() {
	snap := s.Snapshot()
	logger.Info("ingest stats",
		"udp_packets", snap.UDPPackets,
		"udp_bytes", snap.UDPBytes,
		"lines", snap.Lines,
		"records_total", snap.RecordsTotal,
		"records_ok", snap.RecordsOK,
		"parse_err", snap.ParseErrors,
		"filtered_id", snap.FilteredID,
		"db_raw_logs", snap.RawLogsSaved,
		"db_events", snap.EventsSaved,
		"batch_errors", snap.BatchErrors,
	)
	if snap.Lines > 0 && snap.RecordsTotal == 0 && snap.SampleRawLine != "" {
		logger.Warn("no records assembled, prefix mismatch?",
			"sample_raw_line", snap.SampleRawLine)
	}
}
