package apiclient

import "time"

// PipelineStats is the live counter snapshot from GET /api/stats.
type PipelineStats struct {
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

// CleanupSummary describes the last retention cleanup pass.
type CleanupSummary struct {
	LastRun        time.Time `json:"last_run"`
	DurationMs     int64     `json:"duration_ms"`
	DeletedEvents  int64     `json:"deleted_events"`
	DeletedRawLogs int64     `json:"deleted_raw_logs"`
	VacuumRan      bool      `json:"vacuum_ran"`
	KeepDays       int       `json:"keep_days"`
	Cutoff         time.Time `json:"cutoff"`
}

// DatabaseStats is the body of GET /api/stats/db.
type DatabaseStats struct {
	DBType          string          `json:"db_type"`
	RawLogsCount    int64           `json:"raw_logs_count"`
	EventsCount     int64           `json:"events_count"`
	OldestEventTs   *time.Time      `json:"oldest_event_ts"`
	NewestEventTs   *time.Time      `json:"newest_event_ts"`
	OldestRawTs     *time.Time      `json:"oldest_raw_received_at"`
	NewestRawTs     *time.Time      `json:"newest_raw_received_at"`
	DBFileSizeBytes *int64          `json:"db_file_size_bytes"`
	LastCleanup     *CleanupSummary `json:"last_cleanup"`
}

// Stats returns the live pipeline counters.
func (c *Client) Stats() (*PipelineStats, error) {
	return getResource[PipelineStats](c, "/api/stats")
}

// ResetStats zeroes the live pipeline counters.
func (c *Client) ResetStats() error {
	return c.post("/api/stats/reset", nil, nil)
}

// DatabaseStats returns storage-level statistics.
func (c *Client) DatabaseStats() (*DatabaseStats, error) {
	return getResource[DatabaseStats](c, "/api/stats/db")
}
