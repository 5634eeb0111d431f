package apiclient

import "time"

// CleanupOutcome is the body of POST /api/maintenance/cleanup. Either the
// skip fields or the summary fields are set, never both.
type CleanupOutcome struct {
	Skipped bool   `json:"skipped,omitempty"`
	Reason  string `json:"reason,omitempty"`

	LastRun        time.Time `json:"last_run"`
	DurationMs     int64     `json:"duration_ms"`
	DeletedEvents  int64     `json:"deleted_events"`
	DeletedRawLogs int64     `json:"deleted_raw_logs"`
	VacuumRan      bool      `json:"vacuum_ran"`
	KeepDays       int       `json:"keep_days"`
	Cutoff         time.Time `json:"cutoff"`
}

// MaintenanceJob is the body of GET /api/maintenance/jobs/{id}.
type MaintenanceJob struct {
	JobID        string           `json:"job_id"`
	Type         string           `json:"type"`
	Status       string           `json:"status"`
	DeviceKey    string           `json:"device_key"`
	ResultCounts map[string]int64 `json:"result_counts"`
	ErrorMessage string           `json:"error_message"`
	CreatedAt    time.Time        `json:"created_at"`
	StartedAt    *time.Time       `json:"started_at"`
	FinishedAt   *time.Time       `json:"finished_at"`
}

// RunCleanup runs a retention cleanup pass now. The outcome reports either
// the pass summary or why the pass was skipped.
func (c *Client) RunCleanup() (*CleanupOutcome, error) {
	return postResource[CleanupOutcome](c, "/api/maintenance/cleanup", nil)
}

// GetMaintenanceJob returns the status and result counts of a purge or
// cleanup job.
func (c *Client) GetMaintenanceJob(jobID string) (*MaintenanceJob, error) {
	return getResource[MaintenanceJob](c, resourcePath("/api/maintenance/jobs/%s", jobID))
}
