package models

import "time"

// IngestJobStatus is the lifecycle state of a file-import job.
type IngestJobStatus string

const (
	JobUploading IngestJobStatus = "uploading"
	JobQueued    IngestJobStatus = "queued"
	JobRunning   IngestJobStatus = "running"
	JobDone      IngestJobStatus = "done"
	JobError     IngestJobStatus = "error"
	JobCanceled  IngestJobStatus = "canceled"
)

// IsValid checks if the status is a valid IngestJobStatus.
func (s IngestJobStatus) IsValid() bool {
	switch s {
	case JobUploading, JobQueued, JobRunning, JobDone, JobError, JobCanceled:
		return true
	}
	return false
}

// IsTerminal reports whether the status admits no further transitions.
func (s IngestJobStatus) IsTerminal() bool {
	return s == JobDone || s == JobError || s == JobCanceled
}

// IsActive reports whether the job still holds resources (upload file, worker
// slot) and blocks maintenance work.
func (s IngestJobStatus) IsActive() bool {
	return s == JobUploading || s == JobQueued || s == JobRunning
}

// Worker phases reported while a job is running.
const (
	PhaseParsing    = "parsing"
	PhaseFinalizing = "finalizing"
)

// Error stages recorded on failed jobs.
const (
	StageUpload          = "upload"
	StageParse           = "parse"
	StagePersist         = "persist"
	StageFlowAggregation = "flow_aggregation"
	StageProcessing      = "processing"
)

// maxErrorMessageLen bounds the stored error text; syslog parse failures can
// embed whole records.
const maxErrorMessageLen = 1000

// IngestJob is the durable record of one file-import lifecycle:
// uploading → queued → running → done | error | canceled.
type IngestJob struct {
	ID              string     `gorm:"primaryKey;size:36" json:"id"`
	Status          string     `gorm:"size:32;index;default:queued" json:"status"`
	Phase           string     `gorm:"size:32" json:"phase,omitempty"`
	Filename        string     `gorm:"size:512" json:"filename,omitempty"`
	BytesTotal      int64      `gorm:"default:0" json:"bytes_total"`
	BytesReceived   int64      `gorm:"default:0" json:"bytes_received"`
	StartedAt       *time.Time `json:"started_at,omitempty"`
	CancelRequested bool       `gorm:"default:false;not null" json:"cancel_requested"`
	DeviceKey       string     `gorm:"size:255;index" json:"device_key,omitempty"`

	LinesTotal      int64 `gorm:"default:0" json:"lines_total"`
	LinesProcessed  int64 `gorm:"default:0" json:"lines_processed"`
	ParseOK         int64 `gorm:"column:parse_ok;default:0" json:"parse_ok"`
	ParseErr        int64 `gorm:"column:parse_err;default:0" json:"parse_err"`
	FilteredID      int64 `gorm:"column:filtered_id;default:0" json:"filtered_id"`
	RawLogsInserted int64 `gorm:"default:0" json:"raw_logs_inserted"`
	EventsInserted  int64 `gorm:"default:0" json:"events_inserted"`

	TimeMin        string `gorm:"size:64" json:"time_min,omitempty"`
	TimeMax        string `gorm:"size:64" json:"time_max,omitempty"`
	DeviceDetected string `gorm:"size:255" json:"device_detected,omitempty"`
	DeviceDisplay  string `gorm:"size:255" json:"device_display,omitempty"`
	ErrorMessage   string `gorm:"type:text" json:"error_message,omitempty"`
	ErrorType      string `gorm:"size:128" json:"error_type,omitempty"`
	ErrorStage     string `gorm:"size:64" json:"error_stage,omitempty"`

	CreatedAt  time.Time  `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt  time.Time  `gorm:"autoUpdateTime" json:"updated_at"`
	FinishedAt *time.Time `json:"finished_at,omitempty"`
}

// TableName returns the table name for IngestJob.
func (IngestJob) TableName() string {
	return "ingest_jobs"
}

// ClampErrorMessage truncates error text to the stored column size.
func ClampErrorMessage(message string) string {
	if len(message) > maxErrorMessageLen {
		return message[:maxErrorMessageLen]
	}
	return message
}

// SetError records a failure, truncating oversized messages.
func (j *IngestJob) SetError(stage, errType, message string) {
	j.Status = string(JobError)
	j.ErrorStage = stage
	j.ErrorType = errType
	j.ErrorMessage = ClampErrorMessage(message)
}

// CurrentPhase returns the reporting phase derived from status, honoring the
// worker's phase override while running.
func (j *IngestJob) CurrentPhase() string {
	switch IngestJobStatus(j.Status) {
	case JobUploading:
		return "upload"
	case JobRunning:
		if j.Phase != "" {
			return j.Phase
		}
		return PhaseParsing
	default:
		return j.Status
	}
}

// Progress returns the job's progress ratio in [0, 1]. While parsing it is
// capped at 0.99; the last percent is the finalizing flush.
func (j *IngestJob) Progress() float64 {
	switch IngestJobStatus(j.Status) {
	case JobUploading:
		return ratio(j.BytesReceived, j.BytesTotal)
	case JobQueued:
		return 0
	case JobRunning:
		if j.Phase == PhaseFinalizing {
			return 0.99
		}
		var r float64
		if j.LinesTotal > 0 {
			r = ratio(j.LinesProcessed, j.LinesTotal)
		} else {
			r = ratio(j.BytesReceived, j.BytesTotal)
		}
		if r > 0.99 {
			r = 0.99
		}
		return r
	case JobDone:
		return 1
	default:
		return ratio(j.LinesProcessed, j.LinesTotal)
	}
}

func ratio(part, total int64) float64 {
	if total <= 0 {
		return 0
	}
	r := float64(part) / float64(total)
	if r < 0 {
		return 0
	}
	if r > 1 {
		return 1
	}
	return r
}

// MaintenanceJobStatus is the lifecycle state of a background maintenance job.
type MaintenanceJobStatus string

const (
	MaintQueued  MaintenanceJobStatus = "queued"
	MaintRunning MaintenanceJobStatus = "running"
	MaintDone    MaintenanceJobStatus = "done"
	MaintError   MaintenanceJobStatus = "error"
)

// Maintenance job types.
const (
	MaintTypePurgeFirewall = "purge_firewall"
)

// MaintenanceJob is the durable record of a background maintenance run, such
// as a firewall purge: queued → running → done | error.
type MaintenanceJob struct {
	ID           string     `gorm:"primaryKey;size:36" json:"id"`
	Type         string     `gorm:"size:64;index" json:"type"`
	Status       string     `gorm:"size:32;index;default:queued" json:"status"`
	DeviceKey    string     `gorm:"size:255;index" json:"device_key,omitempty"`
	ResultCounts string     `gorm:"column:result_counts;type:text" json:"-"`
	ErrorMessage string     `gorm:"type:text" json:"error_message,omitempty"`
	CreatedAt    time.Time  `gorm:"autoCreateTime" json:"created_at"`
	StartedAt    *time.Time `json:"started_at,omitempty"`
	FinishedAt   *time.Time `json:"finished_at,omitempty"`
}

// TableName returns the table name for MaintenanceJob.
func (MaintenanceJob) TableName() string {
	return "maintenance_jobs"
}

// GetResultCounts returns the per-step row counts as a map.
func (m *MaintenanceJob) GetResultCounts() map[string]int64 {
	return parseCountMap(m.ResultCounts)
}

// SetResultCounts serializes the per-step row counts for storage.
func (m *MaintenanceJob) SetResultCounts(counts map[string]int64) {
	m.ResultCounts = marshalCountMap(counts)
}
