package apiclient

import "time"

// FirewallSource describes where a firewall's data came from.
type FirewallSource struct {
	Syslog        bool       `json:"syslog"`
	Import        bool       `json:"import"`
	LastImportTs  *time.Time `json:"last_import_ts"`
	SourceDisplay []string   `json:"source_display"`
}

// ActiveJob is the compact import-job view embedded in firewall rows.
type ActiveJob struct {
	JobID          string    `json:"job_id"`
	Filename       string    `json:"filename"`
	Status         string    `json:"status"`
	Phase          string    `json:"phase"`
	Progress       float64   `json:"progress"`
	LinesProcessed int64     `json:"lines_processed"`
	LinesTotal     int64     `json:"lines_total"`
	CreatedAt      time.Time `json:"created_at"`
}

// Firewall is one entry of GET /api/firewalls: a standalone device or an
// enabled HA cluster.
type Firewall struct {
	DeviceKey        string         `json:"device_key"`
	DisplayName      string         `json:"display_name"`
	Members          []string       `json:"members"`
	OldestLog        *time.Time     `json:"oldest_log"`
	LatestLog        *time.Time     `json:"latest_log"`
	EventCount       int64          `json:"event_count"`
	Source           FirewallSource `json:"source"`
	IsImporting      bool           `json:"is_importing"`
	ActiveImportJobs []ActiveJob    `json:"active_import_jobs"`
}

// FirewallOverride is the display override for a firewall. Fields are nil
// when no override is set.
type FirewallOverride struct {
	DeviceKey   string     `json:"device_key"`
	DisplayName *string    `json:"display_name"`
	Comment     *string    `json:"comment"`
	UpdatedAt   *time.Time `json:"updated_at"`
}

// DeviceJob is one entry of the per-firewall import job history.
type DeviceJob struct {
	JobID           string     `json:"job_id"`
	Filename        string     `json:"filename"`
	Status          string     `json:"status"`
	Phase           string     `json:"phase"`
	Progress        float64    `json:"progress"`
	LinesProcessed  int64      `json:"lines_processed"`
	LinesTotal      int64      `json:"lines_total"`
	ParseOK         int64      `json:"parse_ok"`
	ParseErr        int64      `json:"parse_err"`
	RawLogsInserted int64      `json:"raw_logs_inserted"`
	EventsInserted  int64      `json:"events_inserted"`
	TimeMin         string     `json:"time_min"`
	TimeMax         string     `json:"time_max"`
	CreatedAt       time.Time  `json:"created_at"`
	StartedAt       *time.Time `json:"started_at"`
	FinishedAt      *time.Time `json:"finished_at"`
	ErrorMessage    string     `json:"error_message"`
}

// PurgeResult is the body of a started firewall purge.
type PurgeResult struct {
	OK    bool   `json:"ok"`
	JobID string `json:"job_id"`
}

// setOverrideRequest is the body of PUT /api/firewalls/{key}/override.
type setOverrideRequest struct {
	DisplayName string `json:"display_name"`
	Comment     string `json:"comment"`
}

// purgeRequest is the body of POST /api/firewalls/{key}/purge.
type purgeRequest struct {
	Confirm bool `json:"confirm"`
}

// ListFirewalls returns all known firewalls with log bounds, event counts,
// sources, and running imports.
func (c *Client) ListFirewalls() ([]Firewall, error) {
	return listResources[Firewall](c, "/api/firewalls")
}

// GetFirewallOverride returns the display override for a firewall key.
func (c *Client) GetFirewallOverride(key string) (*FirewallOverride, error) {
	return getResource[FirewallOverride](c, resourcePath("/api/firewalls/%s/override", key))
}

// SetFirewallOverride sets the display name and comment for a firewall key.
func (c *Client) SetFirewallOverride(key, displayName, comment string) (*FirewallOverride, error) {
	req := setOverrideRequest{DisplayName: displayName, Comment: comment}
	return putResource[FirewallOverride](c, resourcePath("/api/firewalls/%s/override", key), req)
}

// ListFirewallJobs returns the import job history for one firewall, newest
// first.
func (c *Client) ListFirewallJobs(key string) ([]DeviceJob, error) {
	return listResources[DeviceJob](c, resourcePath("/api/firewalls/%s/jobs", key))
}

// PurgeFirewall starts a background purge of everything recorded for a
// firewall. Returns the maintenance job id to poll.
func (c *Client) PurgeFirewall(key string) (*PurgeResult, error) {
	return postResource[PurgeResult](c, resourcePath("/api/firewalls/%s/purge", key), purgeRequest{Confirm: true})
}
