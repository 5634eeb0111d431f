package handlers

import (
	"errors"
	"net/http"
	"sort"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/kvasirlab/connwatch/pkg/analytics/models"
	"github.com/kvasirlab/connwatch/pkg/analytics/store"
	"github.com/kvasirlab/connwatch/pkg/maintenance"
	"github.com/kvasirlab/connwatch/pkg/netwall"
)

// FirewallHandler handles the firewall inventory endpoints: the merged list
// with per-firewall stats, display overrides, import job history, and purge.
type FirewallHandler struct {
	store  store.Store
	purger *maintenance.Purger
}

// NewFirewallHandler creates a new firewall handler. purger may be nil when
// the purge route is not mounted.
func NewFirewallHandler(store store.Store, purger *maintenance.Purger) *FirewallHandler {
	return &FirewallHandler{store: store, purger: purger}
}

// FirewallSource describes where a firewall's data came from.
type FirewallSource struct {
	Syslog       bool       `json:"syslog"`
	Import       bool       `json:"import"`
	LastImportTs *time.Time `json:"last_import_ts"`
	// SourceDisplay is the UI pill list; an import ever seen wins over
	// syslog.
	SourceDisplay []string `json:"source_display"`
}

// ActiveJobSummary is the compact import-job view embedded in firewall rows.
type ActiveJobSummary struct {
	JobID          string    `json:"job_id"`
	Filename       string    `json:"filename"`
	Status         string    `json:"status"`
	Phase          string    `json:"phase"`
	Progress       float64   `json:"progress"`
	LinesProcessed int64     `json:"lines_processed"`
	LinesTotal     int64     `json:"lines_total"`
	CreatedAt      time.Time `json:"created_at"`
}

// FirewallRow is one entry of GET /api/firewalls: a standalone device or an
// enabled HA cluster.
type FirewallRow struct {
	DeviceKey        string             `json:"device_key"`
	DisplayName      string             `json:"display_name"`
	Members          []string           `json:"members"`
	OldestLog        *time.Time         `json:"oldest_log"`
	LatestLog        *time.Time         `json:"latest_log"`
	EventCount       int64              `json:"event_count"`
	Source           FirewallSource     `json:"source"`
	IsImporting      bool               `json:"is_importing"`
	ActiveImportJobs []ActiveJobSummary `json:"active_import_jobs"`
}

// List handles GET /api/firewalls - all known firewalls with log bounds,
// event counts, sources, and running imports.
//
// The base set matches the device-group dropdown: devices seen in events,
// with members of enabled HA clusters folded into their cluster row.
func (h *FirewallHandler) List(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	devices, err := h.store.ListEventDevices(ctx)
	if err != nil {
		InternalServerError(w, "Failed to list devices")
		return
	}
	clusters, err := h.store.ListEnabledHaClusters(ctx)
	if err != nil {
		InternalServerError(w, "Failed to list HA clusters")
		return
	}
	enabledBases := make(map[string]bool, len(clusters))
	for _, c := range clusters {
		enabledBases[c.Base] = true
	}

	type fwRow struct {
		key          string
		defaultLabel string
		members      []string
	}
	var rows []fwRow
	for _, d := range devices {
		if base, ok := netwall.MemberBase(d); ok && enabledBases[base] {
			continue
		}
		rows = append(rows, fwRow{key: d, defaultLabel: d, members: []string{d}})
	}
	for _, c := range clusters {
		label := c.Label
		if label == "" {
			label = netwall.DefaultClusterLabel(c.Base)
		}
		rows = append(rows, fwRow{
			key:          netwall.HAKeyPrefix + c.Base,
			defaultLabel: label,
			members:      c.GetMembers(),
		})
	}

	overrides, err := h.store.ListFirewallOverrides(ctx)
	if err != nil {
		InternalServerError(w, "Failed to list overrides")
		return
	}
	overrideMap := make(map[string]*models.FirewallOverride, len(overrides))
	for _, o := range overrides {
		overrideMap[o.DeviceKey] = o
	}

	inventory, err := h.store.ListFirewallInventory(ctx)
	if err != nil {
		InternalServerError(w, "Failed to list inventory")
		return
	}
	inventoryMap := make(map[string]*models.FirewallInventory, len(inventory))
	for _, inv := range inventory {
		inventoryMap[inv.DeviceKey] = inv
	}

	activeJobs, err := h.store.ListActiveIngestJobs(ctx)
	if err != nil {
		InternalServerError(w, "Failed to list active jobs")
		return
	}
	// The store returns active jobs oldest-first; the UI shows newest-first.
	// Jobs whose device is not known yet belong to no row.
	deviceToJobs := make(map[string][]ActiveJobSummary)
	for i := len(activeJobs) - 1; i >= 0; i-- {
		job := activeJobs[i]
		key := job.DeviceKey
		if key == "" && job.DeviceDetected != "" {
			key, _ = netwall.CanonicalKey(job.DeviceDetected)
		}
		if key == "" {
			continue
		}
		deviceToJobs[key] = append(deviceToJobs[key], ActiveJobSummary{
			JobID:          job.ID,
			Filename:       job.Filename,
			Status:         job.Status,
			Phase:          job.CurrentPhase(),
			Progress:       round4(job.Progress()),
			LinesProcessed: job.LinesProcessed,
			LinesTotal:     job.LinesTotal,
			CreatedAt:      job.CreatedAt,
		})
	}

	result := make([]FirewallRow, 0, len(rows))
	for _, row := range rows {
		displayName := row.defaultLabel
		override := overrideMap[row.key]
		if override == nil && netwall.IsHAKey(row.key) {
			// Legacy overrides were keyed by the bare cluster base.
			override = overrideMap[netwall.HABase(row.key)]
		}
		if override != nil {
			if name := strings.TrimSpace(override.DisplayName); name != "" {
				displayName = name
			}
		}

		query := row.members
		if len(query) == 0 {
			query = []string{row.key}
		}
		stats, err := h.store.EventStatsForDevices(ctx, query)
		if err != nil {
			InternalServerError(w, "Failed to collect event stats")
			return
		}

		source := FirewallSource{SourceDisplay: []string{"—"}}
		if inv := inventoryMap[row.key]; inv != nil {
			source.Syslog = inv.SourceSyslog != 0
			source.Import = inv.SourceImport != 0
			source.LastImportTs = inv.LastImportTs
		}
		if source.Import {
			source.SourceDisplay = []string{"IMPORT"}
		} else if source.Syslog {
			source.SourceDisplay = []string{"SYSLOG"}
		}

		jobs := deviceToJobs[row.key]
		if jobs == nil {
			jobs = []ActiveJobSummary{}
		}

		members := row.members
		if members == nil {
			members = []string{}
		}

		result = append(result, FirewallRow{
			DeviceKey:        row.key,
			DisplayName:      displayName,
			Members:          members,
			OldestLog:        stats.OldestTs,
			LatestLog:        stats.NewestTs,
			EventCount:       stats.EventCount,
			Source:           source,
			IsImporting:      len(jobs) > 0,
			ActiveImportJobs: jobs,
		})
	}

	sort.Slice(result, func(i, j int) bool {
		a, b := strings.ToLower(result[i].DisplayName), strings.ToLower(result[j].DisplayName)
		if a != b {
			return a < b
		}
		return result[i].DeviceKey < result[j].DeviceKey
	})

	WriteJSONOK(w, result)
}

// OverrideResponse is the body of the override endpoints. Fields are null
// when no override is set.
type OverrideResponse struct {
	DeviceKey   string     `json:"device_key"`
	DisplayName *string    `json:"display_name"`
	Comment     *string    `json:"comment"`
	UpdatedAt   *time.Time `json:"updated_at"`
}

func overrideToResponse(o *models.FirewallOverride) OverrideResponse {
	resp := OverrideResponse{
		DeviceKey:   o.DeviceKey,
		DisplayName: &o.DisplayName,
		UpdatedAt:   &o.UpdatedAt,
	}
	if o.Comment != "" {
		resp.Comment = &o.Comment
	}
	return resp
}

// GetOverride handles GET /api/firewalls/{key}/override.
func (h *FirewallHandler) GetOverride(w http.ResponseWriter, r *http.Request) {
	key := chi.URLParam(r, "key")

	override, err := h.store.GetFirewallOverride(r.Context(), key)
	if err != nil {
		if errors.Is(err, models.ErrFirewallNotFound) {
			WriteJSONOK(w, OverrideResponse{DeviceKey: key})
			return
		}
		InternalServerError(w, "Failed to get override")
		return
	}

	WriteJSONOK(w, overrideToResponse(override))
}

// SetOverrideRequest is the body of PUT /api/firewalls/{key}/override.
type SetOverrideRequest struct {
	DisplayName string `json:"display_name"`
	Comment     string `json:"comment"`
}

// SetOverride handles PUT /api/firewalls/{key}/override - set the display
// name and comment shown for a firewall.
func (h *FirewallHandler) SetOverride(w http.ResponseWriter, r *http.Request) {
	key := chi.URLParam(r, "key")

	var req SetOverrideRequest
	if !decodeJSONBody(w, r, &req) {
		return
	}

	displayName := strings.TrimSpace(req.DisplayName)
	if displayName == "" {
		BadRequest(w, "display_name is required and cannot be empty")
		return
	}
	comment := strings.TrimSpace(req.Comment)

	override, err := h.store.SetFirewallOverride(r.Context(), key, displayName, comment)
	if err != nil {
		if errors.Is(err, models.ErrDisplayNameRequired) {
			BadRequest(w, "display_name is required and cannot be empty")
			return
		}
		InternalServerError(w, "Failed to save override")
		return
	}

	WriteJSONOK(w, overrideToResponse(override))
}

// DeviceJobRow is one entry of GET /api/firewalls/{key}/jobs.
type DeviceJobRow struct {
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

// ListJobs handles GET /api/firewalls/{key}/jobs - import job history for
// one firewall, newest first, capped at 50.
func (h *FirewallHandler) ListJobs(w http.ResponseWriter, r *http.Request) {
	key := chi.URLParam(r, "key")

	jobs, err := h.store.ListIngestJobsForDevice(r.Context(), key, 50)
	if err != nil {
		InternalServerError(w, "Failed to list jobs")
		return
	}

	out := make([]DeviceJobRow, 0, len(jobs))
	for _, job := range jobs {
		out = append(out, DeviceJobRow{
			JobID:           job.ID,
			Filename:        job.Filename,
			Status:          job.Status,
			Phase:           job.CurrentPhase(),
			Progress:        round4(job.Progress()),
			LinesProcessed:  job.LinesProcessed,
			LinesTotal:      job.LinesTotal,
			ParseOK:         job.ParseOK,
			ParseErr:        job.ParseErr,
			RawLogsInserted: job.RawLogsInserted,
			EventsInserted:  job.EventsInserted,
			TimeMin:         job.TimeMin,
			TimeMax:         job.TimeMax,
			CreatedAt:       job.CreatedAt,
			StartedAt:       job.StartedAt,
			FinishedAt:      job.FinishedAt,
			ErrorMessage:    job.ErrorMessage,
		})
	}

	WriteJSONOK(w, out)
}

// PurgeRequest is the body of POST /api/firewalls/{key}/purge.
type PurgeRequest struct {
	Confirm bool `json:"confirm"`
}

// PurgeResponse is the body of a started purge.
type PurgeResponse struct {
	OK    bool   `json:"ok"`
	JobID string `json:"job_id"`
}

// Purge handles POST /api/firewalls/{key}/purge - start a background purge
// of everything recorded for a firewall.
func (h *FirewallHandler) Purge(w http.ResponseWriter, r *http.Request) {
	key := chi.URLParam(r, "key")

	var req PurgeRequest
	if !decodeJSONBody(w, r, &req) {
		return
	}
	if !req.Confirm {
		BadRequest(w, "confirm is required and must be true")
		return
	}

	jobID, err := h.purger.StartPurge(r.Context(), key)
	if err != nil {
		if errors.Is(err, models.ErrImportInProgress) {
			Conflict(w, "Import in progress; try again later.")
			return
		}
		InternalServerError(w, "Failed to start purge")
		return
	}

	WriteJSONOK(w, PurgeResponse{OK: true, JobID: jobID})
}
