// Package store provides the analytics persistence layer.
//
// This package implements the Store interface for the firewall log data:
// raw log lines, parsed events, derived endpoints and flows, firewall
// inventory, HA clusters, classifications, ingest and maintenance jobs,
// and application settings.
//
// Two backends are supported:
//   - SQLite (single-node, default)
//   - PostgreSQL (multi-writer)
package store

import (
	"context"
	"encoding/json"
	"time"

	"github.com/kvasirlab/connwatch/pkg/analytics/models"
)

// Store provides the analytics persistence interface.
//
// Thread Safety: Implementations must be safe for concurrent use from multiple
// goroutines. On SQLite all batch writes are serialized internally; on
// PostgreSQL concurrent writers rely on ON CONFLICT resolution.
type Store interface {
	// ============================================
	// BATCH WRITE
	// ============================================

	// WriteBatch persists one ingest batch in a single transaction:
	// raw logs, events, firewall inventory touches, endpoint and flow
	// upserts, device identifications, unclassified counters, and the
	// optional job progress update. Transient lock errors are retried
	// internally. A nil or empty batch is a no-op.
	WriteBatch(ctx context.Context, batch *Batch) error

	// ============================================
	// INGEST JOB OPERATIONS
	// ============================================

	// CreateIngestJob creates a new upload/import job row.
	// The job ID will be generated if empty. Returns the ID.
	CreateIngestJob(ctx context.Context, job *models.IngestJob) (string, error)

	// GetIngestJob returns a job by ID.
	// Returns models.ErrJobNotFound if the job doesn't exist.
	GetIngestJob(ctx context.Context, id string) (*models.IngestJob, error)

	// ListIngestJobs returns jobs newest-first, up to limit (0 = no limit).
	ListIngestJobs(ctx context.Context, limit int) ([]*models.IngestJob, error)

	// ListIngestJobsForDevice returns jobs for one device key, newest-first.
	ListIngestJobsForDevice(ctx context.Context, deviceKey string, limit int) ([]*models.IngestJob, error)

	// ListActiveIngestJobs returns uploading/queued/running jobs oldest-first.
	ListActiveIngestJobs(ctx context.Context) ([]*models.IngestJob, error)

	// HasActiveIngestJobs reports whether any job is uploading, queued or
	// running. Retention cleanup and purges are refused while true.
	HasActiveIngestJobs(ctx context.Context) (bool, error)

	// UpdateIngestJobUploadProgress records received bytes while a file
	// streams in.
	UpdateIngestJobUploadProgress(ctx context.Context, id string, bytesReceived int64) error

	// QueueIngestJob moves a job from uploading to queued and freezes
	// bytes_total. Returns models.ErrJobConflict when the job is no longer
	// uploading (e.g. it was canceled while the file streamed in).
	QueueIngestJob(ctx context.Context, id string) error

	// ClaimNextIngestJob atomically claims the oldest queued job for
	// processing, moving it to running. Returns (nil, nil) when no job is
	// available or another worker claimed it first.
	ClaimNextIngestJob(ctx context.Context) (*models.IngestJob, error)

	// SetIngestJobPhase updates the running job's phase label.
	SetIngestJobPhase(ctx context.Context, id, phase string) error

	// CompleteIngestJob marks a job done with its final counters.
	CompleteIngestJob(ctx context.Context, id string, completion JobCompletion) error

	// FailIngestJob marks a job failed. The message is truncated to the
	// stored limit.
	FailIngestJob(ctx context.Context, id, message, errorType, errorStage string) error

	// FinalizeCanceledIngestJob marks a cancel-requested job canceled,
	// keeping whatever counters were written so far.
	FinalizeCanceledIngestJob(ctx context.Context, id string) error

	// RequestIngestJobCancel cancels a job: uploading/queued jobs are
	// canceled immediately, running jobs get cancel_requested set for the
	// worker to honor. Returns models.ErrJobNotCancelable for terminal jobs
	// and the refreshed job row otherwise.
	RequestIngestJobCancel(ctx context.Context, id string) (*models.IngestJob, error)

	// DeleteIngestJob removes a terminal job row.
	// Returns models.ErrJobConflict while the job is still active.
	DeleteIngestJob(ctx context.Context, id string) error

	// RecoverInterruptedIngestJobs marks jobs left uploading/queued/running by a
	// previous process as failed. Called once at startup; returns the number
	// of jobs recovered.
	RecoverInterruptedIngestJobs(ctx context.Context) (int64, error)

	// FailStalledIngestJobs fails running jobs whose updated_at is older
	// than olderThan, catching workers that died mid-job.
	FailStalledIngestJobs(ctx context.Context, olderThan time.Duration) (int64, error)

	// ============================================
	// MAINTENANCE JOB OPERATIONS
	// ============================================

	// CreateMaintenanceJob creates a maintenance job row (purge etc.).
	// The job ID will be generated if empty. Returns the ID.
	CreateMaintenanceJob(ctx context.Context, job *models.MaintenanceJob) (string, error)

	// GetMaintenanceJob returns a maintenance job by ID.
	// Returns models.ErrJobNotFound if the job doesn't exist.
	GetMaintenanceJob(ctx context.Context, id string) (*models.MaintenanceJob, error)

	// StartMaintenanceJob moves a queued maintenance job to running.
	// Returns models.ErrJobConflict when the job is not queued.
	StartMaintenanceJob(ctx context.Context, id string) error

	// CompleteMaintenanceJob marks the job done with per-step counts.
	CompleteMaintenanceJob(ctx context.Context, id string, counts map[string]int64) error

	// FailMaintenanceJob marks the job failed, keeping partial counts.
	FailMaintenanceJob(ctx context.Context, id, message string, counts map[string]int64) error

	// PurgeFirewallData deletes every trace of a firewall in a fixed step
	// order, each step its own transaction. Returns per-step row counts;
	// on error the counts cover the steps that completed.
	PurgeFirewallData(ctx context.Context, deviceKey string, members []string) (map[string]int64, error)

	// ============================================
	// FIREWALL INVENTORY & OVERRIDES
	// ============================================

	// UpsertFirewallImport marks a firewall as import-sourced and widens its
	// first/last seen bounds. Nil bounds leave the stored values untouched.
	UpsertFirewallImport(ctx context.Context, deviceKey string, firstTs, lastTs *time.Time) error

	// ListFirewallInventory returns all inventory rows ordered by key.
	ListFirewallInventory(ctx context.Context) ([]*models.FirewallInventory, error)

	// SyslogOnlyFirewallKeys returns keys seen via syslog but never
	// imported. Retention cleanup only touches these.
	SyslogOnlyFirewallKeys(ctx context.Context) ([]string, error)

	// GetFirewallOverride returns the display override for a key.
	// Returns models.ErrFirewallNotFound if none exists.
	GetFirewallOverride(ctx context.Context, deviceKey string) (*models.FirewallOverride, error)

	// ListFirewallOverrides returns all display overrides.
	ListFirewallOverrides(ctx context.Context) ([]*models.FirewallOverride, error)

	// SetFirewallOverride upserts the display override for a key.
	// Returns models.ErrDisplayNameRequired when displayName trims empty.
	SetFirewallOverride(ctx context.Context, deviceKey, displayName, comment string) (*models.FirewallOverride, error)

	// ============================================
	// DEVICE & HA CLUSTER OPERATIONS
	// ============================================

	// ListEventDevices returns the distinct device names present in events.
	ListEventDevices(ctx context.Context) ([]string, error)

	// CanonicalDeviceKey maps a raw device name to its storage key:
	// members of enabled HA clusters collapse to "ha:<base>", everything
	// else passes through trimmed.
	CanonicalDeviceKey(ctx context.Context, device string) (string, error)

	// ExpandDeviceKeys expands ha: keys to their member device names,
	// keeping plain keys as-is.
	ExpandDeviceKeys(ctx context.Context, keys []string) ([]string, error)

	// ResolveDeviceMembers returns the concrete device names behind a key:
	// cluster members for ha: keys (default pair when the cluster row is
	// missing), the key itself otherwise.
	ResolveDeviceMembers(ctx context.Context, key string) ([]string, error)

	// DeviceDisplayLabel returns the label to show for a key: firewall
	// override first, then cluster label, then the key itself.
	DeviceDisplayLabel(ctx context.Context, key string) (string, error)

	// GetHaCluster returns a cluster by base name.
	// Returns models.ErrClusterNotFound if it doesn't exist.
	GetHaCluster(ctx context.Context, base string) (*models.HaCluster, error)

	// ListHaClusters returns all cluster rows.
	ListHaClusters(ctx context.Context) ([]*models.HaCluster, error)

	// ListEnabledHaClusters returns only enabled cluster rows.
	ListEnabledHaClusters(ctx context.Context) ([]*models.HaCluster, error)

	// EnableHaCluster enables or disables grouping for a base, creating the
	// cluster row with default members on first enable. Disabling a
	// nonexistent cluster returns (nil, nil).
	EnableHaCluster(ctx context.Context, base string, enabled bool) (*models.HaCluster, error)

	// RenameHaCluster sets a cluster's display label.
	// Returns models.ErrClusterNotFound if the cluster doesn't exist.
	RenameHaCluster(ctx context.Context, base, label string) (*models.HaCluster, error)

	// ============================================
	// CLASSIFICATION OPERATIONS
	// ============================================

	// ListClassifications returns rules, optionally filtered to one device.
	ListClassifications(ctx context.Context, device string) ([]*models.Classification, error)

	// UpsertClassification creates or replaces the rule for
	// (device, kind, name).
	UpsertClassification(ctx context.Context, rule *models.Classification) (*models.Classification, error)

	// DeleteClassification removes one rule.
	// Returns models.ErrClassificationNotFound if it doesn't exist.
	DeleteClassification(ctx context.Context, device, kind, name string) error

	// ListUnclassified returns direction-lookup miss counters, most-hit
	// first, optionally filtered to one device.
	ListUnclassified(ctx context.Context, device string) ([]*models.UnclassifiedEndpoint, error)

	// ListEventNames returns the normalized distinct zone or interface
	// names observed in events for the given concrete devices.
	ListEventNames(ctx context.Context, devices []string, kind models.ClassificationKind) ([]string, error)

	// ============================================
	// SETTINGS OPERATIONS
	// ============================================

	// GetSetting returns the raw JSON value for key, "" when absent.
	GetSetting(ctx context.Context, key string) (string, error)

	// SetSetting creates or updates a setting with a raw JSON value.
	SetSetting(ctx context.Context, key, valueJSON string) error

	// ListSettings returns all stored setting rows.
	ListSettings(ctx context.Context) ([]*models.AppSetting, error)

	// AllSettings returns defaults overlaid with stored values.
	AllSettings(ctx context.Context) (map[string]json.RawMessage, error)

	// GetRetentionPolicy returns the log retention policy (default when
	// unset); SetRetentionPolicy stores it.
	GetRetentionPolicy(ctx context.Context) (*models.RetentionPolicy, error)
	SetRetentionPolicy(ctx context.Context, policy *models.RetentionPolicy) error

	// GetLocalNetworks returns the local network ranges (default when
	// unset); SetLocalNetworks stores them.
	GetLocalNetworks(ctx context.Context) (*models.LocalNetworks, error)
	SetLocalNetworks(ctx context.Context, networks *models.LocalNetworks) error

	// GetCleanupSummary returns the last retention cleanup summary, nil when
	// none has run; SetCleanupSummary stores it.
	GetCleanupSummary(ctx context.Context) (*models.CleanupSummary, error)
	SetCleanupSummary(ctx context.Context, summary *models.CleanupSummary) error

	// ============================================
	// STATS & RETENTION
	// ============================================

	// DatabaseStats reports row counts, event/raw time bounds, and on
	// SQLite the database file size.
	DatabaseStats(ctx context.Context) (*DatabaseStats, error)

	// EventStatsForDevices reports event count and time bounds limited to
	// the given concrete device names.
	EventStatsForDevices(ctx context.Context, devices []string) (*EventStats, error)

	// DeleteEventsBefore / DeleteRawLogsBefore remove rows older than
	// cutoff for the given devices in bounded batches, returning the
	// number of rows removed.
	DeleteEventsBefore(ctx context.Context, devices []string, cutoff time.Time, batchSize int) (int64, error)
	DeleteRawLogsBefore(ctx context.Context, devices []string, cutoff time.Time, batchSize int) (int64, error)

	// Vacuum reclaims file space on SQLite, reporting whether it ran.
	Vacuum(ctx context.Context) (bool, error)

	// ============================================
	// FLOW MAINTENANCE
	// ============================================

	// DedupFlowIdentities merges duplicate flow identity rows and ensures
	// the identity unique index exists.
	DedupFlowIdentities(ctx context.Context) (*FlowDedupResult, error)

	// ============================================
	// HEALTH & LIFECYCLE
	// ============================================

	// Healthcheck verifies the store is operational.
	Healthcheck(ctx context.Context) error

	// Close closes the store and releases resources.
	Close() error
}
