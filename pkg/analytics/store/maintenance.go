package store

import (
	"context"
	"fmt"
	"strings"
	"time"

	"gorm.io/gorm"

	"github.com/kvasirlab/connwatch/pkg/analytics/models"
	"github.com/kvasirlab/connwatch/pkg/netwall"
)

// CreateMaintenanceJob persists a new maintenance job record, generating its
// id when absent.
func (s *GORMStore) CreateMaintenanceJob(ctx context.Context, job *models.MaintenanceJob) (string, error) {
	return createWithID(s.db, ctx, job, func(j *models.MaintenanceJob, id string) { j.ID = id }, job.ID, models.ErrJobConflict)
}

// GetMaintenanceJob retrieves a maintenance job by id. Returns
// models.ErrJobNotFound when it does not exist.
func (s *GORMStore) GetMaintenanceJob(ctx context.Context, id string) (*models.MaintenanceJob, error) {
	return getByField[models.MaintenanceJob](s.db, ctx, "id", id, models.ErrJobNotFound)
}

// StartMaintenanceJob moves a queued maintenance job to running. Returns
// models.ErrJobConflict when it already started or finished.
func (s *GORMStore) StartMaintenanceJob(ctx context.Context, id string) error {
	now := time.Now().UTC()
	res := s.db.WithContext(ctx).Model(&models.MaintenanceJob{}).
		Where("id = ? AND status = ?", id, string(models.MaintQueued)).
		Updates(map[string]interface{}{
			"status":     string(models.MaintRunning),
			"started_at": now,
		})
	if res.Error != nil {
		return fmt.Errorf("start maintenance job: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return models.ErrJobConflict
	}
	return nil
}

// CompleteMaintenanceJob records success with the per-table row counts.
func (s *GORMStore) CompleteMaintenanceJob(ctx context.Context, id string, counts map[string]int64) error {
	var scratch models.MaintenanceJob
	scratch.SetResultCounts(counts)
	now := time.Now().UTC()
	res := s.db.WithContext(ctx).Model(&models.MaintenanceJob{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"status":        string(models.MaintDone),
			"result_counts": scratch.ResultCounts,
			"finished_at":   now,
		})
	if res.Error != nil {
		return fmt.Errorf("complete maintenance job: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return models.ErrJobNotFound
	}
	return nil
}

// FailMaintenanceJob records a failure, keeping whatever counts the job got
// through before it stopped.
func (s *GORMStore) FailMaintenanceJob(ctx context.Context, id, message string, counts map[string]int64) error {
	var scratch models.MaintenanceJob
	scratch.SetResultCounts(counts)
	now := time.Now().UTC()
	res := s.db.WithContext(ctx).Model(&models.MaintenanceJob{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"status":        string(models.MaintError),
			"error_message": models.ClampErrorMessage(message),
			"result_counts": scratch.ResultCounts,
			"finished_at":   now,
		})
	if res.Error != nil {
		return fmt.Errorf("fail maintenance job: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return models.ErrJobNotFound
	}
	return nil
}

// PurgeFirewallData deletes every row tied to a firewall. members are the
// concrete device names the key expands to; the canonical key itself is also
// matched, since live-path flows and endpoints are keyed by it. Each table
// commits separately so a failure keeps the finished counts; the partial map
// is returned alongside the error.
func (s *GORMStore) PurgeFirewallData(ctx context.Context, deviceKey string, members []string) (map[string]int64, error) {
	counts := make(map[string]int64)

	targets := make([]string, 0, len(members)+1)
	seen := make(map[string]struct{}, len(members)+1)
	for _, name := range append(append([]string{}, members...), deviceKey) {
		name = strings.TrimSpace(name)
		if name == "" {
			continue
		}
		if _, ok := seen[name]; ok {
			continue
		}
		seen[name] = struct{}{}
		targets = append(targets, name)
	}
	if len(targets) == 0 {
		return counts, nil
	}

	// Overrides may sit under the bare base from before cluster keys existed.
	overrideKeys := []string{deviceKey}
	if netwall.IsHAKey(deviceKey) {
		overrideKeys = append(overrideKeys, netwall.HABase(deviceKey))
	}

	steps := []struct {
		key string
		del func(tx *gorm.DB) *gorm.DB
	}{
		{"flows_deleted", func(tx *gorm.DB) *gorm.DB {
			return tx.Where("device IN ?", targets).Delete(&models.Flow{})
		}},
		{"endpoints_deleted", func(tx *gorm.DB) *gorm.DB {
			return tx.Where("device IN ?", targets).Delete(&models.Endpoint{})
		}},
		{"events_deleted", func(tx *gorm.DB) *gorm.DB {
			return tx.Where("device IN ?", targets).Delete(&models.Event{})
		}},
		{"raw_logs_deleted", func(tx *gorm.DB) *gorm.DB {
			return tx.Where("device IN ?", targets).Delete(&models.RawLog{})
		}},
		{"unclassified_endpoints_deleted", func(tx *gorm.DB) *gorm.DB {
			return tx.Where("device IN ?", targets).Delete(&models.UnclassifiedEndpoint{})
		}},
		{"classifications_deleted", func(tx *gorm.DB) *gorm.DB {
			return tx.Where("device IN ?", targets).Delete(&models.Classification{})
		}},
		{"device_identifications_deleted", func(tx *gorm.DB) *gorm.DB {
			return tx.Where("firewall_device IN ?", targets).Delete(&models.DeviceIdentification{})
		}},
		{"device_overrides_deleted", func(tx *gorm.DB) *gorm.DB {
			return tx.Where("firewall_device IN ?", targets).Delete(&models.DeviceOverride{})
		}},
		{"router_macs_deleted", func(tx *gorm.DB) *gorm.DB {
			return tx.Where("device IN ?", targets).Delete(&models.RouterMac{})
		}},
		{"firewall_overrides_deleted", func(tx *gorm.DB) *gorm.DB {
			return tx.Where("device_key IN ?", overrideKeys).Delete(&models.FirewallOverride{})
		}},
		{"firewall_inventory_deleted", func(tx *gorm.DB) *gorm.DB {
			return tx.Where("device_key = ?", deviceKey).Delete(&models.FirewallInventory{})
		}},
	}

	for _, step := range steps {
		var affected int64
		err := s.runWithLockRetry(func() error {
			res := step.del(s.db.WithContext(ctx))
			if res.Error != nil {
				return res.Error
			}
			affected = res.RowsAffected
			return nil
		})
		if err != nil {
			return counts, fmt.Errorf("purge %s: %w", strings.TrimSuffix(step.key, "_deleted"), err)
		}
		counts[step.key] = affected
	}
	return counts, nil
}
