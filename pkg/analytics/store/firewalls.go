package store

import (
	"context"
	"fmt"
	"strings"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/kvasirlab/connwatch/pkg/analytics/models"
)

// upsertFirewallSyslogTx marks device_key as receiving live syslog and widens
// its seen range to cover [tsMin, tsMax]. source_import is left alone.
func (s *GORMStore) upsertFirewallSyslogTx(tx *gorm.DB, deviceKey string, tsMin, tsMax time.Time) error {
	now := time.Now().UTC()
	row := &models.FirewallInventory{
		DeviceKey:    deviceKey,
		SourceSyslog: 1,
		FirstSeenTs:  &tsMin,
		LastSeenTs:   &tsMax,
	}
	err := tx.Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "device_key"}},
		DoUpdates: clause.Assignments(map[string]interface{}{
			"source_syslog": 1,
			"first_seen_ts": s.minSeenExpr("firewalls", "first_seen_ts"),
			"last_seen_ts":  s.maxSeenExpr("firewalls", "last_seen_ts"),
			"updated_at":    now,
		}),
	}).Create(row).Error
	if err != nil {
		return fmt.Errorf("upsert firewall syslog source: %w", err)
	}
	return nil
}

// touchFirewallImportTx marks device_key as import-sourced while a batch is
// being persisted. The seen range is only seeded on first sight; job
// completion widens it once the parsed time range is known.
func touchFirewallImportTx(tx *gorm.DB, deviceKey string, now time.Time) error {
	row := &models.FirewallInventory{
		DeviceKey:    deviceKey,
		SourceImport: 1,
		FirstSeenTs:  &now,
		LastSeenTs:   &now,
		LastImportTs: &now,
	}
	err := tx.Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "device_key"}},
		DoUpdates: clause.Assignments(map[string]interface{}{
			"source_import":  1,
			"last_import_ts": now,
			"updated_at":     now,
		}),
	}).Create(row).Error
	if err != nil {
		return fmt.Errorf("touch firewall import source: %w", err)
	}
	return nil
}

// UpsertFirewallImport records a completed import for deviceKey, widening the
// seen range when the job detected one. Nil bounds leave the stored range
// untouched.
func (s *GORMStore) UpsertFirewallImport(ctx context.Context, deviceKey string, firstTs, lastTs *time.Time) error {
	now := time.Now().UTC()
	row := &models.FirewallInventory{
		DeviceKey:    deviceKey,
		SourceImport: 1,
		FirstSeenTs:  firstTs,
		LastSeenTs:   lastTs,
		LastImportTs: &now,
	}
	assignments := map[string]interface{}{
		"source_import":  1,
		"last_import_ts": now,
		"updated_at":     now,
	}
	if firstTs != nil {
		assignments["first_seen_ts"] = s.minSeenExpr("firewalls", "first_seen_ts")
	}
	if lastTs != nil {
		assignments["last_seen_ts"] = s.maxSeenExpr("firewalls", "last_seen_ts")
	}
	err := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "device_key"}},
		DoUpdates: clause.Assignments(assignments),
	}).Create(row).Error
	if err != nil {
		return fmt.Errorf("upsert firewall import source: %w", err)
	}
	return nil
}

// ListFirewallInventory returns every known firewall's source and seen-range
// record, ordered by device key.
func (s *GORMStore) ListFirewallInventory(ctx context.Context) ([]*models.FirewallInventory, error) {
	var rows []*models.FirewallInventory
	if err := s.db.WithContext(ctx).Order("device_key").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("list firewall inventory: %w", err)
	}
	return rows, nil
}

// SyslogOnlyFirewallKeys lists device keys whose rows came from live syslog
// alone. Retention never touches imported snapshots.
func (s *GORMStore) SyslogOnlyFirewallKeys(ctx context.Context) ([]string, error) {
	var keys []string
	err := s.db.WithContext(ctx).
		Model(&models.FirewallInventory{}).
		Where("source_syslog = 1 AND source_import = 0").
		Order("device_key").
		Pluck("device_key", &keys).Error
	if err != nil {
		return nil, fmt.Errorf("list syslog-only firewalls: %w", err)
	}
	return keys, nil
}

// GetFirewallOverride retrieves the operator display override for a device
// key. Returns models.ErrFirewallNotFound when none is set.
func (s *GORMStore) GetFirewallOverride(ctx context.Context, deviceKey string) (*models.FirewallOverride, error) {
	return getByField[models.FirewallOverride](s.db, ctx, "device_key", deviceKey, models.ErrFirewallNotFound)
}

// ListFirewallOverrides returns all operator display overrides.
func (s *GORMStore) ListFirewallOverrides(ctx context.Context) ([]*models.FirewallOverride, error) {
	return listAll[models.FirewallOverride](s.db, ctx)
}

// SetFirewallOverride creates or replaces the display override for a device
// key. The display name must survive trimming; the comment may be empty.
func (s *GORMStore) SetFirewallOverride(ctx context.Context, deviceKey, displayName, comment string) (*models.FirewallOverride, error) {
	displayName = strings.TrimSpace(displayName)
	if displayName == "" {
		return nil, models.ErrDisplayNameRequired
	}
	override := &models.FirewallOverride{
		DeviceKey:   deviceKey,
		DisplayName: displayName,
		Comment:     comment,
	}
	if err := s.db.WithContext(ctx).Save(override).Error; err != nil {
		return nil, fmt.Errorf("save firewall override: %w", err)
	}
	return override, nil
}
