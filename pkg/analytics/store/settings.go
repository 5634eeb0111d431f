package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/kvasirlab/connwatch/pkg/analytics/models"
)

// GetSetting returns the raw JSON value for key, or "" when no row exists.
func (s *GORMStore) GetSetting(ctx context.Context, key string) (string, error) {
	var setting models.AppSetting
	if err := s.db.WithContext(ctx).Where("key = ?", key).First(&setting).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return "", nil
		}
		return "", fmt.Errorf("get setting %q: %w", key, err)
	}
	return setting.ValueJSON, nil
}

// SetSetting upserts the raw JSON value for key.
func (s *GORMStore) SetSetting(ctx context.Context, key, valueJSON string) error {
	now := time.Now().UTC()
	setting := models.AppSetting{
		Key:       key,
		ValueJSON: valueJSON,
		UpdatedAt: &now,
	}
	if err := s.db.WithContext(ctx).Save(&setting).Error; err != nil {
		return fmt.Errorf("set setting %q: %w", key, err)
	}
	return nil
}

// ListSettings returns every stored setting row, without defaults applied.
func (s *GORMStore) ListSettings(ctx context.Context) ([]*models.AppSetting, error) {
	return listAll[models.AppSetting](s.db, ctx)
}

// AllSettings returns the effective settings map: built-in defaults overlaid
// with whatever rows are stored. Stored values replace a default wholesale,
// they are not merged field by field.
func (s *GORMStore) AllSettings(ctx context.Context) (map[string]json.RawMessage, error) {
	merged := map[string]json.RawMessage{}
	for key, value := range map[string]any{
		models.SettingLogRetention:  models.DefaultRetentionPolicy(),
		models.SettingLocalNetworks: models.DefaultLocalNetworks(),
	} {
		data, err := json.Marshal(value)
		if err != nil {
			return nil, fmt.Errorf("encode default setting %q: %w", key, err)
		}
		merged[key] = data
	}

	stored, err := s.ListSettings(ctx)
	if err != nil {
		return nil, err
	}
	for _, row := range stored {
		if row.ValueJSON == "" {
			continue
		}
		merged[row.Key] = json.RawMessage(row.ValueJSON)
	}
	return merged, nil
}

// GetRetentionPolicy returns the stored log_retention setting, or the default
// policy when none is stored.
func (s *GORMStore) GetRetentionPolicy(ctx context.Context) (*models.RetentionPolicy, error) {
	raw, err := s.GetSetting(ctx, models.SettingLogRetention)
	if err != nil {
		return nil, err
	}
	if raw == "" {
		return models.DefaultRetentionPolicy(), nil
	}
	var policy models.RetentionPolicy
	if err := json.Unmarshal([]byte(raw), &policy); err != nil {
		return nil, fmt.Errorf("decode log_retention setting: %w", err)
	}
	return &policy, nil
}

// SetRetentionPolicy stores the log_retention setting.
func (s *GORMStore) SetRetentionPolicy(ctx context.Context, policy *models.RetentionPolicy) error {
	data, err := json.Marshal(policy)
	if err != nil {
		return fmt.Errorf("encode log_retention setting: %w", err)
	}
	return s.SetSetting(ctx, models.SettingLogRetention, string(data))
}

// GetLocalNetworks returns the stored local_networks setting, or the default
// RFC 1918 ranges when none is stored.
func (s *GORMStore) GetLocalNetworks(ctx context.Context) (*models.LocalNetworks, error) {
	raw, err := s.GetSetting(ctx, models.SettingLocalNetworks)
	if err != nil {
		return nil, err
	}
	if raw == "" {
		return models.DefaultLocalNetworks(), nil
	}
	var networks models.LocalNetworks
	if err := json.Unmarshal([]byte(raw), &networks); err != nil {
		return nil, fmt.Errorf("decode local_networks setting: %w", err)
	}
	return &networks, nil
}

// SetLocalNetworks stores the local_networks setting.
func (s *GORMStore) SetLocalNetworks(ctx context.Context, networks *models.LocalNetworks) error {
	data, err := json.Marshal(networks)
	if err != nil {
		return fmt.Errorf("encode local_networks setting: %w", err)
	}
	return s.SetSetting(ctx, models.SettingLocalNetworks, string(data))
}

// GetCleanupSummary returns the last retention cleanup summary, or nil when
// no cleanup has run yet.
func (s *GORMStore) GetCleanupSummary(ctx context.Context) (*models.CleanupSummary, error) {
	raw, err := s.GetSetting(ctx, models.SettingLastCleanup)
	if err != nil {
		return nil, err
	}
	if raw == "" {
		return nil, nil
	}
	var summary models.CleanupSummary
	if err := json.Unmarshal([]byte(raw), &summary); err != nil {
		return nil, fmt.Errorf("decode maintenance_last_cleanup setting: %w", err)
	}
	return &summary, nil
}

// SetCleanupSummary stores the retention cleanup summary.
func (s *GORMStore) SetCleanupSummary(ctx context.Context, summary *models.CleanupSummary) error {
	data, err := json.Marshal(summary)
	if err != nil {
		return fmt.Errorf("encode maintenance_last_cleanup setting: %w", err)
	}
	return s.SetSetting(ctx, models.SettingLastCleanup, string(data))
}
