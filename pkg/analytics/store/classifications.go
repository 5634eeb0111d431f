package store

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"gorm.io/gorm/clause"

	"github.com/kvasirlab/connwatch/pkg/analytics/models"
)

// ListClassifications returns rules ordered for display. An empty device
// returns every rule, which is how the classifier loads its snapshot.
func (s *GORMStore) ListClassifications(ctx context.Context, device string) ([]*models.Classification, error) {
	query := s.db.WithContext(ctx).Order("device, kind, name")
	if device != "" {
		query = query.Where("device = ?", device)
	}
	var rules []*models.Classification
	if err := query.Find(&rules).Error; err != nil {
		return nil, fmt.Errorf("list classifications: %w", err)
	}
	return rules, nil
}

// UpsertClassification creates or replaces the rule for (device, kind, name),
// updating side and priority in place. The stored row is returned.
func (s *GORMStore) UpsertClassification(ctx context.Context, rule *models.Classification) (*models.Classification, error) {
	err := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "device"}, {Name: "kind"}, {Name: "name"}},
		DoUpdates: clause.AssignmentColumns([]string{"side", "priority"}),
	}).Create(rule).Error
	if err != nil {
		return nil, fmt.Errorf("upsert classification: %w", err)
	}
	var saved models.Classification
	err = s.db.WithContext(ctx).
		Where("device = ? AND kind = ? AND name = ?", rule.Device, rule.Kind, rule.Name).
		First(&saved).Error
	if err != nil {
		return nil, fmt.Errorf("load classification: %w", err)
	}
	return &saved, nil
}

// DeleteClassification removes the rule for (device, kind, name). Returns
// models.ErrClassificationNotFound when no such rule exists.
func (s *GORMStore) DeleteClassification(ctx context.Context, device, kind, name string) error {
	res := s.db.WithContext(ctx).
		Where("device = ? AND kind = ? AND name = ?", device, kind, name).
		Delete(&models.Classification{})
	if res.Error != nil {
		return fmt.Errorf("delete classification: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return models.ErrClassificationNotFound
	}
	return nil
}

// ListUnclassified returns the miss counters, most-hit first. An empty device
// returns counters for every device.
func (s *GORMStore) ListUnclassified(ctx context.Context, device string) ([]*models.UnclassifiedEndpoint, error) {
	query := s.db.WithContext(ctx).Order("count DESC, name")
	if device != "" {
		query = query.Where("device = ?", device)
	}
	var rows []*models.UnclassifiedEndpoint
	if err := query.Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("list unclassified names: %w", err)
	}
	return rows, nil
}

// ListEventNames returns the distinct zone or interface names observed on
// events for the given concrete device names. Values arrive from syslog
// quoted or truncated, so surrounding quotes are stripped and a leading
// quote without its closing mate marks a corrupted value to drop.
func (s *GORMStore) ListEventNames(ctx context.Context, devices []string, kind models.ClassificationKind) ([]string, error) {
	if len(devices) == 0 {
		return []string{}, nil
	}
	recvColumn, destColumn := "recv_zone", "dest_zone"
	if kind == models.KindInterface {
		recvColumn, destColumn = "recv_if", "dest_if"
	}
	seen := make(map[string]struct{})
	for _, column := range []string{recvColumn, destColumn} {
		var values []string
		err := s.db.WithContext(ctx).
			Model(&models.Event{}).
			Distinct().
			Where("device IN ?", devices).
			Where(column + " IS NOT NULL AND " + column + " != ''").
			Pluck(column, &values).Error
		if err != nil {
			return nil, fmt.Errorf("list %s names: %w", kind, err)
		}
		for _, value := range values {
			if name, ok := normalizeEventName(value); ok {
				seen[name] = struct{}{}
			}
		}
	}
	names := make([]string, 0, len(seen))
	for name := range seen {
		names = append(names, name)
	}
	sort.Strings(names)
	return names, nil
}

// normalizeEventName cleans one zone/interface value: trims whitespace,
// rejects a leading quote missing its trailing mate, and strips surrounding
// quotes. Returns false for values that normalize to nothing.
func normalizeEventName(value string) (string, bool) {
	name := strings.TrimSpace(value)
	if name == "" {
		return "", false
	}
	if strings.HasPrefix(name, `"`) && !strings.HasSuffix(name, `"`) {
		return "", false
	}
	name = strings.TrimSpace(strings.Trim(name, `"`))
	if name == "" {
		return "", false
	}
	return name, true
}
