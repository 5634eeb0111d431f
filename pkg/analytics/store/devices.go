package store

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"gorm.io/gorm"

	"github.com/kvasirlab/connwatch/pkg/analytics/models"
	"github.com/kvasirlab/connwatch/pkg/netwall"
)

// enabledClusterKeysTx maps member device names to their canonical cluster
// key for every enabled HA cluster.
func enabledClusterKeysTx(tx *gorm.DB) (map[string]string, error) {
	var clusters []models.HaCluster
	if err := tx.Where("is_enabled = ?", true).Find(&clusters).Error; err != nil {
		return nil, fmt.Errorf("load enabled clusters: %w", err)
	}
	keys := make(map[string]string)
	for _, cluster := range clusters {
		key := netwall.HAKeyPrefix + cluster.Base
		for _, member := range cluster.GetMembers() {
			keys[member] = key
		}
	}
	return keys, nil
}

// ListEventDevices returns every distinct device name seen on events,
// trimmed, deduplicated, and sorted.
func (s *GORMStore) ListEventDevices(ctx context.Context) ([]string, error) {
	var raw []string
	err := s.db.WithContext(ctx).
		Model(&models.Event{}).
		Distinct().
		Where("device IS NOT NULL AND device != ''").
		Order("device").
		Pluck("device", &raw).Error
	if err != nil {
		return nil, fmt.Errorf("list event devices: %w", err)
	}
	seen := make(map[string]struct{}, len(raw))
	devices := make([]string, 0, len(raw))
	for _, device := range raw {
		device = strings.TrimSpace(device)
		if device == "" {
			continue
		}
		if _, ok := seen[device]; ok {
			continue
		}
		seen[device] = struct{}{}
		devices = append(devices, device)
	}
	sort.Strings(devices)
	return devices, nil
}

// CanonicalDeviceKey maps a raw device name to its grouping key: members of
// an enabled HA cluster collapse to "ha:"+base, everything else passes
// through trimmed.
func (s *GORMStore) CanonicalDeviceKey(ctx context.Context, device string) (string, error) {
	device = strings.TrimSpace(device)
	if device == "" {
		return "", nil
	}
	keys, err := enabledClusterKeysTx(s.db.WithContext(ctx))
	if err != nil {
		return "", err
	}
	if key, ok := keys[device]; ok {
		return key, nil
	}
	return device, nil
}

// ExpandDeviceKeys maps canonical keys to the concrete device names found on
// event and raw-log rows. Cluster keys expand to their member names, falling
// back to the conventional _Master/_Slave pair when no cluster row exists;
// the syslog path writes "ha:" inventory keys without one.
func (s *GORMStore) ExpandDeviceKeys(ctx context.Context, keys []string) ([]string, error) {
	out := make([]string, 0, len(keys))
	for _, key := range keys {
		if !netwall.IsHAKey(key) {
			out = append(out, key)
			continue
		}
		base := netwall.HABase(key)
		cluster, err := s.getHaClusterByBase(ctx, base)
		if err != nil {
			if errors.Is(err, models.ErrClusterNotFound) {
				out = append(out, netwall.DefaultMembers(base)...)
				continue
			}
			return nil, err
		}
		if members := cluster.GetMembers(); len(members) > 0 {
			out = append(out, members...)
		} else {
			out = append(out, netwall.DefaultMembers(base)...)
		}
	}
	return out, nil
}

// ResolveDeviceMembers returns the concrete device names covered by a key:
// cluster members for "ha:" keys, falling back to the conventional
// _Master/_Slave names when no cluster row exists, and the key itself for
// standalone devices.
func (s *GORMStore) ResolveDeviceMembers(ctx context.Context, key string) ([]string, error) {
	key = strings.TrimSpace(key)
	if !netwall.IsHAKey(key) {
		return []string{key}, nil
	}
	base := netwall.HABase(key)
	cluster, err := s.getHaClusterByBase(ctx, base)
	if err != nil {
		if errors.Is(err, models.ErrClusterNotFound) {
			return netwall.DefaultMembers(base), nil
		}
		return nil, err
	}
	if members := cluster.GetMembers(); len(members) > 0 {
		return members, nil
	}
	return netwall.DefaultMembers(base), nil
}

// DeviceDisplayLabel resolves the display name for a canonical key: operator
// override first (including a legacy override stored under the bare base for
// cluster keys), then the cluster label, then the default cluster label, then
// the key itself.
func (s *GORMStore) DeviceDisplayLabel(ctx context.Context, key string) (string, error) {
	override, err := s.GetFirewallOverride(ctx, key)
	if err == nil {
		return override.DisplayName, nil
	}
	if !errors.Is(err, models.ErrFirewallNotFound) {
		return "", err
	}
	if !netwall.IsHAKey(key) {
		return key, nil
	}
	base := netwall.HABase(key)
	override, err = s.GetFirewallOverride(ctx, base)
	if err == nil {
		return override.DisplayName, nil
	}
	if !errors.Is(err, models.ErrFirewallNotFound) {
		return "", err
	}
	cluster, err := s.getHaClusterByBase(ctx, base)
	if err == nil && strings.TrimSpace(cluster.Label) != "" {
		return cluster.Label, nil
	}
	if err != nil && !errors.Is(err, models.ErrClusterNotFound) {
		return "", err
	}
	return netwall.DefaultClusterLabel(base), nil
}

func (s *GORMStore) getHaClusterByBase(ctx context.Context, base string) (*models.HaCluster, error) {
	return getByField[models.HaCluster](s.db, ctx, "base", base, models.ErrClusterNotFound)
}

// GetHaCluster retrieves the HA cluster for a base name.
// Returns models.ErrClusterNotFound when none exists.
func (s *GORMStore) GetHaCluster(ctx context.Context, base string) (*models.HaCluster, error) {
	return s.getHaClusterByBase(ctx, strings.TrimSpace(base))
}

// ListHaClusters returns all HA cluster records.
func (s *GORMStore) ListHaClusters(ctx context.Context) ([]*models.HaCluster, error) {
	return listAll[models.HaCluster](s.db, ctx)
}

// ListEnabledHaClusters returns the clusters whose aggregation is enabled.
func (s *GORMStore) ListEnabledHaClusters(ctx context.Context) ([]*models.HaCluster, error) {
	var clusters []*models.HaCluster
	if err := s.db.WithContext(ctx).Where("is_enabled = ?", true).Find(&clusters).Error; err != nil {
		return nil, fmt.Errorf("list enabled clusters: %w", err)
	}
	return clusters, nil
}

// EnableHaCluster toggles aggregation for a cluster base. Enabling creates
// the cluster record on first use with the conventional member names and the
// default label; disabling a base that was never configured is a no-op and
// returns a nil cluster.
func (s *GORMStore) EnableHaCluster(ctx context.Context, base string, enabled bool) (*models.HaCluster, error) {
	base = strings.TrimSpace(base)
	cluster, err := s.getHaClusterByBase(ctx, base)
	if errors.Is(err, models.ErrClusterNotFound) {
		if !enabled {
			return nil, nil
		}
		cluster = &models.HaCluster{
			Base:      base,
			Label:     netwall.DefaultClusterLabel(base),
			IsEnabled: true,
		}
		cluster.SetMembers(netwall.DefaultMembers(base))
		if err := s.db.WithContext(ctx).Create(cluster).Error; err != nil {
			if isUniqueConstraintError(err) {
				return nil, models.ErrDuplicateCluster
			}
			return nil, fmt.Errorf("create ha cluster: %w", err)
		}
		return cluster, nil
	}
	if err != nil {
		return nil, err
	}
	if err := s.db.WithContext(ctx).Model(&models.HaCluster{}).Where("id = ?", cluster.ID).
		Update("is_enabled", enabled).Error; err != nil {
		return nil, fmt.Errorf("update ha cluster: %w", err)
	}
	cluster.IsEnabled = enabled
	return cluster, nil
}

// RenameHaCluster sets the display label for an existing cluster. An empty
// label keeps the current one.
func (s *GORMStore) RenameHaCluster(ctx context.Context, base, label string) (*models.HaCluster, error) {
	cluster, err := s.getHaClusterByBase(ctx, strings.TrimSpace(base))
	if err != nil {
		return nil, err
	}
	label = strings.TrimSpace(label)
	if label == "" {
		return cluster, nil
	}
	if err := s.db.WithContext(ctx).Model(&models.HaCluster{}).Where("id = ?", cluster.ID).
		Update("label", label).Error; err != nil {
		return nil, fmt.Errorf("rename ha cluster: %w", err)
	}
	cluster.Label = label
	return cluster, nil
}
