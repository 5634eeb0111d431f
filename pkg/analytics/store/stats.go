package store

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/kvasirlab/connwatch/pkg/analytics/models"
)

// DatabaseStats is the storage-level snapshot behind GET /api/stats/db.
type DatabaseStats struct {
	DBType          string     `json:"db_type"`
	RawLogsCount    int64      `json:"raw_logs_count"`
	EventsCount     int64      `json:"events_count"`
	OldestEventTs   *time.Time `json:"oldest_event_ts"`
	NewestEventTs   *time.Time `json:"newest_event_ts"`
	OldestRawTs     *time.Time `json:"oldest_raw_received_at"`
	NewestRawTs     *time.Time `json:"newest_raw_received_at"`
	DBFileSizeBytes *int64     `json:"db_file_size_bytes"`
}

// DatabaseStats reports row counts, observed event/raw time bounds, and the
// database file size on the SQLite backend.
func (s *GORMStore) DatabaseStats(ctx context.Context) (*DatabaseStats, error) {
	stats := &DatabaseStats{DBType: string(s.config.Type)}

	if err := s.db.WithContext(ctx).Model(&models.Event{}).Count(&stats.EventsCount).Error; err != nil {
		return nil, fmt.Errorf("count events: %w", err)
	}
	if err := s.db.WithContext(ctx).Model(&models.RawLog{}).Count(&stats.RawLogsCount).Error; err != nil {
		return nil, fmt.Errorf("count raw logs: %w", err)
	}

	var eventBounds struct {
		Oldest *time.Time
		Newest *time.Time
	}
	err := s.db.WithContext(ctx).Model(&models.Event{}).
		Select("MIN(ts_utc) AS oldest, MAX(ts_utc) AS newest").
		Scan(&eventBounds).Error
	if err != nil {
		return nil, fmt.Errorf("event time bounds: %w", err)
	}
	stats.OldestEventTs = eventBounds.Oldest
	stats.NewestEventTs = eventBounds.Newest

	var rawBounds struct {
		Oldest *time.Time
		Newest *time.Time
	}
	err = s.db.WithContext(ctx).Model(&models.RawLog{}).
		Select("MIN(ts_utc) AS oldest, MAX(ts_utc) AS newest").
		Scan(&rawBounds).Error
	if err != nil {
		return nil, fmt.Errorf("raw log time bounds: %w", err)
	}
	stats.OldestRawTs = rawBounds.Oldest
	stats.NewestRawTs = rawBounds.Newest

	if s.isSQLite() {
		if info, err := os.Stat(s.config.SQLite.Path); err == nil {
			size := info.Size()
			stats.DBFileSizeBytes = &size
		}
	}
	return stats, nil
}

// EventStats summarizes the events recorded for a set of concrete devices.
type EventStats struct {
	OldestTs   *time.Time `json:"oldest_log"`
	NewestTs   *time.Time `json:"latest_log"`
	EventCount int64      `json:"event_count"`
}

// EventStatsForDevices reports the event count and observed time bounds for
// the given concrete device names (HA keys must be expanded first).
func (s *GORMStore) EventStatsForDevices(ctx context.Context, devices []string) (*EventStats, error) {
	stats := &EventStats{}
	if len(devices) == 0 {
		return stats, nil
	}
	var row struct {
		Oldest *time.Time
		Newest *time.Time
		Count  int64
	}
	err := s.db.WithContext(ctx).Model(&models.Event{}).
		Select("MIN(ts_utc) AS oldest, MAX(ts_utc) AS newest, COUNT(id) AS count").
		Where("device IN ?", devices).
		Scan(&row).Error
	if err != nil {
		return nil, fmt.Errorf("event stats for devices: %w", err)
	}
	stats.OldestTs = row.Oldest
	stats.NewestTs = row.Newest
	stats.EventCount = row.Count
	return stats, nil
}
