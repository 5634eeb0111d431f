package store

import (
	"context"
	"fmt"
	"time"

	"github.com/kvasirlab/connwatch/pkg/analytics/models"
)

// DeleteEventsBefore removes events older than cutoff for the given concrete
// device names, batchSize rows per DELETE so long-running cleanups never hold
// one giant transaction. Returns the number of rows removed.
func (s *GORMStore) DeleteEventsBefore(ctx context.Context, devices []string, cutoff time.Time, batchSize int) (int64, error) {
	return s.deleteOldRows(ctx, &models.Event{}, devices, cutoff, batchSize)
}

// DeleteRawLogsBefore removes raw log lines older than cutoff for the given
// concrete device names, in batches of batchSize rows.
func (s *GORMStore) DeleteRawLogsBefore(ctx context.Context, devices []string, cutoff time.Time, batchSize int) (int64, error) {
	return s.deleteOldRows(ctx, &models.RawLog{}, devices, cutoff, batchSize)
}

func (s *GORMStore) deleteOldRows(ctx context.Context, model any, devices []string, cutoff time.Time, batchSize int) (int64, error) {
	if len(devices) == 0 || batchSize <= 0 {
		return 0, nil
	}
	var deleted int64
	for {
		// Each batch commits on its own; the id subquery keeps the DELETE
		// bounded even when millions of rows are past the cutoff.
		sub := s.db.Model(model).
			Select("id").
			Where("device IN ?", devices).
			Where("ts_utc < ?", cutoff).
			Limit(batchSize)
		res := s.db.WithContext(ctx).Where("id IN (?)", sub).Delete(model)
		if res.Error != nil {
			return deleted, fmt.Errorf("delete old rows: %w", res.Error)
		}
		deleted += res.RowsAffected
		if res.RowsAffected < int64(batchSize) {
			return deleted, nil
		}
	}
}

// Vacuum reclaims file space after large deletes. Only the SQLite backend
// needs it; on PostgreSQL it reports false without touching the database.
func (s *GORMStore) Vacuum(ctx context.Context) (bool, error) {
	if !s.isSQLite() {
		return false, nil
	}
	if err := s.db.WithContext(ctx).Exec("VACUUM").Error; err != nil {
		return false, fmt.Errorf("vacuum: %w", err)
	}
	return true, nil
}
