package store

import (
	"errors"
	"math/rand"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgconn"

	"github.com/kvasirlab/connwatch/pkg/metrics"
)

const (
	lockRetryAttempts = 6
	lockRetryBase     = 20 * time.Millisecond
)

// isTransientLockError reports whether the error is a transient lock/busy
// condition worth retrying: SQLite "database is locked"/"busy" states and
// PostgreSQL deadlock_detected (40P01).
func isTransientLockError(err error) bool {
	if err == nil {
		return false
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "40P01"
	}

	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "database is locked") ||
		strings.Contains(msg, "database table is locked") ||
		strings.Contains(msg, "locked") ||
		strings.Contains(msg, "busy")
}

// runWithLockRetry runs op, retrying transient lock errors with exponential
// backoff plus jitter. Non-transient errors return immediately; the last
// transient error is returned once attempts are exhausted, so a persistently
// held lock surfaces instead of dropping the write.
func (s *GORMStore) runWithLockRetry(op func() error) error {
	var lastErr error
	for attempt := 0; attempt < lockRetryAttempts; attempt++ {
		err := op()
		if err == nil {
			return nil
		}
		if !isTransientLockError(err) {
			return err
		}
		lastErr = err
		metrics.RecordLockRetry(s.metrics)
		backoff := lockRetryBase * (1 << attempt)
		time.Sleep(backoff + time.Duration(rand.Int63n(int64(lockRetryBase))))
	}
	return lastErr
}
