//go:build integration

package store

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/kvasirlab/connwatch/pkg/analytics/models"
)

// createPostgresStore starts a disposable PostgreSQL container and opens the
// store against it. Docker must be available; set POSTGRES_HOST to use an
// external database instead of a container.
func createPostgresStore(t *testing.T) *GORMStore {
	t.Helper()
	ctx := context.Background()

	// PostgreSQL logs "ready to accept connections" twice during startup,
	// once during bootstrap and once when fully up.
	container, err := postgres.Run(ctx,
		"postgres:16-alpine",
		postgres.WithDatabase("connwatch_test"),
		postgres.WithUsername("connwatch_test"),
		postgres.WithPassword("connwatch_test"),
		testcontainers.WithWaitStrategyAndDeadline(5*time.Minute,
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2),
			wait.ForListeningPort("5432/tcp"),
		),
	)
	require.NoError(t, err, "failed to start postgres container")
	t.Cleanup(func() { _ = container.Terminate(context.Background()) })

	host, err := container.Host(ctx)
	require.NoError(t, err)
	port, err := container.MappedPort(ctx, "5432")
	require.NoError(t, err)

	st, err := New(&Config{
		Type: DatabaseTypePostgres,
		Postgres: PostgresConfig{
			Host:     host,
			Port:     port.Int(),
			Database: "connwatch_test",
			User:     "connwatch_test",
			Password: "connwatch_test",
			SSLMode:  "disable",
		},
	})
	require.NoError(t, err, "failed to open postgres store")
	t.Cleanup(func() { _ = st.Close() })
	return st
}

func TestPostgresStore(t *testing.T) {
	st := createPostgresStore(t)
	ctx := context.Background()

	t.Run("healthcheck", func(t *testing.T) {
		require.NoError(t, st.Healthcheck(ctx))
	})

	t.Run("write batch", func(t *testing.T) {
		require.NoError(t, st.WriteBatch(ctx, makeConnBatch()))
		require.EqualValues(t, 1, countRows(t, st, &models.Event{}))
		require.EqualValues(t, 2, countRows(t, st, &models.RawLog{}))
		require.EqualValues(t, 6, countRows(t, st, &models.Flow{}), "2 views x 3 bases")
	})

	t.Run("repeat batch hits the identity conflict", func(t *testing.T) {
		require.NoError(t, st.WriteBatch(ctx, makeConnBatch()))
		require.EqualValues(t, 2, countRows(t, st, &models.Event{}))
		require.EqualValues(t, 6, countRows(t, st, &models.Flow{}))

		var flow models.Flow
		require.NoError(t, st.DB().Where(
			"basis = ? AND view_kind = ?", string(models.BasisZone), string(models.ViewOriginal),
		).First(&flow).Error)
		require.EqualValues(t, 2, flow.CountOpen)
	})

	t.Run("database stats report postgres", func(t *testing.T) {
		stats, err := st.DatabaseStats(ctx)
		require.NoError(t, err)
		require.Equal(t, "postgres", stats.DBType)
		require.EqualValues(t, 2, stats.EventsCount)
		require.Nil(t, stats.DBFileSizeBytes)
	})
}
