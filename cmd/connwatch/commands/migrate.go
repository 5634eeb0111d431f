package commands

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/kvasirlab/connwatch/internal/logger"
	"github.com/kvasirlab/connwatch/pkg/analytics/store"
	"github.com/kvasirlab/connwatch/pkg/config"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Run database migrations",
	Long: `Run database migrations for the analytics database.

This command applies pending schema migrations to the configured analytics
database (SQLite or PostgreSQL). It is required after upgrading ConnWatch when
schema changes have been made.

If migration fails on the flows identity index, the database carries duplicate
flow rows from before the index existed; run 'connwatch dedup-flows' first.

Examples:
  # Run migrations with default config
  connwatch migrate

  # Run migrations with custom config
  connwatch migrate --config /etc/connwatch/config.yaml`,
	RunE: runMigrate,
}

func runMigrate(cmd *cobra.Command, args []string) error {
	cfg, err := config.MustLoad(GetConfigFile())
	if err != nil {
		return err
	}

	// Initialize the structured logger
	if err := InitLogger(cfg); err != nil {
		return err
	}

	logger.Info("Running database migrations", "type", cfg.Database.Type)

	// Opening the store triggers auto-migration
	st, err := store.New(&cfg.Database)
	if err != nil {
		return fmt.Errorf("migration failed: %w", err)
	}
	defer func() { _ = st.Close() }()

	// Verify the migration worked with a probe query
	if err := st.Healthcheck(context.Background()); err != nil {
		return fmt.Errorf("migration verification failed: %w", err)
	}

	logger.Info("Database migrations completed")
	fmt.Println("Migrations completed successfully.")
	return nil
}
