package commands

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/kvasirlab/connwatch/internal/logger"
	"github.com/kvasirlab/connwatch/pkg/analytics/store"
	"github.com/kvasirlab/connwatch/pkg/config"
)

var dedupFlowsCmd = &cobra.Command{
	Use:   "dedup-flows",
	Short: "Merge duplicate flow rows",
	Long: `Merge flow rows that share an identity tuple into one row.

Databases written before the flow identity index existed can carry duplicate
flow rows, which block schema migration. This command merges each duplicate
group into its newest row (counters summed, first/last seen widened) and then
creates the identity index. On an already-clean database it is a no-op.

Stop the server before running this command.

Examples:
  # Dedup with default config
  connwatch dedup-flows

  # Dedup with custom config
  connwatch dedup-flows --config /etc/connwatch/config.yaml`,
	RunE: runDedupFlows,
}

func runDedupFlows(cmd *cobra.Command, args []string) error {
	cfg, err := config.MustLoad(GetConfigFile())
	if err != nil {
		return err
	}

	// Initialize the structured logger
	if err := InitLogger(cfg); err != nil {
		return err
	}

	// Open without migration: the duplicate rows being fixed are exactly what
	// would make creating the identity index fail.
	dbCfg := cfg.Database
	dbCfg.SkipMigration = true
	st, err := store.New(&dbCfg)
	if err != nil {
		return fmt.Errorf("failed to open analytics store: %w", err)
	}
	defer func() { _ = st.Close() }()

	logger.Info("Deduplicating flow identities", "type", dbCfg.Type)

	result, err := st.DedupFlowIdentities(context.Background())
	if err != nil {
		return fmt.Errorf("flow deduplication failed: %w", err)
	}

	if result.DuplicateGroups == 0 {
		fmt.Println("No duplicate flow rows found.")
	} else {
		fmt.Printf("Merged %d duplicate groups (%d rows).\n", result.DuplicateGroups, result.RowsMerged)
	}
	fmt.Println("Flow identity index is in place; run 'connwatch migrate' or start the server.")
	return nil
}
