package config

import (
	"fmt"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/kvasirlab/connwatch/pkg/config"
)

var showCmd = &cobra.Command{
	Use:   "show",
	Short: "Show the effective configuration",
	Long: `Show the effective ConnWatch configuration.

Prints the configuration after file loading, environment variable overrides,
and default application, in YAML form.

Examples:
  # Show default config
  connwatch config show

  # Show effective config for a specific file
  connwatch config show --config /etc/connwatch/config.yaml`,
	RunE: runConfigShow,
}

func runConfigShow(cmd *cobra.Command, args []string) error {
	configPath, _ := cmd.Flags().GetString("config")

	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	// Credentials stay out of terminal scrollback.
	if cfg.Database.Postgres.Password != "" {
		cfg.Database.Postgres.Password = "********"
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	_, _ = fmt.Fprint(cmd.OutOrStdout(), string(data))
	return nil
}
