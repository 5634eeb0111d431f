package config

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/kvasirlab/connwatch/pkg/config"
)

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate configuration file",
	Long: `Validate the ConnWatch configuration file.

Checks for syntax errors, missing required fields, and invalid values.

Examples:
  # Validate default config
  connwatch config validate

  # Validate specific config file
  connwatch config validate --config /etc/connwatch/config.yaml`,
	RunE: runConfigValidate,
}

func runConfigValidate(cmd *cobra.Command, args []string) error {
	// Get config path from the root's persistent flag
	configPath, _ := cmd.Flags().GetString("config")

	// Load and validate configuration
	cfg, err := config.MustLoad(configPath)
	if err != nil {
		return err
	}

	// Determine path for display
	displayPath := configPath
	if displayPath == "" {
		displayPath = config.GetDefaultConfigPath()
	}

	// Additional validation checks
	var warnings []string

	if !cfg.Syslog.IsEnabled() && !cfg.API.IsEnabled() {
		warnings = append(warnings, "Syslog listener and API are both disabled - the server will ingest nothing")
	}
	if cfg.Database.Type == "postgres" && cfg.Database.Postgres.Password == "" {
		warnings = append(warnings, "PostgreSQL password not configured - set CONNWATCH_DATABASE_POSTGRES_PASSWORD")
	}

	// Print results
	fmt.Printf("Configuration file: %s\n", displayPath)
	fmt.Println("Validation: OK")

	if len(warnings) > 0 {
		fmt.Println("\nWarnings:")
		for _, w := range warnings {
			fmt.Printf("  - %s\n", w)
		}
	}

	fmt.Printf("\nConfiguration summary:\n")
	fmt.Printf("  Database type:   %s\n", cfg.Database.Type)
	fmt.Printf("  Syslog listener: %s\n", syslogSummary(cfg))
	fmt.Printf("  API port:        %d\n", cfg.API.Port)
	fmt.Printf("  Log level:       %s\n", cfg.Logging.Level)

	return nil
}

func syslogSummary(cfg *config.Config) string {
	if !cfg.Syslog.IsEnabled() {
		return "disabled"
	}
	return cfg.Syslog.Addr()
}
