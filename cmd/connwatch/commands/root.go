// Package commands implements the CLI commands for the connwatch server.
package commands

import (
	"github.com/spf13/cobra"

	configcmd "github.com/kvasirlab/connwatch/cmd/connwatch/commands/config"
)

var (
	// Version information injected at build time.
	Version = "dev"
	Commit  = "none"
	Date    = "unknown"
)

var configFile string

// rootCmd represents the base command when called without any subcommands.
var rootCmd = &cobra.Command{
	Use:   "connwatch",
	Short: "ConnWatch - NetWall connection log analytics",
	Long: `ConnWatch ingests NetWall firewall syslog streams and log file uploads,
parses CONN open/close events, classifies traffic direction, and maintains
connection analytics in SQLite or PostgreSQL.

Use "connwatch [command] --help" for more information about a command.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() error {
	return rootCmd.Execute()
}

// GetConfigFile returns the configuration file path from the --config flag.
// Empty means the default location.
func GetConfigFile() string {
	return configFile
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configFile, "config", "", "Path to configuration file (default: $XDG_CONFIG_HOME/connwatch/config.yaml)")

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(initCmd)
	rootCmd.AddCommand(migrateCmd)
	rootCmd.AddCommand(dedupFlowsCmd)
	rootCmd.AddCommand(configcmd.Cmd)
	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(completionCmd)

	// Hide the default completion command (we provide our own)
	rootCmd.CompletionOptions.DisableDefaultCmd = true
}
