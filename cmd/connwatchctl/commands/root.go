// Package commands implements the connwatchctl CLI commands.
package commands

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/kvasirlab/connwatch/internal/cli/output"
	"github.com/kvasirlab/connwatch/pkg/apiclient"
)

// Version information set by main via ldflags.
var (
	Version = "dev"
	Commit  = "none"
	Date    = "unknown"
)

const defaultServer = "http://localhost:8080"

var (
	flagServer  string
	flagOutput  string
	flagNoColor bool
)

var rootCmd = &cobra.Command{
	Use:   "connwatchctl",
	Short: "ConnWatch command-line client",
	Long: `connwatchctl is the command-line client for a running ConnWatch server.

It talks to the server's REST API to upload log files, follow import jobs,
inspect firewalls and pipeline statistics, and manage classification rules
and runtime settings.

The server address comes from --server, the CONNWATCH_SERVER environment
variable, or defaults to ` + defaultServer + `.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&flagServer, "server", "", "Server URL (default: CONNWATCH_SERVER env or "+defaultServer+")")
	rootCmd.PersistentFlags().StringVarP(&flagOutput, "output", "o", "table", "Output format: table, json, or yaml")
	rootCmd.PersistentFlags().BoolVar(&flagNoColor, "no-color", false, "Disable colored output")

	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(statsCmd)
	rootCmd.AddCommand(uploadCmd)
	rootCmd.AddCommand(jobsCmd)
	rootCmd.AddCommand(firewallsCmd)
	rootCmd.AddCommand(groupsCmd)
	rootCmd.AddCommand(rulesCmd)
	rootCmd.AddCommand(settingsCmd)
	rootCmd.AddCommand(cleanupCmd)
	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(completionCmd)

	rootCmd.CompletionOptions.DisableDefaultCmd = true
}

// serverURL resolves the server address from the flag, the environment, or
// the default.
func serverURL() string {
	if flagServer != "" {
		return flagServer
	}
	if env := os.Getenv("CONNWATCH_SERVER"); env != "" {
		return env
	}
	return defaultServer
}

func getClient() *apiclient.Client {
	return apiclient.New(serverURL())
}

func getPrinter() (*output.Printer, error) {
	format, err := output.ParseFormat(flagOutput)
	if err != nil {
		return nil, err
	}
	return output.NewPrinter(os.Stdout, format, !flagNoColor), nil
}

// printResult renders data in the selected output format. Table format uses
// the given renderer, or prints emptyMsg when there is nothing to show.
func printResult(data any, empty bool, emptyMsg string, table output.TableRenderer) error {
	p, err := getPrinter()
	if err != nil {
		return err
	}
	if p.Format() == output.FormatTable {
		if empty {
			p.Println(emptyMsg)
			return nil
		}
		return output.PrintTable(p.Writer(), table)
	}
	return p.Print(data)
}

func emptyOr(s, fallback string) string {
	if s == "" {
		return fallback
	}
	return s
}
