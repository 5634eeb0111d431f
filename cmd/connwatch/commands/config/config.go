// Package config implements the `connwatch config` subcommands.
package config

import (
	"github.com/spf13/cobra"
)

// Cmd is the parent command for configuration operations.
var Cmd = &cobra.Command{
	Use:   "config",
	Short: "Manage configuration",
	Long:  `Inspect, validate, and describe the ConnWatch configuration.`,
}

func init() {
	Cmd.AddCommand(showCmd)
	Cmd.AddCommand(validateCmd)
	Cmd.AddCommand(schemaCmd)
}
