package commands

import (
	"fmt"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"github.com/kvasirlab/connwatch/internal/cli/output"
)

var settingsCmd = &cobra.Command{
	Use:   "settings",
	Short: "Manage runtime settings",
	Long: `Inspect and change the server's runtime settings.

Examples:
  # All settings merged over their defaults
  connwatchctl settings list

  # Show the retention policy
  connwatchctl settings retention

  # Keep 90 days of logs
  connwatchctl settings retention set --keep-days 90

  # Stop deleting old logs
  connwatchctl settings retention set --enabled=false

  # Treat two prefixes as local when classifying remote hosts
  connwatchctl settings networks set --cidr 10.0.0.0/8 --cidr 192.168.0.0/16`,
}

var settingsListCmd = &cobra.Command{
	Use:   "list",
	Short: "Show all runtime settings",
	RunE:  runSettingsList,
}

var settingsRetentionCmd = &cobra.Command{
	Use:   "retention",
	Short: "Show the log retention policy",
	RunE:  runRetentionShow,
}

var (
	retentionEnabled  bool
	retentionKeepDays int
)

var settingsRetentionSetCmd = &cobra.Command{
	Use:   "set",
	Short: "Change the log retention policy",
	RunE:  runRetentionSet,
}

var settingsNetworksCmd = &cobra.Command{
	Use:   "networks",
	Short: "Show the local networks setting",
	RunE:  runNetworksShow,
}

var (
	networksEnabled bool
	networksCIDRs   []string
)

var settingsNetworksSetCmd = &cobra.Command{
	Use:   "set",
	Short: "Change the local networks setting",
	RunE:  runNetworksSet,
}

func init() {
	settingsRetentionSetCmd.Flags().BoolVar(&retentionEnabled, "enabled", true, "Enable automatic log cleanup")
	settingsRetentionSetCmd.Flags().IntVar(&retentionKeepDays, "keep-days", 0, "Days of logs to keep")

	settingsNetworksSetCmd.Flags().BoolVar(&networksEnabled, "enabled", true, "Enable local network matching")
	settingsNetworksSetCmd.Flags().StringArrayVar(&networksCIDRs, "cidr", nil, "Local network prefix (repeatable)")

	settingsRetentionCmd.AddCommand(settingsRetentionSetCmd)
	settingsNetworksCmd.AddCommand(settingsNetworksSetCmd)

	settingsCmd.AddCommand(settingsListCmd)
	settingsCmd.AddCommand(settingsRetentionCmd)
	settingsCmd.AddCommand(settingsNetworksCmd)
}

func runSettingsList(cmd *cobra.Command, args []string) error {
	settings, err := getClient().AllSettings()
	if err != nil {
		return fmt.Errorf("failed to fetch settings: %w", err)
	}

	p, perr := getPrinter()
	if perr != nil {
		return perr
	}
	if p.Format() != output.FormatTable {
		return p.Print(settings)
	}

	table := output.NewTableData("KEY", "VALUE")
	for _, key := range sortedKeys(settings) {
		table.AddRow(key, fmt.Sprintf("%v", settings[key]))
	}
	return output.PrintTable(p.Writer(), table)
}

func runRetentionShow(cmd *cobra.Command, args []string) error {
	policy, err := getClient().GetRetention()
	if err != nil {
		return fmt.Errorf("failed to fetch retention policy: %w", err)
	}

	p, perr := getPrinter()
	if perr != nil {
		return perr
	}
	if p.Format() != output.FormatTable {
		return p.Print(policy)
	}
	return output.SimpleTable(p.Writer(), [][2]string{
		{"Enabled", fmt.Sprintf("%t", policy.Enabled)},
		{"Keep days", fmt.Sprintf("%d", policy.KeepDays)},
	})
}

func runRetentionSet(cmd *cobra.Command, args []string) error {
	// Changing --keep-days alone must not flip the enabled state.
	current, err := getClient().GetRetention()
	if err != nil {
		return fmt.Errorf("failed to fetch retention policy: %w", err)
	}

	enabled := current.Enabled
	if cmd.Flags().Changed("enabled") {
		enabled = retentionEnabled
	}
	keepDays := current.KeepDays
	if cmd.Flags().Changed("keep-days") {
		keepDays = retentionKeepDays
	}

	result, err := getClient().SetRetention(enabled, keepDays)
	if err != nil {
		return fmt.Errorf("failed to update retention policy: %w", err)
	}

	p, perr := getPrinter()
	if perr != nil {
		return perr
	}
	policy := result.LogRetention
	if policy == nil {
		policy = current
	}
	if policy.Enabled {
		p.Success(fmt.Sprintf("Retention enabled, keeping %d days.", policy.KeepDays))
	} else {
		p.Success("Retention disabled; logs are kept forever.")
	}
	return nil
}

func runNetworksShow(cmd *cobra.Command, args []string) error {
	networks, err := getClient().GetLocalNetworks()
	if err != nil {
		return fmt.Errorf("failed to fetch local networks: %w", err)
	}

	p, perr := getPrinter()
	if perr != nil {
		return perr
	}
	if p.Format() != output.FormatTable {
		return p.Print(networks)
	}
	return output.SimpleTable(p.Writer(), [][2]string{
		{"Enabled", fmt.Sprintf("%t", networks.Enabled)},
		{"CIDRs", emptyOr(strings.Join(networks.CIDRs, ", "), "-")},
	})
}

func runNetworksSet(cmd *cobra.Command, args []string) error {
	current, err := getClient().GetLocalNetworks()
	if err != nil {
		return fmt.Errorf("failed to fetch local networks: %w", err)
	}

	enabled := current.Enabled
	if cmd.Flags().Changed("enabled") {
		enabled = networksEnabled
	}
	cidrs := current.CIDRs
	if cmd.Flags().Changed("cidr") {
		cidrs = networksCIDRs
	}

	result, err := getClient().SetLocalNetworks(enabled, cidrs)
	if err != nil {
		return fmt.Errorf("failed to update local networks: %w", err)
	}

	p, perr := getPrinter()
	if perr != nil {
		return perr
	}
	networks := result.LocalNetworks
	if networks == nil {
		networks = current
	}
	if networks.Enabled {
		p.Success(fmt.Sprintf("Local networks set: %s.", strings.Join(networks.CIDRs, ", ")))
	} else {
		p.Success("Local network matching disabled.")
	}
	return nil
}

func sortedKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
