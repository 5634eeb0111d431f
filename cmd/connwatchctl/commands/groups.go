package commands

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/kvasirlab/connwatch/internal/cli/output"
)

var groupsCmd = &cobra.Command{
	Use:   "groups",
	Short: "Manage device groups and HA clusters",
	Long: `Inspect devices and manage HA cluster grouping.

A NetWall HA pair logs as two devices named <base>_Master and <base>_Slave.
Enabling the pair as a cluster merges them under one ha:<base> key.

Examples:
  # Selectable device groups (standalone devices and enabled clusters)
  connwatchctl groups list

  # Raw device names seen in events
  connwatchctl groups devices

  # Detected HA pairs not yet enabled
  connwatchctl groups candidates

  # Enable an HA pair as one cluster
  connwatchctl groups enable FW-Berlin

  # Change a cluster's label
  connwatchctl groups rename FW-Berlin "Berlin cluster"`,
}

var groupsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List selectable device groups",
	RunE:  runGroupsList,
}

var groupsDevicesCmd = &cobra.Command{
	Use:   "devices",
	Short: "List raw device names seen in events",
	RunE:  runGroupsDevices,
}

var groupsCandidatesCmd = &cobra.Command{
	Use:   "candidates",
	Short: "List detected HA pairs",
	RunE:  runGroupsCandidates,
}

var groupsDisable bool

var groupsEnableCmd = &cobra.Command{
	Use:   "enable <base>",
	Short: "Enable an HA pair as a cluster",
	Args:  cobra.ExactArgs(1),
	RunE:  runGroupsEnable,
}

var groupsRenameCmd = &cobra.Command{
	Use:   "rename <base> <label>",
	Short: "Set an HA cluster's label",
	Args:  cobra.ExactArgs(2),
	RunE:  runGroupsRename,
}

func init() {
	groupsEnableCmd.Flags().BoolVar(&groupsDisable, "off", false, "Disable the cluster instead")

	groupsCmd.AddCommand(groupsListCmd)
	groupsCmd.AddCommand(groupsDevicesCmd)
	groupsCmd.AddCommand(groupsCandidatesCmd)
	groupsCmd.AddCommand(groupsEnableCmd)
	groupsCmd.AddCommand(groupsRenameCmd)
}

func runGroupsList(cmd *cobra.Command, args []string) error {
	groups, err := getClient().ListDeviceGroups()
	if err != nil {
		return fmt.Errorf("failed to list device groups: %w", err)
	}

	table := output.NewTableData("ID", "LABEL", "KIND", "MEMBERS")
	for _, g := range groups {
		table.AddRow(g.ID, g.Label, g.Kind, emptyOr(strings.Join(g.Members, ", "), "-"))
	}
	return printResult(groups, len(groups) == 0, "No device groups found.", table)
}

func runGroupsDevices(cmd *cobra.Command, args []string) error {
	devices, err := getClient().ListDevices()
	if err != nil {
		return fmt.Errorf("failed to list devices: %w", err)
	}

	table := output.NewTableData("DEVICE")
	for _, d := range devices {
		table.AddRow(d)
	}
	return printResult(devices, len(devices) == 0, "No devices seen yet.", table)
}

func runGroupsCandidates(cmd *cobra.Command, args []string) error {
	candidates, err := getClient().HACandidates()
	if err != nil {
		return fmt.Errorf("failed to list HA candidates: %w", err)
	}

	table := output.NewTableData("BASE", "MASTER", "SLAVE", "SUGGESTED LABEL")
	for _, c := range candidates {
		table.AddRow(c.Base, c.Master, c.Slave, c.SuggestedLabel)
	}
	return printResult(candidates, len(candidates) == 0, "No HA pairs detected.", table)
}

func runGroupsEnable(cmd *cobra.Command, args []string) error {
	result, err := getClient().EnableDeviceGroup(args[0], !groupsDisable)
	if err != nil {
		return fmt.Errorf("failed to update cluster %s: %w", args[0], err)
	}

	p, perr := getPrinter()
	if perr != nil {
		return perr
	}
	if result.Enabled {
		p.Success(fmt.Sprintf("Cluster %s enabled; members now appear as ha:%s.", result.Base, result.Base))
	} else {
		p.Success(fmt.Sprintf("Cluster %s disabled; members appear individually again.", result.Base))
	}
	return nil
}

func runGroupsRename(cmd *cobra.Command, args []string) error {
	result, err := getClient().RenameDeviceGroup(args[0], args[1])
	if err != nil {
		return fmt.Errorf("failed to rename cluster %s: %w", args[0], err)
	}

	p, perr := getPrinter()
	if perr != nil {
		return perr
	}
	p.Success(fmt.Sprintf("Cluster %s is now labeled %q.", result.Base, result.Label))
	return nil
}
