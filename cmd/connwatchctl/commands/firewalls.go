package commands

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/kvasirlab/connwatch/internal/cli/output"
	"github.com/kvasirlab/connwatch/internal/cli/prompt"
)

var firewallsCmd = &cobra.Command{
	Use:   "firewalls",
	Short: "Manage firewalls",
	Long: `Inspect and manage the firewalls known to the server.

Examples:
  # List firewalls with log bounds and event counts
  connwatchctl firewalls list

  # Give a firewall a display name
  connwatchctl firewalls rename ha:FW-Berlin "Berlin cluster"

  # Import job history for one firewall
  connwatchctl firewalls jobs ha:FW-Berlin

  # Delete all stored data for a firewall
  connwatchctl firewalls purge ha:FW-Berlin`,
}

var firewallsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List known firewalls",
	RunE:  runFirewallsList,
}

var renameComment string

var firewallsRenameCmd = &cobra.Command{
	Use:   "rename <key> <display-name>",
	Short: "Set a firewall's display name",
	Args:  cobra.ExactArgs(2),
	RunE:  runFirewallsRename,
}

var firewallsJobsCmd = &cobra.Command{
	Use:   "jobs <key>",
	Short: "Show a firewall's import job history",
	Args:  cobra.ExactArgs(1),
	RunE:  runFirewallsJobs,
}

var purgeYes bool

var firewallsPurgeCmd = &cobra.Command{
	Use:   "purge <key>",
	Short: "Delete all stored data for a firewall",
	Long: `Delete every event, raw log, import job, and setting stored for a
firewall or HA cluster. This cannot be undone.`,
	Args: cobra.ExactArgs(1),
	RunE: runFirewallsPurge,
}

func init() {
	firewallsRenameCmd.Flags().StringVar(&renameComment, "comment", "", "Optional comment for the firewall")
	firewallsPurgeCmd.Flags().BoolVarP(&purgeYes, "yes", "y", false, "Skip the confirmation prompt")

	firewallsCmd.AddCommand(firewallsListCmd)
	firewallsCmd.AddCommand(firewallsRenameCmd)
	firewallsCmd.AddCommand(firewallsJobsCmd)
	firewallsCmd.AddCommand(firewallsPurgeCmd)
}

func runFirewallsList(cmd *cobra.Command, args []string) error {
	firewalls, err := getClient().ListFirewalls()
	if err != nil {
		return fmt.Errorf("failed to list firewalls: %w", err)
	}

	table := output.NewTableData("KEY", "NAME", "MEMBERS", "EVENTS", "OLDEST", "LATEST", "SOURCE")
	for _, fw := range firewalls {
		name := fw.DisplayName
		if fw.IsImporting {
			name += " (importing)"
		}
		table.AddRow(
			fw.DeviceKey,
			name,
			emptyOr(strings.Join(fw.Members, ", "), "-"),
			fmt.Sprintf("%d", fw.EventCount),
			formatLocalPtr(fw.OldestLog),
			formatLocalPtr(fw.LatestLog),
			emptyOr(strings.Join(fw.Source.SourceDisplay, ", "), "-"),
		)
	}
	return printResult(firewalls, len(firewalls) == 0, "No firewalls found.", table)
}

func runFirewallsRename(cmd *cobra.Command, args []string) error {
	override, err := getClient().SetFirewallOverride(args[0], args[1], renameComment)
	if err != nil {
		return fmt.Errorf("failed to rename firewall %s: %w", args[0], err)
	}

	p, perr := getPrinter()
	if perr != nil {
		return perr
	}
	name := args[1]
	if override.DisplayName != nil {
		name = *override.DisplayName
	}
	p.Success(fmt.Sprintf("Firewall %s is now displayed as %q.", override.DeviceKey, name))
	return nil
}

func runFirewallsJobs(cmd *cobra.Command, args []string) error {
	jobs, err := getClient().ListFirewallJobs(args[0])
	if err != nil {
		return fmt.Errorf("failed to list jobs for %s: %w", args[0], err)
	}

	table := output.NewTableData("JOB ID", "FILE", "STATUS", "LINES", "EVENTS", "CREATED", "ERROR")
	for _, j := range jobs {
		table.AddRow(
			j.JobID,
			j.Filename,
			j.Status,
			fmt.Sprintf("%d/%d", j.LinesProcessed, j.LinesTotal),
			fmt.Sprintf("%d", j.EventsInserted),
			formatLocal(j.CreatedAt),
			emptyOr(j.ErrorMessage, "-"),
		)
	}
	return printResult(jobs, len(jobs) == 0, "No import jobs for this firewall.", table)
}

func runFirewallsPurge(cmd *cobra.Command, args []string) error {
	key := args[0]
	p, perr := getPrinter()
	if perr != nil {
		return perr
	}

	if !purgeYes {
		ok, err := prompt.Confirm(fmt.Sprintf("Delete ALL stored data for %s", key), false)
		if err != nil {
			if prompt.IsAborted(err) {
				p.Warning("Purge aborted.")
				return nil
			}
			return err
		}
		if !ok {
			p.Println("Purge canceled.")
			return nil
		}
	}

	result, err := getClient().PurgeFirewall(key)
	if err != nil {
		return fmt.Errorf("failed to purge firewall %s: %w", key, err)
	}
	p.Success(fmt.Sprintf("Purge started as job %s.", result.JobID))
	p.Printf("Check it with: connwatchctl cleanup job %s\n", result.JobID)
	return nil
}
