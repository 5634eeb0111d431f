package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/kvasirlab/connwatch/internal/cli/output"
	"github.com/kvasirlab/connwatch/internal/cli/timeutil"
	"github.com/kvasirlab/connwatch/pkg/apiclient"
)

var jobsCmd = &cobra.Command{
	Use:   "jobs",
	Short: "Manage import jobs",
	Long: `Inspect and manage background import jobs.

Examples:
  # Running imports across all firewalls
  connwatchctl jobs list

  # Details of one job
  connwatchctl jobs status 3f2a...

  # Cancel a running import
  connwatchctl jobs cancel 3f2a...

  # Delete a finished job record and its spool file
  connwatchctl jobs delete 3f2a...`,
}

var jobsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List running import jobs",
	RunE:  runJobsList,
}

var jobsStatusCmd = &cobra.Command{
	Use:   "status <job-id>",
	Short: "Show import job details",
	Args:  cobra.ExactArgs(1),
	RunE:  runJobsStatus,
}

var jobsFollowCmd = &cobra.Command{
	Use:   "follow <job-id>",
	Short: "Poll an import job until it finishes",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return followJob(getClient(), args[0])
	},
}

var jobsCancelCmd = &cobra.Command{
	Use:   "cancel <job-id>",
	Short: "Cancel an import job",
	Args:  cobra.ExactArgs(1),
	RunE:  runJobsCancel,
}

var jobsDeleteCmd = &cobra.Command{
	Use:   "delete <job-id>",
	Short: "Delete a finished import job",
	Args:  cobra.ExactArgs(1),
	RunE:  runJobsDelete,
}

func init() {
	jobsCmd.AddCommand(jobsListCmd)
	jobsCmd.AddCommand(jobsStatusCmd)
	jobsCmd.AddCommand(jobsFollowCmd)
	jobsCmd.AddCommand(jobsCancelCmd)
	jobsCmd.AddCommand(jobsDeleteCmd)
}

// runningJob is one active import flattened out of the firewall list.
type runningJob struct {
	Firewall string             `json:"firewall" yaml:"firewall"`
	Job      apiclient.ActiveJob `json:"job" yaml:"job"`
}

func runJobsList(cmd *cobra.Command, args []string) error {
	firewalls, err := getClient().ListFirewalls()
	if err != nil {
		return fmt.Errorf("failed to list firewalls: %w", err)
	}

	var jobs []runningJob
	for _, fw := range firewalls {
		for _, job := range fw.ActiveImportJobs {
			jobs = append(jobs, runningJob{Firewall: fw.DisplayName, Job: job})
		}
	}

	table := output.NewTableData("JOB ID", "FIREWALL", "FILE", "STATUS", "PHASE", "PROGRESS")
	for _, j := range jobs {
		table.AddRow(j.Job.JobID, j.Firewall, j.Job.Filename, j.Job.Status, j.Job.Phase,
			fmt.Sprintf("%.0f%%", j.Job.Progress*100))
	}
	return printResult(jobs, len(jobs) == 0, "No running import jobs.", table)
}

func runJobsStatus(cmd *cobra.Command, args []string) error {
	status, err := getClient().JobStatus(args[0])
	if err != nil {
		return fmt.Errorf("failed to fetch job %s: %w", args[0], err)
	}

	p, perr := getPrinter()
	if perr != nil {
		return perr
	}
	if p.Format() != output.FormatTable {
		return p.Print(status)
	}

	pairs := [][2]string{
		{"Job", status.JobID},
		{"File", status.Filename},
		{"Status", status.Status},
		{"Phase", status.Phase},
		{"Progress", fmt.Sprintf("%.0f%%", status.Progress*100)},
		{"Lines", fmt.Sprintf("%d/%d", status.LinesProcessed, status.LinesTotal)},
		{"Parse OK", fmt.Sprintf("%d", status.ParseOK)},
		{"Parse errors", fmt.Sprintf("%d", status.ParseErr)},
		{"Events inserted", fmt.Sprintf("%d", status.EventsInserted)},
	}
	if status.DeviceKey != "" {
		pairs = append(pairs, [2]string{"Device", emptyOr(status.DeviceDisplay, status.DeviceKey)})
	}
	if status.TimeMin != "" {
		pairs = append(pairs, [2]string{"Time range",
			timeutil.FormatTime(status.TimeMin) + " .. " + timeutil.FormatTime(status.TimeMax)})
	}
	if status.ErrorMessage != "" {
		pairs = append(pairs, [2]string{"Error", fmt.Sprintf("%s (%s/%s)", status.ErrorMessage, status.ErrorType, status.ErrorStage)})
	}
	return output.SimpleTable(p.Writer(), pairs)
}

func runJobsCancel(cmd *cobra.Command, args []string) error {
	result, err := getClient().CancelJob(args[0])
	if err != nil {
		return fmt.Errorf("failed to cancel job %s: %w", args[0], err)
	}
	p, perr := getPrinter()
	if perr != nil {
		return perr
	}
	p.Success(fmt.Sprintf("Job %s is now %s.", result.JobID, result.Status))
	return nil
}

func runJobsDelete(cmd *cobra.Command, args []string) error {
	if err := getClient().DeleteJob(args[0]); err != nil {
		return fmt.Errorf("failed to delete job %s: %w", args[0], err)
	}
	p, perr := getPrinter()
	if perr != nil {
		return perr
	}
	p.Success(fmt.Sprintf("Job %s deleted.", args[0]))
	return nil
}
