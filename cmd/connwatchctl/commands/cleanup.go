package commands

import (
	"fmt"
	"sort"

	"github.com/spf13/cobra"

	"github.com/kvasirlab/connwatch/internal/cli/output"
)

var cleanupCmd = &cobra.Command{
	Use:   "cleanup",
	Short: "Run a retention cleanup now",
	Long: `Run a retention cleanup pass immediately instead of waiting for the
scheduled sweep. The pass is skipped when retention is disabled or a cleanup
is already running.

Examples:
  # Run a cleanup pass now
  connwatchctl cleanup

  # Check on a maintenance job (cleanup or purge)
  connwatchctl cleanup job 3f2a...`,
	RunE: runCleanup,
}

var cleanupJobCmd = &cobra.Command{
	Use:   "job <job-id>",
	Short: "Show a maintenance job",
	Args:  cobra.ExactArgs(1),
	RunE:  runCleanupJob,
}

func init() {
	cleanupCmd.AddCommand(cleanupJobCmd)
}

func runCleanup(cmd *cobra.Command, args []string) error {
	outcome, err := getClient().RunCleanup()
	if err != nil {
		return fmt.Errorf("cleanup failed: %w", err)
	}

	p, perr := getPrinter()
	if perr != nil {
		return perr
	}
	if p.Format() != output.FormatTable {
		return p.Print(outcome)
	}

	if outcome.Skipped {
		p.Warning(fmt.Sprintf("Cleanup skipped: %s.", outcome.Reason))
		return nil
	}
	p.Success(fmt.Sprintf("Cleanup done in %dms: deleted %d events and %d raw logs older than %d days.",
		outcome.DurationMs, outcome.DeletedEvents, outcome.DeletedRawLogs, outcome.KeepDays))
	if outcome.VacuumRan {
		p.Println("Database was vacuumed.")
	}
	return nil
}

func runCleanupJob(cmd *cobra.Command, args []string) error {
	job, err := getClient().GetMaintenanceJob(args[0])
	if err != nil {
		return fmt.Errorf("failed to fetch maintenance job %s: %w", args[0], err)
	}

	p, perr := getPrinter()
	if perr != nil {
		return perr
	}
	if p.Format() != output.FormatTable {
		return p.Print(job)
	}

	pairs := [][2]string{
		{"Job", job.JobID},
		{"Type", job.Type},
		{"Status", job.Status},
		{"Created", formatLocal(job.CreatedAt)},
	}
	if job.DeviceKey != "" {
		pairs = append(pairs, [2]string{"Device", job.DeviceKey})
	}
	if job.FinishedAt != nil {
		pairs = append(pairs, [2]string{"Finished", formatLocal(*job.FinishedAt)})
	}
	for _, key := range sortedCountKeys(job.ResultCounts) {
		pairs = append(pairs, [2]string{key, fmt.Sprintf("%d", job.ResultCounts[key])})
	}
	if job.ErrorMessage != "" {
		pairs = append(pairs, [2]string{"Error", job.ErrorMessage})
	}
	return output.SimpleTable(p.Writer(), pairs)
}

func sortedCountKeys(m map[string]int64) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
