package commands

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/kvasirlab/connwatch/internal/cli/output"
	"github.com/kvasirlab/connwatch/internal/cli/timeutil"
)

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show live pipeline statistics",
	Long: `Display the live ingestion pipeline counters of the ConnWatch server.

Examples:
  # Live pipeline counters
  connwatchctl stats

  # Storage-level statistics
  connwatchctl stats db

  # Zero the live counters
  connwatchctl stats reset`,
	RunE: runStats,
}

var statsDBCmd = &cobra.Command{
	Use:   "db",
	Short: "Show database statistics",
	RunE:  runStatsDB,
}

var statsResetCmd = &cobra.Command{
	Use:   "reset",
	Short: "Reset the live pipeline counters",
	RunE:  runStatsReset,
}

func init() {
	statsCmd.AddCommand(statsDBCmd)
	statsCmd.AddCommand(statsResetCmd)
}

func runStats(cmd *cobra.Command, args []string) error {
	stats, err := getClient().Stats()
	if err != nil {
		return fmt.Errorf("failed to fetch stats: %w", err)
	}

	p, perr := getPrinter()
	if perr != nil {
		return perr
	}
	if p.Format() != output.FormatTable {
		return p.Print(stats)
	}

	pairs := [][2]string{
		{"UDP packets", fmt.Sprintf("%d", stats.UDPPackets)},
		{"UDP bytes", fmt.Sprintf("%d", stats.UDPBytes)},
		{"Lines", fmt.Sprintf("%d", stats.Lines)},
		{"Records total", fmt.Sprintf("%d", stats.RecordsTotal)},
		{"Records OK", fmt.Sprintf("%d", stats.RecordsOK)},
		{"Parse errors", fmt.Sprintf("%d", stats.ParseErrors)},
		{"Filtered by id", fmt.Sprintf("%d", stats.FilteredID)},
		{"Raw logs saved", fmt.Sprintf("%d", stats.RawLogsSaved)},
		{"Events saved", fmt.Sprintf("%d", stats.EventsSaved)},
		{"Batch errors", fmt.Sprintf("%d", stats.BatchErrors)},
		{"Uptime", timeutil.FormatSeconds(stats.UptimeSeconds)},
	}
	if stats.LastUpdated != nil {
		pairs = append(pairs, [2]string{"Last updated", formatLocal(*stats.LastUpdated)})
	}
	if stats.SampleRawLine != "" {
		pairs = append(pairs, [2]string{"Sample line", stats.SampleRawLine})
	}
	return output.SimpleTable(p.Writer(), pairs)
}

func runStatsDB(cmd *cobra.Command, args []string) error {
	stats, err := getClient().DatabaseStats()
	if err != nil {
		return fmt.Errorf("failed to fetch database stats: %w", err)
	}

	p, perr := getPrinter()
	if perr != nil {
		return perr
	}
	if p.Format() != output.FormatTable {
		return p.Print(stats)
	}

	pairs := [][2]string{
		{"Database", stats.DBType},
		{"Raw logs", fmt.Sprintf("%d", stats.RawLogsCount)},
		{"Events", fmt.Sprintf("%d", stats.EventsCount)},
		{"Oldest event", formatLocalPtr(stats.OldestEventTs)},
		{"Newest event", formatLocalPtr(stats.NewestEventTs)},
	}
	if stats.DBFileSizeBytes != nil {
		pairs = append(pairs, [2]string{"File size", fmt.Sprintf("%d bytes", *stats.DBFileSizeBytes)})
	}
	if lc := stats.LastCleanup; lc != nil {
		pairs = append(pairs,
			[2]string{"Last cleanup", formatLocal(lc.LastRun)},
			[2]string{"Cleanup deleted", fmt.Sprintf("%d events, %d raw logs", lc.DeletedEvents, lc.DeletedRawLogs)},
		)
	}
	return output.SimpleTable(p.Writer(), pairs)
}

func runStatsReset(cmd *cobra.Command, args []string) error {
	if err := getClient().ResetStats(); err != nil {
		return fmt.Errorf("failed to reset stats: %w", err)
	}
	p, perr := getPrinter()
	if perr != nil {
		return perr
	}
	p.Success("Pipeline counters reset.")
	return nil
}

func formatLocal(t time.Time) string {
	return timeutil.Local(t)
}

func formatLocalPtr(t *time.Time) string {
	return timeutil.LocalPtr(t)
}
