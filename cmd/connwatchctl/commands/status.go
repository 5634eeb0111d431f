package commands

import (
	"github.com/spf13/cobra"

	"github.com/kvasirlab/connwatch/internal/cli/output"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show server health",
	Long: `Check the health endpoint of the ConnWatch server.

Examples:
  # Check the configured server
  connwatchctl status

  # Check a specific server
  connwatchctl status --server http://fw-logs:8080`,
	RunE: runStatus,
}

// serverStatus is the status view for display.
type serverStatus struct {
	Server   string `json:"server" yaml:"server"`
	Status   string `json:"status" yaml:"status"`
	Database string `json:"database,omitempty" yaml:"database,omitempty"`
	Error    string `json:"error,omitempty" yaml:"error,omitempty"`
}

func runStatus(cmd *cobra.Command, args []string) error {
	status := serverStatus{Server: serverURL(), Status: "unreachable"}

	health, err := getClient().Health()
	if err != nil {
		status.Error = err.Error()
	} else {
		status.Status = health.Status
		status.Database = health.Database
		status.Error = health.Error
	}

	p, perr := getPrinter()
	if perr != nil {
		return perr
	}
	if p.Format() != output.FormatTable {
		return p.Print(status)
	}

	pairs := [][2]string{
		{"Server", status.Server},
		{"Status", status.Status},
	}
	if status.Database != "" {
		pairs = append(pairs, [2]string{"Database", status.Database})
	}
	if status.Error != "" {
		pairs = append(pairs, [2]string{"Error", status.Error})
	}
	return output.SimpleTable(p.Writer(), pairs)
}
