package commands

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/kvasirlab/connwatch/pkg/apiclient"
)

var (
	uploadDevice string
	uploadFollow bool
)

var uploadCmd = &cobra.Command{
	Use:   "upload <file>",
	Short: "Upload a syslog file for import",
	Long: `Upload a firewall syslog export to the server and queue a background
import job for it.

Without --device the importer detects the source firewall from the file
contents. With --follow the command polls the job until it finishes.

Examples:
  # Upload and return the job id
  connwatchctl upload netwall-2026-08.log

  # Pin the upload to a firewall and watch the import
  connwatchctl upload netwall-2026-08.log --device ha:FW-Berlin --follow`,
	Args: cobra.ExactArgs(1),
	RunE: runUpload,
}

func init() {
	uploadCmd.Flags().StringVar(&uploadDevice, "device", "", "Firewall key to pin the import to")
	uploadCmd.Flags().BoolVarP(&uploadFollow, "follow", "f", false, "Poll the job until it finishes")
}

func runUpload(cmd *cobra.Command, args []string) error {
	client := getClient()

	result, err := client.UploadFile(args[0], uploadDevice)
	if err != nil {
		return fmt.Errorf("upload failed: %w", err)
	}

	p, perr := getPrinter()
	if perr != nil {
		return perr
	}

	if !uploadFollow {
		p.Success(fmt.Sprintf("Upload queued as job %s", result.JobID))
		p.Printf("Follow it with: connwatchctl jobs status %s\n", result.JobID)
		return nil
	}

	return followJob(client, result.JobID)
}

// followJob polls a job until it reaches a terminal status, printing
// progress along the way.
func followJob(client *apiclient.Client, jobID string) error {
	p, err := getPrinter()
	if err != nil {
		return err
	}

	var lastLine string
	for {
		status, err := client.JobStatus(jobID)
		if err != nil {
			return fmt.Errorf("failed to poll job %s: %w", jobID, err)
		}

		line := fmt.Sprintf("%s %s %.0f%% (%d/%d lines)",
			status.Status, status.Phase, status.Progress*100,
			status.LinesProcessed, status.LinesTotal)
		if line != lastLine {
			p.Println(line)
			lastLine = line
		}

		switch status.Status {
		case "done":
			p.Success(fmt.Sprintf("Import finished: %d events from %d lines (%d parse errors)",
				status.EventsInserted, status.LinesProcessed, status.ParseErr))
			if status.DeviceKey != "" {
				p.Printf("Device: %s\n", emptyOr(status.DeviceDisplay, status.DeviceKey))
			}
			return nil
		case "error":
			return fmt.Errorf("import failed in %s: %s", status.ErrorStage, status.ErrorMessage)
		case "canceled":
			p.Warning("Import was canceled.")
			return nil
		}

		time.Sleep(time.Second)
	}
}
