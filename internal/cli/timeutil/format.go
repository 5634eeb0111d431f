// Package timeutil provides time formatting utilities for CLI output.
package timeutil

import (
	"fmt"
	"time"
)

// LocalTimeFormat is the layout for local timestamps in CLI output.
const LocalTimeFormat = "2006-01-02 15:04:05"

// Local renders a timestamp in the local timezone for display.
func Local(t time.Time) string {
	return t.Local().Format(LocalTimeFormat)
}

// LocalPtr renders an optional timestamp, "-" when absent.
func LocalPtr(t *time.Time) string {
	if t == nil {
		return "-"
	}
	return Local(*t)
}

// FormatTime parses an RFC3339 timestamp and renders it locally. The input
// comes back unchanged when it does not parse; server-side strings like
// import job time ranges pass through as-is.
func FormatTime(timestamp string) string {
	t, err := time.Parse(time.RFC3339, timestamp)
	if err != nil {
		return timestamp
	}
	return Local(t)
}

// FormatSeconds renders an elapsed-seconds count like "3d 0h 30m 15s",
// dropping leading zero units.
func FormatSeconds(seconds float64) string {
	return formatElapsed(time.Duration(seconds * float64(time.Second)))
}

// FormatUptime converts a Go duration string to the elapsed format.
// Unparseable input comes back unchanged.
func FormatUptime(uptime string) string {
	d, err := time.ParseDuration(uptime)
	if err != nil {
		return uptime
	}
	return formatElapsed(d)
}

func formatElapsed(d time.Duration) string {
	days := int(d.Hours()) / 24
	hours := int(d.Hours()) % 24
	minutes := int(d.Minutes()) % 60
	seconds := int(d.Seconds()) % 60

	switch {
	case days > 0:
		return fmt.Sprintf("%dd %dh %dm %ds", days, hours, minutes, seconds)
	case hours > 0:
		return fmt.Sprintf("%dh %dm %ds", hours, minutes, seconds)
	case minutes > 0:
		return fmt.Sprintf("%dm %ds", minutes, seconds)
	default:
		return fmt.Sprintf("%ds", seconds)
	}
}
