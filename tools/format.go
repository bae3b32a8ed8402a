package tools

import (
	"fmt"
	"strings"
	"time"

	"github.com/lexandro/csync2-hintd/scheduler"
)

// FormatStats renders scheduler counters as human-readable text.
func FormatStats(stats scheduler.Stats, now time.Time) string {
	var builder strings.Builder
	builder.WriteString(fmt.Sprintf("Uptime: %s\n", stats.FormatUptime()))
	builder.WriteString(fmt.Sprintf("State: %s\n", stats.State))
	builder.WriteString(fmt.Sprintf("Pending events: %d\n", stats.Pending))
	builder.WriteString(fmt.Sprintf("Flush cycles: %d\n", stats.Cycles))
	builder.WriteString(fmt.Sprintf("Hints committed: %d\n", stats.HintsCommitted))
	builder.WriteString(fmt.Sprintf("Batches failed: %d (dropped: %d, requeued: %d)\n",
		stats.BatchesFailed, stats.BatchesDropped, stats.Requeued))
	builder.WriteString(fmt.Sprintf("Last flush: %s\n", formatSince(stats.LastFlush, now)))
	return builder.String()
}

// formatSince renders how long ago t was, or "never" for the zero time.
func formatSince(t time.Time, now time.Time) string {
	if t.IsZero() {
		return "never"
	}
	return now.Sub(t).Round(time.Millisecond).String() + " ago"
}

// formatFileSize converts bytes to a human-readable string.
func formatFileSize(bytes int64) string {
	switch {
	case bytes >= 1024*1024:
		return fmt.Sprintf("%.1f MB", float64(bytes)/(1024*1024))
	case bytes >= 1024:
		return fmt.Sprintf("%.1f KB", float64(bytes)/1024)
	default:
		return fmt.Sprintf("%d B", bytes)
	}
}
