package scheduler

import "fmt"

// announce logs that the daemon is alive and what it is watching.
func (s *Scheduler) announce() {
	stats := s.Stats()
	for _, root := range s.roots {
		s.logger.Info("waiting for filesystem events", "root", root)
	}
	s.logger.Info("hint daemon status",
		"uptime", formatDuration(stats.Uptime.Seconds()),
		"pending", stats.Pending,
		"cycles", stats.Cycles,
		"hints", stats.HintsCommitted,
		"failed", stats.BatchesFailed,
		"dropped", stats.BatchesDropped,
	)
}

// formatDuration formats seconds in a human-readable way.
func formatDuration(seconds float64) string {
	totalSeconds := int(seconds)
	if totalSeconds < 60 {
		return fmt.Sprintf("%ds", totalSeconds)
	}
	totalMinutes := totalSeconds / 60
	remainderSeconds := totalSeconds % 60
	if totalMinutes < 60 {
		return fmt.Sprintf("%dm%ds", totalMinutes, remainderSeconds)
	}
	hours := totalMinutes / 60
	remainderMinutes := totalMinutes % 60
	return fmt.Sprintf("%dh%dm", hours, remainderMinutes)
}

// FormatUptime renders an uptime for status output.
func (st Stats) FormatUptime() string {
	return formatDuration(st.Uptime.Seconds())
}
