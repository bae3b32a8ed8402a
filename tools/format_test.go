package tools

import (
	"strings"
	"testing"
	"time"

	"github.com/lexandro/csync2-hintd/scheduler"
)

// --- formatFileSize ---

func Test_FormatFileSize_Bytes(t *testing.T) {
	got := formatFileSize(500)
	if got != "500 B" {
		t.Errorf("expected '500 B', got '%s'", got)
	}
}

func Test_FormatFileSize_Kilobytes(t *testing.T) {
	got := formatFileSize(2048)
	if got != "2.0 KB" {
		t.Errorf("expected '2.0 KB', got '%s'", got)
	}
}

func Test_FormatFileSize_Megabytes(t *testing.T) {
	got := formatFileSize(3 * 1024 * 1024)
	if got != "3.0 MB" {
		t.Errorf("expected '3.0 MB', got '%s'", got)
	}
}

// --- formatSince ---

func Test_FormatSince_Never(t *testing.T) {
	if got := formatSince(time.Time{}, time.Now()); got != "never" {
		t.Errorf("expected 'never', got '%s'", got)
	}
}

func Test_FormatSince_Ago(t *testing.T) {
	now := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	got := formatSince(now.Add(-1500*time.Millisecond), now)
	if got != "1.5s ago" {
		t.Errorf("expected '1.5s ago', got '%s'", got)
	}
}

// --- FormatStats ---

func Test_FormatStats(t *testing.T) {
	now := time.Now()
	got := FormatStats(scheduler.Stats{
		Cycles:         7,
		HintsCommitted: 42,
		BatchesFailed:  2,
		BatchesDropped: 1,
		Requeued:       1,
		Pending:        3,
		Uptime:         90 * time.Minute,
		State:          scheduler.Idle,
	}, now)

	checks := []string{
		"Uptime: 1h30m",
		"State: idle",
		"Pending events: 3",
		"Flush cycles: 7",
		"Hints committed: 42",
		"Batches failed: 2 (dropped: 1, requeued: 1)",
		"Last flush: never",
	}
	for _, check := range checks {
		if !strings.Contains(got, check) {
			t.Errorf("expected output to contain %q, got:\n%s", check, got)
		}
	}
}
