package tools

import (
	"context"
	"io"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/lexandro/csync2-hintd/scheduler"
	"github.com/modelcontextprotocol/go-sdk/mcp"
)

type fixedStats scheduler.Stats

func (f fixedStats) Stats() scheduler.Stats { return scheduler.Stats(f) }

func Test_StatusHandler_Handle(t *testing.T) {
	h := &StatusHandler{
		Scheduler: fixedStats{
			Cycles:         3,
			HintsCommitted: 12,
			Pending:        4,
			Uptime:         45 * time.Second,
			State:          scheduler.Committing,
			LastFlush:      time.Now().Add(-time.Second),
		},
		Roots:  []string{"/etc", "/srv/www"},
		Driver: "sqlite",
		Logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
	}

	result, _, err := h.Handle(context.Background(), nil, StatusArgs{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.IsError {
		t.Fatal("expected success, got error result")
	}

	text := result.Content[0].(*mcp.TextContent).Text

	checks := []string{
		"hintd Status",
		"Hint store: sqlite",
		"Watched roots: 2",
		"/srv/www",
		"Uptime: 45s",
		"State: committing",
		"Pending events: 4",
		"Hints committed: 12",
		"ago",
		"Memory usage:",
	}
	for _, check := range checks {
		if !strings.Contains(text, check) {
			t.Errorf("expected output to contain %q, got:\n%s", check, text)
		}
	}
}
