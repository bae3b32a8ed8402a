package tools

import (
	"context"
	"fmt"
	"log/slog"
	"runtime"
	"strings"
	"time"

	"github.com/lexandro/csync2-hintd/scheduler"
	"github.com/modelcontextprotocol/go-sdk/mcp"
)

// StatusArgs defines the input parameters for the hintd_status tool (none required).
type StatusArgs struct{}

// StatsSource is implemented by *scheduler.Scheduler.
type StatsSource interface {
	Stats() scheduler.Stats
}

// StatusHandler holds the dependencies for the status tool.
type StatusHandler struct {
	Scheduler StatsSource
	Roots     []string
	Driver    string
	Logger    *slog.Logger
}

// Handle processes a hintd_status request.
func (h *StatusHandler) Handle(ctx context.Context, req *mcp.CallToolRequest, args StatusArgs) (*mcp.CallToolResult, any, error) {
	var builder strings.Builder

	stats := h.Scheduler.Stats()

	// Memory stats
	var memStats runtime.MemStats
	runtime.ReadMemStats(&memStats)

	h.Logger.Info("hintd_status",
		"pending", stats.Pending,
		"hints", stats.HintsCommitted,
		"memory", memStats.Alloc,
		"uptime", stats.Uptime,
	)

	builder.WriteString("=== hintd Status ===\n\n")
	builder.WriteString(fmt.Sprintf("Hint store: %s\n", h.Driver))
	builder.WriteString(fmt.Sprintf("Watched roots: %d\n", len(h.Roots)))
	for _, root := range h.Roots {
		builder.WriteString(fmt.Sprintf("  %s\n", root))
	}
	builder.WriteString(FormatStats(stats, time.Now()))
	builder.WriteString(fmt.Sprintf("Memory usage: %s (heap: %s)\n",
		formatFileSize(int64(memStats.Alloc)),
		formatFileSize(int64(memStats.HeapAlloc)),
	))

	return &mcp.CallToolResult{
		Content: []mcp.Content{&mcp.TextContent{Text: builder.String()}},
	}, nil, nil
}
