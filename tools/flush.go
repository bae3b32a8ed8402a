package tools

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"
)

// FlushArgs defines the input parameters for the hintd_flush tool.
type FlushArgs struct{}

// FlushFunc commits whatever is pending and returns the hints that landed.
// *scheduler.Scheduler.Flush satisfies it.
type FlushFunc func(ctx context.Context) (int, error)

// FlushHandler holds the dependencies for the flush tool.
type FlushHandler struct {
	DoFlush FlushFunc
	Logger  *slog.Logger
}

// Handle processes a hintd_flush request.
func (h *FlushHandler) Handle(ctx context.Context, req *mcp.CallToolRequest, args FlushArgs) (*mcp.CallToolResult, any, error) {
	h.Logger.Info("hintd_flush started")

	start := time.Now()
	committed, err := h.DoFlush(ctx)
	elapsed := time.Since(start).Round(time.Millisecond)
	if err != nil {
		h.Logger.Error("hintd_flush failed", "committed", committed, "error", err)
		return &mcp.CallToolResult{
			Content: []mcp.Content{&mcp.TextContent{Text: fmt.Sprintf("Flush error (%d hints committed): %v", committed, err)}},
			IsError: true,
		}, nil, nil
	}

	h.Logger.Info("hintd_flush complete", "committed", committed, "elapsed", elapsed)

	return &mcp.CallToolResult{
		Content: []mcp.Content{&mcp.TextContent{Text: fmt.Sprintf("flushed: %d hints in %s", committed, elapsed)}},
	}, nil, nil
}
