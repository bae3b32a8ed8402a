package tools

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"

	"github.com/modelcontextprotocol/go-sdk/mcp"
)

// HintArgs defines the input parameters for the hintd_hint tool.
type HintArgs struct {
	Paths  []string `json:"paths" jsonschema:"Absolute paths to mark as changed"`
	Commit bool     `json:"commit,omitempty" jsonschema:"Flush immediately instead of waiting for the next tick (default: false)"`
}

// HintHandler holds the dependencies for the hint tool.
type HintHandler struct {
	Enqueue func(nativePath string)
	DoFlush FlushFunc
	Logger  *slog.Logger
}

// Handle processes a hintd_hint request.
func (h *HintHandler) Handle(ctx context.Context, req *mcp.CallToolRequest, args HintArgs) (*mcp.CallToolResult, any, error) {
	if len(args.Paths) == 0 {
		return errorResult("paths is required"), nil, nil
	}

	var relative []string
	for _, p := range args.Paths {
		if !filepath.IsAbs(p) && !isDrivePath(p) {
			relative = append(relative, p)
		}
	}
	if len(relative) > 0 {
		return errorResult(fmt.Sprintf("paths must be absolute: %s", strings.Join(relative, ", "))), nil, nil
	}

	for _, p := range args.Paths {
		h.Enqueue(p)
	}
	h.Logger.Info("hintd_hint", "paths", len(args.Paths), "commit", args.Commit)

	if !args.Commit {
		return &mcp.CallToolResult{
			Content: []mcp.Content{&mcp.TextContent{Text: fmt.Sprintf("queued: %d paths", len(args.Paths))}},
		}, nil, nil
	}

	committed, err := h.DoFlush(ctx)
	if err != nil {
		h.Logger.Error("hintd_hint flush failed", "error", err)
		return errorResult(fmt.Sprintf("Flush error (%d hints committed): %v", committed, err)), nil, nil
	}
	return &mcp.CallToolResult{
		Content: []mcp.Content{&mcp.TextContent{Text: fmt.Sprintf("committed: %d hints", committed)}},
	}, nil, nil
}

// isDrivePath accepts Windows paths such as C:\data on any host.
func isDrivePath(p string) bool {
	return len(p) >= 3 && p[1] == ':' && (p[2] == '\\' || p[2] == '/') &&
		((p[0] >= 'a' && p[0] <= 'z') || (p[0] >= 'A' && p[0] <= 'Z'))
}

func errorResult(text string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{&mcp.TextContent{Text: text}},
		IsError: true,
	}
}
