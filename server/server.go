package server

import (
	"github.com/lexandro/csync2-hintd/tools"
	"github.com/modelcontextprotocol/go-sdk/mcp"
)

// Version is reported to MCP clients.
const Version = "0.1.0"

// Setup creates and configures the MCP server with all tool registrations.
func Setup(
	statusHandler *tools.StatusHandler,
	flushHandler *tools.FlushHandler,
	hintHandler *tools.HintHandler,
) *mcp.Server {
	mcpServer := mcp.NewServer(
		&mcp.Implementation{
			Name:    "hintd",
			Version: Version,
		},
		&mcp.ServerOptions{
			Instructions: `This server controls a csync2 hint daemon. The daemon watches directory trees and records every changed path in the csync2 hint database, so "csync2 -x" only checks files that actually changed.

- Use hintd_status to see watched roots, pending events and commit counters
- Use hintd_hint to mark paths as changed that the watcher could not see (e.g. edits made while the daemon was down)
- Use hintd_flush to commit pending hints now instead of waiting for the next tick`,
		},
	)

	// Register hintd_status tool
	mcp.AddTool(mcpServer, &mcp.Tool{
		Name:        "hintd_status",
		Description: "Show daemon status: hint store, watched roots, flush state, pending events, commit counters, memory usage and uptime.",
	}, statusHandler.Handle)

	// Register hintd_hint tool
	mcp.AddTool(mcpServer, &mcp.Tool{
		Name: "hintd_hint",
		Description: `Mark paths as changed. Paths are queued like filesystem events and committed on the next tick.

Arguments:
  - paths: absolute paths, native form (e.g. "/etc/hosts" or "C:\\data\\x.txt")
  - commit: flush right away and report how many hints landed`,
	}, hintHandler.Handle)

	// Register hintd_flush tool
	mcp.AddTool(mcpServer, &mcp.Tool{
		Name:        "hintd_flush",
		Description: "Commit all pending events to the hint store now. Returns the number of hints that landed.",
	}, flushHandler.Handle)

	return mcpServer
}
