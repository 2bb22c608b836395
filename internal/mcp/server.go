package mcp

import (
	"github.com/mark3labs/mcp-go/server"

	"github.com/btouchard/boardcast/internal/mcp/handlers"
)

// Deps holds shared dependencies injected into MCP handlers.
type Deps struct {
	Items     handlers.ItemFetcher
	Hub       handlers.StatusSource
	Scheduler handlers.PendingReporter
	Version   string
}

// NewServer creates and configures the MCP server with all tools registered.
func NewServer(deps *Deps) *server.MCPServer {
	s := server.NewMCPServer(
		"boardcast",
		deps.Version,
		server.WithToolCapabilities(true),
		server.WithLogging(),
	)

	registerTools(s, deps)

	return s
}
