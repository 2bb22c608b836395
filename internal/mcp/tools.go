package mcp

import (
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/btouchard/boardcast/internal/mcp/handlers"
)

func registerTools(s *server.MCPServer, deps *Deps) {
	// list_items: fetch the live item list from the external store
	s.AddTool(
		mcp.NewTool("list_items",
			mcp.WithDescription("List tracked work items, ordered by level then last edit. Each call fetches a fresh snapshot."),
			mcp.WithBoolean("pending_only",
				mcp.Description("If true, omit items marked done"),
			),
			mcp.WithNumber("limit",
				mcp.Description("Maximum number of items to return (default: all)"),
			),
			mcp.WithString("format",
				mcp.Description("Output format"),
				mcp.Enum("text", "json"),
			),
		),
		handlers.ListItems(deps.Items),
	)

	// status: live subscriber count and reload state
	s.AddTool(
		mcp.NewTool("status",
			mcp.WithDescription("Report connected dashboard subscribers and whether a reload is pending."),
		),
		handlers.Status(deps.Hub, deps.Scheduler, deps.Version),
	)
}
