package handlers

import (
	"context"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
)

// StatusSource reports live pipeline state.
type StatusSource interface {
	Len() int
}

// PendingReporter reports whether a reload is waiting on its quiet period.
type PendingReporter interface {
	Pending() bool
}

// Status returns a handler describing the live pipeline.
func Status(hub StatusSource, sched PendingReporter, version string) server.ToolHandlerFunc {
	return func(_ context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		pending := "no"
		if sched != nil && sched.Pending() {
			pending = "yes"
		}
		return mcp.NewToolResultText(fmt.Sprintf(
			"boardcast %s\nSubscribers: %d\nReload pending: %s\n",
			version, hub.Len(), pending)), nil
	}
}
