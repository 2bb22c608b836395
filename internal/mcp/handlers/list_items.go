package handlers

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/btouchard/boardcast/internal/item"
)

// ItemFetcher returns a fresh snapshot of every item.
type ItemFetcher interface {
	FetchAll(ctx context.Context) ([]item.Item, error)
}

// ListItems returns a handler that fetches the current item list.
func ListItems(f ItemFetcher) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		args := req.GetArguments()

		pendingOnly, _ := args["pending_only"].(bool)
		limit := 0
		if l, ok := args["limit"].(float64); ok && l > 0 {
			limit = int(l)
		}
		format, _ := args["format"].(string)

		items, err := f.FetchAll(ctx)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("Upstream query failed: %s", err)), nil
		}

		filtered := make([]item.Item, 0, len(items))
		for _, it := range items {
			if pendingOnly && it.Done {
				continue
			}
			filtered = append(filtered, it)
			if limit > 0 && len(filtered) == limit {
				break
			}
		}

		if format == "json" {
			data, err := json.Marshal(map[string]any{"items": filtered})
			if err != nil {
				return mcp.NewToolResultError(fmt.Sprintf("Encoding items: %s", err)), nil
			}
			return mcp.NewToolResultText(string(data)), nil
		}

		if len(filtered) == 0 {
			return mcp.NewToolResultText("No items found."), nil
		}

		var sb strings.Builder
		fmt.Fprintf(&sb, "📋 Items (%d of %d)\n\n", len(filtered), len(items))
		for _, it := range filtered {
			icon := "⏳"
			if it.Done {
				icon = "✅"
			}
			fmt.Fprintf(&sb, "%s **%s** (%s)\n", icon, it.Name, it.ID)

			var parts []string
			if it.Level != nil {
				parts = append(parts, "Level: "+strconv.FormatFloat(*it.Level, 'f', -1, 64))
			}
			if it.Upper != nil {
				parts = append(parts, "Upper: "+*it.Upper)
			}
			if it.Dependency != nil {
				parts = append(parts, "Depends on: "+*it.Dependency)
			}
			if len(parts) > 0 {
				sb.WriteString("  " + strings.Join(parts, " | ") + "\n")
			}
			if it.EarlyStart != nil || it.EarlyFinish != nil {
				fmt.Fprintf(&sb, "  Early: %s → %s\n", orDash(it.EarlyStart), orDash(it.EarlyFinish))
			}
			if it.LateStart != nil || it.LateFinish != nil {
				fmt.Fprintf(&sb, "  Late: %s → %s\n", orDash(it.LateStart), orDash(it.LateFinish))
			}
		}

		return mcp.NewToolResultText(sb.String()), nil
	}
}

func orDash(s *string) string {
	if s == nil || *s == "" {
		return "-"
	}
	return *s
}
