package notify

import "log/slog"

// MCPSender abstracts the mcp-go server notification method.
// Defined consumer-side per Go convention.
type MCPSender interface {
	SendNotificationToAllClients(method string, params map[string]any)
}

// MCPNotifier forwards reload events to every connected MCP client so
// agents holding a cached item list know to refresh it.
type MCPNotifier struct {
	sender MCPSender
}

// NewMCPNotifier creates an MCPNotifier.
func NewMCPNotifier(sender MCPSender) *MCPNotifier {
	return &MCPNotifier{sender: sender}
}

// Notify sends a notifications/message for reload events and ignores the rest.
func (n *MCPNotifier) Notify(event Event) {
	if event.Name != EventReload {
		slog.Debug("mcp notifier: ignoring event", "event", event.Name)
		return
	}

	data := map[string]any{"type": event.Name}
	for k, v := range event.Data {
		data[k] = v
	}
	n.sender.SendNotificationToAllClients("notifications/message", map[string]any{
		"level":  "info",
		"logger": "boardcast",
		"data":   data,
	})
}
