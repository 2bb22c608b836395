package tunnel

import (
	"context"
	"net"
	"strings"
)

// Tunnel exposes the local webhook receiver via a public HTTPS URL so the
// external store can deliver change notifications to it.
type Tunnel interface {
	Start(ctx context.Context, localAddr string) (publicURL string, err error)
	Close() error
	PublicURL() string
	Listener() net.Listener
}

// Endpoint joins a public base URL and a route path.
func Endpoint(publicURL, path string) string {
	if publicURL == "" {
		return ""
	}
	return strings.TrimRight(publicURL, "/") + "/" + strings.TrimLeft(path, "/")
}
