package tunnel

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"strings"

	ngroklib "golang.ngrok.com/ngrok"
	ngrokconfig "golang.ngrok.com/ngrok/config"

	"github.com/btouchard/boardcast/internal/config"
)

// NgrokTunnel implements the Tunnel interface using ngrok.
type NgrokTunnel struct {
	authToken string
	domain    string
	listener  net.Listener
	url       string
}

// NewNgrok creates a tunnel from the tunnel section of the configuration.
func NewNgrok(cfg config.TunnelConfig) *NgrokTunnel {
	return &NgrokTunnel{
		authToken: strings.TrimSpace(cfg.AuthToken),
		domain:    strings.TrimSpace(cfg.Domain),
	}
}

// Start opens the ngrok listener and returns the public URL.
// localAddr is only logged: ngrok accepts connections on its own listener.
func (n *NgrokTunnel) Start(ctx context.Context, localAddr string) (string, error) {
	if n.authToken == "" {
		return "", fmt.Errorf("ngrok auth token is required (set tunnel.authtoken in config or BOARDCAST_NGROK_AUTHTOKEN env var)")
	}

	slog.Info("starting ngrok tunnel", "local_addr", localAddr, "domain", n.domain)

	var endpoint ngrokconfig.Tunnel
	if n.domain != "" {
		// Reserved domain keeps the webhook URL stable across restarts
		endpoint = ngrokconfig.HTTPEndpoint(ngrokconfig.WithDomain(n.domain))
	} else {
		endpoint = ngrokconfig.HTTPEndpoint()
		slog.Warn("using random ngrok domain; the webhook URL changes on every restart")
	}

	listener, err := ngroklib.Listen(ctx, endpoint, ngroklib.WithAuthtoken(n.authToken))
	if err != nil {
		return "", fmt.Errorf("creating ngrok tunnel: %w", err)
	}

	n.listener = listener
	n.url = normalizeURL(listener.Addr().String())

	slog.Info("ngrok tunnel established",
		"public_url", n.url,
		"webhook_url", Endpoint(n.url, "/webhook"))

	return n.url, nil
}

// Close closes the ngrok tunnel.
func (n *NgrokTunnel) Close() error {
	if n.listener == nil {
		return nil
	}

	slog.Info("closing ngrok tunnel", "public_url", n.url)

	if err := n.listener.Close(); err != nil {
		return fmt.Errorf("closing ngrok tunnel: %w", err)
	}

	n.listener = nil
	n.url = ""

	return nil
}

// PublicURL returns the public URL of the tunnel.
func (n *NgrokTunnel) PublicURL() string {
	return n.url
}

// Listener returns the underlying net.Listener for serving HTTP requests.
func (n *NgrokTunnel) Listener() net.Listener {
	return n.listener
}

func normalizeURL(addr string) string {
	if strings.HasPrefix(addr, "http://") || strings.HasPrefix(addr, "https://") {
		return addr
	}
	return "https://" + addr
}
