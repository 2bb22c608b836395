package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// RouterOptions configures the cross-cutting middleware.
type RouterOptions struct {
	AllowedOrigin   string
	SignatureHeader string
	Limiter         *IPRateLimiter // nil disables webhook rate limiting
	MCP             http.Handler   // nil leaves /mcp unmounted
}

// NewRouter wires the handlers onto a chi router.
func NewRouter(h *Handlers, opts RouterOptions) chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.RealIP)
	r.Use(Recoverer)
	r.Use(SecurityHeaders)
	r.Use(CORS(opts.AllowedOrigin, opts.SignatureHeader))

	r.Get("/items", h.HandleItems)
	r.Get("/events", h.HandleEvents)
	r.Get("/health", h.HandleHealth)

	r.Group(func(r chi.Router) {
		if opts.Limiter != nil {
			r.Use(opts.Limiter.Middleware)
		}
		r.Post("/webhook", h.HandleWebhook)
	})

	if opts.MCP != nil {
		r.Handle("/mcp", opts.MCP)
	}

	return r
}
