package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/tidwall/gjson"

	"github.com/btouchard/boardcast/internal/auth"
	"github.com/btouchard/boardcast/internal/item"
	"github.com/btouchard/boardcast/internal/notify"
	"github.com/btouchard/boardcast/internal/store"
)

// ItemFetcher returns a fresh snapshot of every item.
type ItemFetcher interface {
	FetchAll(ctx context.Context) ([]item.Item, error)
}

// WebhookAuthenticator classifies inbound change notifications.
type WebhookAuthenticator interface {
	Authenticate(headers http.Header, rawBody []byte) auth.Result
}

// ChangeScheduler receives trusted change notifications.
type ChangeScheduler interface {
	Notify()
}

// EventHub manages live event-stream subscribers.
type EventHub interface {
	Subscribe(w notify.EventWriter) (*notify.Subscriber, error)
	Unsubscribe(s *notify.Subscriber)
	Len() int
}

// Handlers serves the HTTP surface.
type Handlers struct {
	Items        ItemFetcher
	Auth         WebhookAuthenticator
	Scheduler    ChangeScheduler
	Hub          EventHub
	Challenges   store.ChallengeStore // nil disables recording
	MaxBodyBytes int64

	// EventWriteTimeout bounds each SSE frame write; zero uses
	// notify.DefaultWriteTimeout.
	EventWriteTimeout time.Duration
}

// HandleItems serves GET /items.
func (h *Handlers) HandleItems(w http.ResponseWriter, r *http.Request) {
	items, err := h.Items.FetchAll(r.Context())
	if err != nil {
		if errors.Is(r.Context().Err(), context.Canceled) {
			slog.Debug("items request cancelled by client")
			return
		}
		slog.Error("fetching items", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]any{
			"error":  "upstream_query_failed",
			"detail": err.Error(),
		})
		return
	}
	if items == nil {
		items = []item.Item{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": items})
}

// HandleWebhook serves POST /webhook. The body is read in full before any
// parsing so the signature is checked against the bytes actually received.
func (h *Handlers) HandleWebhook(w http.ResponseWriter, r *http.Request) {
	limit := h.MaxBodyBytes
	if limit <= 0 {
		limit = 1 << 20
	}
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, limit))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			slog.Warn("webhook body too large", "limit", limit, "remote", r.RemoteAddr)
			writeJSON(w, http.StatusRequestEntityTooLarge, map[string]any{"ok": false, "reason": "body_too_large"})
			return
		}
		slog.Error("reading webhook body", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]any{"ok": false})
		return
	}

	res := h.Auth.Authenticate(r.Header, body)
	switch res.Kind {
	case auth.Challenge:
		slog.Warn("webhook verification token received; register it as the webhook secret",
			"token", res.Token,
			"remote", r.RemoteAddr)
		if h.Challenges != nil {
			c := &store.Challenge{Token: res.Token, RemoteAddr: r.RemoteAddr, ReceivedAt: time.Now()}
			if err := h.Challenges.RecordChallenge(c); err != nil {
				slog.Error("recording verification challenge", "error", err)
				writeJSON(w, http.StatusInternalServerError, map[string]any{"ok": false})
				return
			}
		}
		writeJSON(w, http.StatusOK, map[string]any{"ok": true, "step": "verification"})

	case auth.Trusted:
		slog.Debug("webhook accepted",
			"type", gjson.GetBytes(body, "type").String(),
			"entity_id", gjson.GetBytes(body, "entity.id").String())
		h.Scheduler.Notify()
		writeJSON(w, http.StatusOK, map[string]any{"ok": true})

	default:
		slog.Warn("webhook rejected", "reason", res.Reason, "remote", r.RemoteAddr)
		writeJSON(w, http.StatusAccepted, map[string]any{"ok": false, "reason": res.Reason})
	}
}

// HandleEvents serves GET /events as a server-sent event stream.
func (h *Handlers) HandleEvents(w http.ResponseWriter, r *http.Request) {
	if !canFlush(w) {
		writeJSON(w, http.StatusInternalServerError, map[string]any{"error": "streaming_unsupported"})
		return
	}

	rc := http.NewResponseController(w)
	// Streams outlive the server's write timeout; each frame gets its own.
	deadlines := rc.SetWriteDeadline(time.Time{}) == nil

	hdr := w.Header()
	hdr.Set("Content-Type", "text/event-stream")
	hdr.Set("Cache-Control", "no-cache")
	hdr.Set("Connection", "keep-alive")
	hdr.Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)

	sw := notify.NewSSEWriter(w, rc.Flush)
	if deadlines {
		timeout := h.EventWriteTimeout
		if timeout <= 0 {
			timeout = notify.DefaultWriteTimeout
		}
		sw.WithWriteDeadline(rc.SetWriteDeadline, timeout)
	}

	sub, err := h.Hub.Subscribe(sw)
	if err != nil {
		slog.Debug("event stream closed before hello", "error", err)
		return
	}

	select {
	case <-r.Context().Done():
	case <-sub.Done():
	}

	// The response writer must not be touched after this handler returns.
	h.Hub.Unsubscribe(sub)
	sub.Wait()
}

// HandleHealth serves GET /health.
func (h *Handlers) HandleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"status": "ok", "subscribers": h.Hub.Len()})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func canFlush(w http.ResponseWriter) bool {
	for {
		if _, ok := w.(http.Flusher); ok {
			return true
		}
		u, ok := w.(interface{ Unwrap() http.ResponseWriter })
		if !ok {
			return false
		}
		w = u.Unwrap()
	}
}
