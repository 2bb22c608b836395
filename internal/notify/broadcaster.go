package notify

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/juju/clock"
)

const (
	// DefaultPingInterval keeps idle streams alive through proxies.
	DefaultPingInterval = 25 * time.Second

	// DefaultWriteTimeout bounds how long one subscriber may take to accept
	// an event before it is dropped.
	DefaultWriteTimeout = 10 * time.Second
)

var errSubscriberClosed = errors.New("subscriber closed")

// Subscriber is one live stream registered with a Broadcaster.
type Subscriber struct {
	ID string

	w    EventWriter
	mu   sync.Mutex // serializes writes so events never interleave
	done chan struct{}
	once sync.Once
}

// Done is closed once the subscriber has been removed, either explicitly or
// after a failed write.
func (s *Subscriber) Done() <-chan struct{} {
	return s.done
}

func (s *Subscriber) send(name string, data []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	select {
	case <-s.done:
		return errSubscriberClosed
	default:
	}
	return s.w.WriteEvent(name, data)
}

// close marks the subscriber as removed. It does not wait for a write in
// progress; see Wait.
func (s *Subscriber) close() {
	s.once.Do(func() { close(s.done) })
}

// Wait blocks until any in-flight write has returned. After the subscriber
// is removed, no write starts once Wait returns.
func (s *Subscriber) Wait() {
	s.mu.Lock()
	defer s.mu.Unlock()
}

// Broadcaster maintains the set of live subscribers and fans events out to
// them. Delivery is best effort: a subscriber whose write fails is dropped.
type Broadcaster struct {
	clock        clock.Clock
	pingInterval time.Duration
	writeTimeout time.Duration

	mu   sync.RWMutex
	subs map[string]*Subscriber
}

// NewBroadcaster creates a Broadcaster. Zero durations take the defaults and
// a nil clk uses the wall clock.
func NewBroadcaster(pingInterval, writeTimeout time.Duration, clk clock.Clock) *Broadcaster {
	if pingInterval <= 0 {
		pingInterval = DefaultPingInterval
	}
	if writeTimeout <= 0 {
		writeTimeout = DefaultWriteTimeout
	}
	if clk == nil {
		clk = clock.WallClock
	}
	return &Broadcaster{
		clock:        clk,
		pingInterval: pingInterval,
		writeTimeout: writeTimeout,
		subs:         make(map[string]*Subscriber),
	}
}

// Subscribe greets w with a hello event and, if that succeeds, registers it.
func (b *Broadcaster) Subscribe(w EventWriter) (*Subscriber, error) {
	sub := &Subscriber{
		ID:   uuid.NewString(),
		w:    w,
		done: make(chan struct{}),
	}

	hello, _ := json.Marshal(map[string]any{"ok": true})
	if err := sub.send(EventHello, hello); err != nil {
		sub.close()
		return nil, fmt.Errorf("greeting subscriber: %w", err)
	}

	b.mu.Lock()
	b.subs[sub.ID] = sub
	n := len(b.subs)
	b.mu.Unlock()

	slog.Debug("subscriber connected", "subscriber_id", sub.ID, "subscribers", n)
	return sub, nil
}

// Unsubscribe removes sub. Safe to call more than once.
func (b *Broadcaster) Unsubscribe(sub *Subscriber) {
	if sub == nil {
		return
	}
	b.mu.Lock()
	_, ok := b.subs[sub.ID]
	delete(b.subs, sub.ID)
	n := len(b.subs)
	b.mu.Unlock()

	sub.close()
	if ok {
		slog.Debug("subscriber removed", "subscriber_id", sub.ID, "subscribers", n)
	}
}

// Broadcast encodes payload once and writes it to every current subscriber
// in parallel. A subscriber whose write fails, or has not completed within
// the write timeout, is dropped; the others are unaffected.
func (b *Broadcaster) Broadcast(name string, payload any) {
	data, err := json.Marshal(payload)
	if err != nil {
		slog.Error("encoding broadcast payload", "event", name, "error", err)
		return
	}

	b.mu.RLock()
	snapshot := make([]*Subscriber, 0, len(b.subs))
	for _, s := range b.subs {
		snapshot = append(snapshot, s)
	}
	b.mu.RUnlock()

	if len(snapshot) == 0 {
		return
	}

	type result struct {
		sub *Subscriber
		err error
	}
	results := make(chan result, len(snapshot))
	for _, s := range snapshot {
		go func(s *Subscriber) {
			results <- result{sub: s, err: s.send(name, data)}
		}(s)
	}

	timer := b.clock.NewTimer(b.writeTimeout)
	defer timer.Stop()

	pending := make(map[string]*Subscriber, len(snapshot))
	for _, s := range snapshot {
		pending[s.ID] = s
	}
	settle := func(r result) {
		delete(pending, r.sub.ID)
		if r.err != nil {
			slog.Debug("dropping subscriber after failed write",
				"subscriber_id", r.sub.ID,
				"event", name,
				"error", r.err)
			b.Unsubscribe(r.sub)
		}
	}

	for len(pending) > 0 {
		select {
		case r := <-results:
			settle(r)
		case <-timer.Chan():
			// Writes that finished alongside the timer still count.
			for drained := false; !drained; {
				select {
				case r := <-results:
					settle(r)
				default:
					drained = true
				}
			}
			for _, s := range pending {
				slog.Warn("dropping stalled subscriber",
					"subscriber_id", s.ID,
					"event", name,
					"timeout", b.writeTimeout)
				b.Unsubscribe(s)
			}
			return
		}
	}
}

// Notify makes the Broadcaster a Notifier sink.
func (b *Broadcaster) Notify(event Event) {
	b.Broadcast(event.Name, event.Data)
}

// Len returns the number of live subscribers.
func (b *Broadcaster) Len() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs)
}

// Run emits a ping to every subscriber on each interval until ctx is done.
func (b *Broadcaster) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-b.clock.After(b.pingInterval):
			b.Broadcast(EventPing, map[string]any{"t": b.clock.Now().UnixMilli()})
		}
	}
}

// Close removes every subscriber so their streams can end.
func (b *Broadcaster) Close() {
	b.mu.Lock()
	subs := b.subs
	b.subs = make(map[string]*Subscriber)
	b.mu.Unlock()

	for _, s := range subs {
		s.close()
	}
}
