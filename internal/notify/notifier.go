package notify

import "sync"

// Event names emitted on the live stream.
const (
	EventHello  = "hello"
	EventPing   = "ping"
	EventReload = "reload"
)

// Event is a named notification with a JSON-encodable payload.
type Event struct {
	Name string
	Data map[string]any
}

// Notifier receives coalesced change notifications.
type Notifier interface {
	Notify(event Event)
}

// Fanout dispatches events to multiple notifiers, synchronously and in
// registration order.
type Fanout struct {
	mu        sync.RWMutex
	notifiers []Notifier
}

// NewFanout creates a Fanout with the given notifiers. Nil entries are skipped.
func NewFanout(notifiers ...Notifier) *Fanout {
	f := &Fanout{}
	for _, n := range notifiers {
		if n != nil {
			f.notifiers = append(f.notifiers, n)
		}
	}
	return f
}

// Add registers another notifier after construction.
func (f *Fanout) Add(n Notifier) {
	if n == nil {
		return
	}
	f.mu.Lock()
	f.notifiers = append(f.notifiers, n)
	f.mu.Unlock()
}

// Notify sends an event to all registered notifiers.
func (f *Fanout) Notify(event Event) {
	f.mu.RLock()
	notifiers := f.notifiers
	f.mu.RUnlock()

	for _, n := range notifiers {
		n.Notify(event)
	}
}
