package notify

import (
	"sync"
	"time"

	"github.com/juju/clock"
)

// DefaultQuietPeriod is used when a Scheduler is built with a non-positive period.
const DefaultQuietPeriod = 200 * time.Millisecond

// Scheduler coalesces bursts of change notifications into a single reload.
// Each Notify cancels the pending timer and starts a new one; only a timer
// that survives a full quiet period emits.
type Scheduler struct {
	clock clock.Clock
	quiet time.Duration
	sink  Notifier

	mu    sync.Mutex
	timer clock.Timer
	gen   uint64
}

// NewScheduler creates a Scheduler that emits reload events to sink after
// quiet has elapsed without a new notification. A nil clk uses the wall clock.
func NewScheduler(sink Notifier, quiet time.Duration, clk clock.Clock) *Scheduler {
	if quiet <= 0 {
		quiet = DefaultQuietPeriod
	}
	if clk == nil {
		clk = clock.WallClock
	}
	return &Scheduler{clock: clk, quiet: quiet, sink: sink}
}

// Notify records a change and (re)starts the quiet period.
func (s *Scheduler) Notify() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.timer != nil {
		s.timer.Stop()
	}
	s.gen++
	gen := s.gen
	s.timer = s.clock.AfterFunc(s.quiet, func() { s.fire(gen) })
}

// Pending reports whether a reload is waiting on its quiet period.
func (s *Scheduler) Pending() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.timer != nil
}

// Stop cancels any pending reload.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
	s.gen++
}

func (s *Scheduler) fire(gen uint64) {
	s.mu.Lock()
	// A Notify or Stop since this timer was armed supersedes it.
	if gen != s.gen || s.timer == nil {
		s.mu.Unlock()
		return
	}
	s.timer = nil
	s.mu.Unlock()

	s.sink.Notify(Event{
		Name: EventReload,
		Data: map[string]any{"t": s.clock.Now().UnixMilli()},
	})
}
