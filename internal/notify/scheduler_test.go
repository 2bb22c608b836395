package notify

import (
	"testing"
	"time"

	"github.com/juju/clock/testclock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// recorder is a Notifier that exposes emitted events on a channel.
type recorder struct {
	ch chan Event
}

func newRecorder() *recorder {
	return &recorder{ch: make(chan Event, 16)}
}

func (r *recorder) Notify(e Event) {
	r.ch <- e
}

func (r *recorder) wait(t *testing.T) Event {
	t.Helper()
	select {
	case e := <-r.ch:
		return e
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for event")
		return Event{}
	}
}

func (r *recorder) none(t *testing.T) {
	t.Helper()
	select {
	case e := <-r.ch:
		t.Fatalf("unexpected event %q", e.Name)
	case <-time.After(50 * time.Millisecond):
	}
}

var epoch = time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

func TestScheduler_WhenBurstWithinQuietPeriod_EmitsOnce(t *testing.T) {
	t.Parallel()

	clk := testclock.NewClock(epoch)
	rec := newRecorder()
	s := NewScheduler(rec, 200*time.Millisecond, clk)

	for i := 0; i < 5; i++ {
		s.Notify()
		clk.Advance(50 * time.Millisecond)
	}
	rec.none(t)
	assert.True(t, s.Pending())

	// Last notify was at +200ms; the clock is at +250ms.
	clk.Advance(150 * time.Millisecond)

	e := rec.wait(t)
	assert.Equal(t, EventReload, e.Name)
	assert.Equal(t, epoch.Add(400*time.Millisecond).UnixMilli(), e.Data["t"])
	rec.none(t)
	assert.Eventually(t, func() bool { return !s.Pending() }, time.Second, 5*time.Millisecond)
}

func TestScheduler_WhenThreeNotifiesFiftyMsApart_EmitsOneReloadAt300ms(t *testing.T) {
	t.Parallel()

	clk := testclock.NewClock(epoch)
	rec := newRecorder()
	s := NewScheduler(rec, 200*time.Millisecond, clk)

	s.Notify()
	clk.Advance(50 * time.Millisecond)
	s.Notify()
	clk.Advance(50 * time.Millisecond)
	s.Notify()

	clk.Advance(199 * time.Millisecond)
	rec.none(t)

	clk.Advance(time.Millisecond)
	e := rec.wait(t)
	assert.Equal(t, EventReload, e.Name)
	assert.Equal(t, epoch.Add(300*time.Millisecond).UnixMilli(), e.Data["t"])
	rec.none(t)
}

func TestScheduler_WhenGapAtLeastQuietPeriod_EmitsTwice(t *testing.T) {
	t.Parallel()

	clk := testclock.NewClock(epoch)
	rec := newRecorder()
	s := NewScheduler(rec, 200*time.Millisecond, clk)

	s.Notify()
	clk.Advance(200 * time.Millisecond)
	rec.wait(t)

	s.Notify()
	clk.Advance(200 * time.Millisecond)
	e := rec.wait(t)

	assert.Equal(t, epoch.Add(400*time.Millisecond).UnixMilli(), e.Data["t"])
	rec.none(t)
}

func TestScheduler_Stop_CancelsPendingReload(t *testing.T) {
	t.Parallel()

	clk := testclock.NewClock(epoch)
	rec := newRecorder()
	s := NewScheduler(rec, 200*time.Millisecond, clk)

	s.Notify()
	require.True(t, s.Pending())
	s.Stop()
	assert.False(t, s.Pending())

	clk.Advance(time.Second)
	rec.none(t)
}

func TestScheduler_WhenStaleTimerFires_IsDiscarded(t *testing.T) {
	t.Parallel()

	rec := newRecorder()
	s := NewScheduler(rec, 200*time.Millisecond, testclock.NewClock(epoch))

	s.Notify()
	s.mu.Lock()
	stale := s.gen
	s.mu.Unlock()
	s.Notify()

	// Simulates the first timer firing concurrently with the second Notify.
	s.fire(stale)
	rec.none(t)
	assert.True(t, s.Pending())
}

func TestNewScheduler_WhenNonPositiveQuiet_UsesDefault(t *testing.T) {
	t.Parallel()

	s := NewScheduler(newRecorder(), 0, nil)
	assert.Equal(t, DefaultQuietPeriod, s.quiet)
	assert.NotNil(t, s.clock)
}
