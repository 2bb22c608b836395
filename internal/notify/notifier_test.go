package notify

import (
	"bytes"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type orderedSink struct {
	name string
	log  *[]string
}

func (o orderedSink) Notify(e Event) {
	*o.log = append(*o.log, o.name+":"+e.Name)
}

func TestFanout_Notify_DeliversInRegistrationOrder(t *testing.T) {
	t.Parallel()

	var log []string
	f := NewFanout(orderedSink{"a", &log}, nil, orderedSink{"b", &log})

	f.Notify(Event{Name: EventReload})

	assert.Equal(t, []string{"a:reload", "b:reload"}, log)
}

func TestFanout_Add_AppendsAfterConstruction(t *testing.T) {
	t.Parallel()

	var log []string
	f := NewFanout(orderedSink{"a", &log})
	f.Add(orderedSink{"b", &log})
	f.Add(nil)

	f.Notify(Event{Name: EventReload})

	assert.Equal(t, []string{"a:reload", "b:reload"}, log)
}

type mockSender struct {
	mu    sync.Mutex
	calls []map[string]any
	meths []string
}

func (m *mockSender) SendNotificationToAllClients(method string, params map[string]any) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.meths = append(m.meths, method)
	m.calls = append(m.calls, params)
}

func TestMCPNotifier_Notify_ForwardsReload(t *testing.T) {
	t.Parallel()

	s := &mockSender{}
	NewMCPNotifier(s).Notify(Event{Name: EventReload, Data: map[string]any{"t": int64(99)}})

	require.Len(t, s.calls, 1)
	assert.Equal(t, "notifications/message", s.meths[0])
	assert.Equal(t, "info", s.calls[0]["level"])
	assert.Equal(t, "boardcast", s.calls[0]["logger"])
	assert.Equal(t, map[string]any{"type": "reload", "t": int64(99)}, s.calls[0]["data"])
}

func TestMCPNotifier_Notify_IgnoresPing(t *testing.T) {
	t.Parallel()

	s := &mockSender{}
	NewMCPNotifier(s).Notify(Event{Name: EventPing})

	assert.Empty(t, s.calls)
}

func TestSSEWriter_WriteEvent_FramesAndFlushes(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	flushes := 0
	w := NewSSEWriter(&buf, func() error { flushes++; return nil })

	require.NoError(t, w.WriteEvent("hello", []byte(`{"ok":true}`)))
	require.NoError(t, w.WriteEvent("ping", []byte(`{"t":1}`)))

	assert.Equal(t, "event: hello\ndata: {\"ok\":true}\n\nevent: ping\ndata: {\"t\":1}\n\n", buf.String())
	assert.Equal(t, 2, flushes)
}

func TestSSEWriter_WriteEvent_WhenFlushFails_ReturnsError(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	w := NewSSEWriter(&buf, func() error { return errors.New("connection closed") })

	err := w.WriteEvent("reload", []byte(`{}`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "connection closed")
}

func TestSSEWriter_WithWriteDeadline_ArmsBeforeEachEvent(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	var deadlines []time.Time
	w := NewSSEWriter(&buf, nil).WithWriteDeadline(func(d time.Time) error {
		deadlines = append(deadlines, d)
		return nil
	}, 5*time.Second)
	w.now = func() time.Time { return epoch }

	require.NoError(t, w.WriteEvent("ping", []byte(`{"t":1}`)))
	require.NoError(t, w.WriteEvent("reload", []byte(`{"t":2}`)))

	assert.Equal(t, []time.Time{epoch.Add(5 * time.Second), epoch.Add(5 * time.Second)}, deadlines)
}

func TestSSEWriter_WhenDeadlineCannotBeSet_DoesNotWrite(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	w := NewSSEWriter(&buf, nil).WithWriteDeadline(func(time.Time) error {
		return errors.New("connection closed")
	}, time.Second)

	require.Error(t, w.WriteEvent("reload", []byte(`{}`)))
	assert.Empty(t, buf.String())
}
