package notify

import (
	"bytes"
	"fmt"
	"io"
	"time"
)

// EventWriter is the writable half of one subscriber stream.
type EventWriter interface {
	WriteEvent(name string, data []byte) error
}

// SSEWriter frames events as text/event-stream and flushes after each one.
type SSEWriter struct {
	w     io.Writer
	flush func() error

	setDeadline func(time.Time) error
	timeout     time.Duration
	now         func() time.Time
}

// NewSSEWriter wraps w. flush may be nil when w is unbuffered.
func NewSSEWriter(w io.Writer, flush func() error) *SSEWriter {
	return &SSEWriter{w: w, flush: flush, now: time.Now}
}

// WithWriteDeadline arms setDeadline to now+timeout before every event, so a
// peer that stops reading makes the write fail instead of blocking.
func (s *SSEWriter) WithWriteDeadline(setDeadline func(time.Time) error, timeout time.Duration) *SSEWriter {
	s.setDeadline = setDeadline
	s.timeout = timeout
	return s
}

// WriteEvent writes "event: <name>\ndata: <data>\n\n" in a single call.
func (s *SSEWriter) WriteEvent(name string, data []byte) error {
	var buf bytes.Buffer
	buf.Grow(len(name) + len(data) + 16)
	buf.WriteString("event: ")
	buf.WriteString(name)
	buf.WriteString("\ndata: ")
	buf.Write(data)
	buf.WriteString("\n\n")

	if s.setDeadline != nil && s.timeout > 0 {
		if err := s.setDeadline(s.now().Add(s.timeout)); err != nil {
			return fmt.Errorf("setting write deadline for %s: %w", name, err)
		}
	}
	if _, err := s.w.Write(buf.Bytes()); err != nil {
		return fmt.Errorf("writing event %s: %w", name, err)
	}
	if s.flush != nil {
		if err := s.flush(); err != nil {
			return fmt.Errorf("flushing event %s: %w", name, err)
		}
	}
	return nil
}
