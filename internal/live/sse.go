package live

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"time"
)

// SSESink writes server-sent events to an HTTP response.
type SSESink struct {
	mu     sync.Mutex
	w      http.ResponseWriter
	rc     *http.ResponseController
	closed bool
	done   chan struct{}
}

// NewSSESink sends the event-stream headers and returns a sink over w. The
// server's write deadline is cleared; each Send sets its own.
func NewSSESink(w http.ResponseWriter) (*SSESink, error) {
	rc := http.NewResponseController(w)
	if err := rc.SetWriteDeadline(time.Time{}); err != nil && !errors.Is(err, http.ErrNotSupported) {
		return nil, err
	}
	h := w.Header()
	h.Set("Content-Type", "text/event-stream")
	h.Set("Cache-Control", "no-cache")
	h.Set("Connection", "keep-alive")
	h.Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)
	if err := rc.Flush(); err != nil {
		return nil, err
	}
	return &SSESink{w: w, rc: rc, done: make(chan struct{})}, nil
}

// Send writes payload as one data frame.
func (s *SSESink) Send(ctx context.Context, payload []byte) error {
	frame := make([]byte, 0, len(payload)+8)
	frame = append(frame, "data: "...)
	frame = append(frame, payload...)
	frame = append(frame, "\n\n"...)
	return s.write(ctx, frame)
}

// Ping writes a comment frame.
func (s *SSESink) Ping(ctx context.Context) error {
	return s.write(ctx, []byte(": ping\n\n"))
}

func (s *SSESink) write(ctx context.Context, frame []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	if d, ok := ctx.Deadline(); ok {
		if err := s.rc.SetWriteDeadline(d); err != nil && !errors.Is(err, http.ErrNotSupported) {
			return err
		}
		defer s.rc.SetWriteDeadline(time.Time{}) //nolint:errcheck
	}
	if _, err := s.w.Write(frame); err != nil {
		return err
	}
	return s.rc.Flush()
}

// Close stops further writes. The handler that owns the response must
// return once Done is closed.
func (s *SSESink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.closed {
		s.closed = true
		close(s.done)
	}
	return nil
}

// Done is closed when the sink is closed.
func (s *SSESink) Done() <-chan struct{} { return s.done }
