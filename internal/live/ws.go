package live

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
)

// ErrNoPong is returned by Ping when the peer has not answered a ping
// within the sink's pong wait.
var ErrNoPong = errors.New("live: no pong from peer")

// WSSink writes text frames to a WebSocket connection.
type WSSink struct {
	mu       sync.Mutex
	ws       *websocket.Conn
	pongWait time.Duration
	lastPong atomic.Int64
	closed   bool
	done     chan struct{}
}

// NewWSSink wraps an upgraded connection. A peer that sends nothing and
// answers no ping for pongWait is treated as gone.
func NewWSSink(ws *websocket.Conn, pongWait time.Duration) *WSSink {
	s := &WSSink{ws: ws, pongWait: pongWait, done: make(chan struct{})}
	s.lastPong.Store(time.Now().UnixNano())
	_ = ws.SetReadDeadline(time.Now().Add(pongWait))
	ws.SetPongHandler(func(string) error {
		s.lastPong.Store(time.Now().UnixNano())
		return ws.SetReadDeadline(time.Now().Add(pongWait))
	})
	return s
}

// Send writes payload as one text message.
func (s *WSSink) Send(ctx context.Context, payload []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}
	_ = s.ws.SetWriteDeadline(deadline(ctx))
	return s.ws.WriteMessage(websocket.TextMessage, payload)
}

// Ping writes a ping control frame. It fails without writing when the
// previous pings went unanswered, since a half-open peer still accepts
// writes into the kernel buffer.
func (s *WSSink) Ping(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}
	if time.Since(time.Unix(0, s.lastPong.Load())) > s.pongWait {
		return ErrNoPong
	}
	return s.ws.WriteControl(websocket.PingMessage, []byte("ping"), deadline(ctx))
}

// ReadPump discards client frames until the connection fails, the read
// deadline passes or the sink is closed, then closes the sink. Reading is
// also what dispatches pongs.
func (s *WSSink) ReadPump() {
	defer s.Close() //nolint:errcheck
	for {
		if _, _, err := s.ws.ReadMessage(); err != nil {
			return
		}
		s.lastPong.Store(time.Now().UnixNano())
		_ = s.ws.SetReadDeadline(time.Now().Add(s.pongWait))
	}
}

// Close sends a close frame and closes the connection.
func (s *WSSink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	close(s.done)
	_ = s.ws.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(time.Second))
	return s.ws.Close()
}

// Done is closed when the sink is closed.
func (s *WSSink) Done() <-chan struct{} { return s.done }

func deadline(ctx context.Context) time.Time {
	if d, ok := ctx.Deadline(); ok {
		return d
	}
	return time.Now().Add(10 * time.Second)
}
