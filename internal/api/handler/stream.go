package handler

import (
	"log/slog"
	"net/http"
	"slices"
	"time"

	"github.com/danblackadder/slumberhouse-api/internal/live"
	"github.com/gorilla/websocket"
)

// Streamer serves a live registry over server-sent events and WebSockets.
// Both routes expect {groupId} and run behind the group member gate.
type Streamer struct {
	allowedOrigins []string
	pongWait       time.Duration
	log            *slog.Logger
}

// NewStreamer creates a Streamer. An allowed origin of "*" accepts any
// WebSocket origin. A WebSocket peer silent for pongWait is dropped.
func NewStreamer(allowedOrigins []string, pongWait time.Duration, log *slog.Logger) *Streamer {
	return &Streamer{allowedOrigins: allowedOrigins, pongWait: pongWait, log: log}
}

func (s *Streamer) upgrader() websocket.Upgrader {
	return websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			origin := r.Header.Get("Origin")
			if origin == "" || slices.Contains(s.allowedOrigins, "*") || slices.Contains(s.allowedOrigins, origin) {
				return true
			}
			s.log.Warn("websocket origin rejected", slog.String("origin", origin))
			return false
		},
	}
}

// SSE returns a handler that subscribes the response to reg until the
// client goes away or the registry drops it.
func (s *Streamer) SSE(reg *live.Registry) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		groupID := r.PathValue("groupId")
		sink, err := live.NewSSESink(w)
		if err != nil {
			s.log.ErrorContext(r.Context(), "open event stream", slog.String("error", err.Error()))
			return
		}
		defer sink.Close() //nolint:errcheck

		id, err := reg.Subscribe(r.Context(), groupID, sink)
		if err != nil {
			s.log.WarnContext(r.Context(), "live subscribe failed",
				slog.String("registry", reg.Name()), slog.String("group_id", groupID), slog.String("error", err.Error()))
			return
		}
		defer reg.Unsubscribe(id)

		select {
		case <-r.Context().Done():
		case <-sink.Done():
		}
	}
}

// WS returns a handler that upgrades the request and subscribes the
// connection to reg.
func (s *Streamer) WS(reg *live.Registry) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		groupID := r.PathValue("groupId")
		upgrader := s.upgrader()
		ws, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			s.log.Error("websocket upgrade failed", slog.String("error", err.Error()))
			return
		}
		sink := live.NewWSSink(ws, s.pongWait)
		defer sink.Close() //nolint:errcheck
		go sink.ReadPump()

		id, err := reg.Subscribe(r.Context(), groupID, sink)
		if err != nil {
			s.log.WarnContext(r.Context(), "live subscribe failed",
				slog.String("registry", reg.Name()), slog.String("group_id", groupID), slog.String("error", err.Error()))
			return
		}
		defer reg.Unsubscribe(id)

		<-sink.Done()
	}
}
