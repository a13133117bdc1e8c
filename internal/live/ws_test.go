package live_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/danblackadder/slumberhouse-api/internal/live"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// wsPair upgrades one connection on a test server and returns the server
// side sink with its read pump running, plus the client connection.
func wsPair(t *testing.T, pongWait time.Duration) (*live.WSSink, *websocket.Conn) {
	t.Helper()
	sinks := make(chan *live.WSSink, 1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		up := websocket.Upgrader{}
		ws, err := up.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		sink := live.NewWSSink(ws, pongWait)
		go sink.ReadPump()
		sinks <- sink
	}))
	t.Cleanup(srv.Close)

	client, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http"), nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })

	select {
	case sink := <-sinks:
		t.Cleanup(func() { _ = sink.Close() })
		return sink, client
	case <-time.After(2 * time.Second):
		t.Fatal("websocket upgrade timed out")
		return nil, nil
	}
}

func TestWSSink_SilentPeerIsDropped(t *testing.T) {
	// The client never reads, so pings are never answered.
	sink, _ := wsPair(t, 100*time.Millisecond)
	require.NoError(t, sink.Ping(context.Background()))

	select {
	case <-sink.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("sink was not closed after the pong wait")
	}
	assert.Error(t, sink.Ping(context.Background()))
}

func TestWSSink_AnsweringPeerStaysOpen(t *testing.T) {
	sink, client := wsPair(t, 200*time.Millisecond)
	// Reading dispatches the default ping handler, which answers with a pong.
	go func() {
		for {
			if _, _, err := client.ReadMessage(); err != nil {
				return
			}
		}
	}()

	for i := 0; i < 10; i++ {
		require.NoError(t, sink.Ping(context.Background()))
		time.Sleep(50 * time.Millisecond)
	}
	select {
	case <-sink.Done():
		t.Fatal("answering peer was dropped")
	default:
	}
	require.NoError(t, sink.Send(context.Background(), []byte(`["x"]`)))
}
