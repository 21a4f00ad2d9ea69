package ws

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/homespark/rt-coordination-service/internal/domain/model"
	"github.com/homespark/rt-coordination-service/internal/domain/registry"
)

// echoRouter bounces every frame back through the connection mailbox and
// records teardown, which is all the transport layer needs exercised.
type echoRouter struct {
	mu           sync.Mutex
	frames       []string
	disconnected int
}

func (r *echoRouter) HandleFrame(_ context.Context, conn registry.Connector, raw []byte) {
	r.mu.Lock()
	r.frames = append(r.frames, string(raw))
	r.mu.Unlock()
	conn.Send(raw, time.Second)
}

func (r *echoRouter) Disconnect(registry.Connector) {
	r.mu.Lock()
	r.disconnected++
	r.mu.Unlock()
}

func (r *echoRouter) disconnects() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.disconnected
}

func testServer(t *testing.T) (*httptest.Server, *registry.Hub, *echoRouter) {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	hub := registry.NewHub(logger)
	t.Cleanup(hub.Shutdown)

	router := &echoRouter{}
	handler := NewWSHandler(logger, hub, router)
	srv := httptest.NewServer(NewMux(handler, hub))
	t.Cleanup(srv.Close)
	return srv, hub, router
}

func dial(t *testing.T, srv *httptest.Server) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial %s: %v", url, err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

func readFrame(t *testing.T, conn *websocket.Conn) map[string]any {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, raw, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("read frame: %v", err)
	}
	var decoded map[string]any
	if err := json.Unmarshal(raw, &decoded); err != nil {
		t.Fatalf("frame is not valid JSON: %v", err)
	}
	return decoded
}

func TestConnectionEstablishedIsFirstFrame(t *testing.T) {
	srv, hub, _ := testServer(t)
	conn := dial(t, srv)

	got := readFrame(t, conn)
	if got["type"] != model.TypeConnectionEstablished {
		t.Fatalf("first frame type = %v, want connection_established", got["type"])
	}
	if got["resource_id"] == "" || got["resource_id"] == nil {
		t.Fatalf("first frame missing resource_id: %v", got)
	}

	if stats := hub.Stats(); stats.Connections != 1 {
		t.Fatalf("connections = %d, want 1", stats.Connections)
	}
}

func TestFramesRoundTrip(t *testing.T) {
	srv, _, router := testServer(t)
	conn := dial(t, srv)
	readFrame(t, conn) // connection_established

	if err := conn.WriteMessage(websocket.TextMessage, []byte(`{"type":"ping"}`)); err != nil {
		t.Fatalf("write: %v", err)
	}
	got := readFrame(t, conn)
	if got["type"] != "ping" {
		t.Fatalf("echoed frame = %v", got)
	}

	router.mu.Lock()
	frames := len(router.frames)
	router.mu.Unlock()
	if frames != 1 {
		t.Fatalf("routed frames = %d, want 1", frames)
	}
}

func TestTeardownRunsOnClientClose(t *testing.T) {
	srv, hub, router := testServer(t)
	conn := dial(t, srv)
	readFrame(t, conn) // connection_established

	conn.Close()

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if router.disconnects() == 1 && hub.Stats().Connections == 0 {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("teardown incomplete: disconnects=%d connections=%d",
		router.disconnects(), hub.Stats().Connections)
}

func TestHealthEndpoint(t *testing.T) {
	srv, _, _ := testServer(t)
	conn := dial(t, srv)
	readFrame(t, conn) // connection_established

	resp, err := srv.Client().Get(srv.URL + "/healthz")
	if err != nil {
		t.Fatalf("healthz: %v", err)
	}
	defer resp.Body.Close()

	var stats registry.Stats
	if err := json.NewDecoder(resp.Body).Decode(&stats); err != nil {
		t.Fatalf("decode stats: %v", err)
	}
	if stats.Connections != 1 {
		t.Fatalf("stats.connections = %d, want 1", stats.Connections)
	}
}
