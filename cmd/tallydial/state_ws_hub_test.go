package main

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
)

// Hub tests use Clients with a nil websocket.Conn; the hub never writes to conns itself
// and guards Close against nil.

func newTestHub(t *testing.T, sendBuf int, broadcastBuf int) *Hub {
	t.Helper()
	return NewHub(slog.Default(), HubConfig{
		SendBuf:      sendBuf,
		BroadcastBuf: broadcastBuf,
	})
}

func newTestClient(hub *Hub, name string, buf int) *Client {
	return &Client{
		hub:        hub,
		send:       make(chan []byte, buf),
		remoteAddr: name,
		logger:     slog.Default(),
	}
}

func registerAndWait(t *testing.T, hub *Hub, c *Client) {
	t.Helper()
	hub.register <- c
	waitUntil(t, 500*time.Millisecond, func() bool {
		hub.mu.Lock()
		defer hub.mu.Unlock()
		_, ok := hub.clients[c]
		return ok
	}, c.remoteAddr+" not registered in time")
}

func runHub(t *testing.T, hub *Hub) (context.CancelFunc, <-chan struct{}) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		hub.Run(ctx)
	}()
	return cancel, done
}

func TestHub_BroadcastDeliveredToAllClients(t *testing.T) {
	hub := newTestHub(t, 4, 8)
	cancel, done := runHub(t, hub)
	defer cancel()

	c1 := newTestClient(hub, "c1", 4)
	c2 := newTestClient(hub, "c2", 4)
	registerAndWait(t, hub, c1)
	registerAndWait(t, hub, c2)

	if n := hub.ClientCount(); n != 2 {
		t.Fatalf("client count = %d, want 2", n)
	}

	msg := []byte(`{"type":"count_changed","data":{"count":3}}`)
	hub.broadcast <- msg

	for _, c := range []*Client{c1, c2} {
		select {
		case got := <-c.send:
			if string(got) != string(msg) {
				t.Fatalf("%s got %q, want %q", c.remoteAddr, got, msg)
			}
		case <-time.After(500 * time.Millisecond):
			t.Fatalf("timeout waiting for %s to receive broadcast", c.remoteAddr)
		}
	}

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatalf("timeout waiting for hub to stop")
	}
}

func TestHub_SlowClientDisconnectedOnFullSendBuffer(t *testing.T) {
	hub := newTestHub(t, 1, 8)
	cancel, _ := runHub(t, hub)
	defer cancel()

	slow := newTestClient(hub, "slow", 1)
	fast := newTestClient(hub, "fast", 8)
	registerAndWait(t, hub, slow)
	registerAndWait(t, hub, fast)

	slow.send <- []byte(`"already queued"`)

	msg := []byte(`{"type":"count_reset","data":{"count":0}}`)
	hub.broadcast <- msg

	select {
	case got := <-fast.send:
		if string(got) != string(msg) {
			t.Fatalf("fast client got %q, want %q", got, msg)
		}
	case <-time.After(500 * time.Millisecond):
		t.Fatalf("timeout waiting for fast client to receive broadcast")
	}

	select {
	case <-slow.send:
	default:
	}

	waitUntil(t, 750*time.Millisecond, func() bool {
		select {
		case _, ok := <-slow.send:
			return !ok
		default:
			return false
		}
	}, "expected slow send channel to be closed")

	if n := hub.ClientCount(); n != 1 {
		t.Fatalf("client count = %d, want 1", n)
	}
}

func TestHub_UnregisterTwiceIsSafe(t *testing.T) {
	hub := newTestHub(t, 1, 1)
	cancel, _ := runHub(t, hub)
	defer cancel()

	c := newTestClient(hub, "c", 1)
	registerAndWait(t, hub, c)

	hub.unregister <- c
	hub.unregister <- c
	waitUntil(t, 500*time.Millisecond, func() bool { return hub.ClientCount() == 0 }, "client not removed")
}

// readFrame pulls one frame from the hub's inbound queue and decodes its envelope.
func readFrame(t *testing.T, hub *Hub, timeout time.Duration) (string, map[string]any) {
	t.Helper()
	select {
	case msg := <-hub.broadcast:
		var env struct {
			Type string         `json:"type"`
			Ts   *time.Time     `json:"ts"`
			Data map[string]any `json:"data"`
		}
		if err := json.Unmarshal(msg, &env); err != nil {
			t.Fatalf("bad frame %q: %v", msg, err)
		}
		if env.Ts == nil {
			t.Fatalf("frame %q has no ts", msg)
		}
		return env.Type, env.Data
	case <-time.After(timeout):
		t.Fatalf("timeout waiting for frame")
		return "", nil
	}
}

func TestBroadcaster_CoalescesCountChangesLatestWins(t *testing.T) {
	hub := newTestHub(t, 1, 16)
	src := make(chan StateBroadcast, 16)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go RunBroadcaster(ctx, hub, src, slog.Default())

	for i := 1; i <= 3; i++ {
		src <- BroadcastCountChanged{Count: i, Checkpoint: i, At: t0}
	}
	src <- BroadcastCountReset{At: t0}

	typ, data := readFrame(t, hub, time.Second)
	if typ != "count_changed" {
		t.Fatalf("first frame type = %q, want count_changed", typ)
	}
	if data["count"] != float64(3) {
		t.Fatalf("coalesced count = %v, want 3", data["count"])
	}

	typ, _ = readFrame(t, hub, time.Second)
	if typ != "count_reset" {
		t.Fatalf("second frame type = %q, want count_reset", typ)
	}

	select {
	case extra := <-hub.broadcast:
		t.Fatalf("unexpected extra frame %q", extra)
	case <-time.After(2 * wsCountCoalesceWindow):
	}
}

func TestBroadcaster_FlushesPendingCountAfterWindow(t *testing.T) {
	hub := newTestHub(t, 1, 16)
	src := make(chan StateBroadcast, 4)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go RunBroadcaster(ctx, hub, src, slog.Default())

	src <- BroadcastCountChanged{Count: 7, Checkpoint: 5, Major: true, GestureID: "g", At: t0}

	typ, data := readFrame(t, hub, time.Second)
	if typ != "count_changed" || data["count"] != float64(7) || data["major"] != true || data["gesture_id"] != "g" {
		t.Fatalf("frame = %s %v", typ, data)
	}
}

func TestBroadcaster_GestureFramesPassThrough(t *testing.T) {
	hub := newTestHub(t, 1, 16)
	src := make(chan StateBroadcast, 4)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go RunBroadcaster(ctx, hub, src, slog.Default())

	src <- BroadcastGesture{GestureID: "g", Active: false, Canceled: true, At: t0}

	typ, data := readFrame(t, hub, 20*time.Millisecond+wsCountCoalesceWindow)
	if typ != "gesture" || data["active"] != false || data["canceled"] != true {
		t.Fatalf("frame = %s %v", typ, data)
	}
}

func TestClient_TrySendAfterCloseIsRejected(t *testing.T) {
	c := newTestClient(nil, "c", 1)
	if !c.trySend([]byte("a")) {
		t.Fatalf("trySend on open client with room failed")
	}
	if c.trySend([]byte("b")) {
		t.Fatalf("trySend on full buffer succeeded")
	}
	c.closeSend()
	c.closeSend()
	if c.trySend([]byte("c")) {
		t.Fatalf("trySend after close succeeded")
	}
}

func TestServer_StateInitAfterClientLeft(t *testing.T) {
	events := make(chan Event, 1)
	srv := NewServer(slog.Default(), events, ServerConfig{})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go srv.Hub().Run(ctx)

	r := mux.NewRouter()
	srv.Register(r, "/ws")

	panicked := make(chan any, 1)
	handled := make(chan struct{})
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		defer close(handled)
		defer func() { panicked <- recover() }()
		r.ServeHTTP(w, req)
	}))
	defer ts.Close()

	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(ts.URL, "http")+"/ws", nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}

	var req RequestStateSnapshot
	select {
	case ev := <-events:
		req = ev.(RequestStateSnapshot)
	case <-time.After(time.Second):
		t.Fatalf("no snapshot request")
	}

	// Hold the reply until the hub has dropped the departed client.
	waitUntil(t, time.Second, func() bool { return srv.Hub().ClientCount() == 1 }, "client not registered")
	conn.Close()
	waitUntil(t, time.Second, func() bool { return srv.Hub().ClientCount() == 0 }, "client not unregistered")

	req.Reply <- StateSnapshot{Count: 3}

	select {
	case <-handled:
	case <-time.After(time.Second):
		t.Fatalf("handler did not return")
	}
	if p := <-panicked; p != nil {
		t.Fatalf("handler panicked: %v", p)
	}
}

func waitUntil(t *testing.T, timeout time.Duration, cond func() bool, msg string) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("timeout: %s", msg)
}
