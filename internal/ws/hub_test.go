package ws_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/basel-bench/basel/internal/compute"
	"github.com/basel-bench/basel/internal/store"
	wsHub "github.com/basel-bench/basel/internal/ws"
)

const testInterval = 20 * time.Millisecond

// --- helpers ----------------------------------------------------------------

func newEngine(t *testing.T, terms ...int) *compute.Engine {
	t.Helper()
	eng := compute.NewEngine(store.New(5*time.Minute), 1e-7)
	if err := eng.Warm(context.Background(), terms); err != nil {
		t.Fatalf("warm: %v", err)
	}
	return eng
}

// startHub serves hub over httptest and runs its loop until the test ends.
func startHub(t *testing.T, eng *compute.Engine, interval time.Duration) (string, *wsHub.Hub) {
	t.Helper()

	hub := wsHub.New(eng, interval)
	ctx, cancel := context.WithCancel(context.Background())
	srv := httptest.NewServer(http.HandlerFunc(hub.ServeHTTP))
	go hub.Run(ctx)

	t.Cleanup(func() {
		cancel()
		srv.Close()
	})
	return "ws" + strings.TrimPrefix(srv.URL, "http"), hub
}

func dial(t *testing.T, url string) *websocket.Conn {
	t.Helper()
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial %s: %v", url, err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

func readMessage(t *testing.T, conn *websocket.Conn) wsHub.Message {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, raw, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("ReadMessage: %v", err)
	}
	var msg wsHub.Message
	if err := json.Unmarshal(raw, &msg); err != nil {
		t.Fatalf("unmarshal %s: %v", raw, err)
	}
	return msg
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatal("condition not met before deadline")
		}
		time.Sleep(5 * time.Millisecond)
	}
}

// --- tests ------------------------------------------------------------------

func TestHub_SendsResultsOnConnect(t *testing.T) {
	url, _ := startHub(t, newEngine(t, 1, 2), time.Hour)
	conn := dial(t, url)

	msg := readMessage(t, conn)
	if msg.Event != wsHub.EventResults {
		t.Errorf("event = %q, want %q", msg.Event, wsHub.EventResults)
	}
	if len(msg.Data) != 2 || msg.Data[0].N != 1 || msg.Data[1].Sum != 1.25 {
		t.Errorf("data = %+v", msg.Data)
	}
}

func TestHub_BroadcastsOnTick(t *testing.T) {
	url, _ := startHub(t, newEngine(t, 3), testInterval)
	conn := dial(t, url)

	readMessage(t, conn) // on connect
	msg := readMessage(t, conn)
	if len(msg.Data) != 1 || msg.Data[0].N != 3 {
		t.Errorf("tick data = %+v", msg.Data)
	}
}

func TestHub_KickPublishesNewResults(t *testing.T) {
	eng := newEngine(t)
	url, hub := startHub(t, eng, time.Hour)
	conn := dial(t, url)

	if first := readMessage(t, conn); len(first.Data) != 0 {
		t.Fatalf("initial data = %+v, want empty", first.Data)
	}

	if _, err := eng.Compute(context.Background(), 10); err != nil {
		t.Fatal(err)
	}
	hub.Kick()

	msg := readMessage(t, conn)
	if len(msg.Data) != 1 || msg.Data[0].N != 10 {
		t.Errorf("after kick data = %+v", msg.Data)
	}
}

func TestHub_CountTracksClients(t *testing.T) {
	url, hub := startHub(t, newEngine(t), time.Hour)

	c1 := dial(t, url)
	dial(t, url)
	waitFor(t, func() bool { return hub.Count() == 2 })

	c1.Close()
	waitFor(t, func() bool { return hub.Count() == 1 })
}

func TestHub_KickNeverBlocks(t *testing.T) {
	hub := wsHub.New(newEngine(t), time.Hour)
	done := make(chan struct{})
	go func() {
		for i := 0; i < 100; i++ {
			hub.Kick()
		}
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Kick blocked without a running hub")
	}
}
