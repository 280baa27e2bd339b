package ws

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/basel-bench/basel/internal/api"
	"github.com/basel-bench/basel/internal/compute"
)

const (
	writeTimeout = 10 * time.Second
	pongWait     = 60 * time.Second
	pingPeriod   = (pongWait * 9) / 10 // must be shorter than pongWait
	outBufSize   = 16
	maxInbound   = 512
)

// EventResults is the event name carried by every broadcast.
const EventResults = "results"

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 4096,
	// Origin policy is left to the reverse proxy.
	CheckOrigin: func(r *http.Request) bool { return true },
}

// Message is the JSON envelope sent to clients.
type Message struct {
	Event string               `json:"event"`
	Data  []api.ResultResponse `json:"data"`
}

// Hub fans the engine's cached results out to connected clients.
type Hub struct {
	engine   *compute.Engine
	interval time.Duration
	kick     chan struct{}

	mu    sync.RWMutex
	peers map[*peer]struct{}
}

type peer struct {
	conn *websocket.Conn
	out  chan []byte
}

// New creates a Hub that publishes eng's results every interval.
func New(eng *compute.Engine, interval time.Duration) *Hub {
	return &Hub{
		engine:   eng,
		interval: interval,
		kick:     make(chan struct{}, 1),
		peers:    make(map[*peer]struct{}),
	}
}

// Run broadcasts on every tick and on every Kick until ctx is cancelled,
// then closes all connections.
func (h *Hub) Run(ctx context.Context) {
	t := time.NewTicker(h.interval)
	defer t.Stop()

	for {
		select {
		case <-ctx.Done():
			h.dropAll()
			return
		case <-t.C:
			h.broadcast()
		case <-h.kick:
			h.broadcast()
		}
	}
}

// Kick asks Run to broadcast now. It never blocks; kicks that arrive while
// one is already pending are merged.
func (h *Hub) Kick() {
	select {
	case h.kick <- struct{}{}:
	default:
	}
}

// ServeHTTP upgrades the request, sends the current results and keeps the
// client registered until the connection closes.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return // upgrader already replied
	}

	p := &peer{conn: conn, out: make(chan []byte, outBufSize)}
	if msg, err := h.encode(); err == nil {
		p.out <- msg // not yet shared, cannot block
	}
	h.add(p)
	defer h.remove(p)

	go p.writeLoop()
	p.readLoop()
}

// Count returns the number of connected clients.
func (h *Hub) Count() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.peers)
}

func (h *Hub) add(p *peer) {
	h.mu.Lock()
	h.peers[p] = struct{}{}
	h.mu.Unlock()
}

func (h *Hub) remove(p *peer) {
	h.mu.Lock()
	if _, ok := h.peers[p]; ok {
		delete(h.peers, p)
		close(p.out)
	}
	h.mu.Unlock()
}

func (h *Hub) dropAll() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for p := range h.peers {
		close(p.out)
		delete(h.peers, p)
	}
}

func (h *Hub) broadcast() {
	msg, err := h.encode()
	if err != nil {
		return
	}

	// Sends happen under the read lock: out is only closed under the write
	// lock, so no peer can be closed mid-send.
	var slow []*peer
	h.mu.RLock()
	for p := range h.peers {
		select {
		case p.out <- msg:
		default:
			slow = append(slow, p)
		}
	}
	h.mu.RUnlock()

	for _, p := range slow {
		h.remove(p)
	}
}

func (h *Hub) encode() ([]byte, error) {
	return json.Marshal(Message{Event: EventResults, Data: api.BuildResults(h.engine)})
}

// writeLoop forwards queued messages and pings until out is closed or a
// write fails.
func (p *peer) writeLoop() {
	ping := time.NewTicker(pingPeriod)
	defer func() {
		ping.Stop()
		p.conn.Close()
	}()

	for {
		select {
		case msg, ok := <-p.out:
			p.conn.SetWriteDeadline(time.Now().Add(writeTimeout)) //nolint:errcheck
			if !ok {
				p.conn.WriteMessage(websocket.CloseMessage, []byte{}) //nolint:errcheck
				return
			}
			if err := p.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}
		case <-ping.C:
			p.conn.SetWriteDeadline(time.Now().Add(writeTimeout)) //nolint:errcheck
			if err := p.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// readLoop discards inbound frames so pongs and close frames are processed.
// It returns when the connection is gone.
func (p *peer) readLoop() {
	defer p.conn.Close()
	p.conn.SetReadLimit(maxInbound)
	p.conn.SetReadDeadline(time.Now().Add(pongWait)) //nolint:errcheck
	p.conn.SetPongHandler(func(string) error {
		return p.conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		if _, _, err := p.conn.ReadMessage(); err != nil {
			return
		}
	}
}
