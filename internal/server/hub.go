package server

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"

	"github.com/coder/websocket"

	"gtodo/internal/service"
)

// FrameSnapshot is the only frame type the hub sends.
const FrameSnapshot = "snapshot"

// Frame is a server-to-client WebSocket message.
type Frame struct {
	Type  string         `json:"type"`
	Tasks []service.Task `json:"tasks"`
}

// client is a connected WebSocket peer. It holds at most one unsent frame:
// a newer snapshot replaces an older one the writer has not picked up yet.
type client struct {
	conn *websocket.Conn
	wake chan struct{}

	mu      sync.Mutex
	pending []byte
	closed  bool
}

func newClient(conn *websocket.Conn) *client {
	return &client{conn: conn, wake: make(chan struct{}, 1)}
}

func (c *client) offer(data []byte) {
	c.mu.Lock()
	c.pending = data
	c.mu.Unlock()
	c.signal()
}

func (c *client) shutdown() {
	c.mu.Lock()
	c.closed = true
	c.mu.Unlock()
	c.signal()
}

func (c *client) signal() {
	select {
	case c.wake <- struct{}{}:
	default:
	}
}

// take returns and clears the pending frame.
func (c *client) take() (data []byte, closed bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	data, c.pending = c.pending, nil
	return data, c.closed
}

// Hub pushes ordered-list snapshots to every connected WebSocket client.
type Hub struct {
	log     *slog.Logger
	current func() []service.Task

	mu      sync.RWMutex
	clients map[*client]struct{}
	closed  bool
}

// NewHub creates a hub. current returns the snapshot sent on connect.
func NewHub(current func() []service.Task, logger *slog.Logger) *Hub {
	return &Hub{
		log:     logger,
		current: current,
		clients: make(map[*client]struct{}),
	}
}

// Publish queues a snapshot for every client without blocking. A client
// still writing an earlier frame gets only the newest one afterwards.
func (h *Hub) Publish(tasks []service.Task) {
	data, err := marshalSnapshot(tasks)
	if err != nil {
		h.log.Error("marshal snapshot frame", "error", err)
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()
	for c := range h.clients {
		c.offer(data)
	}
}

// Close disconnects every client.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.closed = true
	for c := range h.clients {
		delete(h.clients, c)
		c.shutdown()
	}
}

// ServeWS upgrades the request and streams snapshots until the peer leaves.
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: []string{"localhost:*", "127.0.0.1:*"},
	})
	if err != nil {
		h.log.Warn("ws accept", "error", err)
		return
	}

	c := newClient(conn)
	if !h.register(c) {
		conn.Close(websocket.StatusGoingAway, "server shutting down")
		return
	}

	// Clients never send; CloseRead drains control frames and cancels ctx
	// once the peer goes away.
	ctx := conn.CloseRead(r.Context())
	h.writePump(ctx, c)
	h.unregister(c)
	conn.Close(websocket.StatusNormalClosure, "")
}

// register adds c and queues the current snapshot ahead of any later Publish.
func (h *Hub) register(c *client) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return false
	}
	if data, err := marshalSnapshot(h.current()); err == nil {
		c.offer(data)
	}
	h.clients[c] = struct{}{}
	h.log.Debug("ws client connected", "clients", len(h.clients))
	return true
}

func (h *Hub) unregister(c *client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.clients[c]; ok {
		delete(h.clients, c)
		c.shutdown()
		h.log.Debug("ws client disconnected", "clients", len(h.clients))
	}
}

func (h *Hub) writePump(ctx context.Context, c *client) {
	for {
		select {
		case <-c.wake:
			msg, closed := c.take()
			if closed {
				return
			}
			if msg == nil {
				continue
			}
			if err := c.conn.Write(ctx, websocket.MessageText, msg); err != nil {
				h.log.Debug("ws write", "error", err)
				return
			}
		case <-ctx.Done():
			return
		}
	}
}

func marshalSnapshot(tasks []service.Task) ([]byte, error) {
	if tasks == nil {
		tasks = []service.Task{}
	}
	return json.Marshal(Frame{Type: FrameSnapshot, Tasks: tasks})
}
