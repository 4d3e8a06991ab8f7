// Package ws serves the RPC envelope over websockets.
package ws

import (
	"context"
	"net/http"
	"sync"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/juju/loggo/v2"
	"gopkg.in/tomb.v2"

	"github.com/Vasu1712/scenyx-stage/internal/wire"
)

var logger = loggo.GetLogger("stage.ws")

const sendBuffer = 256

// Dispatcher answers one RPC request.
type Dispatcher interface {
	HandleRPC(ctx context.Context, msg *wire.RpcMessage) *wire.RpcMessage
}

// Hub tracks connected clients and disconnects them on shutdown.
type Hub struct {
	tomb     tomb.Tomb
	upgrader websocket.Upgrader

	mu      sync.RWMutex
	closed  bool
	clients map[string]*Client // session id -> client
}

// NewHub starts a Hub. allowedOrigin limits browser clients; empty or "*"
// accepts any origin.
func NewHub(allowedOrigin string) *Hub {
	h := &Hub{clients: make(map[string]*Client)}
	h.upgrader.CheckOrigin = func(r *http.Request) bool {
		if allowedOrigin == "" || allowedOrigin == "*" {
			return true
		}
		origin := r.Header.Get("Origin")
		return origin == "" || origin == allowedOrigin
	}
	h.tomb.Go(h.run)
	return h
}

func (h *Hub) run() error {
	<-h.tomb.Dying()
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, c := range h.clients {
		h.removeLocked(c)
	}
	return nil
}

// Count returns the number of connected clients.
func (h *Hub) Count() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// ServeWS upgrades the request and serves RPC requests from the new client
// through d until it disconnects.
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request, d Dispatcher) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		logger.Warningf("websocket upgrade from %s failed: %v", r.RemoteAddr, err)
		return
	}
	c := &Client{
		ID:   uuid.NewString(),
		hub:  h,
		conn: conn,
		send: make(chan *wire.RpcMessage, sendBuffer),
		kick: make(chan struct{}),
		done: make(chan struct{}),
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		_ = conn.Close()
		return
	}
	h.clients[c.ID] = c
	h.tomb.Go(c.writePump)
	h.tomb.Go(func() error { return c.readPump(d) })
	logger.Infof("client %s connected from %s", c.ID, r.RemoteAddr)
}

// unregister drops c if it is still registered.
func (h *Hub) unregister(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.clients[c.ID]; ok {
		h.removeLocked(c)
	}
}

func (h *Hub) removeLocked(c *Client) {
	delete(h.clients, c.ID)
	close(c.kick)
	logger.Infof("client %s disconnected", c.ID)
}

// Kill asks the hub to disconnect every client and stop.
func (h *Hub) Kill() {
	h.mu.Lock()
	h.closed = true
	h.mu.Unlock()
	h.tomb.Kill(nil)
}

// Wait waits for the hub and its clients to stop.
func (h *Hub) Wait() error {
	return h.tomb.Wait()
}

// Close stops the hub and waits for it.
func (h *Hub) Close() error {
	h.Kill()
	return h.Wait()
}
