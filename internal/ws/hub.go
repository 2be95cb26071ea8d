// Package ws accepts orders over WebSocket and streams settlement reports back
// to the connection that submitted them.
package ws

import (
	"context"
	"net/http"
	"sync"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/Aidin1998/dexter/pkg/models"
)

// Submitter is the order intake the hub feeds.
type Submitter interface {
	Submit(ctx context.Context, order models.Order, reply chan<- models.SettlementReport) (models.Order, error)
}

// Hub upgrades connections and tracks the live clients.
type Hub struct {
	intake   Submitter
	logger   *zap.Logger
	upgrader websocket.Upgrader

	mu      sync.RWMutex
	clients map[*Client]struct{}
}

// NewHub creates a Hub that submits every inbound order to intake.
func NewHub(intake Submitter, logger *zap.Logger) *Hub {
	return &Hub{
		intake: intake,
		logger: logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
		clients: make(map[*Client]struct{}),
	}
}

// ServeWS upgrades HTTP to WS and starts the client's pumps.
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade already wrote the HTTP error.
		h.logger.Warn("websocket upgrade failed", zap.Error(err), zap.String("remote", r.RemoteAddr))
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	c := &Client{
		id:      uuid.NewString(),
		conn:    conn,
		hub:     h,
		send:    make(chan Frame, 64),
		reports: make(chan models.SettlementReport, 256),
		ctx:     ctx,
		cancel:  cancel,
		logger:  h.logger,
	}
	h.register(c)
	c.logger.Info("websocket client connected", zap.String("client_id", c.id), zap.String("remote", r.RemoteAddr))

	go c.writePump()
	go c.forwardReports()
	go c.readPump()
}

func (h *Hub) register(c *Client) {
	h.mu.Lock()
	h.clients[c] = struct{}{}
	h.mu.Unlock()
}

func (h *Hub) unregister(c *Client) {
	h.mu.Lock()
	delete(h.clients, c)
	h.mu.Unlock()
}

// Len returns the number of connected clients.
func (h *Hub) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Close disconnects every client.
func (h *Hub) Close() {
	h.mu.RLock()
	clients := make([]*Client, 0, len(h.clients))
	for c := range h.clients {
		clients = append(clients, c)
	}
	h.mu.RUnlock()

	for _, c := range clients {
		c.cancel()
	}
}
