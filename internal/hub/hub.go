package hub

import (
	"sync"

	"github.com/sannge/pms-collab-gateway/internal/config"
	"github.com/sannge/pms-collab-gateway/internal/metrics"
	"github.com/sannge/pms-collab-gateway/pkg/log"
)

// Hub owns the connection registry and the room registry. The client map is
// locked only for whole-connection insert/delete and count reads; per-room
// member sets carry their own locks (room.go) so traffic in one room never
// blocks another.
type Hub struct {
	cfg     config.WebSocketConfig
	metrics *metrics.Registry

	mu      sync.RWMutex
	clients map[string]*Client

	roomsMu sync.RWMutex
	rooms   map[string]*room
}

func NewHub(cfg config.WebSocketConfig, m *metrics.Registry) *Hub {
	return &Hub{
		cfg:     cfg,
		metrics: m,
		clients: make(map[string]*Client),
		rooms:   make(map[string]*room),
	}
}

// Register records a new connection with zero room memberships.
func (h *Hub) Register(c *Client) {
	h.mu.Lock()
	h.clients[c.ID] = c
	h.mu.Unlock()

	if h.metrics != nil {
		h.metrics.ConnectionsActive.Inc()
	}
	log.L().Debug().
		Str(log.FieldClientID, c.ID).
		Str(log.FieldUserID, c.UserID).
		Msg("client registered")
}

// Unregister discards a connection. It is idempotent and, as a safety net,
// strips any room memberships the disconnect path did not already clean up,
// so a member-count read after Unregister returns never includes c.
func (h *Hub) Unregister(c *Client) {
	h.mu.Lock()
	_, ok := h.clients[c.ID]
	if ok {
		delete(h.clients, c.ID)
	}
	h.mu.Unlock()
	if !ok {
		return
	}

	for _, roomID := range c.Rooms() {
		h.Leave(roomID, c)
	}
	c.closeSend()

	if h.metrics != nil {
		h.metrics.ConnectionsActive.Dec()
	}
	log.L().Debug().
		Str(log.FieldClientID, c.ID).
		Str(log.FieldUserID, c.UserID).
		Msg("client unregistered")
}

// Get looks up a live connection by ID.
func (h *Hub) Get(connID string) (*Client, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	c, ok := h.clients[connID]
	return c, ok
}

// ClientCount returns the number of live connections.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

func (h *Hub) noteDelivered() {
	if h.metrics != nil {
		h.metrics.MessagesDelivered.Inc()
	}
}

func (h *Hub) noteDropped() {
	if h.metrics != nil {
		h.metrics.MessagesDropped.Inc()
	}
}
