package hub

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/sannge/pms-collab-gateway/internal/config"
	"github.com/sannge/pms-collab-gateway/pkg/log"
)

// Client is one live WebSocket connection. A user may hold any number of
// clients at once (multi-device); identity is per connection, not per user.
type Client struct {
	ID          string
	UserID      string
	ConnectedAt time.Time
	Hub         *Hub
	Conn        *websocket.Conn
	Send        chan []byte

	cfg config.WebSocketConfig

	mu     sync.Mutex
	rooms  map[string]time.Time // roomID -> joinedAt
	closed bool
}

// NewClient wraps an upgraded connection for the given authenticated user.
func NewClient(h *Hub, conn *websocket.Conn, userID string) *Client {
	return &Client{
		ID:          uuid.New().String(),
		UserID:      userID,
		ConnectedAt: time.Now().UTC(),
		Hub:         h,
		Conn:        conn,
		Send:        make(chan []byte, h.cfg.SendBufferSize),
		cfg:         h.cfg,
		rooms:       make(map[string]time.Time),
	}
}

// Rooms returns a snapshot of the rooms this client is currently a member of.
func (c *Client) Rooms() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]string, 0, len(c.rooms))
	for id := range c.rooms {
		out = append(out, id)
	}
	return out
}

// InRoom reports whether this client is currently a member of roomID.
func (c *Client) InRoom(roomID string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.rooms[roomID]
	return ok
}

func (c *Client) addRoom(roomID string) {
	c.mu.Lock()
	if _, ok := c.rooms[roomID]; !ok {
		c.rooms[roomID] = time.Now().UTC()
	}
	c.mu.Unlock()
}

func (c *Client) removeRoom(roomID string) {
	c.mu.Lock()
	delete(c.rooms, roomID)
	c.mu.Unlock()
}

// enqueue hands a payload to the write pump without blocking. It reports
// false when the client is gone or its buffer is full; the caller decides
// whether that counts as a drop.
func (c *Client) enqueue(payload []byte) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return false
	}
	select {
	case c.Send <- payload:
		return true
	default:
		return false
	}
}

// closeSend closes the send queue exactly once. Safe to call repeatedly.
func (c *Client) closeSend() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.closed {
		c.closed = true
		close(c.Send)
	}
}

// SendMessage marshals and queues a message for this client alone.
func (c *Client) SendMessage(message interface{}) error {
	data, err := json.Marshal(message)
	if err != nil {
		return err
	}
	if !c.enqueue(data) {
		c.Hub.noteDropped()
		return nil
	}
	c.Hub.noteDelivered()
	return nil
}

// ReadPump reads inbound frames and hands each to handler in order,
// preserving per-connection sequencing. onClose runs exactly once when the
// transport ends, however it ended, so room cleanup always fires.
func (c *Client) ReadPump(handler func(*Client, []byte), onClose func(*Client)) {
	defer func() {
		onClose(c)
		c.Conn.Close()
	}()

	c.Conn.SetReadLimit(c.cfg.MaxMessageSize)
	c.Conn.SetReadDeadline(time.Now().Add(c.cfg.PongWait))
	c.Conn.SetPongHandler(func(string) error {
		c.Conn.SetReadDeadline(time.Now().Add(c.cfg.PongWait))
		return nil
	})

	for {
		_, message, err := c.Conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure, websocket.CloseNormalClosure) {
				log.L().Debug().Err(err).Str(log.FieldClientID, c.ID).Msg("websocket read error")
			}
			break
		}

		handler(c, message)
	}
}

// WritePump drains the send queue onto the wire and keeps the transport
// alive with periodic pings.
func (c *Client) WritePump() {
	ticker := time.NewTicker(c.cfg.PingInterval)
	defer func() {
		ticker.Stop()
		c.Conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.Send:
			c.Conn.SetWriteDeadline(time.Now().Add(c.cfg.WriteWait))
			if !ok {
				c.Conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			if err := c.Conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}

		case <-ticker.C:
			c.Conn.SetWriteDeadline(time.Now().Add(c.cfg.WriteWait))
			if err := c.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
