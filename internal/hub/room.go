package hub

import (
	"encoding/json"
	"sync"

	"github.com/sannge/pms-collab-gateway/pkg/log"
)

// room is one broadcast group. Each room has its own lock so join/leave/
// broadcast on different rooms proceed independently; the hub-level roomsMu
// is held only to create, look up, or delete whole rooms.
type room struct {
	mu      sync.RWMutex
	members map[string]*Client // connection ID -> client
	closed  bool               // set while the room is being reaped
}

func newRoom() *room {
	return &room{members: make(map[string]*Client)}
}

// Join adds c to the room, creating it on first join, and returns the
// resulting member count. Re-joining is a no-op that still returns the
// current count.
func (h *Hub) Join(roomID string, c *Client) int {
	for {
		h.roomsMu.Lock()
		r := h.rooms[roomID]
		if r == nil {
			r = newRoom()
			h.rooms[roomID] = r
			if h.metrics != nil {
				h.metrics.RoomsActive.Inc()
			}
		}
		h.roomsMu.Unlock()

		r.mu.Lock()
		if r.closed {
			// Lost a race with reapRoom; the registry no longer holds r.
			r.mu.Unlock()
			continue
		}
		if _, ok := r.members[c.ID]; !ok {
			r.members[c.ID] = c
			c.addRoom(roomID)
		}
		count := len(r.members)
		r.mu.Unlock()

		log.L().Debug().
			Str(log.FieldClientID, c.ID).
			Str(log.FieldRoomID, roomID).
			Int("member_count", count).
			Msg("client joined room")
		return count
	}
}

// Leave removes c from the room and deletes the room once its member set
// empties. Leaving a room never joined is a no-op.
func (h *Hub) Leave(roomID string, c *Client) {
	h.roomsMu.RLock()
	r := h.rooms[roomID]
	h.roomsMu.RUnlock()

	c.removeRoom(roomID)
	if r == nil {
		return
	}

	r.mu.Lock()
	if _, ok := r.members[c.ID]; !ok {
		r.mu.Unlock()
		return
	}
	delete(r.members, c.ID)
	empty := len(r.members) == 0
	r.mu.Unlock()

	log.L().Debug().
		Str(log.FieldClientID, c.ID).
		Str(log.FieldRoomID, roomID).
		Msg("client left room")

	if empty {
		h.reapRoom(roomID, r)
	}
}

// reapRoom deletes a room that emptied, unless a concurrent Join revived it.
func (h *Hub) reapRoom(roomID string, r *room) {
	h.roomsMu.Lock()
	defer h.roomsMu.Unlock()
	if h.rooms[roomID] != r {
		return
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.members) > 0 {
		return
	}
	r.closed = true
	delete(h.rooms, roomID)
	if h.metrics != nil {
		h.metrics.RoomsActive.Dec()
	}
}

// Members returns a snapshot of the connection IDs in a room.
func (h *Hub) Members(roomID string) []string {
	clients := h.roomClients(roomID)
	ids := make([]string, 0, len(clients))
	for _, c := range clients {
		ids = append(ids, c.ID)
	}
	return ids
}

// MemberCount returns the current size of a room, zero if it does not exist.
func (h *Hub) MemberCount(roomID string) int {
	h.roomsMu.RLock()
	r := h.rooms[roomID]
	h.roomsMu.RUnlock()
	if r == nil {
		return 0
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.members)
}

// RoomCount returns the number of rooms with at least one member.
func (h *Hub) RoomCount() int {
	h.roomsMu.RLock()
	defer h.roomsMu.RUnlock()
	return len(h.rooms)
}

func (h *Hub) roomClients(roomID string) []*Client {
	h.roomsMu.RLock()
	r := h.rooms[roomID]
	h.roomsMu.RUnlock()
	if r == nil {
		return nil
	}

	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*Client, 0, len(r.members))
	for _, c := range r.members {
		out = append(out, c)
	}
	return out
}

// Broadcast delivers message to every member of a room except excludeID
// (empty string excludes no one). Delivery to each member is attempted
// independently; a slow or mid-teardown peer is skipped, never letting one
// recipient stall or fail the rest. Called from the sender's own read loop,
// so messages from one connection reach each recipient in dispatch order.
func (h *Hub) Broadcast(roomID string, message interface{}, excludeID string) error {
	data, err := json.Marshal(message)
	if err != nil {
		return err
	}

	for _, c := range h.roomClients(roomID) {
		if c.ID == excludeID {
			continue
		}
		if c.enqueue(data) {
			h.noteDelivered()
		} else {
			h.noteDropped()
			log.L().Debug().
				Str(log.FieldClientID, c.ID).
				Str(log.FieldRoomID, roomID).
				Msg("dropped broadcast to slow or closed client")
		}
	}
	return nil
}
