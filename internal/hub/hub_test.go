package hub

import (
	"encoding/json"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/sannge/pms-collab-gateway/internal/config"
)

func testConfig() config.WebSocketConfig {
	return config.WebSocketConfig{
		PingInterval:   30 * time.Second,
		PongWait:       60 * time.Second,
		WriteWait:      10 * time.Second,
		MaxMessageSize: 8192,
		SendBufferSize: 8,
	}
}

func newTestHub() *Hub {
	return NewHub(testConfig(), nil)
}

func newTestClient(h *Hub, userID string) *Client {
	return NewClient(h, nil, userID)
}

func TestRegisterUnregister(t *testing.T) {
	h := newTestHub()
	c := newTestClient(h, "u1")

	h.Register(c)
	if got := h.ClientCount(); got != 1 {
		t.Fatalf("ClientCount() = %d, want 1", got)
	}
	if _, ok := h.Get(c.ID); !ok {
		t.Fatal("Get() did not find registered client")
	}

	h.Unregister(c)
	if got := h.ClientCount(); got != 0 {
		t.Errorf("ClientCount() after unregister = %d, want 0", got)
	}
	if _, ok := h.Get(c.ID); ok {
		t.Error("Get() found client after unregister")
	}

	// Second unregister is a no-op.
	h.Unregister(c)
	if got := h.ClientCount(); got != 0 {
		t.Errorf("ClientCount() after double unregister = %d, want 0", got)
	}
}

func TestJoinIsIdempotent(t *testing.T) {
	h := newTestHub()
	c := newTestClient(h, "u1")
	h.Register(c)

	if count := h.Join("project:p1", c); count != 1 {
		t.Errorf("first Join() count = %d, want 1", count)
	}
	if count := h.Join("project:p1", c); count != 1 {
		t.Errorf("second Join() count = %d, want 1", count)
	}
	if got := h.MemberCount("project:p1"); got != 1 {
		t.Errorf("MemberCount() = %d, want 1", got)
	}
	if !c.InRoom("project:p1") {
		t.Error("InRoom() = false after join")
	}
}

func TestRoomReapedWhenEmpty(t *testing.T) {
	h := newTestHub()
	c1 := newTestClient(h, "u1")
	c2 := newTestClient(h, "u2")
	h.Register(c1)
	h.Register(c2)

	h.Join("project:p1", c1)
	h.Join("project:p1", c2)
	if got := h.RoomCount(); got != 1 {
		t.Fatalf("RoomCount() = %d, want 1", got)
	}

	h.Leave("project:p1", c1)
	if got := h.RoomCount(); got != 1 {
		t.Errorf("RoomCount() after partial leave = %d, want 1", got)
	}

	h.Leave("project:p1", c2)
	if got := h.RoomCount(); got != 0 {
		t.Errorf("RoomCount() after last leave = %d, want 0", got)
	}
	if got := h.MemberCount("project:p1"); got != 0 {
		t.Errorf("MemberCount() of reaped room = %d, want 0", got)
	}

	// The room can be recreated afterwards.
	if count := h.Join("project:p1", c1); count != 1 {
		t.Errorf("Join() after reap count = %d, want 1", count)
	}
}

func TestLeaveUnknownRoomIsNoOp(t *testing.T) {
	h := newTestHub()
	c := newTestClient(h, "u1")
	h.Register(c)

	h.Leave("project:never-joined", c)
	if got := h.RoomCount(); got != 0 {
		t.Errorf("RoomCount() = %d, want 0", got)
	}
}

func TestUnregisterStripsMemberships(t *testing.T) {
	h := newTestHub()
	c1 := newTestClient(h, "u1")
	c2 := newTestClient(h, "u2")
	h.Register(c1)
	h.Register(c2)

	h.Join("project:p1", c1)
	h.Join("project:p1", c2)
	h.Join("note:n1", c1)

	h.Unregister(c1)

	if got := h.MemberCount("project:p1"); got != 1 {
		t.Errorf("MemberCount(project:p1) = %d, want 1", got)
	}
	if got := h.MemberCount("note:n1"); got != 0 {
		t.Errorf("MemberCount(note:n1) = %d, want 0", got)
	}
	if got := h.RoomCount(); got != 1 {
		t.Errorf("RoomCount() = %d, want 1", got)
	}
}

func TestBroadcastExcludesSender(t *testing.T) {
	h := newTestHub()
	c1 := newTestClient(h, "u1")
	c2 := newTestClient(h, "u2")
	h.Register(c1)
	h.Register(c2)
	h.Join("project:p1", c1)
	h.Join("project:p1", c2)

	msg := map[string]string{"type": "user_typing"}
	if err := h.Broadcast("project:p1", msg, c1.ID); err != nil {
		t.Fatalf("Broadcast() error = %v", err)
	}

	select {
	case payload := <-c2.Send:
		var got map[string]string
		if err := json.Unmarshal(payload, &got); err != nil {
			t.Fatalf("unmarshal broadcast payload: %v", err)
		}
		if got["type"] != "user_typing" {
			t.Errorf("payload type = %q, want user_typing", got["type"])
		}
	default:
		t.Fatal("excluded peer's roommate received nothing")
	}

	select {
	case <-c1.Send:
		t.Fatal("excluded sender received its own broadcast")
	default:
	}
}

func TestBroadcastSkipsFullBuffer(t *testing.T) {
	h := newTestHub()
	c1 := newTestClient(h, "u1")
	c2 := newTestClient(h, "u2")
	h.Register(c1)
	h.Register(c2)
	h.Join("project:p1", c1)
	h.Join("project:p1", c2)

	// Saturate c1's queue; no pump is draining it.
	for i := 0; i < cap(c1.Send); i++ {
		c1.Send <- []byte("x")
	}

	done := make(chan struct{})
	go func() {
		h.Broadcast("project:p1", map[string]string{"k": "v"}, "")
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Broadcast() blocked on a full client buffer")
	}

	select {
	case <-c2.Send:
	default:
		t.Error("healthy peer did not receive the broadcast")
	}
}

func TestBroadcastToClosedClientDoesNotPanic(t *testing.T) {
	h := newTestHub()
	c1 := newTestClient(h, "u1")
	c2 := newTestClient(h, "u2")
	h.Register(c1)
	h.Register(c2)
	h.Join("project:p1", c1)
	h.Join("project:p1", c2)

	c1.closeSend()

	if err := h.Broadcast("project:p1", map[string]string{"k": "v"}, ""); err != nil {
		t.Fatalf("Broadcast() error = %v", err)
	}

	select {
	case <-c2.Send:
	default:
		t.Error("open peer did not receive the broadcast")
	}
}

func TestSendMessageAfterClose(t *testing.T) {
	h := newTestHub()
	c := newTestClient(h, "u1")
	h.Register(c)
	c.closeSend()

	if err := c.SendMessage(map[string]string{"k": "v"}); err != nil {
		t.Errorf("SendMessage() after close error = %v, want nil", err)
	}
}

func TestConcurrentJoinLeave(t *testing.T) {
	h := newTestHub()

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			c := newTestClient(h, fmt.Sprintf("u%d", n))
			h.Register(c)
			roomID := fmt.Sprintf("project:p%d", n%4)
			for j := 0; j < 50; j++ {
				h.Join(roomID, c)
				h.Leave(roomID, c)
			}
			h.Unregister(c)
		}(i)
	}
	wg.Wait()

	if got := h.ClientCount(); got != 0 {
		t.Errorf("ClientCount() = %d, want 0", got)
	}
	if got := h.RoomCount(); got != 0 {
		t.Errorf("RoomCount() = %d, want 0", got)
	}
}

func TestMembersSnapshot(t *testing.T) {
	h := newTestHub()
	c1 := newTestClient(h, "u1")
	c2 := newTestClient(h, "u2")
	h.Register(c1)
	h.Register(c2)
	h.Join("project:p1", c1)
	h.Join("project:p1", c2)

	members := h.Members("project:p1")
	if len(members) != 2 {
		t.Fatalf("Members() len = %d, want 2", len(members))
	}
	seen := map[string]bool{}
	for _, id := range members {
		seen[id] = true
	}
	if !seen[c1.ID] || !seen[c2.ID] {
		t.Errorf("Members() = %v, missing a connection ID", members)
	}

	if got := h.Members("project:unknown"); len(got) != 0 {
		t.Errorf("Members() of unknown room = %v, want empty", got)
	}
}
