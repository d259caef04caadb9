package service

import "github.com/sannge/pms-collab-gateway/internal/hub"

// CollabService routes inbound frames to their handlers and derives
// presence events from room membership changes.
type CollabService interface {
	// HandleConnect sends the connected acknowledgement to a freshly
	// registered client.
	HandleConnect(c *hub.Client)

	// HandleMessage parses and dispatches one inbound frame. Malformed or
	// unrecognized input is dropped without affecting the connection.
	HandleMessage(c *hub.Client, raw []byte)

	// HandleDisconnect removes the client from every room it occupies,
	// notifying each room's remaining members, then discards the
	// connection. Runs exactly once per physical disconnect.
	HandleDisconnect(c *hub.Client)
}
