package domain

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// WebSocket message types from client.
const (
	MsgTypeJoinRoom   = "join_room"
	MsgTypeLeaveRoom  = "leave_room"
	MsgTypePing       = "ping"
	MsgTypeTaskUpdate = "task_update_request"
	MsgTypeNoteUpdate = "note_update_request"
	MsgTypeTyping     = "user_typing"
	MsgTypeViewing    = "user_viewing"
)

// WebSocket message types to client.
const (
	MsgTypeConnected          = "connected"
	MsgTypeRoomJoined         = "room_joined"
	MsgTypeRoomLeft           = "room_left"
	MsgTypePong               = "pong"
	MsgTypePresence           = "user_presence"
	MsgTypeTaskUpdated        = "task_updated"
	MsgTypeTaskStatusChanged  = "task_status_changed"
	MsgTypeTaskDeleted        = "task_deleted"
	MsgTypeNoteUpdated        = "note_updated"
	MsgTypeNoteDeleted        = "note_deleted"
	MsgTypeNoteContentChanged = "note_content_changed"
)

// Task actions carried by task_update_request.
const (
	TaskActionCreated       = "created"
	TaskActionUpdated       = "updated"
	TaskActionStatusChanged = "status_changed"
	TaskActionDeleted       = "deleted"
)

// Note actions carried by note_update_request.
const (
	NoteActionUpdated        = "updated"
	NoteActionDeleted        = "deleted"
	NoteActionContentChanged = "content_changed"
)

// Presence actions.
const (
	PresenceJoined = "joined"
	PresenceLeft   = "left"
)

// ErrInvalidPayload marks a data payload that fails per-field validation.
// Messages carrying such payloads are dropped without closing the connection.
var ErrInvalidPayload = errors.New("invalid payload")

// Envelope is the wire format in both directions: a type tag plus a
// type-dependent data object.
type Envelope struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

// OutboundMessage is an envelope ready for marshalling. Data is always a
// non-nil object so every emitted frame conforms to {type, data}.
type OutboundMessage struct {
	Type string `json:"type"`
	Data any    `json:"data"`
}

// NewOutbound builds an outbound envelope, substituting an empty object for
// a nil payload.
func NewOutbound(msgType string, data any) *OutboundMessage {
	if data == nil {
		data = struct{}{}
	}
	return &OutboundMessage{Type: msgType, Data: data}
}

func missingField(name string) error {
	return fmt.Errorf("%w: missing %s", ErrInvalidPayload, name)
}

// Client -> Server payloads

// JoinRoomData asks to join a named room.
type JoinRoomData struct {
	RoomID string `json:"room_id"`
}

func (d *JoinRoomData) Validate() error {
	if d.RoomID == "" {
		return missingField("room_id")
	}
	return nil
}

// LeaveRoomData asks to leave a named room.
type LeaveRoomData struct {
	RoomID string `json:"room_id"`
}

func (d *LeaveRoomData) Validate() error {
	if d.RoomID == "" {
		return missingField("room_id")
	}
	return nil
}

// TaskUpdateData announces a task mutation to the task's project room.
type TaskUpdateData struct {
	ProjectID string          `json:"project_id"`
	TaskID    string          `json:"task_id"`
	Action    string          `json:"action"`
	Task      json.RawMessage `json:"task"`
	OldStatus string          `json:"old_status,omitempty"`
	NewStatus string          `json:"new_status,omitempty"`
}

func (d *TaskUpdateData) Validate() error {
	switch {
	case d.ProjectID == "":
		return missingField("project_id")
	case d.TaskID == "":
		return missingField("task_id")
	case d.Action == "":
		return missingField("action")
	case len(d.Task) == 0:
		return missingField("task")
	}
	if _, ok := TaskEventType(d.Action); !ok {
		return fmt.Errorf("%w: unknown task action %q", ErrInvalidPayload, d.Action)
	}
	return nil
}

// TaskEventType maps a task action to the outbound message type broadcast
// to the project room.
func TaskEventType(action string) (string, bool) {
	switch action {
	case TaskActionCreated, TaskActionUpdated:
		return MsgTypeTaskUpdated, true
	case TaskActionStatusChanged:
		return MsgTypeTaskStatusChanged, true
	case TaskActionDeleted:
		return MsgTypeTaskDeleted, true
	default:
		return "", false
	}
}

// NoteUpdateData announces a note mutation to the note's application room,
// or to the note's own room for live content edits.
type NoteUpdateData struct {
	ApplicationID string          `json:"application_id"`
	NoteID        string          `json:"note_id"`
	Action        string          `json:"action"`
	Note          json.RawMessage `json:"note"`
	ContentDelta  json.RawMessage `json:"content_delta,omitempty"`
}

func (d *NoteUpdateData) Validate() error {
	switch {
	case d.ApplicationID == "":
		return missingField("application_id")
	case d.NoteID == "":
		return missingField("note_id")
	case d.Action == "":
		return missingField("action")
	case len(d.Note) == 0:
		return missingField("note")
	}
	if _, ok := NoteEventType(d.Action); !ok {
		return fmt.Errorf("%w: unknown note action %q", ErrInvalidPayload, d.Action)
	}
	return nil
}

// NoteEventType maps a note action to the outbound message type.
func NoteEventType(action string) (string, bool) {
	switch action {
	case NoteActionUpdated:
		return MsgTypeNoteUpdated, true
	case NoteActionDeleted:
		return MsgTypeNoteDeleted, true
	case NoteActionContentChanged:
		return MsgTypeNoteContentChanged, true
	default:
		return "", false
	}
}

// TypingData reports a typing-state change in a room.
type TypingData struct {
	RoomID   string `json:"room_id"`
	IsTyping bool   `json:"is_typing"`
}

func (d *TypingData) Validate() error {
	if d.RoomID == "" {
		return missingField("room_id")
	}
	return nil
}

// ViewingData reports which entity a user is currently viewing.
type ViewingData struct {
	RoomID     string `json:"room_id"`
	EntityType string `json:"entity_type"`
	EntityID   string `json:"entity_id"`
}

func (d *ViewingData) Validate() error {
	switch {
	case d.RoomID == "":
		return missingField("room_id")
	case d.EntityType == "":
		return missingField("entity_type")
	case d.EntityID == "":
		return missingField("entity_id")
	}
	return nil
}

// Server -> Client payloads

// ConnectedData acknowledges a successful handshake.
type ConnectedData struct {
	UserID      string    `json:"user_id"`
	ConnectedAt time.Time `json:"connected_at"`
	Rooms       []string  `json:"rooms"`
}

// RoomJoinedData acknowledges a join to the requester.
type RoomJoinedData struct {
	RoomID    string `json:"room_id"`
	UserCount int    `json:"user_count"`
}

// RoomLeftData acknowledges a leave to the requester.
type RoomLeftData struct {
	RoomID string `json:"room_id"`
}

// PresenceData notifies remaining members that a user joined or left.
type PresenceData struct {
	RoomID string `json:"room_id"`
	Action string `json:"action"`
	UserID string `json:"user_id"`
}

// TaskEventData is the broadcast payload for task mutations. It echoes the
// inbound fields so receivers can apply the change without a refetch.
type TaskEventData struct {
	TaskID    string          `json:"task_id"`
	ProjectID string          `json:"project_id"`
	Action    string          `json:"action"`
	Task      json.RawMessage `json:"task"`
	OldStatus string          `json:"old_status,omitempty"`
	NewStatus string          `json:"new_status,omitempty"`
}

// NoteEventData is the broadcast payload for note mutations.
type NoteEventData struct {
	NoteID        string          `json:"note_id"`
	ApplicationID string          `json:"application_id"`
	Action        string          `json:"action"`
	Note          json.RawMessage `json:"note"`
	ContentDelta  json.RawMessage `json:"content_delta,omitempty"`
}

// TypingEventData is the typing broadcast with the sender identity attached.
type TypingEventData struct {
	RoomID   string `json:"room_id"`
	IsTyping bool   `json:"is_typing"`
	UserID   string `json:"user_id"`
}

// ViewingEventData is the viewing broadcast with the sender identity attached.
type ViewingEventData struct {
	RoomID     string `json:"room_id"`
	EntityType string `json:"entity_type"`
	EntityID   string `json:"entity_id"`
	UserID     string `json:"user_id"`
}
