package service

import (
	"encoding/json"

	"github.com/sannge/pms-collab-gateway/internal/domain"
	"github.com/sannge/pms-collab-gateway/internal/hub"
	"github.com/sannge/pms-collab-gateway/pkg/log"
)

type collabService struct {
	hub *hub.Hub
}

// NewCollabService creates the message router over the given hub.
func NewCollabService(h *hub.Hub) CollabService {
	return &collabService{hub: h}
}

func (s *collabService) HandleConnect(c *hub.Client) {
	err := c.SendMessage(domain.NewOutbound(domain.MsgTypeConnected, domain.ConnectedData{
		UserID:      c.UserID,
		ConnectedAt: c.ConnectedAt,
		Rooms:       []string{},
	}))
	if err != nil {
		log.L().Error().Err(err).Str(log.FieldClientID, c.ID).Msg("failed to send connected ack")
	}
}

// HandleMessage dispatches one frame over the closed set of message kinds.
// Every failure mode here (bad JSON, missing type, unknown type, payload
// that fails validation) drops the single message and leaves the connection
// fully usable.
func (s *collabService) HandleMessage(c *hub.Client, raw []byte) {
	var env domain.Envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		log.L().Debug().Str(log.FieldClientID, c.ID).Msg("dropping unparseable frame")
		return
	}

	var err error
	switch env.Type {
	case domain.MsgTypeJoinRoom:
		err = s.handleJoinRoom(c, env.Data)
	case domain.MsgTypeLeaveRoom:
		err = s.handleLeaveRoom(c, env.Data)
	case domain.MsgTypePing:
		err = c.SendMessage(domain.NewOutbound(domain.MsgTypePong, nil))
	case domain.MsgTypeTaskUpdate:
		err = s.handleTaskUpdate(c, env.Data)
	case domain.MsgTypeNoteUpdate:
		err = s.handleNoteUpdate(c, env.Data)
	case domain.MsgTypeTyping:
		err = s.handleTyping(c, env.Data)
	case domain.MsgTypeViewing:
		err = s.handleViewing(c, env.Data)
	default:
		log.L().Debug().
			Str(log.FieldClientID, c.ID).
			Str(log.FieldMsgType, env.Type).
			Msg("dropping message of unknown type")
		return
	}

	if err != nil {
		log.L().Debug().
			Err(err).
			Str(log.FieldClientID, c.ID).
			Str(log.FieldMsgType, env.Type).
			Msg("dropping invalid message")
	}
}

func (s *collabService) HandleDisconnect(c *hub.Client) {
	// Room removals and their presence broadcasts complete before the
	// connection leaves the registry, so counts read afterwards are exact.
	for _, roomID := range c.Rooms() {
		s.hub.Leave(roomID, c)
		s.broadcastPresence(roomID, domain.PresenceLeft, c)
	}
	s.hub.Unregister(c)
}

func (s *collabService) handleJoinRoom(c *hub.Client, data json.RawMessage) error {
	var msg domain.JoinRoomData
	if err := decode(data, &msg); err != nil {
		return err
	}

	count := s.hub.Join(msg.RoomID, c)

	if err := c.SendMessage(domain.NewOutbound(domain.MsgTypeRoomJoined, domain.RoomJoinedData{
		RoomID:    msg.RoomID,
		UserCount: count,
	})); err != nil {
		return err
	}

	// The joiner gets room_joined above, never its own presence echo.
	s.broadcastPresence(msg.RoomID, domain.PresenceJoined, c)
	return nil
}

func (s *collabService) handleLeaveRoom(c *hub.Client, data json.RawMessage) error {
	var msg domain.LeaveRoomData
	if err := decode(data, &msg); err != nil {
		return err
	}

	wasMember := c.InRoom(msg.RoomID)
	s.hub.Leave(msg.RoomID, c)

	if err := c.SendMessage(domain.NewOutbound(domain.MsgTypeRoomLeft, domain.RoomLeftData{
		RoomID: msg.RoomID,
	})); err != nil {
		return err
	}

	// Leaving a room never joined is an idempotent no-op: ack only.
	if wasMember {
		s.broadcastPresence(msg.RoomID, domain.PresenceLeft, c)
	}
	return nil
}

func (s *collabService) handleTaskUpdate(c *hub.Client, data json.RawMessage) error {
	var msg domain.TaskUpdateData
	if err := decode(data, &msg); err != nil {
		return err
	}

	outType, _ := domain.TaskEventType(msg.Action)

	// No exclusion: the sender's other devices need the update too.
	return s.hub.Broadcast(domain.ProjectRoom(msg.ProjectID),
		domain.NewOutbound(outType, domain.TaskEventData{
			TaskID:    msg.TaskID,
			ProjectID: msg.ProjectID,
			Action:    msg.Action,
			Task:      msg.Task,
			OldStatus: msg.OldStatus,
			NewStatus: msg.NewStatus,
		}), "")
}

func (s *collabService) handleNoteUpdate(c *hub.Client, data json.RawMessage) error {
	var msg domain.NoteUpdateData
	if err := decode(data, &msg); err != nil {
		return err
	}

	outType, _ := domain.NoteEventType(msg.Action)

	// Live content edits go to the note's own room so only active editors
	// see the delta traffic; everything else targets the application room.
	roomID := domain.ApplicationRoom(msg.ApplicationID)
	if msg.Action == domain.NoteActionContentChanged {
		roomID = domain.NoteRoom(msg.NoteID)
	}

	return s.hub.Broadcast(roomID,
		domain.NewOutbound(outType, domain.NoteEventData{
			NoteID:        msg.NoteID,
			ApplicationID: msg.ApplicationID,
			Action:        msg.Action,
			Note:          msg.Note,
			ContentDelta:  msg.ContentDelta,
		}), "")
}

func (s *collabService) handleTyping(c *hub.Client, data json.RawMessage) error {
	var msg domain.TypingData
	if err := decode(data, &msg); err != nil {
		return err
	}

	return s.hub.Broadcast(msg.RoomID,
		domain.NewOutbound(domain.MsgTypeTyping, domain.TypingEventData{
			RoomID:   msg.RoomID,
			IsTyping: msg.IsTyping,
			UserID:   c.UserID,
		}), c.ID)
}

func (s *collabService) handleViewing(c *hub.Client, data json.RawMessage) error {
	var msg domain.ViewingData
	if err := decode(data, &msg); err != nil {
		return err
	}

	return s.hub.Broadcast(msg.RoomID,
		domain.NewOutbound(domain.MsgTypeViewing, domain.ViewingEventData{
			RoomID:     msg.RoomID,
			EntityType: msg.EntityType,
			EntityID:   msg.EntityID,
			UserID:     c.UserID,
		}), c.ID)
}

func (s *collabService) broadcastPresence(roomID, action string, c *hub.Client) {
	err := s.hub.Broadcast(roomID, domain.NewOutbound(domain.MsgTypePresence, domain.PresenceData{
		RoomID: roomID,
		Action: action,
		UserID: c.UserID,
	}), c.ID)
	if err != nil {
		log.L().Error().Err(err).Str(log.FieldRoomID, roomID).Msg("presence broadcast failed")
	}
}

// validator is implemented by every inbound payload variant.
type validator interface {
	Validate() error
}

// decode unmarshals a data payload into its variant and runs per-field
// validation. An absent data object fails validation the same way an empty
// one does.
func decode(data json.RawMessage, into validator) error {
	if len(data) > 0 {
		if err := json.Unmarshal(data, into); err != nil {
			return err
		}
	}
	return into.Validate()
}
