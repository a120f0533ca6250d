package chathub

import (
	"encoding/json"
	"fmt"
	"strings"

	"pairup/backend/internal/config"
	"pairup/backend/internal/models"
)

// HandlerFunc processes one inbound event from client. data is the raw
// payload and may be empty.
type HandlerFunc func(client Client, data json.RawMessage) error

// Inbound payloads. Every field is optional on the wire; validation and
// defaults happen in the handlers below before anything reaches the core.
type (
	signalIn struct {
		SDP    json.RawMessage `json:"sdp"`
		RoomID string          `json:"roomId"`
	}

	iceIn struct {
		Candidate json.RawMessage `json:"candidate"`
		RoomID    string          `json:"roomId"`
		Role      string          `json:"role"`
		Type      string          `json:"type"`
	}

	chatJoinIn struct {
		RoomID string `json:"roomId"`
		Name   string `json:"name"`
	}

	chatMessageIn struct {
		RoomID string `json:"roomId"`
		Text   string `json:"text"`
		From   string `json:"from"`
		TS     *int64 `json:"ts"`
	}

	chatTypingIn struct {
		RoomID string `json:"roomId"`
		From   string `json:"from"`
		Typing bool   `json:"typing"`
	}

	chatLeaveIn struct {
		RoomID string `json:"roomId"`
		Name   string `json:"name"`
	}
)

// passthroughEvents maps inbound media and screen-share events to the name
// the other room member receives.
var passthroughEvents = map[string]string{
	"screen:state":              "screen:state",
	"screenshare:offer":         "screenshare:offer",
	"screenshare:answer":        "screenshare:answer",
	"screenshare:ice-candidate": "screenshare:ice-candidate",
	"screenshare:track-start":   "screenshare:track-start",
	"screenshare:track-stop":    "screenshare:track-stop",
	"media:state":               "peer:media-state",
	"media:cam":                 "media:cam",
	"media:mic":                 "media:mic",
	"state:update":              "peer:state",
	"renegotiate-offer":         "renegotiate-offer",
	"renegotiate-answer":        "renegotiate-answer",
}

func decode[T any](data json.RawMessage) (T, error) {
	var v T
	if len(data) == 0 || string(data) == "null" {
		return v, nil
	}
	if err := json.Unmarshal(data, &v); err != nil {
		return v, fmt.Errorf("%w: %v", ErrInvalidPayload, err)
	}
	return v, nil
}

// registerDefaultHandlers installs the handlers for every event the server
// understands.
func (m *ManagerService) registerDefaultHandlers() {
	m.On(models.EventOffer, m.handleOffer)
	m.On(models.EventAnswer, m.handleAnswer)
	m.On(models.EventICECandidate, m.handleICECandidate)
	m.On(models.EventAddICECandidate, m.handleICECandidate)

	m.On(models.EventQueueNext, func(c Client, _ json.RawMessage) error {
		m.Matcher.Next(c.GetUserID())
		return nil
	})
	m.On(models.EventQueueLeave, func(c Client, _ json.RawMessage) error {
		m.Matcher.Leave(c.GetUserID(), config.ReasonLeave)
		return nil
	})
	m.On(models.EventQueueRetry, m.handleRequeue)
	m.On(models.EventQueueJoin, m.handleRequeue)

	m.On(models.EventChatJoin, m.handleChatJoin)
	m.On(models.EventChatMessage, m.handleChatMessage)
	m.On(models.EventChatTyping, m.handleChatTyping)
	m.On(models.EventChatLeave, m.handleChatLeave)

	for in, out := range passthroughEvents {
		m.On(in, m.passthrough(out))
	}
}

// roomFor returns the explicit room id or, when absent, the sender's current
// match room.
func (m *ManagerService) roomFor(c Client, roomID string) string {
	if roomID = strings.TrimSpace(roomID); roomID != "" {
		return roomID
	}
	current, _ := m.Registry.GetRoom(c.GetUserID())
	return current
}

func (m *ManagerService) handleOffer(c Client, data json.RawMessage) error {
	in, err := decode[signalIn](data)
	if err != nil {
		return err
	}
	if len(in.SDP) == 0 {
		return fmt.Errorf("%w: offer without sdp", ErrInvalidPayload)
	}
	m.Rooms.RelayOffer(m.roomFor(c, in.RoomID), c.GetUserID(), in.SDP)
	return nil
}

func (m *ManagerService) handleAnswer(c Client, data json.RawMessage) error {
	in, err := decode[signalIn](data)
	if err != nil {
		return err
	}
	if len(in.SDP) == 0 {
		return fmt.Errorf("%w: answer without sdp", ErrInvalidPayload)
	}
	m.Rooms.RelayAnswer(m.roomFor(c, in.RoomID), c.GetUserID(), in.SDP)
	return nil
}

func (m *ManagerService) handleICECandidate(c Client, data json.RawMessage) error {
	in, err := decode[iceIn](data)
	if err != nil {
		return err
	}
	if len(in.Candidate) == 0 {
		return fmt.Errorf("%w: candidate missing", ErrInvalidPayload)
	}
	role := in.Role
	if role == "" {
		role = in.Type
	}
	m.Rooms.RelayICECandidate(m.roomFor(c, in.RoomID), c.GetUserID(), in.Candidate, role)
	return nil
}

func (m *ManagerService) handleRequeue(c Client, _ json.RawMessage) error {
	if m.Matcher.Enqueue(c.GetUserID()) {
		emitBestEffort(c, models.EventQueueWaiting, struct{}{})
		m.Matcher.TryMatchAll()
	}
	return nil
}

func (m *ManagerService) handleChatJoin(c Client, data json.RawMessage) error {
	in, err := decode[chatJoinIn](data)
	if err != nil {
		return err
	}
	m.Chat.Join(c, in.RoomID, m.nameOr(c, in.Name))
	return nil
}

func (m *ManagerService) handleChatMessage(c Client, data json.RawMessage) error {
	in, err := decode[chatMessageIn](data)
	if err != nil {
		return err
	}
	m.Chat.Message(in.RoomID, in.Text, m.nameOr(c, in.From), c.GetUserID(), in.TS)
	return nil
}

func (m *ManagerService) handleChatTyping(c Client, data json.RawMessage) error {
	in, err := decode[chatTypingIn](data)
	if err != nil {
		return err
	}
	m.Chat.Typing(c, in.RoomID, m.nameOr(c, in.From), in.Typing)
	return nil
}

func (m *ManagerService) handleChatLeave(c Client, data json.RawMessage) error {
	in, err := decode[chatLeaveIn](data)
	if err != nil {
		return err
	}
	m.Chat.Leave(c, in.RoomID, m.nameOr(c, in.Name))
	return nil
}

// passthrough forwards an opaque payload to the other member of the sender's
// room, adding the sender id as "from".
func (m *ManagerService) passthrough(outEvent string) HandlerFunc {
	return func(c Client, data json.RawMessage) error {
		fields, err := decode[map[string]json.RawMessage](data)
		if err != nil {
			return err
		}
		if fields == nil {
			fields = make(map[string]json.RawMessage)
		}

		var roomID string
		if raw, ok := fields["roomId"]; ok {
			_ = json.Unmarshal(raw, &roomID)
		}
		roomID = m.roomFor(c, roomID)

		from, _ := json.Marshal(c.GetUserID())
		fields["from"] = from
		m.Rooms.RelayToPeer(roomID, c.GetUserID(), outEvent, fields)
		return nil
	}
}

// nameOr returns name when set and the registered display name otherwise.
func (m *ManagerService) nameOr(c Client, name string) string {
	if name = strings.TrimSpace(name); name != "" {
		return name
	}
	if p, ok := m.Registry.Lookup(c.GetUserID()); ok {
		return p.Name
	}
	return ""
}
