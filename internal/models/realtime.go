package models

import "encoding/json"

// Envelope is one named event on the wire: {"event": "...", "data": {...}}.
type Envelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// Outbound event names.
const (
	EventLobby        = "lobby"
	EventQueueWaiting = "queue:waiting"
	EventSendOffer    = "send-offer"
	EventOffer        = "offer"
	EventAnswer       = "answer"
	EventICECandidate = "ice-candidate"
	EventQueueTimeout = "queue:timeout"
	EventPartnerLeft  = "partner:left"
	EventChatMessage  = "chat:message"
	EventChatHistory  = "chat:history"
	EventChatTyping   = "chat:typing"
	EventChatSystem   = "chat:system"
)

// Inbound-only event names.
const (
	EventAddICECandidate = "add-ice-candidate"
	EventQueueJoin       = "queue:join"
	EventQueueNext       = "queue:next"
	EventQueueLeave      = "queue:leave"
	EventQueueRetry      = "queue:retry"
	EventChatJoin        = "chat:join"
	EventChatLeave       = "chat:leave"
)

// RoomPayload tells both members of a new room to begin signaling.
type RoomPayload struct {
	RoomID string `json:"roomId"`
}

// SDPPayload carries an opaque session description.
type SDPPayload struct {
	SDP    json.RawMessage `json:"sdp"`
	RoomID string          `json:"roomId"`
}

// ICECandidatePayload carries an opaque connectivity candidate. Type mirrors
// Role for clients that read the older field name.
type ICECandidatePayload struct {
	Candidate json.RawMessage `json:"candidate"`
	RoomID    string          `json:"roomId"`
	Role      string          `json:"role,omitempty"`
	Type      string          `json:"type,omitempty"`
}

// QueueTimeoutPayload is sent when no partner was found within the queue bound.
type QueueTimeoutPayload struct {
	Message string `json:"message"`
	// WaitTime is in milliseconds.
	WaitTime int64 `json:"waitTime"`
}

// PartnerLeftPayload is sent to the remaining member of a torn-down room.
type PartnerLeftPayload struct {
	Reason string `json:"reason"`
}

// ChatMessagePayload is a broadcast chat message.
type ChatMessagePayload struct {
	RoomID   string `json:"roomId"`
	Text     string `json:"text"`
	From     string `json:"from"`
	SenderID string `json:"senderId"`
	TS       int64  `json:"ts"`
}

// ChatSystemPayload is a join/leave notice.
type ChatSystemPayload struct {
	RoomID string `json:"roomId"`
	Text   string `json:"text"`
	TS     int64  `json:"ts"`
}

// ChatHistoryPayload replays a room's history to a newly joined connection.
type ChatHistoryPayload struct {
	RoomID   string        `json:"roomId"`
	Messages []ChatHistory `json:"messages"`
}

// ChatTypingPayload is a typing indicator.
type ChatTypingPayload struct {
	RoomID string `json:"roomId"`
	From   string `json:"from"`
	Typing bool   `json:"typing"`
}
