package models

// History entry kinds.
const (
	KindUser   = "user"
	KindSystem = "system"
)

// ChatHistory is one entry of a room's bounded in-memory chat history.
type ChatHistory struct {
	// Kind is KindUser for participant messages and KindSystem for join/leave notices.
	Kind string `json:"kind"`
	Text string `json:"text"`
	// From is the sender display name. Empty for system entries.
	From string `json:"from,omitempty"`
	// SenderID is the sender connection id. Empty for system entries.
	SenderID string `json:"senderId,omitempty"`
	// TS is a unix timestamp in milliseconds.
	TS int64 `json:"ts"`
}
