package models

import "time"

// ChatRoom represents a 1-on-1 signaling session between two participants.
type ChatRoom struct {
	// RoomID is issued monotonically and never reused.
	RoomID string `json:"roomId"`
	// User1ID and User2ID are the connection ids of the two members.
	User1ID string `json:"user1Id"`
	User2ID string `json:"user2Id"`
	// StartedAt is the timestamp when the room was created.
	StartedAt time.Time `json:"startedAt"`
}

// Has reports whether id is one of the two members.
func (r ChatRoom) Has(id string) bool {
	return id != "" && (r.User1ID == id || r.User2ID == id)
}

// Other returns the member that is not id. ok is false when id is not a member.
func (r ChatRoom) Other(id string) (string, bool) {
	switch id {
	case "":
		return "", false
	case r.User1ID:
		return r.User2ID, true
	case r.User2ID:
		return r.User1ID, true
	}
	return "", false
}
