package models

import (
	"strings"
	"time"
)

// Meta holds the self-reported, unverified attributes of a connection.
type Meta struct {
	Locale    string `json:"locale,omitempty"`
	UserAgent string `json:"ua,omitempty"`
	IP        string `json:"ip,omitempty"`

	// Matching attributes. Empty values do not take part in bucket matching.
	Language    string `json:"language,omitempty"`
	Industry    string `json:"industry,omitempty"`
	SkillBucket string `json:"skillBucket,omitempty"`
}

// Normalize trims whitespace and lower-cases the matching attributes so that
// bucket keys compare case-insensitively.
func (m Meta) Normalize() Meta {
	m.Locale = strings.ToLower(strings.TrimSpace(m.Locale))
	m.Language = strings.ToLower(strings.TrimSpace(m.Language))
	m.Industry = strings.ToLower(strings.TrimSpace(m.Industry))
	m.SkillBucket = strings.ToLower(strings.TrimSpace(m.SkillBucket))
	return m
}

// HasMatchingAttributes reports whether any bucket attribute is present.
func (m Meta) HasMatchingAttributes() bool {
	return m.Language != "" || m.Industry != "" || m.SkillBucket != ""
}

// Participant is one connected end-user session.
type Participant struct {
	// ID is the connection id, unique per live connection.
	ID string `json:"id"`
	// Name is the display name. Attacker-controlled, used only for display.
	Name     string    `json:"name"`
	Meta     Meta      `json:"meta"`
	JoinedAt time.Time `json:"joinedAt"`
	// RoomID is the match room the participant currently occupies, if any.
	RoomID string `json:"roomId,omitempty"`
	Online bool   `json:"online"`
}

// ParticipantState is the matchmaking state of a participant. A participant
// is in exactly one of these at any instant.
type ParticipantState string

const (
	StateUnqueued ParticipantState = "unqueued"
	StateQueued   ParticipantState = "queued"
	StatePaired   ParticipantState = "paired"
)
