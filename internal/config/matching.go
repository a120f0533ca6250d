package config

import "time"

const (
	// Queue
	DefaultQueueTimeout = 5 * time.Minute

	// Chat
	DefaultHistoryCap    = 300
	DefaultMaxMessageLen = 1000

	// Connections
	DefaultSendBuffer        = 256
	DefaultHeartbeatInterval = 30 * time.Second
	DefaultPresenceTTL       = 60 * time.Second

	// DefaultDisplayName is used when a participant connects without a name.
	DefaultDisplayName = "guest"
	// MaxDisplayNameLen caps display names, in characters.
	MaxDisplayNameLen = 64
	// DefaultLocale selects notice translations when the participant sent none.
	DefaultLocale = "en"
)

// Leave reasons carried by partner:left.
const (
	ReasonLeave      = "leave-button"
	ReasonNext       = "next"
	ReasonDisconnect = "disconnect"
	ReasonShutdown   = "shutdown"
)

// Matching attribute keys accepted from the handshake. Buckets are tried from
// the narrowest (all three attributes) to the global pool.
const (
	AttrLanguage    = "language"
	AttrIndustry    = "industry"
	AttrSkillBucket = "skill"
)
