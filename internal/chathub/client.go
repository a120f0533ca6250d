package chathub

// Client is the interface for any type of connection (e.g., WebSocket).
// It abstracts the underlying transport, allowing the hub to manage
// participants uniformly.
type Client interface {
	// GetUserID returns the connection id, which doubles as the participant id.
	GetUserID() string

	// Emit queues a named event for this connection only. It never blocks:
	// a full or closed connection returns an error and the event is dropped.
	Emit(event string, payload any) error

	// Run starts the client's read and write pumps, which handle incoming and
	// outgoing messages.
	Run()
	// Close gracefully shuts down the client's connection and associated channels.
	Close()
}

// emitBestEffort sends to one recipient and swallows delivery failures, which
// are routine when a socket has just dropped.
func emitBestEffort(c Client, event string, payload any) {
	if c == nil {
		return
	}
	_ = c.Emit(event, payload)
}
