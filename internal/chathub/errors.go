package chathub

import "errors"

var (
	// ErrSendBufferFull is returned by Emit when the outbound buffer of a
	// connection is full. The event is dropped.
	ErrSendBufferFull = errors.New("send buffer full")
	// ErrClientClosed is returned by Emit after Close.
	ErrClientClosed = errors.New("client closed")
	// ErrUnknownEvent is returned by Dispatch for unregistered event names.
	ErrUnknownEvent = errors.New("unknown event")
	// ErrInvalidPayload marks inbound payloads rejected by validation.
	ErrInvalidPayload = errors.New("invalid payload")
	// ErrDuplicateClient is returned by Register for an id already registered.
	ErrDuplicateClient = errors.New("client already registered")
)
