package events

import "errors"

var (
	// ErrProtocol is returned for malformed topics or payloads. Protocol
	// errors are logged and dropped; they never stop the router.
	ErrProtocol = errors.New("events: protocol error")

	// ErrDuplicate is returned by the deduper when an event repeats a
	// (device, sequence) pair seen within the recent window.
	ErrDuplicate = errors.New("events: duplicate event")
)
