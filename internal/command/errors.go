package command

import "errors"

var (
	// ErrInvalidCommand is returned for an unknown kind or unusable params.
	ErrInvalidCommand = errors.New("command: invalid command")

	// ErrUnknownPlayer is returned when the target player has never been
	// seen, so neither its family nor its topic can be determined.
	ErrUnknownPlayer = errors.New("command: unknown player")

	// ErrDeviceUnresponsive is returned when every publish attempt timed
	// out and the cloud fallback also failed.
	ErrDeviceUnresponsive = errors.New("command: device unresponsive and fallback failed")

	// ErrShutdown is returned for commands in flight when the dispatcher
	// closes.
	ErrShutdown = errors.New("command: dispatcher shut down")
)
