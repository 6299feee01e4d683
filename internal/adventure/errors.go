package adventure

import "errors"

var (
	// ErrContentNotFound is returned when a story ID is unknown.
	ErrContentNotFound = errors.New("adventure: content not found")

	// ErrInvalidContent is returned when loaded content fails validation,
	// for example an edge pointing at a chapter that does not exist.
	ErrInvalidContent = errors.New("adventure: invalid content")

	// ErrSessionNotFound is returned when no session exists for the
	// requested (player, content) pair.
	ErrSessionNotFound = errors.New("adventure: session not found")
)
