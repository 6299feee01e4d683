package token

import "errors"

// Domain-specific errors for token operations.
// Use errors.Is() to check for these errors in calling code.
var (
	// ErrAuth is returned when a token cannot be acquired or refreshed.
	// Callers should treat this as "re-authentication required" rather
	// than a transient failure.
	ErrAuth = errors.New("token: authentication failed")
)
