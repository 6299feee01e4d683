package cloud

import "errors"

// Domain-specific errors for cloud API operations.
// Use errors.Is() to check for these errors in calling code.
var (
	// ErrAuth is returned when the cloud rejects the credentials (401/403).
	ErrAuth = errors.New("cloud: authentication rejected")

	// ErrNotFound is returned when the target resource does not exist.
	ErrNotFound = errors.New("cloud: resource not found")

	// ErrUnavailable is returned on transport-level failures (DNS, timeout,
	// connection refused). Always treated as transient.
	ErrUnavailable = errors.New("cloud: service unavailable")

	// ErrRequestFailed is returned for other non-success responses.
	ErrRequestFailed = errors.New("cloud: request failed")
)
