package mqtt

import "errors"

// Domain-specific errors for MQTT operations.
// Use errors.Is() to check for these errors in calling code.
var (
	// ErrNotConnected is returned when attempting operations on a disconnected client.
	ErrNotConnected = errors.New("mqtt: client not connected")

	// ErrConnectionFailed is returned when a connection attempt fails at the
	// transport level. Always treated as transient and retried with backoff.
	ErrConnectionFailed = errors.New("mqtt: connection failed")

	// ErrAuth is returned when the broker rejects the credentials even after
	// one token refresh and retry. Callers must re-authenticate.
	ErrAuth = errors.New("mqtt: authentication rejected")

	// ErrPublishFailed is returned when a publish operation fails.
	ErrPublishFailed = errors.New("mqtt: publish failed")

	// ErrPublishQueued is returned when a publish was buffered because the
	// client is disconnected. Delivery is attempted on reconnect but is not
	// guaranteed; the oldest buffered entries are dropped when the buffer
	// overflows.
	ErrPublishQueued = errors.New("mqtt: publish queued, delivery not guaranteed")

	// ErrPublishDropped is returned when buffering a publish forced the
	// oldest buffered entry out of the full buffer. The new message is
	// still queued; the evicted one is gone.
	ErrPublishDropped = errors.New("mqtt: outbound buffer overflow, oldest publish dropped")

	// ErrSubscribeFailed is returned when a subscribe operation fails.
	ErrSubscribeFailed = errors.New("mqtt: subscribe failed")

	// ErrUnsubscribeFailed is returned when an unsubscribe operation fails.
	ErrUnsubscribeFailed = errors.New("mqtt: unsubscribe failed")

	// ErrInvalidQoS is returned when an invalid QoS level is specified.
	// Valid QoS levels are 0, 1, or 2.
	ErrInvalidQoS = errors.New("mqtt: invalid QoS level (must be 0, 1, or 2)")

	// ErrInvalidTopic is returned when an empty or invalid topic is provided.
	ErrInvalidTopic = errors.New("mqtt: topic cannot be empty")
)
