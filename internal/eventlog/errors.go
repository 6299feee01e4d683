package eventlog

import "errors"

var (
	// ErrInvalidRecord is returned when a record is missing required fields.
	ErrInvalidRecord = errors.New("eventlog: invalid record")

	// ErrAppendFailed is returned when a record could not be persisted.
	ErrAppendFailed = errors.New("eventlog: append failed")

	// ErrQueryFailed is returned when reading from the log fails.
	ErrQueryFailed = errors.New("eventlog: query failed")

	// ErrClosed is returned when appending to a stopped appender.
	ErrClosed = errors.New("eventlog: appender closed")
)
