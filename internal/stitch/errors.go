package stitch

import "errors"

var (
	// ErrEmptyJob is returned when Submit receives no tracks.
	ErrEmptyJob = errors.New("stitch: job has no tracks")

	// ErrUnknownTrack is returned when a submitted track cannot be
	// resolved.
	ErrUnknownTrack = errors.New("stitch: unknown track")

	// ErrJobNotFound is returned for status or cancel requests on an
	// unknown job ID.
	ErrJobNotFound = errors.New("stitch: job not found")

	// ErrAlreadyFinished is returned when cancelling a job in a terminal
	// state.
	ErrAlreadyFinished = errors.New("stitch: job already finished")

	// ErrShutdown is returned for submissions after shutdown began.
	ErrShutdown = errors.New("stitch: manager shut down")

	// errCancelled marks cooperative cancellation inside a running job.
	errCancelled = errors.New("stitch: cancelled")
)
