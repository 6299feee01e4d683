package stitch

import (
	"context"
	"time"
)

// State is a job's position in its lifecycle. Transitions are monotone:
// queued to running to one of the terminal states, or queued straight to
// cancelled. Terminal states never change.
type State string

const (
	StateQueued    State = "queued"
	StateRunning   State = "running"
	StateCompleted State = "completed"
	StateFailed    State = "failed"
	StateCancelled State = "cancelled"
)

func (s State) terminal() bool {
	switch s {
	case StateCompleted, StateFailed, StateCancelled:
		return true
	}
	return false
}

// Status is a read-only snapshot of one job.
type Status struct {
	ID       string
	State    State
	Tracks   []string
	Done     int // tracks appended so far
	Percent  int // Done over total tracks, 0-100
	Artifact string
	Error    string

	SubmittedAt time.Time
	StartedAt   time.Time
	FinishedAt  time.Time
}

// TrackResolver maps a track ID to a readable source path. Submit uses it
// to reject jobs referencing unknown tracks before queueing them.
type TrackResolver interface {
	Resolve(trackID string) (string, error)
}

// Artifact is a combined output under construction. Exactly one of Close or
// Discard ends it.
type Artifact interface {
	AppendTrack(ctx context.Context, path string) error
	Close() (ref string, err error)
	Discard()
}

// Stitcher creates artifacts. The file-based implementation concatenates
// track files; other implementations may transcode or upload.
type Stitcher interface {
	Create(jobID string) (Artifact, error)
}
