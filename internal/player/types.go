package player

import "time"

// PlaybackStatus describes what a player is currently doing with audio.
type PlaybackStatus string

const (
	PlaybackIdle    PlaybackStatus = "idle"
	PlaybackPlaying PlaybackStatus = "playing"
	PlaybackPaused  PlaybackStatus = "paused"
)

// State is the last known condition of one player. Values are populated
// incrementally from device events, so fields a device has not yet reported
// hold their zero value.
type State struct {
	ID       string
	FamilyID string

	Online   bool
	Battery  int
	Charging bool

	Playback PlaybackStatus
	Track    string
	Position int // seconds into the current track
	Volume   int

	// LastSeen is the device timestamp of the newest event applied to this
	// state. Updates carrying an older timestamp are ignored.
	LastSeen time.Time
}

// Listener is notified after a player's state changes. Implementations must
// not block; they are called synchronously after the registry lock is
// released.
type Listener interface {
	PlayerStateChanged(s State)
}
