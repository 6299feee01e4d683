package command

import (
	"time"

	"github.com/storyware/storybox-core/internal/player"
)

// Kind identifies a device command.
type Kind string

const (
	KindPlay      Kind = "play"       // start a track; params: track, optional position
	KindPause     Kind = "pause"      // pause playback
	KindResume    Kind = "resume"     // resume paused playback
	KindStop      Kind = "stop"       // stop playback entirely
	KindSetVolume Kind = "set_volume" // params: level
)

// Params carries command arguments. Keys depend on the Kind.
type Params map[string]any

// Result reports how a command reached its effect.
type Result int

const (
	// ResultConfirmed means the device itself reported the expected state.
	ResultConfirmed Result = iota

	// ResultFallback means the device never confirmed and the state change
	// was applied through the cloud API instead.
	ResultFallback
)

func (r Result) String() string {
	switch r {
	case ResultConfirmed:
		return "confirmed"
	case ResultFallback:
		return "fallback"
	default:
		return "unknown"
	}
}

// Config tunes dispatch behaviour.
type Config struct {
	// Timeout is how long each attempt waits for device confirmation.
	Timeout time.Duration

	// Retries is how many times a timed-out command is republished before
	// the fallback path is used.
	Retries int

	// RetryDelay is the wait before the first retry; it doubles per retry.
	RetryDelay time.Duration
}

// expectation builds the state predicate a command is confirmed by. Returns
// false in the second value when the kind or params are unusable.
func expectation(kind Kind, params Params) (func(player.State) bool, bool) {
	switch kind {
	case KindPlay:
		track, _ := params["track"].(string)
		return func(s player.State) bool {
			if s.Playback != player.PlaybackPlaying {
				return false
			}
			return track == "" || s.Track == track
		}, true

	case KindPause:
		return func(s player.State) bool {
			return s.Playback == player.PlaybackPaused
		}, true

	case KindResume:
		return func(s player.State) bool {
			return s.Playback == player.PlaybackPlaying
		}, true

	case KindStop:
		return func(s player.State) bool {
			return s.Playback == player.PlaybackIdle
		}, true

	case KindSetVolume:
		level, ok := intParam(params, "level")
		if !ok {
			return nil, false
		}
		return func(s player.State) bool {
			return s.Volume == level
		}, true

	default:
		return nil, false
	}
}

// fallbackChanges maps a command to the state patch sent to the cloud when
// the device never confirms.
func fallbackChanges(kind Kind, params Params) map[string]any {
	switch kind {
	case KindPlay:
		changes := map[string]any{"playback": "playing"}
		if track, ok := params["track"].(string); ok && track != "" {
			changes["track"] = track
		}
		return changes
	case KindPause:
		return map[string]any{"playback": "paused"}
	case KindResume:
		return map[string]any{"playback": "playing"}
	case KindStop:
		return map[string]any{"playback": "idle"}
	case KindSetVolume:
		if level, ok := intParam(params, "level"); ok {
			return map[string]any{"volume": level}
		}
	}
	return nil
}

// intParam reads an integer parameter regardless of whether it arrived as a
// Go int or a JSON float.
func intParam(params Params, key string) (int, bool) {
	switch v := params[key].(type) {
	case int:
		return v, true
	case int64:
		return int(v), true
	case float64:
		return int(v), true
	default:
		return 0, false
	}
}
