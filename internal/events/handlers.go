package events

import (
	"context"
	"encoding/json"

	"github.com/storyware/storybox-core/internal/eventlog"
	"github.com/storyware/storybox-core/internal/player"
)

// StateHandler applies events to the player registry. Every event marks the
// device online because the device had to be connected to send it.
type StateHandler struct {
	registry *player.Registry
	logger   Logger
}

// NewStateHandler creates a handler updating registry.
func NewStateHandler(registry *player.Registry, logger Logger) *StateHandler {
	if logger == nil {
		logger = noopLogger{}
	}
	return &StateHandler{registry: registry, logger: logger}
}

func (h *StateHandler) Name() string { return "player-state" }

type statusData struct {
	Online   *bool `json:"online"`
	Charging *bool `json:"charging"`
}

type batteryData struct {
	Level int `json:"level"`
}

type playbackData struct {
	Status   string `json:"status"`
	Track    string `json:"track"`
	Position int    `json:"position"`
}

type volumeData struct {
	Level int `json:"level"`
}

func (h *StateHandler) HandleEvent(_ context.Context, env Envelope) {
	apply := func(s *player.State) { s.Online = true }

	switch env.Type {
	case TypeStatus:
		var d statusData
		if !h.decode(env, &d) {
			return
		}
		apply = func(s *player.State) {
			s.Online = true
			if d.Online != nil {
				s.Online = *d.Online
			}
			if d.Charging != nil {
				s.Charging = *d.Charging
			}
		}

	case TypeBattery:
		var d batteryData
		if !h.decode(env, &d) {
			return
		}
		apply = func(s *player.State) {
			s.Online = true
			s.Battery = d.Level
		}

	case TypePlayback:
		var d playbackData
		if !h.decode(env, &d) {
			return
		}
		apply = func(s *player.State) {
			s.Online = true
			s.Playback = player.PlaybackStatus(d.Status)
			s.Track = d.Track
			s.Position = d.Position
		}

	case TypeVolume:
		var d volumeData
		if !h.decode(env, &d) {
			return
		}
		apply = func(s *player.State) {
			s.Online = true
			s.Volume = d.Level
		}

	case TypeButton:
		// Button presses carry no state but prove the device is alive.
	}

	h.registry.Update(env.DeviceID, env.FamilyID, env.Timestamp, apply)
}

func (h *StateHandler) decode(env Envelope, into any) bool {
	if len(env.Data) == 0 {
		h.logger.Warn("event missing data", "device_id", env.DeviceID, "type", env.Type)
		return false
	}
	if err := json.Unmarshal(env.Data, into); err != nil {
		h.logger.Warn("undecodable event data",
			"device_id", env.DeviceID, "type", env.Type, "error", err)
		return false
	}
	return true
}

// AdventureEngine receives button presses that may drive a story session.
type AdventureEngine interface {
	OnButtonEvent(ctx context.Context, playerID, contentID, button string)
}

// AdventureHandler forwards button events to the adventure engine. All
// other event types pass through untouched.
type AdventureHandler struct {
	engine AdventureEngine
	logger Logger
}

// NewAdventureHandler creates a handler forwarding to engine.
func NewAdventureHandler(engine AdventureEngine, logger Logger) *AdventureHandler {
	if logger == nil {
		logger = noopLogger{}
	}
	return &AdventureHandler{engine: engine, logger: logger}
}

func (h *AdventureHandler) Name() string { return "adventure" }

type buttonData struct {
	Button    string `json:"button"`
	ContentID string `json:"contentId"`
}

func (h *AdventureHandler) HandleEvent(ctx context.Context, env Envelope) {
	if env.Type != TypeButton {
		return
	}

	var d buttonData
	if err := json.Unmarshal(env.Data, &d); err != nil {
		h.logger.Warn("undecodable button event",
			"device_id", env.DeviceID, "error", err)
		return
	}
	if d.Button == "" {
		h.logger.Warn("button event without button", "device_id", env.DeviceID)
		return
	}
	if d.ContentID == "" {
		h.logger.Debug("button press outside a story, ignoring",
			"device_id", env.DeviceID, "button", d.Button)
		return
	}

	h.engine.OnButtonEvent(ctx, env.DeviceID, d.ContentID, d.Button)
}

// Appender receives event records for persistence.
type Appender interface {
	Append(rec eventlog.Record) error
}

// LogHandler appends every routed event to the event log.
type LogHandler struct {
	appender Appender
	logger   Logger
}

// NewLogHandler creates a handler writing to appender.
func NewLogHandler(appender Appender, logger Logger) *LogHandler {
	if logger == nil {
		logger = noopLogger{}
	}
	return &LogHandler{appender: appender, logger: logger}
}

func (h *LogHandler) Name() string { return "event-log" }

func (h *LogHandler) HandleEvent(_ context.Context, env Envelope) {
	rec := eventlog.Record{
		DeviceID:   env.DeviceID,
		FamilyID:   env.FamilyID,
		Type:       env.Type,
		Sequence:   env.Sequence,
		Data:       string(env.Data),
		OccurredAt: env.Timestamp,
	}
	if err := h.appender.Append(rec); err != nil {
		h.logger.Warn("event not logged",
			"device_id", env.DeviceID, "type", env.Type, "error", err)
	}
}
