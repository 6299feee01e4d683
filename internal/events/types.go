package events

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// Event types emitted by players.
const (
	TypeStatus   = "status"   // online/offline and charging
	TypeBattery  = "battery"  // battery level
	TypePlayback = "playback" // playing/paused/idle, track, position
	TypeVolume   = "volume"   // volume level
	TypeButton   = "button"   // physical button press
)

var knownTypes = map[string]bool{
	TypeStatus:   true,
	TypeBattery:  true,
	TypePlayback: true,
	TypeVolume:   true,
	TypeButton:   true,
}

// Envelope is one device event as received from the bus. FamilyID comes
// from the topic; everything else from the payload.
type Envelope struct {
	DeviceID  string          `json:"deviceId"`
	FamilyID  string          `json:"-"`
	Type      string          `json:"type"`
	Timestamp time.Time       `json:"timestamp"`
	Sequence  uint64          `json:"sequence"`
	Data      json.RawMessage `json:"data"`
}

// DataFields decodes the envelope's data payload into a generic map.
// Returns an empty map when data is absent.
func (e Envelope) DataFields() (map[string]any, error) {
	if len(e.Data) == 0 {
		return map[string]any{}, nil
	}
	var m map[string]any
	if err := json.Unmarshal(e.Data, &m); err != nil {
		return nil, fmt.Errorf("%w: data: %v", ErrProtocol, err)
	}
	return m, nil
}

// ParseEnvelope decodes an event from its topic and payload. The topic must
// match {account}/{family}/player/{player}/events; the payload must carry a
// known type. The device ID falls back to the topic segment when the
// payload omits it, and a missing timestamp falls back to arrival time.
func ParseEnvelope(topic string, payload []byte) (Envelope, error) {
	parts := strings.Split(topic, "/")
	if len(parts) != 5 || parts[2] != "player" || parts[4] != "events" {
		return Envelope{}, fmt.Errorf("%w: unexpected topic %q", ErrProtocol, topic)
	}

	var env Envelope
	if err := json.Unmarshal(payload, &env); err != nil {
		return Envelope{}, fmt.Errorf("%w: payload: %v", ErrProtocol, err)
	}

	env.FamilyID = parts[1]
	if env.DeviceID == "" {
		env.DeviceID = parts[3]
	}
	if env.DeviceID == "" {
		return Envelope{}, fmt.Errorf("%w: missing device ID", ErrProtocol)
	}
	if !knownTypes[env.Type] {
		return Envelope{}, fmt.Errorf("%w: unknown event type %q", ErrProtocol, env.Type)
	}
	if env.Timestamp.IsZero() {
		env.Timestamp = time.Now().UTC()
	}
	return env, nil
}
