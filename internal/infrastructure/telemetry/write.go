package telemetry

import (
	"time"

	"github.com/influxdata/influxdb-client-go/v2/api/write"

	"github.com/storyware/storybox-core/internal/player"
)

// WritePlayerState records a full player state snapshot. The point is
// batched and written asynchronously.
func (c *Client) WritePlayerState(s player.State) {
	if !c.IsConnected() {
		return
	}

	online := 0
	if s.Online {
		online = 1
	}
	charging := 0
	if s.Charging {
		charging = 1
	}

	point := write.NewPoint(
		"player_state",
		map[string]string{
			"player_id": s.ID,
			"family_id": s.FamilyID,
		},
		map[string]interface{}{
			"online":   online,
			"battery":  s.Battery,
			"charging": charging,
			"volume":   s.Volume,
			"playback": string(s.Playback),
		},
		s.LastSeen,
	)

	c.writeAPI.WritePoint(point)
}

// WriteCommandResult records how a command resolved, for fleet health
// dashboards (confirmation rate, fallback rate).
func (c *Client) WriteCommandResult(playerID, kind, result string, elapsed time.Duration) {
	if !c.IsConnected() {
		return
	}

	point := write.NewPoint(
		"command_results",
		map[string]string{
			"player_id": playerID,
			"command":   kind,
			"result":    result,
		},
		map[string]interface{}{
			"elapsed_ms": elapsed.Milliseconds(),
		},
		time.Now(),
	)

	c.writeAPI.WritePoint(point)
}

// WritePoint writes a custom measurement with full control over tags and
// fields.
func (c *Client) WritePoint(measurement string, tags map[string]string, fields map[string]interface{}) {
	if !c.IsConnected() {
		return
	}

	c.writeAPI.WritePoint(write.NewPoint(measurement, tags, fields, time.Now()))
}

// StateListener adapts the client to the player registry's listener
// interface so every state change lands in the telemetry bucket.
type StateListener struct {
	client *Client
}

// NewStateListener wraps client as a registry listener.
func NewStateListener(client *Client) *StateListener {
	return &StateListener{client: client}
}

// PlayerStateChanged implements player.Listener.
func (l *StateListener) PlayerStateChanged(s player.State) {
	l.client.WritePlayerState(s)
}
