package mqtt

import (
	"math/rand"
	"sync"
	"time"
)

// Backoff computes reconnect delays. Each failed attempt doubles the delay
// up to Max. The delay only resets to Initial after a connection has stayed
// up for at least Stability; a connection that drops sooner resumes the
// schedule where it left off, so a flapping broker is not hammered.
type Backoff struct {
	Initial   time.Duration
	Max       time.Duration
	Stability time.Duration

	// Jitter is the maximum random reduction applied to each delay as a
	// fraction of the computed value (0 disables jitter). Tests zero this
	// for determinism.
	Jitter float64

	mu          sync.Mutex
	current     time.Duration
	connectedAt time.Time
}

// Next returns the delay to wait before the next connection attempt and
// advances the schedule.
func (b *Backoff) Next() time.Duration {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.current == 0 {
		b.current = b.Initial
	}
	delay := b.current

	b.current *= 2
	if b.current > b.Max {
		b.current = b.Max
	}

	if b.Jitter > 0 {
		delay -= time.Duration(rand.Float64() * b.Jitter * float64(delay))
	}
	return delay
}

// NoteConnected records a successful connection. The schedule does not reset
// yet; it resets once the connection survives the stability window.
func (b *Backoff) NoteConnected() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.connectedAt = time.Now()
}

// NoteDisconnected records a connection loss. If the connection held for the
// stability window the schedule resets to Initial, otherwise it continues
// from where it left off.
func (b *Backoff) NoteDisconnected() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if !b.connectedAt.IsZero() && time.Since(b.connectedAt) >= b.Stability {
		b.current = 0
	}
	b.connectedAt = time.Time{}
}

// Reset returns the schedule to its initial state.
func (b *Backoff) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.current = 0
	b.connectedAt = time.Time{}
}
