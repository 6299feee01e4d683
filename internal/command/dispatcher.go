package command

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/storyware/storybox-core/internal/infrastructure/mqtt"
	"github.com/storyware/storybox-core/internal/player"
)

// Publisher sends command payloads to the device bus.
type Publisher interface {
	Publish(topic string, qos byte, retained bool, payload []byte) error
}

// Fallback applies a state change through the cloud when the device never
// confirms it.
type Fallback interface {
	SetPlayerState(ctx context.Context, familyID, playerID string, changes map[string]any) error
}

// StateReader looks up current player state for idempotence checks and
// topic construction.
type StateReader interface {
	Get(playerID string) (player.State, bool)
}

// Logger is the minimal logging interface the dispatcher needs.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// wirePayload is the JSON body published on the command topic.
type wirePayload struct {
	Command Kind   `json:"command"`
	Params  Params `json:"params,omitempty"`
}

// pending is a command waiting for the device to report the expected state.
type pending struct {
	id       string
	playerID string
	check    func(player.State) bool
	done     chan struct{}
	once     sync.Once
}

func (p *pending) resolve() {
	p.once.Do(func() { close(p.done) })
}

// Dispatcher sends commands to players and confirms them against observed
// state changes. It implements player.Listener; wire it to the registry so
// confirmations arrive.
//
// A command resolves as ResultConfirmed when the device reports the
// expected state, immediately when the state already matches, or as
// ResultFallback when every attempt times out and the cloud accepts the
// change instead.
type Dispatcher struct {
	pub      Publisher
	fallback Fallback
	states   StateReader
	topics   mqtt.Topics
	cfg      Config
	logger   Logger

	mu      sync.Mutex
	waiters map[string][]*pending // keyed by player ID
	closed  bool

	shutdown chan struct{}
}

// NewDispatcher creates a dispatcher publishing through pub, confirming
// against states and falling back to fb.
func NewDispatcher(pub Publisher, fb Fallback, states StateReader, topics mqtt.Topics, cfg Config, logger Logger) *Dispatcher {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 5 * time.Second
	}
	if cfg.Retries < 0 {
		cfg.Retries = 0
	}
	if cfg.RetryDelay <= 0 {
		cfg.RetryDelay = time.Second
	}
	if logger == nil {
		logger = noopLogger{}
	}
	return &Dispatcher{
		pub:      pub,
		fallback: fb,
		states:   states,
		topics:   topics,
		cfg:      cfg,
		logger:   logger,
		waiters:  make(map[string][]*pending),
		shutdown: make(chan struct{}),
	}
}

// PlayerStateChanged resolves any pending command whose expectation the new
// state satisfies. Implements player.Listener.
func (d *Dispatcher) PlayerStateChanged(s player.State) {
	d.mu.Lock()
	waiters := d.waiters[s.ID]
	var remaining []*pending
	var satisfied []*pending
	for _, p := range waiters {
		if p.check(s) {
			satisfied = append(satisfied, p)
		} else {
			remaining = append(remaining, p)
		}
	}
	if len(satisfied) > 0 {
		if len(remaining) == 0 {
			delete(d.waiters, s.ID)
		} else {
			d.waiters[s.ID] = remaining
		}
	}
	d.mu.Unlock()

	for _, p := range satisfied {
		p.resolve()
		d.logger.Debug("command confirmed by device state",
			"command_id", p.id, "player_id", p.playerID)
	}
}

// Send dispatches a command and blocks until it is confirmed, falls back,
// fails, or ctx is cancelled. Safe for concurrent use.
func (d *Dispatcher) Send(ctx context.Context, playerID string, kind Kind, params Params) (Result, error) {
	check, ok := expectation(kind, params)
	if !ok {
		return 0, fmt.Errorf("%w: %s %v", ErrInvalidCommand, kind, params)
	}

	state, known := d.states.Get(playerID)
	if !known {
		return 0, fmt.Errorf("%w: %s", ErrUnknownPlayer, playerID)
	}

	// Already in the requested state; nothing to send.
	if check(state) {
		d.logger.Debug("command is a no-op, state already matches",
			"player_id", playerID, "command", kind)
		return ResultConfirmed, nil
	}

	p := &pending{
		id:       "cmd-" + uuid.New().String(),
		playerID: playerID,
		check:    check,
		done:     make(chan struct{}),
	}

	// Register before publishing so a confirmation racing the publish is
	// not lost.
	if err := d.register(p); err != nil {
		return 0, err
	}
	defer d.unregister(p)

	payload, err := json.Marshal(wirePayload{Command: kind, Params: params})
	if err != nil {
		return 0, fmt.Errorf("%w: encode: %v", ErrInvalidCommand, err)
	}
	topic := d.topics.PlayerCommand(state.FamilyID, playerID)

	retryDelay := d.cfg.RetryDelay
	for attempt := 0; attempt <= d.cfg.Retries; attempt++ {
		if attempt > 0 {
			select {
			case <-time.After(retryDelay):
			case <-p.done:
				return ResultConfirmed, nil
			case <-ctx.Done():
				return 0, ctx.Err()
			case <-d.shutdown:
				return 0, ErrShutdown
			}
			retryDelay *= 2
		}

		if err := d.pub.Publish(topic, mqtt.QoSDefault, false, payload); err != nil {
			// A queued publish may still reach the device; keep waiting.
			d.logger.Warn("command publish degraded",
				"command_id", p.id, "player_id", playerID, "attempt", attempt, "error", err)
		}

		timer := time.NewTimer(d.cfg.Timeout)
		select {
		case <-p.done:
			timer.Stop()
			return ResultConfirmed, nil
		case <-timer.C:
			d.logger.Warn("command attempt timed out",
				"command_id", p.id, "player_id", playerID, "attempt", attempt)
		case <-ctx.Done():
			timer.Stop()
			return 0, ctx.Err()
		case <-d.shutdown:
			timer.Stop()
			return 0, ErrShutdown
		}
	}

	return d.applyFallback(ctx, p, state.FamilyID, playerID, kind, params)
}

// applyFallback makes exactly one cloud attempt after the device never
// confirmed.
func (d *Dispatcher) applyFallback(ctx context.Context, p *pending, familyID, playerID string, kind Kind, params Params) (Result, error) {
	changes := fallbackChanges(kind, params)
	if changes == nil {
		return 0, fmt.Errorf("%w: no fallback for %s", ErrDeviceUnresponsive, kind)
	}

	d.logger.Info("device unresponsive, applying state through cloud",
		"command_id", p.id, "player_id", playerID, "command", kind)

	if err := d.fallback.SetPlayerState(ctx, familyID, playerID, changes); err != nil {
		return 0, fmt.Errorf("%w: %v", ErrDeviceUnresponsive, err)
	}
	return ResultFallback, nil
}

func (d *Dispatcher) register(p *pending) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return ErrShutdown
	}
	d.waiters[p.playerID] = append(d.waiters[p.playerID], p)
	return nil
}

func (d *Dispatcher) unregister(p *pending) {
	d.mu.Lock()
	defer d.mu.Unlock()
	waiters := d.waiters[p.playerID]
	for i, w := range waiters {
		if w == p {
			d.waiters[p.playerID] = append(waiters[:i], waiters[i+1:]...)
			break
		}
	}
	if len(d.waiters[p.playerID]) == 0 {
		delete(d.waiters, p.playerID)
	}
}

// PendingCount returns how many commands are awaiting confirmation.
func (d *Dispatcher) PendingCount() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	n := 0
	for _, w := range d.waiters {
		n += len(w)
	}
	return n
}

// Close aborts all in-flight commands with ErrShutdown and rejects new
// ones. Safe to call multiple times.
func (d *Dispatcher) Close() {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return
	}
	d.closed = true
	d.mu.Unlock()
	close(d.shutdown)
}
