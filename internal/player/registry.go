package player

import (
	"sort"
	"sync"
	"time"
)

// Logger is the minimal logging interface the registry needs.
type Logger interface {
	Debug(msg string, args ...any)
	Warn(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Warn(string, ...any)  {}

// Registry holds the in-memory state of every known player. All mutation
// goes through Update, which enforces that state never moves backwards in
// device time. Reads return copies so callers can never alias the stored
// state.
type Registry struct {
	mu      sync.RWMutex
	players map[string]*State

	listenerMu sync.RWMutex
	listeners  []Listener

	logger Logger
}

// NewRegistry creates an empty registry.
func NewRegistry(logger Logger) *Registry {
	if logger == nil {
		logger = noopLogger{}
	}
	return &Registry{
		players: make(map[string]*State),
		logger:  logger,
	}
}

// AddListener registers a listener for state change notifications.
func (r *Registry) AddListener(l Listener) {
	r.listenerMu.Lock()
	r.listeners = append(r.listeners, l)
	r.listenerMu.Unlock()
}

// Update applies fn to the state of playerID, creating the entry on first
// sight. The update is dropped if at is older than the state's LastSeen, so
// late-arriving events cannot roll state backwards. Listeners are notified
// with a copy of the new state after the registry lock is released.
//
// Returns true if the update was applied.
func (r *Registry) Update(playerID, familyID string, at time.Time, fn func(*State)) bool {
	r.mu.Lock()

	s, ok := r.players[playerID]
	if !ok {
		s = &State{ID: playerID, FamilyID: familyID}
		r.players[playerID] = s
		r.logger.Debug("player discovered", "player_id", playerID, "family_id", familyID)
	}

	if at.Before(s.LastSeen) {
		r.mu.Unlock()
		r.logger.Debug("stale update dropped",
			"player_id", playerID, "at", at, "last_seen", s.LastSeen)
		return false
	}

	fn(s)
	s.LastSeen = at
	snapshot := *s
	r.mu.Unlock()

	r.notify(snapshot)
	return true
}

// MarkOffline flags a player offline without advancing its LastSeen, used
// when the connection layer (not the device) determines reachability.
func (r *Registry) MarkOffline(playerID string) {
	r.mu.Lock()
	s, ok := r.players[playerID]
	if !ok || !s.Online {
		r.mu.Unlock()
		return
	}
	s.Online = false
	snapshot := *s
	r.mu.Unlock()

	r.notify(snapshot)
}

// Get returns a copy of the state for playerID.
func (r *Registry) Get(playerID string) (State, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	s, ok := r.players[playerID]
	if !ok {
		return State{}, false
	}
	return *s, true
}

// List returns copies of all known player states, ordered by player ID.
func (r *Registry) List() []State {
	r.mu.RLock()
	out := make([]State, 0, len(r.players))
	for _, s := range r.players {
		out = append(out, *s)
	}
	r.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// ListFamily returns copies of the states of every player in one family,
// ordered by player ID.
func (r *Registry) ListFamily(familyID string) []State {
	r.mu.RLock()
	out := make([]State, 0, 4)
	for _, s := range r.players {
		if s.FamilyID == familyID {
			out = append(out, *s)
		}
	}
	r.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (r *Registry) notify(s State) {
	r.listenerMu.RLock()
	listeners := r.listeners
	r.listenerMu.RUnlock()

	for _, l := range listeners {
		l.PlayerStateChanged(s)
	}
}
