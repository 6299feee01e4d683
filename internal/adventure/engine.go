package adventure

import (
	"context"
	"sync"
	"time"
)

// playCommandTimeout bounds the asynchronous play dispatch that follows a
// transition.
const playCommandTimeout = 30 * time.Second

// Commander plays a track on a device. The engine fires it asynchronously;
// a slow or failing command never blocks event handling.
type Commander interface {
	Play(ctx context.Context, playerID, track string) error
}

// SessionStore persists session positions across restarts. Optional; the
// engine is fully functional with ephemeral sessions.
type SessionStore interface {
	Save(ctx context.Context, s Session) error
	Load(ctx context.Context, playerID, contentID string) (Session, bool, error)
	Delete(ctx context.Context, playerID, contentID string) error
}

// Logger is the minimal logging interface the engine needs.
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

// sessionEntry pairs a session with its own lock so transitions on one
// session serialize while independent sessions proceed concurrently.
type sessionEntry struct {
	mu sync.Mutex
	s  Session
}

// Engine walks players through branching stories. Button events move a
// session along the story graph; each successful transition plays the new
// chapter's track on the device.
type Engine struct {
	content   ContentSource
	commander Commander
	store     SessionStore // nil when sessions are ephemeral
	logger    Logger

	mu       sync.Mutex
	sessions map[string]*sessionEntry
}

// NewEngine creates an engine reading stories from content and playing
// chapters through commander. Pass a nil store for ephemeral sessions.
func NewEngine(content ContentSource, commander Commander, store SessionStore, logger Logger) *Engine {
	if logger == nil {
		logger = noopLogger{}
	}
	return &Engine{
		content:   content,
		commander: commander,
		store:     store,
		logger:    logger,
		sessions:  make(map[string]*sessionEntry),
	}
}

func sessionKey(playerID, contentID string) string {
	return playerID + "\x00" + contentID
}

// OnButtonEvent applies one button press to the (player, content) session,
// creating it at the story's start chapter on first sight. A button with no
// edge from the current chapter is a no-op. Errors are logged, never
// returned; a bad press must not disturb event routing.
func (e *Engine) OnButtonEvent(ctx context.Context, playerID, contentID, button string) {
	if button != ButtonLeft && button != ButtonRight {
		e.logger.Debug("button does not drive stories",
			"player_id", playerID, "button", button)
		return
	}

	content, ok := e.content.Get(contentID)
	if !ok {
		e.logger.Warn("button for unknown content",
			"player_id", playerID, "content_id", contentID)
		return
	}

	entry := e.entry(ctx, playerID, content)
	entry.mu.Lock()
	defer entry.mu.Unlock()

	current, ok := content.Chapters[entry.s.ChapterID]
	if !ok {
		// Content changed under a persisted session; restart the story.
		e.logger.Warn("session chapter no longer exists, restarting story",
			"player_id", playerID, "content_id", contentID, "chapter_id", entry.s.ChapterID)
		entry.s.ChapterID = content.Start
		current = content.Chapters[content.Start]
	}

	next := current.Left
	if button == ButtonRight {
		next = current.Right
	}
	if next == "" {
		e.logger.Debug("no branch for button, staying put",
			"player_id", playerID, "content_id", contentID,
			"chapter_id", current.ID, "button", button)
		return
	}

	entry.s.ChapterID = next
	entry.s.TransitionedAt = time.Now().UTC()
	e.persist(ctx, entry.s)

	e.logger.Info("story transition",
		"player_id", playerID, "content_id", contentID,
		"from", current.ID, "to", next, "button", button)

	// Play the new chapter without holding up the caller.
	track := content.Chapters[next].Track
	go e.play(playerID, track)
}

// entry returns the session entry for (player, content), creating it at the
// story start. A persisted position, if any, wins over a fresh start.
func (e *Engine) entry(ctx context.Context, playerID string, content Content) *sessionEntry {
	key := sessionKey(playerID, content.ID)

	e.mu.Lock()
	defer e.mu.Unlock()

	if entry, ok := e.sessions[key]; ok {
		return entry
	}

	now := time.Now().UTC()
	s := Session{
		PlayerID:       playerID,
		ContentID:      content.ID,
		ChapterID:      content.Start,
		CreatedAt:      now,
		TransitionedAt: now,
	}

	if e.store != nil {
		if saved, ok, err := e.store.Load(ctx, playerID, content.ID); err != nil {
			e.logger.Error("loading persisted session",
				"player_id", playerID, "content_id", content.ID, "error", err)
		} else if ok {
			s = saved
		}
	}

	entry := &sessionEntry{s: s}
	e.sessions[key] = entry
	e.logger.Debug("session opened",
		"player_id", playerID, "content_id", content.ID, "chapter_id", s.ChapterID)
	return entry
}

func (e *Engine) persist(ctx context.Context, s Session) {
	if e.store == nil {
		return
	}
	if err := e.store.Save(ctx, s); err != nil {
		e.logger.Error("persisting session",
			"player_id", s.PlayerID, "content_id", s.ContentID, "error", err)
	}
}

func (e *Engine) play(playerID, track string) {
	ctx, cancel := context.WithTimeout(context.Background(), playCommandTimeout)
	defer cancel()

	if err := e.commander.Play(ctx, playerID, track); err != nil {
		e.logger.Error("playing chapter track",
			"player_id", playerID, "track", track, "error", err)
	}
}

// GetSession returns a copy of the session for (player, content).
func (e *Engine) GetSession(playerID, contentID string) (Session, bool) {
	e.mu.Lock()
	entry, ok := e.sessions[sessionKey(playerID, contentID)]
	e.mu.Unlock()
	if !ok {
		return Session{}, false
	}

	entry.mu.Lock()
	defer entry.mu.Unlock()
	return entry.s, true
}

// ResetSession forgets the session for (player, content), including any
// persisted copy. The next button press starts the story over.
func (e *Engine) ResetSession(ctx context.Context, playerID, contentID string) error {
	e.mu.Lock()
	delete(e.sessions, sessionKey(playerID, contentID))
	e.mu.Unlock()

	if e.store != nil {
		return e.store.Delete(ctx, playerID, contentID)
	}
	return nil
}
