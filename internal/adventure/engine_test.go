package adventure

import (
	"context"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/storyware/storybox-core/internal/infrastructure/database"
)

// testContent builds the three-chapter story used throughout: ch-1 branches
// left to ch-2 and right to ch-3, both of which are leaves.
func testContent() Content {
	return Content{
		ID:    "story-1",
		Title: "The Fork",
		Start: "ch-1",
		Chapters: map[string]Chapter{
			"ch-1": {ID: "ch-1", Track: "trk-1", Left: "ch-2", Right: "ch-3"},
			"ch-2": {ID: "ch-2", Track: "trk-2"},
			"ch-3": {ID: "ch-3", Track: "trk-3"},
		},
	}
}

type stubSource struct {
	content map[string]Content
}

func (s *stubSource) Get(id string) (Content, bool) {
	c, ok := s.content[id]
	return c, ok
}

type stubCommander struct {
	mu     sync.Mutex
	plays  []string // "playerID:track"
	played chan struct{}
}

func newStubCommander() *stubCommander {
	return &stubCommander{played: make(chan struct{}, 16)}
}

func (c *stubCommander) Play(_ context.Context, playerID, track string) error {
	c.mu.Lock()
	c.plays = append(c.plays, playerID+":"+track)
	c.mu.Unlock()
	c.played <- struct{}{}
	return nil
}

func (c *stubCommander) waitForPlay(t *testing.T) string {
	t.Helper()
	select {
	case <-c.played:
	case <-time.After(2 * time.Second):
		t.Fatal("no play command issued")
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.plays[len(c.plays)-1]
}

func (c *stubCommander) playCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.plays)
}

func newTestEngine(store SessionStore) (*Engine, *stubCommander) {
	cmd := newStubCommander()
	src := &stubSource{content: map[string]Content{"story-1": testContent()}}
	return NewEngine(src, cmd, store, nil), cmd
}

func TestFirstButtonCreatesSessionAndTransitions(t *testing.T) {
	e, cmd := newTestEngine(nil)
	ctx := context.Background()

	if _, ok := e.GetSession("box-1", "story-1"); ok {
		t.Fatal("session exists before any button press")
	}

	e.OnButtonEvent(ctx, "box-1", "story-1", ButtonLeft)

	s, ok := e.GetSession("box-1", "story-1")
	if !ok {
		t.Fatal("session missing after button press")
	}
	if s.ChapterID != "ch-2" {
		t.Errorf("chapter = %q, want ch-2 (left from start)", s.ChapterID)
	}
	if got := cmd.waitForPlay(t); got != "box-1:trk-2" {
		t.Errorf("played %q, want box-1:trk-2", got)
	}
}

func TestRightButtonTakesRightBranch(t *testing.T) {
	e, cmd := newTestEngine(nil)

	e.OnButtonEvent(context.Background(), "box-1", "story-1", ButtonRight)

	s, _ := e.GetSession("box-1", "story-1")
	if s.ChapterID != "ch-3" {
		t.Errorf("chapter = %q, want ch-3 (right from start)", s.ChapterID)
	}
	if got := cmd.waitForPlay(t); got != "box-1:trk-3" {
		t.Errorf("played %q, want box-1:trk-3", got)
	}
}

func TestButtonWithoutEdgeIsNoOp(t *testing.T) {
	e, cmd := newTestEngine(nil)
	ctx := context.Background()

	e.OnButtonEvent(ctx, "box-1", "story-1", ButtonLeft) // to ch-2, a leaf
	cmd.waitForPlay(t)

	e.OnButtonEvent(ctx, "box-1", "story-1", ButtonLeft)
	e.OnButtonEvent(ctx, "box-1", "story-1", ButtonRight)

	s, _ := e.GetSession("box-1", "story-1")
	if s.ChapterID != "ch-2" {
		t.Errorf("chapter = %q, want ch-2 (leaf must not move)", s.ChapterID)
	}
	if got := cmd.playCount(); got != 1 {
		t.Errorf("play called %d times, want 1 (no-ops must not play)", got)
	}
}

func TestNonStoryButtonsIgnored(t *testing.T) {
	e, cmd := newTestEngine(nil)

	e.OnButtonEvent(context.Background(), "box-1", "story-1", "pause")

	if _, ok := e.GetSession("box-1", "story-1"); ok {
		t.Error("non-story button should not create a session")
	}
	if cmd.playCount() != 0 {
		t.Error("non-story button should not play")
	}
}

func TestUnknownContentIgnored(t *testing.T) {
	e, cmd := newTestEngine(nil)

	e.OnButtonEvent(context.Background(), "box-1", "ghost-story", ButtonLeft)

	if cmd.playCount() != 0 {
		t.Error("unknown content should not play")
	}
}

func TestSessionsAreIndependent(t *testing.T) {
	e, _ := newTestEngine(nil)
	ctx := context.Background()

	e.OnButtonEvent(ctx, "box-1", "story-1", ButtonLeft)
	e.OnButtonEvent(ctx, "box-2", "story-1", ButtonRight)

	s1, _ := e.GetSession("box-1", "story-1")
	s2, _ := e.GetSession("box-2", "story-1")
	if s1.ChapterID != "ch-2" || s2.ChapterID != "ch-3" {
		t.Errorf("sessions = %q/%q, want ch-2/ch-3", s1.ChapterID, s2.ChapterID)
	}
}

func TestConcurrentButtonsOnIndependentSessions(t *testing.T) {
	e, _ := newTestEngine(nil)
	ctx := context.Background()

	var wg sync.WaitGroup
	players := []string{"box-1", "box-2", "box-3", "box-4"}
	for _, p := range players {
		wg.Add(1)
		go func(p string) {
			defer wg.Done()
			e.OnButtonEvent(ctx, p, "story-1", ButtonLeft)
		}(p)
	}
	wg.Wait()

	for _, p := range players {
		s, ok := e.GetSession(p, "story-1")
		if !ok || s.ChapterID != "ch-2" {
			t.Errorf("player %s session = %+v, want ch-2", p, s)
		}
	}
}

func TestResetSession(t *testing.T) {
	e, _ := newTestEngine(nil)
	ctx := context.Background()

	e.OnButtonEvent(ctx, "box-1", "story-1", ButtonLeft)
	if err := e.ResetSession(ctx, "box-1", "story-1"); err != nil {
		t.Fatalf("ResetSession: %v", err)
	}
	if _, ok := e.GetSession("box-1", "story-1"); ok {
		t.Error("session still present after reset")
	}

	// Next press starts over from ch-1.
	e.OnButtonEvent(ctx, "box-1", "story-1", ButtonRight)
	s, _ := e.GetSession("box-1", "story-1")
	if s.ChapterID != "ch-3" {
		t.Errorf("chapter after reset = %q, want ch-3", s.ChapterID)
	}
}

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()

	db, err := database.Open(database.Config{
		Path:        filepath.Join(t.TempDir(), "test.db"),
		WALMode:     true,
		BusyTimeout: 5000,
	})
	if err != nil {
		t.Fatalf("open database: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	if err := db.InitSchema(context.Background()); err != nil {
		t.Fatalf("init schema: %v", err)
	}
	return NewSQLiteStore(db)
}

func TestPersistedSessionResumes(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	e1, cmd1 := newTestEngine(store)
	e1.OnButtonEvent(ctx, "box-1", "story-1", ButtonLeft)
	cmd1.waitForPlay(t)

	// A fresh engine over the same store resumes at ch-2, where presses
	// have no effect because it is a leaf.
	e2, cmd2 := newTestEngine(store)
	e2.OnButtonEvent(ctx, "box-1", "story-1", ButtonRight)

	s, ok := e2.GetSession("box-1", "story-1")
	if !ok {
		t.Fatal("session missing in fresh engine")
	}
	if s.ChapterID != "ch-2" {
		t.Errorf("resumed chapter = %q, want persisted ch-2", s.ChapterID)
	}
	if cmd2.playCount() != 0 {
		t.Error("resumed leaf session should not play on a dead-end press")
	}
}

func TestStoreRoundTrip(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	now := time.Now().UTC().Truncate(time.Millisecond)
	sess := Session{
		PlayerID: "box-1", ContentID: "story-1", ChapterID: "ch-2",
		CreatedAt: now, TransitionedAt: now,
	}
	if err := store.Save(ctx, sess); err != nil {
		t.Fatalf("save: %v", err)
	}

	// Upsert moves the chapter.
	sess.ChapterID = "ch-3"
	if err := store.Save(ctx, sess); err != nil {
		t.Fatalf("upsert: %v", err)
	}

	got, ok, err := store.Load(ctx, "box-1", "story-1")
	if err != nil || !ok {
		t.Fatalf("load: ok=%v err=%v", ok, err)
	}
	if got.ChapterID != "ch-3" || !got.CreatedAt.Equal(now) {
		t.Errorf("loaded session = %+v", got)
	}

	if err := store.Delete(ctx, "box-1", "story-1"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, ok, _ := store.Load(ctx, "box-1", "story-1"); ok {
		t.Error("session still present after delete")
	}
}
