package eventlog

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	infradb "github.com/storyware/storybox-core/internal/infrastructure/database"
)

func newTestRepo(t *testing.T) *SQLiteRepository {
	t.Helper()

	db, err := infradb.Open(infradb.Config{
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
	return NewSQLiteRepository(db)
}

func testRecord(deviceID string, seq uint64, at time.Time) Record {
	return Record{
		DeviceID:   deviceID,
		FamilyID:   "fam-1",
		Type:       "battery",
		Sequence:   seq,
		Data:       `{"level":50}`,
		OccurredAt: at,
	}
}

func TestAppendAndList(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()
	now := time.Now().UTC().Truncate(time.Millisecond)

	for i := 0; i < 3; i++ {
		rec := testRecord("box-1", uint64(i), now.Add(time.Duration(i)*time.Second))
		if err := repo.Append(ctx, rec); err != nil {
			t.Fatalf("append %d: %v", i, err)
		}
	}

	got, err := repo.List(ctx, Filter{DeviceID: "box-1"})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("listed %d records, want 3", len(got))
	}
	// Newest first.
	if got[0].Sequence != 2 || got[2].Sequence != 0 {
		t.Errorf("unexpected order: sequences %d, %d, %d",
			got[0].Sequence, got[1].Sequence, got[2].Sequence)
	}
	if !strings.HasPrefix(got[0].ID, "evt-") {
		t.Errorf("generated ID %q missing evt- prefix", got[0].ID)
	}
	if got[0].Data != `{"level":50}` {
		t.Errorf("Data = %q", got[0].Data)
	}
}

func TestListFilters(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()
	now := time.Now().UTC()

	repo.Append(ctx, testRecord("box-1", 1, now.Add(-2*time.Hour)))
	repo.Append(ctx, testRecord("box-2", 1, now))

	other := testRecord("box-3", 1, now)
	other.Type = "button"
	repo.Append(ctx, other)

	got, err := repo.List(ctx, Filter{Type: "button"})
	if err != nil {
		t.Fatalf("list by type: %v", err)
	}
	if len(got) != 1 || got[0].DeviceID != "box-3" {
		t.Errorf("list by type = %+v, want single box-3 record", got)
	}

	got, err = repo.List(ctx, Filter{Since: now.Add(-time.Hour)})
	if err != nil {
		t.Fatalf("list since: %v", err)
	}
	if len(got) != 2 {
		t.Errorf("list since returned %d records, want 2", len(got))
	}

	got, err = repo.List(ctx, Filter{Limit: 1})
	if err != nil {
		t.Fatalf("list with limit: %v", err)
	}
	if len(got) != 1 {
		t.Errorf("list with limit returned %d records, want 1", len(got))
	}
}

func TestAppendValidation(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	err := repo.Append(ctx, Record{Type: "battery"})
	if !errors.Is(err, ErrInvalidRecord) {
		t.Errorf("missing device ID: err = %v, want ErrInvalidRecord", err)
	}
	err = repo.Append(ctx, Record{DeviceID: "box-1"})
	if !errors.Is(err, ErrInvalidRecord) {
		t.Errorf("missing type: err = %v, want ErrInvalidRecord", err)
	}
}

func TestPrune(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()
	now := time.Now().UTC()

	repo.Append(ctx, testRecord("box-1", 1, now.Add(-48*time.Hour)))
	repo.Append(ctx, testRecord("box-1", 2, now))

	n, err := repo.Prune(ctx, now.Add(-24*time.Hour))
	if err != nil {
		t.Fatalf("prune: %v", err)
	}
	if n != 1 {
		t.Errorf("pruned %d records, want 1", n)
	}

	got, _ := repo.List(ctx, Filter{})
	if len(got) != 1 || got[0].Sequence != 2 {
		t.Errorf("remaining records = %+v, want only sequence 2", got)
	}
}

type blockingRepo struct {
	mu   sync.Mutex
	recs []Record
}

func (r *blockingRepo) Append(_ context.Context, rec Record) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.recs = append(r.recs, rec)
	return nil
}

func (r *blockingRepo) List(context.Context, Filter) ([]Record, error) { return nil, nil }

func (r *blockingRepo) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.recs)
}

func TestAppenderWritesAsync(t *testing.T) {
	repo := &blockingRepo{}
	a := NewAppender(repo, 16, nil)
	a.Start()

	for i := 0; i < 5; i++ {
		if err := a.Append(testRecord("box-1", uint64(i), time.Now())); err != nil {
			t.Fatalf("append %d: %v", i, err)
		}
	}
	a.Close()

	if got := repo.count(); got != 5 {
		t.Errorf("repository received %d records, want 5", got)
	}

	if err := a.Append(testRecord("box-1", 9, time.Now())); !errors.Is(err, ErrClosed) {
		t.Errorf("append after close: err = %v, want ErrClosed", err)
	}
}
