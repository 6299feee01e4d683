package adventure

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// storeDB abstracts the SQL handle so tests can supply their own.
type storeDB interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// SQLiteStore persists session positions in the adventure_sessions table.
type SQLiteStore struct {
	db storeDB
}

// NewSQLiteStore creates a store backed by db.
func NewSQLiteStore(db storeDB) *SQLiteStore {
	return &SQLiteStore{db: db}
}

// Save upserts the session position.
func (s *SQLiteStore) Save(ctx context.Context, sess Session) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO adventure_sessions (player_id, content_id, chapter_id, created_at, transitioned_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT (player_id, content_id)
		DO UPDATE SET chapter_id = excluded.chapter_id, transitioned_at = excluded.transitioned_at`,
		sess.PlayerID, sess.ContentID, sess.ChapterID,
		sess.CreatedAt.UTC().Format(time.RFC3339Nano),
		sess.TransitionedAt.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("saving session: %w", err)
	}
	return nil
}

// Load returns the persisted session for (player, content), with ok=false
// when none exists.
func (s *SQLiteStore) Load(ctx context.Context, playerID, contentID string) (Session, bool, error) {
	var sess Session
	var createdAt, transitionedAt string

	err := s.db.QueryRowContext(ctx, `
		SELECT player_id, content_id, chapter_id, created_at, transitioned_at
		FROM adventure_sessions WHERE player_id = ? AND content_id = ?`,
		playerID, contentID,
	).Scan(&sess.PlayerID, &sess.ContentID, &sess.ChapterID, &createdAt, &transitionedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return Session{}, false, nil
	}
	if err != nil {
		return Session{}, false, fmt.Errorf("loading session: %w", err)
	}

	sess.CreatedAt, _ = time.Parse(time.RFC3339Nano, createdAt)
	sess.TransitionedAt, _ = time.Parse(time.RFC3339Nano, transitionedAt)
	return sess, true, nil
}

// Delete removes the persisted session for (player, content).
func (s *SQLiteStore) Delete(ctx context.Context, playerID, contentID string) error {
	_, err := s.db.ExecContext(ctx,
		"DELETE FROM adventure_sessions WHERE player_id = ? AND content_id = ?",
		playerID, contentID)
	if err != nil {
		return fmt.Errorf("deleting session: %w", err)
	}
	return nil
}
