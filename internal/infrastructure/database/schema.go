package database

import (
	"context"
	"fmt"
)

// schema holds the table definitions Storybox Core persists locally.
//
// Only two tables exist: the device event log and the optional adventure
// session positions. Content, accounts, and artifacts live in the cloud.
const schema = `
CREATE TABLE IF NOT EXISTS event_log (
	id          TEXT PRIMARY KEY,
	device_id   TEXT NOT NULL,
	family_id   TEXT NOT NULL,
	type        TEXT NOT NULL,
	sequence    INTEGER NOT NULL,
	data        TEXT,
	occurred_at TIMESTAMP NOT NULL,
	created_at  TIMESTAMP NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_event_log_device
	ON event_log (device_id, occurred_at DESC);

CREATE TABLE IF NOT EXISTS adventure_sessions (
	player_id       TEXT NOT NULL,
	content_id      TEXT NOT NULL,
	chapter_id      TEXT NOT NULL,
	created_at      TIMESTAMP NOT NULL,
	transitioned_at TIMESTAMP NOT NULL,
	PRIMARY KEY (player_id, content_id)
);
`

// InitSchema creates the Storybox tables if they do not already exist.
// It is idempotent and safe to run on every startup.
//
// Parameters:
//   - ctx: Context for timeout/cancellation
//
// Returns:
//   - error: If schema creation fails
func (db *DB) InitSchema(ctx context.Context) error {
	if _, err := db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("initialising schema: %w", err)
	}
	return nil
}
