package eventlog

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Record is one device event as persisted.
type Record struct {
	ID         string
	DeviceID   string
	FamilyID   string
	Type       string
	Sequence   uint64
	Data       string // raw JSON payload of the event's data field
	OccurredAt time.Time
	CreatedAt  time.Time
}

// Filter narrows List queries. Zero values mean "any".
type Filter struct {
	DeviceID string
	FamilyID string
	Type     string
	Since    time.Time
	Limit    int
}

// Repository persists device events.
type Repository interface {
	Append(ctx context.Context, rec Record) error
	List(ctx context.Context, f Filter) ([]Record, error)
}

// database abstracts the SQL handle so tests can supply their own.
type database interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

// SQLiteRepository stores event records in the event_log table.
type SQLiteRepository struct {
	db database
}

// NewSQLiteRepository creates a repository backed by db.
func NewSQLiteRepository(db database) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

// Append inserts one event record. A missing ID is generated.
func (r *SQLiteRepository) Append(ctx context.Context, rec Record) error {
	if rec.DeviceID == "" {
		return fmt.Errorf("%w: device ID required", ErrInvalidRecord)
	}
	if rec.Type == "" {
		return fmt.Errorf("%w: event type required", ErrInvalidRecord)
	}
	if rec.ID == "" {
		rec.ID = "evt-" + uuid.New().String()
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now().UTC()
	}

	_, err := r.db.ExecContext(ctx, `
		INSERT INTO event_log (id, device_id, family_id, type, sequence, data, occurred_at, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.ID, rec.DeviceID, rec.FamilyID, rec.Type, rec.Sequence, rec.Data,
		rec.OccurredAt.UTC().Format(time.RFC3339Nano),
		rec.CreatedAt.Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrAppendFailed, err)
	}
	return nil
}

// List returns records matching f, newest first.
func (r *SQLiteRepository) List(ctx context.Context, f Filter) ([]Record, error) {
	query := `
		SELECT id, device_id, family_id, type, sequence, data, occurred_at, created_at
		FROM event_log WHERE 1=1`
	args := []any{}

	if f.DeviceID != "" {
		query += " AND device_id = ?"
		args = append(args, f.DeviceID)
	}
	if f.FamilyID != "" {
		query += " AND family_id = ?"
		args = append(args, f.FamilyID)
	}
	if f.Type != "" {
		query += " AND type = ?"
		args = append(args, f.Type)
	}
	if !f.Since.IsZero() {
		query += " AND occurred_at >= ?"
		args = append(args, f.Since.UTC().Format(time.RFC3339Nano))
	}

	query += " ORDER BY occurred_at DESC"
	limit := f.Limit
	if limit <= 0 || limit > 1000 {
		limit = 1000
	}
	query += " LIMIT ?"
	args = append(args, limit)

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrQueryFailed, err)
	}
	defer rows.Close()

	var out []Record
	for rows.Next() {
		var rec Record
		var occurredAt, createdAt string
		if err := rows.Scan(&rec.ID, &rec.DeviceID, &rec.FamilyID, &rec.Type,
			&rec.Sequence, &rec.Data, &occurredAt, &createdAt); err != nil {
			return nil, fmt.Errorf("%w: scan: %v", ErrQueryFailed, err)
		}
		rec.OccurredAt, _ = time.Parse(time.RFC3339Nano, occurredAt)
		rec.CreatedAt, _ = time.Parse(time.RFC3339Nano, createdAt)
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrQueryFailed, err)
	}
	return out, nil
}

// Prune deletes records older than cutoff and returns how many were removed.
func (r *SQLiteRepository) Prune(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := r.db.ExecContext(ctx,
		"DELETE FROM event_log WHERE occurred_at < ?",
		cutoff.UTC().Format(time.RFC3339Nano))
	if err != nil {
		return 0, fmt.Errorf("%w: prune: %v", ErrQueryFailed, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, nil
	}
	return n, nil
}
