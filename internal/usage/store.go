package usage

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// Record is one accepted dispatch as stored in command_usage.
type Record struct {
	ID         string
	CommandID  int
	OrderID    int64
	UserID     int
	Frames     int
	RecordedAt time.Time
}

// CommandCount summarises usage of one command.
type CommandCount struct {
	CommandID int       `json:"commandId"`
	Count     int       `json:"count"`
	Frames    int       `json:"frames"`
	LastUsed  time.Time `json:"lastUsed"`
}

// Store persists usage records.
type Store interface {
	Insert(ctx context.Context, r Record) error
	Summary(ctx context.Context) ([]CommandCount, error)
}

// SQLiteStore implements Store over the command_usage table.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore creates a usage store.
func NewSQLiteStore(db *sql.DB) *SQLiteStore {
	return &SQLiteStore{db: db}
}

// Insert writes one record. A zero UserID is stored as NULL.
func (s *SQLiteStore) Insert(ctx context.Context, r Record) error {
	var userID sql.NullInt64
	if r.UserID != 0 {
		userID = sql.NullInt64{Int64: int64(r.UserID), Valid: true}
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO command_usage (id, command_id, order_id, user_id, frame_count, recorded_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		r.ID, r.CommandID, r.OrderID, userID, r.Frames, r.RecordedAt.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("inserting usage record: %w", err)
	}
	return nil
}

// Summary returns per-command counts ordered by command id.
func (s *SQLiteStore) Summary(ctx context.Context) ([]CommandCount, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT command_id, COUNT(*), SUM(frame_count), MAX(recorded_at)
		FROM command_usage
		GROUP BY command_id
		ORDER BY command_id`)
	if err != nil {
		return nil, fmt.Errorf("querying usage summary: %w", err)
	}
	defer rows.Close()

	counts := []CommandCount{}
	for rows.Next() {
		var c CommandCount
		var last string
		if err := rows.Scan(&c.CommandID, &c.Count, &c.Frames, &last); err != nil {
			return nil, fmt.Errorf("scanning usage summary: %w", err)
		}
		c.LastUsed, _ = time.Parse(time.RFC3339Nano, last) //nolint:errcheck // written by Insert
		counts = append(counts, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating usage summary: %w", err)
	}
	return counts, nil
}
