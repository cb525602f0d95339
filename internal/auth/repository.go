package auth

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"
)

// Store reads users and the tokens issued to them.
type Store interface {
	TokenExists(ctx context.Context, token string) (bool, error)
	GetUser(ctx context.Context, id int) (*User, error)
	ListTokens(ctx context.Context) ([]string, error)
	DeleteTokens(ctx context.Context, tokens []string) (int64, error)
}

// SQLiteStore implements Store over the users and user_tokens tables.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore creates a store backed by db.
func NewSQLiteStore(db *sql.DB) *SQLiteStore {
	return &SQLiteStore{db: db}
}

// TokenExists reports whether token is still on file (not logged out).
func (s *SQLiteStore) TokenExists(ctx context.Context, token string) (bool, error) {
	var one int
	err := s.db.QueryRowContext(ctx, "SELECT 1 FROM user_tokens WHERE token = ?", token).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("looking up token: %w", err)
	}
	return true, nil
}

// GetUser loads a user. A missing user yields ErrTokenInvalid since the
// only caller is token resolution.
func (s *SQLiteStore) GetUser(ctx context.Context, id int) (*User, error) {
	var u User
	var isAdmin int
	var createdAt string

	err := s.db.QueryRowContext(ctx,
		"SELECT id, name, is_admin, created_at FROM users WHERE id = ?", id,
	).Scan(&u.ID, &u.Name, &isAdmin, &createdAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: user %d not found", ErrTokenInvalid, id)
	}
	if err != nil {
		return nil, fmt.Errorf("getting user %d: %w", id, err)
	}

	u.IsAdmin = isAdmin != 0
	u.CreatedAt, _ = time.Parse(time.RFC3339, createdAt) //nolint:errcheck // format is controlled
	return &u, nil
}

// ListTokens returns every stored token.
func (s *SQLiteStore) ListTokens(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT token FROM user_tokens")
	if err != nil {
		return nil, fmt.Errorf("listing tokens: %w", err)
	}
	defer rows.Close()

	var tokens []string
	for rows.Next() {
		var t string
		if err := rows.Scan(&t); err != nil {
			return nil, fmt.Errorf("scanning token: %w", err)
		}
		tokens = append(tokens, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating tokens: %w", err)
	}
	return tokens, nil
}

// DeleteTokens removes the given tokens and returns how many rows went.
func (s *SQLiteStore) DeleteTokens(ctx context.Context, tokens []string) (int64, error) {
	if len(tokens) == 0 {
		return 0, nil
	}

	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(tokens)), ",")
	args := make([]any, len(tokens))
	for i, t := range tokens {
		args[i] = t
	}

	res, err := s.db.ExecContext(ctx,
		"DELETE FROM user_tokens WHERE token IN ("+placeholders+")", args...)
	if err != nil {
		return 0, fmt.Errorf("deleting tokens: %w", err)
	}
	n, _ := res.RowsAffected() //nolint:errcheck // sqlite always reports rows affected
	return n, nil
}
