package auth

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/fieldlink/fieldlink-core/internal/infrastructure/database"
	"github.com/fieldlink/fieldlink-core/migrations"
)

const testSecret = "test-secret-key-at-least-32-chars!"

// testDB returns a migrated in-memory database closed at test end.
func testDB(t *testing.T) *sql.DB {
	t.Helper()

	db, err := database.OpenMemory()
	if err != nil {
		t.Fatalf("OpenMemory() error = %v", err)
	}
	t.Cleanup(func() { db.Close() }) //nolint:errcheck // test cleanup

	if err := db.Migrate(context.Background(), migrations.FS); err != nil {
		t.Fatalf("Migrate() error = %v", err)
	}
	return db.DB
}

// signToken issues a token the way the login service does.
func signToken(t *testing.T, secret string, userID int, name string, ttl time.Duration) string {
	t.Helper()

	now := time.Now()
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
		Result: TokenSubject{ID: userID, Name: name},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
	if err != nil {
		t.Fatalf("SignedString() error = %v", err)
	}
	return signed
}

func seedUser(t *testing.T, db *sql.DB, id int, name string, admin bool) {
	t.Helper()
	isAdmin := 0
	if admin {
		isAdmin = 1
	}
	if _, err := db.Exec("INSERT INTO users (id, name, is_admin) VALUES (?, ?, ?)", id, name, isAdmin); err != nil {
		t.Fatalf("seeding user: %v", err)
	}
}

func seedToken(t *testing.T, db *sql.DB, token string, userID int) {
	t.Helper()
	if _, err := db.Exec("INSERT INTO user_tokens (token, user_id) VALUES (?, ?)", token, userID); err != nil {
		t.Fatalf("seeding token: %v", err)
	}
}
