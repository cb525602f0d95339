package auth

import (
	"errors"
	"time"
)

var (
	// ErrTokenMissing is returned when no bearer credential was presented.
	ErrTokenMissing = errors.New("auth: bearer token missing")

	// ErrTokenInvalid is returned when a token fails verification, has been
	// revoked, or names a user that no longer exists.
	ErrTokenInvalid = errors.New("auth: invalid or expired token")
)

// User is the operator identity attached to a request or socket.
type User struct {
	ID        int       `json:"id"`
	Name      string    `json:"name"`
	IsAdmin   bool      `json:"isAdmin"`
	CreatedAt time.Time `json:"createdAt"`
}
