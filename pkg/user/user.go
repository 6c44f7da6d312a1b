// Package user defines account records and the store interface backing
// authentication.
package user

import (
	"context"
	"errors"
	"time"

	"github.com/marmos91/dittodrive/pkg/resource"
)

var (
	// ErrUserNotFound indicates no account matches the given username or id.
	ErrUserNotFound = errors.New("user not found")

	// ErrUsernameTaken indicates a sign-up collided with an existing account.
	ErrUsernameTaken = errors.New("username already taken")
)

// User is one account record.
//
// PasswordHash is the argon2id encoded hash, never the plaintext. The numeric
// ID doubles as the owner of the drive namespace.
type User struct {
	ID           resource.UserID `json:"id"`
	Username     string          `json:"username"`
	PasswordHash string          `json:"password_hash"`
	CreatedAt    time.Time       `json:"created_at"`
}

// Store persists account records.
//
// Implementations must be safe for concurrent use and must enforce username
// uniqueness atomically: two concurrent sign-ups for the same name yield one
// account and one ErrUsernameTaken.
type Store interface {
	// Create allocates a fresh numeric id and persists the record. It fails
	// with ErrUsernameTaken on a username collision.
	Create(ctx context.Context, username, passwordHash string) (*User, error)

	// GetByUsername fails with ErrUserNotFound when the name is unknown.
	GetByUsername(ctx context.Context, username string) (*User, error)

	// GetByID fails with ErrUserNotFound when the id is unknown.
	GetByID(ctx context.Context, id resource.UserID) (*User, error)

	// Close releases the store's resources.
	Close() error
}
