package store

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

var (
	// ErrNotFound is returned when a requested record does not exist.
	ErrNotFound = errors.New("not found")
	// ErrNotOwner is returned when a user tries to modify a record they do not own.
	ErrNotOwner = errors.New("not owner")
)

// User represents a registered user.
type User struct {
	ID           uuid.UUID
	Username     string
	Email        string
	PasswordHash string
	CreatedAt    time.Time
	LastSeen     *time.Time
	IsActive     bool
	IsVerified   bool
}

// Message represents a persisted chat message.
// Username is populated from the author row on reads.
type Message struct {
	ID        uuid.UUID
	UserID    uuid.UUID
	Username  string
	Content   string
	CreatedAt time.Time
	UpdatedAt *time.Time
	IsDeleted bool
}

// UserStore handles user persistence.
type UserStore interface {
	// CreateUser creates a new user with hashed password.
	CreateUser(ctx context.Context, username, email, passwordHash string) (*User, error)

	// GetUserByID retrieves a user by ID.
	GetUserByID(ctx context.Context, id uuid.UUID) (*User, error)

	// GetUserByEmail retrieves a user by email.
	GetUserByEmail(ctx context.Context, email string) (*User, error)

	// GetUserByUsername retrieves a user by username.
	GetUserByUsername(ctx context.Context, username string) (*User, error)

	// MarkUserVerified flips the is_verified flag.
	MarkUserVerified(ctx context.Context, id uuid.UUID) error

	// TouchLastSeen records user activity.
	TouchLastSeen(ctx context.Context, id uuid.UUID, at time.Time) error
}

// MessageStore handles message persistence.
type MessageStore interface {
	// CreateMessage persists a new message and returns it with
	// server-assigned id and timestamps.
	CreateMessage(ctx context.Context, userID uuid.UUID, content string) (*Message, error)

	// GetMessageByID retrieves a message by ID.
	GetMessageByID(ctx context.Context, id uuid.UUID) (*Message, error)

	// ListMessages returns up to limit non-deleted messages, newest first.
	// When before is set, only messages created strictly earlier are returned.
	// The second value is the cursor for the next page, nil when exhausted.
	ListMessages(ctx context.Context, limit int, before *time.Time) ([]*Message, *time.Time, error)

	// UpdateMessage edits a message owned by userID.
	// Returns ErrNotFound for missing or deleted messages, ErrNotOwner otherwise.
	UpdateMessage(ctx context.Context, id, userID uuid.UUID, content string) (*Message, error)

	// SoftDeleteMessage marks a message owned by userID as deleted.
	// Returns ErrNotFound for missing or already deleted messages, ErrNotOwner otherwise.
	SoftDeleteMessage(ctx context.Context, id, userID uuid.UUID) (*Message, error)
}

// Store aggregates all storage interfaces.
type Store interface {
	UserStore
	MessageStore

	// Close closes the underlying database connection.
	Close() error
}
