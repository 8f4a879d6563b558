package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"

	"github.com/pulsechat/pulsechat-server/internal/store"
)

// Schema is applied on open. IF NOT EXISTS keeps reopening idempotent.
const schema = `
CREATE TABLE IF NOT EXISTS users (
	id            TEXT PRIMARY KEY,
	username      TEXT NOT NULL UNIQUE,
	email         TEXT NOT NULL UNIQUE,
	password_hash TEXT NOT NULL,
	created_at    DATETIME NOT NULL,
	last_seen     DATETIME,
	is_active     BOOLEAN NOT NULL DEFAULT 1,
	is_verified   BOOLEAN NOT NULL DEFAULT 0
);

CREATE TABLE IF NOT EXISTS messages (
	id         TEXT PRIMARY KEY,
	user_id    TEXT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
	content    TEXT NOT NULL,
	created_at DATETIME NOT NULL,
	updated_at DATETIME,
	is_deleted BOOLEAN NOT NULL DEFAULT 0
);

CREATE INDEX IF NOT EXISTS idx_messages_created_at ON messages(created_at);
CREATE INDEX IF NOT EXISTS idx_messages_user_id ON messages(user_id);
`

// SQLiteStore implements store.Store for SQLite.
type SQLiteStore struct {
	db *sql.DB
}

// New creates a new SQLite store and applies the schema.
// dbPath is the path to the SQLite database file.
func New(dbPath string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000&_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	// SQLite works best with a single writer connection.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping sqlite: %w", err)
	}

	return &SQLiteStore{db: db}, nil
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// ==== UserStore implementation ====

// CreateUser creates a new user with hashed password.
func (s *SQLiteStore) CreateUser(ctx context.Context, username, email, passwordHash string) (*store.User, error) {
	id := uuid.New()
	now := time.Now().UTC()

	query := `
		INSERT INTO users (id, username, email, password_hash, created_at, is_active, is_verified)
		VALUES (?, ?, ?, ?, ?, 1, 0)
	`
	if _, err := s.db.ExecContext(ctx, query, id.String(), username, email, passwordHash, now); err != nil {
		return nil, fmt.Errorf("insert user: %w", err)
	}

	return s.GetUserByID(ctx, id)
}

// GetUserByID retrieves a user by ID.
func (s *SQLiteStore) GetUserByID(ctx context.Context, id uuid.UUID) (*store.User, error) {
	return s.getUser(ctx, "id = ?", id.String())
}

// GetUserByEmail retrieves a user by email.
func (s *SQLiteStore) GetUserByEmail(ctx context.Context, email string) (*store.User, error) {
	return s.getUser(ctx, "email = ?", email)
}

// GetUserByUsername retrieves a user by username.
func (s *SQLiteStore) GetUserByUsername(ctx context.Context, username string) (*store.User, error) {
	return s.getUser(ctx, "username = ?", username)
}

func (s *SQLiteStore) getUser(ctx context.Context, where string, arg any) (*store.User, error) {
	query := `
		SELECT id, username, email, password_hash, created_at, last_seen, is_active, is_verified
		FROM users
		WHERE ` + where

	var (
		u        store.User
		rawID    string
		lastSeen sql.NullTime
	)
	err := s.db.QueryRowContext(ctx, query, arg).Scan(
		&rawID, &u.Username, &u.Email, &u.PasswordHash, &u.CreatedAt, &lastSeen, &u.IsActive, &u.IsVerified,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("select user: %w", err)
	}

	u.ID, err = uuid.Parse(rawID)
	if err != nil {
		return nil, fmt.Errorf("parse user id: %w", err)
	}
	if lastSeen.Valid {
		t := lastSeen.Time
		u.LastSeen = &t
	}
	return &u, nil
}

// MarkUserVerified flips the is_verified flag.
func (s *SQLiteStore) MarkUserVerified(ctx context.Context, id uuid.UUID) error {
	res, err := s.db.ExecContext(ctx, `UPDATE users SET is_verified = 1 WHERE id = ?`, id.String())
	if err != nil {
		return fmt.Errorf("mark verified: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return store.ErrNotFound
	}
	return nil
}

// TouchLastSeen records user activity.
func (s *SQLiteStore) TouchLastSeen(ctx context.Context, id uuid.UUID, at time.Time) error {
	if _, err := s.db.ExecContext(ctx, `UPDATE users SET last_seen = ? WHERE id = ?`, at.UTC(), id.String()); err != nil {
		return fmt.Errorf("touch last_seen: %w", err)
	}
	return nil
}

// ==== MessageStore implementation ====

// CreateMessage persists a new message and returns it with server-assigned
// id and timestamps.
func (s *SQLiteStore) CreateMessage(ctx context.Context, userID uuid.UUID, content string) (*store.Message, error) {
	id := uuid.New()
	now := time.Now().UTC()

	query := `
		INSERT INTO messages (id, user_id, content, created_at, is_deleted)
		VALUES (?, ?, ?, ?, 0)
	`
	if _, err := s.db.ExecContext(ctx, query, id.String(), userID.String(), content, now); err != nil {
		return nil, fmt.Errorf("insert message: %w", err)
	}

	return s.GetMessageByID(ctx, id)
}

const messageColumns = `
	m.id, m.user_id, u.username, m.content, m.created_at, m.updated_at, m.is_deleted
`

// GetMessageByID retrieves a message by ID.
func (s *SQLiteStore) GetMessageByID(ctx context.Context, id uuid.UUID) (*store.Message, error) {
	query := `
		SELECT ` + messageColumns + `
		FROM messages m
		JOIN users u ON u.id = m.user_id
		WHERE m.id = ?
	`
	msg, err := scanMessage(s.db.QueryRowContext(ctx, query, id.String()))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("select message: %w", err)
	}
	return msg, nil
}

// ListMessages returns up to limit non-deleted messages, newest first, with
// a timestamp cursor for the next page.
func (s *SQLiteStore) ListMessages(ctx context.Context, limit int, before *time.Time) ([]*store.Message, *time.Time, error) {
	query := `
		SELECT ` + messageColumns + `
		FROM messages m
		JOIN users u ON u.id = m.user_id
		WHERE m.is_deleted = 0
	`
	args := []any{}
	if before != nil {
		query += ` AND m.created_at < ?`
		args = append(args, before.UTC())
	}
	// Fetch one extra row to know whether another page exists.
	query += ` ORDER BY m.created_at DESC LIMIT ?`
	args = append(args, limit+1)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, nil, fmt.Errorf("select messages: %w", err)
	}
	defer rows.Close()

	var messages []*store.Message
	for rows.Next() {
		msg, err := scanMessage(rows)
		if err != nil {
			return nil, nil, fmt.Errorf("scan message: %w", err)
		}
		messages = append(messages, msg)
	}
	if err := rows.Err(); err != nil {
		return nil, nil, fmt.Errorf("iterate messages: %w", err)
	}

	var nextCursor *time.Time
	if len(messages) > limit {
		messages = messages[:limit]
		t := messages[len(messages)-1].CreatedAt
		nextCursor = &t
	}
	return messages, nextCursor, nil
}

// UpdateMessage edits a message owned by userID.
func (s *SQLiteStore) UpdateMessage(ctx context.Context, id, userID uuid.UUID, content string) (*store.Message, error) {
	msg, err := s.GetMessageByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if msg.IsDeleted {
		return nil, store.ErrNotFound
	}
	if msg.UserID != userID {
		return nil, store.ErrNotOwner
	}

	now := time.Now().UTC()
	query := `UPDATE messages SET content = ?, updated_at = ? WHERE id = ?`
	if _, err := s.db.ExecContext(ctx, query, content, now, id.String()); err != nil {
		return nil, fmt.Errorf("update message: %w", err)
	}

	return s.GetMessageByID(ctx, id)
}

// SoftDeleteMessage marks a message owned by userID as deleted.
func (s *SQLiteStore) SoftDeleteMessage(ctx context.Context, id, userID uuid.UUID) (*store.Message, error) {
	msg, err := s.GetMessageByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if msg.IsDeleted {
		return nil, store.ErrNotFound
	}
	if msg.UserID != userID {
		return nil, store.ErrNotOwner
	}

	if _, err := s.db.ExecContext(ctx, `UPDATE messages SET is_deleted = 1 WHERE id = ?`, id.String()); err != nil {
		return nil, fmt.Errorf("soft delete message: %w", err)
	}

	return s.GetMessageByID(ctx, id)
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanMessage(row rowScanner) (*store.Message, error) {
	var (
		m         store.Message
		rawID     string
		rawUserID string
		updatedAt sql.NullTime
	)
	if err := row.Scan(&rawID, &rawUserID, &m.Username, &m.Content, &m.CreatedAt, &updatedAt, &m.IsDeleted); err != nil {
		return nil, err
	}

	var err error
	if m.ID, err = uuid.Parse(rawID); err != nil {
		return nil, fmt.Errorf("parse message id: %w", err)
	}
	if m.UserID, err = uuid.Parse(rawUserID); err != nil {
		return nil, fmt.Errorf("parse message user id: %w", err)
	}
	if updatedAt.Valid {
		t := updatedAt.Time
		m.UpdatedAt = &t
	}
	return &m, nil
}
