package sqlite

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/pulsechat/pulsechat-server/internal/store"
)

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()

	st, err := New(":memory:")
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { _ = st.Close() })
	return st
}

func createTestUser(t *testing.T, st *SQLiteStore, username string) *store.User {
	t.Helper()

	u, err := st.CreateUser(context.Background(), username, username+"@example.com", "hash")
	if err != nil {
		t.Fatalf("create user %s: %v", username, err)
	}
	return u
}

// createTestMessage inserts a message and sleeps briefly so created_at
// timestamps stay distinct for cursor pagination.
func createTestMessage(t *testing.T, st *SQLiteStore, userID uuid.UUID, content string) *store.Message {
	t.Helper()

	m, err := st.CreateMessage(context.Background(), userID, content)
	if err != nil {
		t.Fatalf("create message: %v", err)
	}
	time.Sleep(2 * time.Millisecond)
	return m
}

func TestUserCreateAndGet(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	created := createTestUser(t, st, "alice")
	if created.ID == uuid.Nil {
		t.Fatalf("expected assigned user id")
	}
	if !created.IsActive || created.IsVerified {
		t.Fatalf("new user should be active and unverified: %+v", created)
	}

	byID, err := st.GetUserByID(ctx, created.ID)
	if err != nil {
		t.Fatalf("get by id: %v", err)
	}
	byEmail, err := st.GetUserByEmail(ctx, "alice@example.com")
	if err != nil {
		t.Fatalf("get by email: %v", err)
	}
	byName, err := st.GetUserByUsername(ctx, "alice")
	if err != nil {
		t.Fatalf("get by username: %v", err)
	}
	if byID.ID != created.ID || byEmail.ID != created.ID || byName.ID != created.ID {
		t.Fatalf("lookups disagree: %s %s %s", byID.ID, byEmail.ID, byName.ID)
	}

	if _, err := st.GetUserByID(ctx, uuid.New()); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestUserUniqueConstraints(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	createTestUser(t, st, "alice")

	if _, err := st.CreateUser(ctx, "alice", "other@example.com", "hash"); err == nil {
		t.Fatalf("expected duplicate username to fail")
	}
	if _, err := st.CreateUser(ctx, "bob", "alice@example.com", "hash"); err == nil {
		t.Fatalf("expected duplicate email to fail")
	}
}

func TestUserMarkVerified(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	u := createTestUser(t, st, "alice")
	if err := st.MarkUserVerified(ctx, u.ID); err != nil {
		t.Fatalf("mark verified: %v", err)
	}

	got, err := st.GetUserByID(ctx, u.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if !got.IsVerified {
		t.Fatalf("expected user verified")
	}

	if err := st.MarkUserVerified(ctx, uuid.New()); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestUserTouchLastSeen(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	u := createTestUser(t, st, "alice")
	if u.LastSeen != nil {
		t.Fatalf("expected nil last_seen on creation")
	}

	at := time.Now().UTC()
	if err := st.TouchLastSeen(ctx, u.ID, at); err != nil {
		t.Fatalf("touch: %v", err)
	}

	got, err := st.GetUserByID(ctx, u.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.LastSeen == nil {
		t.Fatalf("expected last_seen set")
	}
}

func TestMessageCreateAndGet(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	u := createTestUser(t, st, "alice")
	m := createTestMessage(t, st, u.ID, "hello")

	if m.ID == uuid.Nil {
		t.Fatalf("expected assigned message id")
	}
	if m.Username != "alice" {
		t.Fatalf("expected author username, got %q", m.Username)
	}
	if m.UpdatedAt != nil || m.IsDeleted {
		t.Fatalf("fresh message should be unedited and visible: %+v", m)
	}

	got, err := st.GetMessageByID(ctx, m.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Content != "hello" || got.UserID != u.ID {
		t.Fatalf("unexpected message: %+v", got)
	}
}

func TestMessageListPagination(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	u := createTestUser(t, st, "alice")
	for i := 0; i < 5; i++ {
		createTestMessage(t, st, u.ID, string(rune('a'+i)))
	}

	// First page, newest first.
	page, cursor, err := st.ListMessages(ctx, 2, nil)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(page) != 2 || cursor == nil {
		t.Fatalf("expected full first page with cursor, got %d messages cursor=%v", len(page), cursor)
	}
	if page[0].Content != "e" || page[1].Content != "d" {
		t.Fatalf("unexpected order: %s %s", page[0].Content, page[1].Content)
	}

	page, cursor, err = st.ListMessages(ctx, 2, cursor)
	if err != nil {
		t.Fatalf("list page 2: %v", err)
	}
	if len(page) != 2 || cursor == nil {
		t.Fatalf("expected full second page with cursor")
	}
	if page[0].Content != "c" || page[1].Content != "b" {
		t.Fatalf("unexpected order: %s %s", page[0].Content, page[1].Content)
	}

	page, cursor, err = st.ListMessages(ctx, 2, cursor)
	if err != nil {
		t.Fatalf("list page 3: %v", err)
	}
	if len(page) != 1 || cursor != nil {
		t.Fatalf("expected final short page without cursor, got %d messages cursor=%v", len(page), cursor)
	}
	if page[0].Content != "a" {
		t.Fatalf("unexpected final message: %s", page[0].Content)
	}
}

func TestMessageListSkipsDeleted(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	u := createTestUser(t, st, "alice")
	keep := createTestMessage(t, st, u.ID, "keep")
	gone := createTestMessage(t, st, u.ID, "gone")

	if _, err := st.SoftDeleteMessage(ctx, gone.ID, u.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}

	page, _, err := st.ListMessages(ctx, 10, nil)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(page) != 1 || page[0].ID != keep.ID {
		t.Fatalf("expected only the surviving message, got %+v", page)
	}
}

func TestMessageUpdateOwnership(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	alice := createTestUser(t, st, "alice")
	bob := createTestUser(t, st, "bob")
	m := createTestMessage(t, st, alice.ID, "original")

	if _, err := st.UpdateMessage(ctx, m.ID, bob.ID, "hijacked"); !errors.Is(err, store.ErrNotOwner) {
		t.Fatalf("expected ErrNotOwner, got %v", err)
	}

	updated, err := st.UpdateMessage(ctx, m.ID, alice.ID, "edited")
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if updated.Content != "edited" {
		t.Fatalf("unexpected content: %q", updated.Content)
	}
	if updated.UpdatedAt == nil {
		t.Fatalf("expected updated_at set after edit")
	}

	if _, err := st.UpdateMessage(ctx, uuid.New(), alice.ID, "x"); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestMessageSoftDelete(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	alice := createTestUser(t, st, "alice")
	bob := createTestUser(t, st, "bob")
	m := createTestMessage(t, st, alice.ID, "hello")

	if _, err := st.SoftDeleteMessage(ctx, m.ID, bob.ID); !errors.Is(err, store.ErrNotOwner) {
		t.Fatalf("expected ErrNotOwner, got %v", err)
	}

	deleted, err := st.SoftDeleteMessage(ctx, m.ID, alice.ID)
	if err != nil {
		t.Fatalf("delete: %v", err)
	}
	if !deleted.IsDeleted {
		t.Fatalf("expected is_deleted set")
	}

	// The row survives for audit but reads as not found for writes.
	if _, err := st.UpdateMessage(ctx, m.ID, alice.ID, "x"); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected ErrNotFound for deleted message, got %v", err)
	}
	if _, err := st.SoftDeleteMessage(ctx, m.ID, alice.ID); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected ErrNotFound for double delete, got %v", err)
	}
}
