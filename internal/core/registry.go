package core

import (
	"sync"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// Registry is the authoritative mapping of user id to live connection.
// At most one client per user id: registering over an existing entry
// closes the old client first (last writer wins).
//
// Delivery failures are converted into eviction, never retried.
type Registry struct {
	mu      sync.Mutex
	clients map[uuid.UUID]*Client
	log     *zerolog.Logger
}

// NewRegistry creates an empty registry.
func NewRegistry(logger *zerolog.Logger) *Registry {
	return &Registry{
		clients: make(map[uuid.UUID]*Client),
		log:     logger,
	}
}

// Register stores the client, closing any previous client for the same
// user. The close is best-effort; the old session's teardown runs on its
// own goroutine.
func (r *Registry) Register(c *Client) {
	r.mu.Lock()
	old, exists := r.clients[c.UserID]
	r.clients[c.UserID] = c
	r.mu.Unlock()

	if exists {
		old.Close()
		r.log.Debug().Stringer("user_id", c.UserID).Msg("replaced existing connection")
	}
}

// Unregister removes the client's entry. The entry is compared by identity
// so a replaced session's teardown cannot evict its replacement. Returns
// whether the entry was removed: false means the entry was absent or a newer
// connection already took the slot.
func (r *Registry) Unregister(c *Client) bool {
	r.mu.Lock()
	current, ok := r.clients[c.UserID]
	removed := ok && current == c
	if removed {
		delete(r.clients, c.UserID)
	}
	r.mu.Unlock()

	c.Close()
	return removed
}

// SendTo delivers an event to one user. Returns false when the user is not
// connected or delivery fails; a failed client is evicted.
func (r *Registry) SendTo(userID uuid.UUID, ev Event) bool {
	r.mu.Lock()
	c, ok := r.clients[userID]
	r.mu.Unlock()

	if !ok {
		return false
	}
	if !c.Enqueue(ev) {
		r.evict(c)
		return false
	}
	return true
}

// Broadcast delivers an event to every registered client except exclude
// (uuid.Nil excludes no one). Iteration runs over a point-in-time snapshot,
// so concurrent registry mutation cannot corrupt the traversal. A failing
// recipient is evicted without aborting delivery to the rest.
func (r *Registry) Broadcast(ev Event, exclude uuid.UUID) {
	r.mu.Lock()
	snapshot := make([]*Client, 0, len(r.clients))
	for _, c := range r.clients {
		snapshot = append(snapshot, c)
	}
	r.mu.Unlock()

	for _, c := range snapshot {
		if exclude != uuid.Nil && c.UserID == exclude {
			continue
		}
		if !c.Enqueue(ev) {
			r.evict(c)
		}
	}
}

// ListConnected returns a snapshot of currently registered user ids.
func (r *Registry) ListConnected() []uuid.UUID {
	r.mu.Lock()
	defer r.mu.Unlock()

	ids := make([]uuid.UUID, 0, len(r.clients))
	for id := range r.clients {
		ids = append(ids, id)
	}
	return ids
}

// IsConnected reports whether the user has a registered connection.
func (r *Registry) IsConnected(userID uuid.UUID) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	_, ok := r.clients[userID]
	return ok
}

func (r *Registry) evict(c *Client) {
	r.mu.Lock()
	if current, ok := r.clients[c.UserID]; ok && current == c {
		delete(r.clients, c.UserID)
	}
	r.mu.Unlock()

	c.Close()
	r.log.Debug().Stringer("user_id", c.UserID).Msg("evicted dead connection")
}
