package core

import (
	"sync"

	"github.com/google/uuid"
)

// eventBufferSize bounds the outbound queue per connection. A client that
// falls this far behind is treated as dead.
const eventBufferSize = 32

// Client is the registry's handle to one live connection. It is owned by
// exactly one registry entry; the transport layer drains Events onto the
// wire.
type Client struct {
	UserID   uuid.UUID
	Username string

	events    chan Event
	done      chan struct{}
	closeOnce sync.Once
}

// NewClient constructs a client handle for an authenticated user.
func NewClient(userID uuid.UUID, username string) *Client {
	return &Client{
		UserID:   userID,
		Username: username,
		events:   make(chan Event, eventBufferSize),
		done:     make(chan struct{}),
	}
}

// Enqueue attempts to queue an event for delivery. It reports false when
// the client is closed or its buffer is full; callers treat false as a
// dead connection.
func (c *Client) Enqueue(ev Event) bool {
	select {
	case <-c.done:
		return false
	default:
	}

	select {
	case c.events <- ev:
		return true
	case <-c.done:
		return false
	default:
		return false
	}
}

// Events is drained by the connection's write loop.
func (c *Client) Events() <-chan Event {
	return c.events
}

// Done is closed when the client is evicted or its session ends.
func (c *Client) Done() <-chan struct{} {
	return c.done
}

// Close marks the client dead. Safe to call multiple times and from
// multiple goroutines.
func (c *Client) Close() {
	c.closeOnce.Do(func() {
		close(c.done)
	})
}
