package core

import (
	"github.com/google/uuid"

	"github.com/pulsechat/pulsechat-server/internal/store"
)

// EventKind is a notification the core emits to clients.
type EventKind int

const (
	// EventNewMessage notifies clients about a newly persisted message.
	EventNewMessage EventKind = iota
	// EventMessageEdited notifies clients that a message was edited.
	EventMessageEdited
	// EventMessageDeleted notifies clients that a message was soft-deleted.
	EventMessageDeleted
	// EventUserJoined notifies clients that a user came online.
	EventUserJoined
	// EventUserLeft notifies clients that a user went offline.
	EventUserLeft
	// EventUserTyping relays a typing indicator.
	EventUserTyping
	// EventPong answers a client ping.
	EventPong
	// EventError reports a per-client failure (validation, rate limit).
	EventError
)

// Event is sent to clients to describe what happened in the system.
// Ephemeral: constructed, delivered, discarded.
type Event struct {
	Kind EventKind

	// Message is set for EventNewMessage, EventMessageEdited and
	// EventMessageDeleted.
	Message *store.Message

	// UserID and Username are set for the presence and typing events.
	UserID   uuid.UUID
	Username string

	// ErrorMessage is set for EventError.
	ErrorMessage string
}
