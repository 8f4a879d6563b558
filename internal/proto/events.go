package proto

import (
	"encoding/json"
	"time"
)

// Inbound is the envelope for events coming from the client.
type Inbound struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}

// Client -> server event tags.
const (
	InboundSendMessage = "send_message"
	InboundTyping      = "typing"
	InboundPing        = "ping"
)

// Server -> client event tags.
const (
	OutboundNewMessage     = "new_message"
	OutboundMessageEdited  = "message_edited"
	OutboundMessageDeleted = "message_deleted"
	OutboundUserJoined     = "user_joined"
	OutboundUserLeft       = "user_left"
	OutboundUserTyping     = "user_typing"
	OutboundPong           = "pong"
	OutboundError          = "error"
)

// SendMessageData carries the content of a send_message event.
type SendMessageData struct {
	Content string `json:"content"`
}

// Outbound is the envelope for events sent to the client.
type Outbound struct {
	Event string `json:"event"`
	Data  any    `json:"data"`
}

// MessageData is the payload of a new_message event.
type MessageData struct {
	ID        string     `json:"id"`
	UserID    string     `json:"user_id"`
	Username  string     `json:"username"`
	Content   string     `json:"content"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt *time.Time `json:"updated_at"`
	IsDeleted bool       `json:"is_deleted"`
}

// MessageEditedData is the payload of a message_edited event.
type MessageEditedData struct {
	MessageID string     `json:"message_id"`
	Content   string     `json:"content"`
	UpdatedAt *time.Time `json:"updated_at"`
}

// MessageDeletedData is the payload of a message_deleted event.
type MessageDeletedData struct {
	MessageID string `json:"message_id"`
}

// PresenceData is the payload of user_joined, user_left and user_typing events.
type PresenceData struct {
	UserID   string `json:"user_id"`
	Username string `json:"username"`
}

// ErrorData is the payload of an error event.
type ErrorData struct {
	Message string `json:"message"`
}
