package core

import (
	"context"
	"strings"
	"sync"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/pulsechat/pulsechat-server/internal/store"
)

// ActionSendMessage is the rate-limited action name for chat messages.
const ActionSendMessage = "send_message"

// MaxMessageLen is the inclusive content limit in characters.
const MaxMessageLen = 2000

// Client-facing error texts.
const (
	errMsgTooLong     = "Message exceeds 2000 character limit"
	errMsgRateLimited = "Rate limit exceeded. Please slow down."
	errMsgSendFailed  = "Failed to send message. Please try again."
)

// MessagePersister is the persistence collaborator for send_message.
type MessagePersister interface {
	CreateMessage(ctx context.Context, userID uuid.UUID, content string) (*store.Message, error)
}

// RateLimiter admits or rejects an action for a user.
type RateLimiter interface {
	Allow(ctx context.Context, userID uuid.UUID, action string) (bool, error)
}

// PresenceTracker records online users.
type PresenceTracker interface {
	Add(ctx context.Context, userID uuid.UUID, username string) error
	Remove(ctx context.Context, userID uuid.UUID) error
}

// Session drives one authenticated connection through its lifetime:
// Activate registers the user and announces them, the Handle* methods
// dispatch inbound events, Close tears everything down exactly once.
//
// The transport layer owns decoding and calls Handle* from its read loop,
// one event at a time, so per-connection side effects stay ordered.
type Session struct {
	registry *Registry
	presence PresenceTracker
	limiter  RateLimiter
	messages MessagePersister
	client   *Client
	log      zerolog.Logger

	closeOnce sync.Once
}

// NewSession builds a session for an already-authenticated client.
func NewSession(
	registry *Registry,
	presence PresenceTracker,
	limiter RateLimiter,
	messages MessagePersister,
	client *Client,
	logger *zerolog.Logger,
) *Session {
	sessionLog := logger.With().
		Stringer("user_id", client.UserID).
		Str("username", client.Username).
		Logger()

	return &Session{
		registry: registry,
		presence: presence,
		limiter:  limiter,
		messages: messages,
		client:   client,
		log:      sessionLog,
	}
}

// Client returns the session's connection handle.
func (s *Session) Client() *Client {
	return s.client
}

// Activate registers the connection, records presence and announces the
// user to everyone else. This is the Authenticated -> Active transition:
// only from here on is the user visible to presence queries and fan-out.
func (s *Session) Activate(ctx context.Context) {
	s.registry.Register(s.client)

	if err := s.presence.Add(ctx, s.client.UserID, s.client.Username); err != nil {
		s.log.Error().Err(err).Msg("failed to add presence")
	}

	s.registry.Broadcast(Event{
		Kind:     EventUserJoined,
		UserID:   s.client.UserID,
		Username: s.client.Username,
	}, s.client.UserID)

	s.log.Info().Msg("user connected")
}

// HandleSendMessage validates, rate-limits, persists and fans out a chat
// message. The sender receives the new_message broadcast too, confirming
// persistence with the server-assigned id and timestamp.
func (s *Session) HandleSendMessage(ctx context.Context, content string) {
	content = strings.TrimSpace(content)
	if content == "" {
		return
	}

	if utf8.RuneCountInString(content) > MaxMessageLen {
		s.unicastError(errMsgTooLong)
		return
	}

	allowed, err := s.limiter.Allow(ctx, s.client.UserID, ActionSendMessage)
	if err != nil {
		s.log.Error().Err(err).Msg("rate limit check failed")
		s.unicastError(errMsgSendFailed)
		return
	}
	if !allowed {
		s.unicastError(errMsgRateLimited)
		return
	}

	// Persist before broadcasting: a paginated history read may observe the
	// message before a slow broadcast completes, but never a broadcast for
	// a message that was not persisted.
	msg, err := s.messages.CreateMessage(ctx, s.client.UserID, content)
	if err != nil {
		s.log.Error().Err(err).Msg("failed to persist message")
		s.unicastError(errMsgSendFailed)
		return
	}

	s.registry.Broadcast(Event{Kind: EventNewMessage, Message: msg}, uuid.Nil)
}

// HandleTyping relays a typing indicator to everyone except the sender.
func (s *Session) HandleTyping(_ context.Context) {
	s.registry.Broadcast(Event{
		Kind:     EventUserTyping,
		UserID:   s.client.UserID,
		Username: s.client.Username,
	}, s.client.UserID)
}

// HandlePing answers with a pong to the sender only.
func (s *Session) HandlePing(_ context.Context) {
	s.client.Enqueue(Event{Kind: EventPong})
}

// Close runs the Active -> Closed teardown: unregister, drop presence,
// announce departure. It runs its effects exactly once no matter how many
// exit paths reach it (client disconnect, transport error, shutdown).
//
// A session whose connection was replaced skips the departure effects:
// the user is still online through the newer session, so removing presence
// or announcing user_left here would lie to everyone else.
func (s *Session) Close(ctx context.Context) {
	s.closeOnce.Do(func() {
		if !s.registry.Unregister(s.client) {
			s.log.Debug().Msg("session superseded, skipping departure")
			return
		}

		if err := s.presence.Remove(ctx, s.client.UserID); err != nil {
			s.log.Error().Err(err).Msg("failed to remove presence")
		}

		s.registry.Broadcast(Event{
			Kind:     EventUserLeft,
			UserID:   s.client.UserID,
			Username: s.client.Username,
		}, uuid.Nil)

		s.log.Info().Msg("user disconnected")
	})
}

func (s *Session) unicastError(msg string) {
	s.client.Enqueue(Event{Kind: EventError, ErrorMessage: msg})
}
