// Package message wraps message persistence with the realtime fan-out that
// REST-initiated edits and deletes require.
package message

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/pulsechat/pulsechat-server/internal/core"
	"github.com/pulsechat/pulsechat-server/internal/store"
)

const (
	defaultPageSize = 50
	maxPageSize     = 100
)

// Service exposes message history and owner-only mutation. Mutations are
// announced to all connected clients through the registry.
type Service struct {
	store    store.MessageStore
	registry *core.Registry
	log      *zerolog.Logger
}

// NewService creates a message service.
func NewService(messageStore store.MessageStore, registry *core.Registry, logger *zerolog.Logger) *Service {
	return &Service{
		store:    messageStore,
		registry: registry,
		log:      logger,
	}
}

// List returns a page of non-deleted messages, newest first, with a
// timestamp cursor for the next page. Limit is clamped to 1..100.
func (s *Service) List(ctx context.Context, limit int, before *time.Time) ([]*store.Message, *time.Time, error) {
	if limit <= 0 {
		limit = defaultPageSize
	}
	if limit > maxPageSize {
		limit = maxPageSize
	}
	return s.store.ListMessages(ctx, limit, before)
}

// Edit updates a message the user owns and broadcasts message_edited.
func (s *Service) Edit(ctx context.Context, messageID, userID uuid.UUID, content string) (*store.Message, error) {
	msg, err := s.store.UpdateMessage(ctx, messageID, userID, content)
	if err != nil {
		return nil, err
	}

	s.registry.Broadcast(core.Event{Kind: core.EventMessageEdited, Message: msg}, uuid.Nil)
	s.log.Debug().Stringer("message_id", msg.ID).Msg("message edited")
	return msg, nil
}

// Delete soft-deletes a message the user owns and broadcasts message_deleted.
func (s *Service) Delete(ctx context.Context, messageID, userID uuid.UUID) (*store.Message, error) {
	msg, err := s.store.SoftDeleteMessage(ctx, messageID, userID)
	if err != nil {
		return nil, err
	}

	s.registry.Broadcast(core.Event{Kind: core.EventMessageDeleted, Message: msg}, uuid.Nil)
	s.log.Debug().Stringer("message_id", msg.ID).Msg("message deleted")
	return msg, nil
}
