package http

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/pulsechat/pulsechat-server/internal/message"
	"github.com/pulsechat/pulsechat-server/internal/proto"
	"github.com/pulsechat/pulsechat-server/internal/store"
)

// MessageHandlers provides HTTP handlers for message history and mutation.
type MessageHandlers struct {
	messages *message.Service
	log      *zerolog.Logger
}

// NewMessageHandlers creates a new message handlers instance.
func NewMessageHandlers(messages *message.Service, logger *zerolog.Logger) *MessageHandlers {
	return &MessageHandlers{
		messages: messages,
		log:      logger,
	}
}

// MessageUpdateRequest carries new content for an edit.
type MessageUpdateRequest struct {
	Content string `json:"content" binding:"required,min=1,max=2000"`
}

// MessageListResponse is a page of message history.
type MessageListResponse struct {
	Messages   []proto.MessageData `json:"messages"`
	NextCursor *time.Time          `json:"next_cursor"`
}

// List returns paginated message history.
// GET /api/messages?limit=50&cursor=<RFC3339>
func (h *MessageHandlers) List(c *gin.Context) {
	limit := 50
	if raw := c.Query("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 1 {
			c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid limit"})
			return
		}
		limit = parsed
	}

	var cursor *time.Time
	if raw := c.Query("cursor"); raw != "" {
		parsed, err := time.Parse(time.RFC3339Nano, raw)
		if err != nil {
			c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid cursor"})
			return
		}
		cursor = &parsed
	}

	msgs, next, err := h.messages.List(c.Request.Context(), limit, cursor)
	if err != nil {
		h.log.Error().Err(err).Msg("failed to list messages")
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal server error"})
		return
	}

	resp := MessageListResponse{
		Messages:   make([]proto.MessageData, 0, len(msgs)),
		NextCursor: next,
	}
	for _, m := range msgs {
		resp.Messages = append(resp.Messages, messageData(m))
	}

	c.JSON(http.StatusOK, resp)
}

// Edit updates a message the caller owns and fans out message_edited.
// PATCH /api/messages/:id
func (h *MessageHandlers) Edit(c *gin.Context) {
	messageID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid message id"})
		return
	}

	var req MessageUpdateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid request body"})
		return
	}

	userID := c.MustGet(ContextKeyUserID).(uuid.UUID)

	msg, err := h.messages.Edit(c.Request.Context(), messageID, userID, req.Content)
	if err != nil {
		// Ownership failures read as not-found so ids are not probeable.
		if errors.Is(err, store.ErrNotFound) || errors.Is(err, store.ErrNotOwner) {
			c.JSON(http.StatusNotFound, ErrorResponse{Error: "message not found or you don't have permission to edit it"})
			return
		}
		h.log.Error().Err(err).Stringer("message_id", messageID).Msg("failed to edit message")
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal server error"})
		return
	}

	c.JSON(http.StatusOK, messageData(msg))
}

// Delete soft-deletes a message the caller owns and fans out message_deleted.
// DELETE /api/messages/:id
func (h *MessageHandlers) Delete(c *gin.Context) {
	messageID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid message id"})
		return
	}

	userID := c.MustGet(ContextKeyUserID).(uuid.UUID)

	if _, err := h.messages.Delete(c.Request.Context(), messageID, userID); err != nil {
		if errors.Is(err, store.ErrNotFound) || errors.Is(err, store.ErrNotOwner) {
			c.JSON(http.StatusNotFound, ErrorResponse{Error: "message not found or you don't have permission to delete it"})
			return
		}
		h.log.Error().Err(err).Stringer("message_id", messageID).Msg("failed to delete message")
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal server error"})
		return
	}

	c.Status(http.StatusNoContent)
}
