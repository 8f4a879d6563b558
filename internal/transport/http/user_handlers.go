package http

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/pulsechat/pulsechat-server/internal/presence"
)

// UserHandlers provides the read-only presence listing.
type UserHandlers struct {
	presence *presence.Tracker
	log      *zerolog.Logger
}

// NewUserHandlers creates a new user handlers instance.
func NewUserHandlers(tracker *presence.Tracker, logger *zerolog.Logger) *UserHandlers {
	return &UserHandlers{
		presence: tracker,
		log:      logger,
	}
}

// Online lists currently online users.
// GET /api/users/online
func (h *UserHandlers) Online(c *gin.Context) {
	users, err := h.presence.List(c.Request.Context())
	if err != nil {
		h.log.Error().Err(err).Msg("failed to list online users")
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal server error"})
		return
	}

	c.JSON(http.StatusOK, users)
}
