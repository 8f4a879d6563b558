package http

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/pulsechat/pulsechat-server/internal/auth"
	"github.com/pulsechat/pulsechat-server/internal/store"
)

// APIHandlers provides HTTP handlers for the auth REST endpoints.
type APIHandlers struct {
	authService *auth.Service
	users       store.UserStore
	log         *zerolog.Logger
}

// NewAPIHandlers creates a new API handlers instance.
func NewAPIHandlers(authService *auth.Service, users store.UserStore, logger *zerolog.Logger) *APIHandlers {
	return &APIHandlers{
		authService: authService,
		users:       users,
		log:         logger,
	}
}

// RegisterRequest represents the registration request body.
type RegisterRequest struct {
	Username string `json:"username" binding:"required,min=3,max=50"`
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required,min=6"`
}

// LoginRequest represents the login request body.
type LoginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

// SendOTPRequest asks for a fresh verification code.
type SendOTPRequest struct {
	Email string `json:"email" binding:"required,email"`
}

// VerifyOTPRequest carries a verification code.
type VerifyOTPRequest struct {
	Email string `json:"email" binding:"required,email"`
	OTP   string `json:"otp" binding:"required,len=6"`
}

// AuthResponse represents the authentication response body.
type AuthResponse struct {
	Token string `json:"token"`
}

// UserResponse represents a user in API responses.
type UserResponse struct {
	ID         uuid.UUID  `json:"id"`
	Username   string     `json:"username"`
	Email      string     `json:"email"`
	CreatedAt  time.Time  `json:"created_at"`
	LastSeen   *time.Time `json:"last_seen"`
	IsActive   bool       `json:"is_active"`
	IsVerified bool       `json:"is_verified"`
}

// ErrorResponse represents an error response body.
type ErrorResponse struct {
	Error string `json:"error"`
}

func userResponse(u *store.User) UserResponse {
	return UserResponse{
		ID:         u.ID,
		Username:   u.Username,
		Email:      u.Email,
		CreatedAt:  u.CreatedAt,
		LastSeen:   u.LastSeen,
		IsActive:   u.IsActive,
		IsVerified: u.IsVerified,
	}
}

// Register handles user registration and triggers the OTP email.
// POST /api/auth/register
func (h *APIHandlers) Register(c *gin.Context) {
	var req RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.log.Debug().Err(err).Msg("invalid register request")
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid request body"})
		return
	}

	user, err := h.authService.Register(c.Request.Context(), req.Username, req.Email, req.Password)
	if err != nil {
		switch {
		case errors.Is(err, auth.ErrEmailExists):
			c.JSON(http.StatusConflict, ErrorResponse{Error: "email already registered"})
		case errors.Is(err, auth.ErrUsernameExists):
			c.JSON(http.StatusConflict, ErrorResponse{Error: "username already taken"})
		case errors.Is(err, auth.ErrInvalidUsername), errors.Is(err, auth.ErrInvalidPassword):
			c.JSON(http.StatusBadRequest, ErrorResponse{Error: err.Error()})
		default:
			h.log.Error().Err(err).Str("email", req.Email).Msg("failed to register user")
			c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal server error"})
		}
		return
	}

	h.log.Info().Str("username", user.Username).Msg("user registered")
	c.JSON(http.StatusCreated, userResponse(user))
}

// Login handles user login.
// POST /api/auth/login
func (h *APIHandlers) Login(c *gin.Context) {
	var req LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.log.Debug().Err(err).Msg("invalid login request")
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid request body"})
		return
	}

	token, err := h.authService.Login(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		switch {
		case errors.Is(err, auth.ErrInvalidCredentials):
			c.JSON(http.StatusUnauthorized, ErrorResponse{Error: "incorrect email or password"})
		case errors.Is(err, auth.ErrNotVerified):
			c.JSON(http.StatusForbidden, ErrorResponse{Error: "please verify your email before logging in"})
		case errors.Is(err, auth.ErrInactive):
			c.JSON(http.StatusForbidden, ErrorResponse{Error: "account is inactive"})
		default:
			h.log.Error().Err(err).Str("email", req.Email).Msg("failed to login user")
			c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal server error"})
		}
		return
	}

	c.JSON(http.StatusOK, AuthResponse{Token: token})
}

// SendOTP emails a fresh verification code.
// POST /api/auth/send-otp
func (h *APIHandlers) SendOTP(c *gin.Context) {
	var req SendOTPRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid request body"})
		return
	}

	if err := h.authService.SendOTP(c.Request.Context(), req.Email); err != nil {
		switch {
		case errors.Is(err, auth.ErrUserNotFound):
			c.JSON(http.StatusNotFound, ErrorResponse{Error: "user not found"})
		case errors.Is(err, auth.ErrAlreadyVerified):
			c.JSON(http.StatusBadRequest, ErrorResponse{Error: "email already verified"})
		default:
			h.log.Error().Err(err).Str("email", req.Email).Msg("failed to send otp")
			c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "failed to send verification code"})
		}
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "verification code sent", "email": req.Email})
}

// VerifyOTP consumes a verification code and returns a token.
// POST /api/auth/verify-otp
func (h *APIHandlers) VerifyOTP(c *gin.Context) {
	var req VerifyOTPRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid request body"})
		return
	}

	token, err := h.authService.VerifyOTP(c.Request.Context(), req.Email, req.OTP)
	if err != nil {
		switch {
		case errors.Is(err, auth.ErrInvalidOTP):
			c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid or expired verification code"})
		case errors.Is(err, auth.ErrUserNotFound):
			c.JSON(http.StatusNotFound, ErrorResponse{Error: "user not found"})
		default:
			h.log.Error().Err(err).Str("email", req.Email).Msg("failed to verify otp")
			c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal server error"})
		}
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message":  "email verified successfully",
		"verified": true,
		"token":    token,
	})
}

// Me returns the authenticated user.
// GET /api/auth/me
func (h *APIHandlers) Me(c *gin.Context) {
	userID := c.MustGet(ContextKeyUserID).(uuid.UUID)

	user, err := h.users.GetUserByID(c.Request.Context(), userID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			c.JSON(http.StatusNotFound, ErrorResponse{Error: "user not found"})
			return
		}
		h.log.Error().Err(err).Stringer("user_id", userID).Msg("failed to load user")
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal server error"})
		return
	}

	c.JSON(http.StatusOK, userResponse(user))
}
