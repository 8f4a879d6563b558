package http

import (
	stdhttp "net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/pulsechat/pulsechat-server/internal/auth"
	"github.com/pulsechat/pulsechat-server/internal/config"
	"github.com/pulsechat/pulsechat-server/internal/core"
	"github.com/pulsechat/pulsechat-server/internal/message"
	"github.com/pulsechat/pulsechat-server/internal/presence"
	"github.com/pulsechat/pulsechat-server/internal/ratelimit"
	"github.com/pulsechat/pulsechat-server/internal/store"
)

// Deps collects the collaborators the HTTP surface exposes.
type Deps struct {
	AuthService *auth.Service
	Store       store.Store
	Registry    *core.Registry
	Presence    *presence.Tracker
	Limiter     *ratelimit.Limiter
	Messages    *message.Service
}

// NewServer builds the HTTP server with all routes.
func NewServer(deps Deps, cfg config.Config, logger *zerolog.Logger) *stdhttp.Server {
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery(), LoggerMiddleware(logger))

	router.GET("/healthz", healthHandler)

	apiHandlers := NewAPIHandlers(deps.AuthService, deps.Store, logger)
	messageHandlers := NewMessageHandlers(deps.Messages, logger)
	userHandlers := NewUserHandlers(deps.Presence, logger)
	authRequired := AuthMiddleware(deps.AuthService, logger)

	api := router.Group("/api")
	{
		authGroup := api.Group("/auth")
		authGroup.POST("/register", apiHandlers.Register)
		authGroup.POST("/login", apiHandlers.Login)
		authGroup.POST("/send-otp", apiHandlers.SendOTP)
		authGroup.POST("/verify-otp", apiHandlers.VerifyOTP)
		authGroup.GET("/me", authRequired, apiHandlers.Me)

		api.GET("/messages", messageHandlers.List)
		api.PATCH("/messages/:id", authRequired, messageHandlers.Edit)
		api.DELETE("/messages/:id", authRequired, messageHandlers.Delete)

		api.GET("/users/online", userHandlers.Online)
	}

	wsHandler := NewWSHandler(
		deps.AuthService,
		deps.Store,
		deps.Registry,
		deps.Presence,
		deps.Limiter,
		deps.Store,
		logger,
	)
	router.GET("/ws/chat", gin.WrapH(wsHandler))

	return &stdhttp.Server{
		Addr:              cfg.Addr,
		Handler:           router,
		ReadHeaderTimeout: cfg.ReadHeaderTimeout,
	}
}

func healthHandler(c *gin.Context) {
	c.String(stdhttp.StatusOK, "ok")
}
