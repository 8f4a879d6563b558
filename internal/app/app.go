package app

import (
	"context"
	"fmt"
	stdhttp "net/http"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/pulsechat/pulsechat-server/internal/auth"
	"github.com/pulsechat/pulsechat-server/internal/config"
	"github.com/pulsechat/pulsechat-server/internal/core"
	"github.com/pulsechat/pulsechat-server/internal/mail"
	"github.com/pulsechat/pulsechat-server/internal/message"
	"github.com/pulsechat/pulsechat-server/internal/presence"
	"github.com/pulsechat/pulsechat-server/internal/ratelimit"
	"github.com/pulsechat/pulsechat-server/internal/store"
	"github.com/pulsechat/pulsechat-server/internal/store/sqlite"
	transporthttp "github.com/pulsechat/pulsechat-server/internal/transport/http"
)

// App wires together storage, realtime core and transport layers.
type App struct {
	server          *stdhttp.Server
	shutdownTimeout time.Duration
	store           store.Store
	rdb             *redis.Client
	log             *zerolog.Logger
}

// New constructs the application with provided configuration.
func New(cfg *config.Config, logger *zerolog.Logger) (*App, error) {
	st, err := sqlite.New(cfg.DatabasePath)
	if err != nil {
		return nil, fmt.Errorf("init store: %w", err)
	}
	logger.Info().Str("db_path", cfg.DatabasePath).Msg("database initialized")

	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})

	pingCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		st.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	logger.Info().Str("redis_addr", cfg.RedisAddr).Msg("redis connected")

	jwtConfig := &auth.JWTConfig{
		Secret:   []byte(cfg.JWTSecret),
		Issuer:   cfg.JWTIssuer,
		Audience: cfg.JWTAudience,
		TTL:      cfg.JWTTTL,
	}

	var mailer auth.Mailer
	if cfg.SMTPEmail != "" && cfg.SMTPPassword != "" {
		mailer = mail.NewSMTPMailer(mail.SMTPConfig{
			Host:     cfg.SMTPHost,
			Port:     cfg.SMTPPort,
			Email:    cfg.SMTPEmail,
			Password: cfg.SMTPPassword,
			AppName:  cfg.AppName,
		})
	} else {
		logger.Warn().Msg("smtp not configured, otp emails will be logged only")
		mailer = mail.NewLogMailer(logger)
	}

	otp := auth.NewOTPManager(rdb)
	authService := auth.NewService(st, jwtConfig, otp, mailer, logger)

	registry := core.NewRegistry(logger)
	tracker := presence.New(rdb, cfg.PresenceTTL)
	limiter := ratelimit.New(rdb, ratelimit.Config{
		Window: cfg.RateLimitWindow,
		Max:    cfg.RateLimitMax,
	})
	messageService := message.NewService(st, registry, logger)

	server := transporthttp.NewServer(transporthttp.Deps{
		AuthService: authService,
		Store:       st,
		Registry:    registry,
		Presence:    tracker,
		Limiter:     limiter,
		Messages:    messageService,
	}, *cfg, logger)

	return &App{
		server:          server,
		shutdownTimeout: cfg.ShutdownTimeout,
		store:           st,
		rdb:             rdb,
		log:             logger,
	}, nil
}

// Run starts the HTTP server and blocks until context cancellation or fatal error.
func (a *App) Run(ctx context.Context) error {
	serverErr := make(chan error, 1)

	go func() {
		if err := a.server.ListenAndServe(); err != nil && err != stdhttp.ErrServerClosed {
			serverErr <- err
			return
		}
		serverErr <- nil
	}()

	select {
	case err := <-serverErr:
		a.cleanup()
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), a.shutdownTimeout)
		defer cancel()

		a.log.Info().Msg("shutting down http server")
		if err := a.server.Shutdown(shutdownCtx); err != nil {
			a.cleanup()
			return err
		}

		a.cleanup()
		return <-serverErr
	}
}

// cleanup closes database and redis connections.
func (a *App) cleanup() {
	if a.store != nil {
		if err := a.store.Close(); err != nil {
			a.log.Warn().Err(err).Msg("failed to close store")
		} else {
			a.log.Info().Msg("store closed")
		}
	}
	if a.rdb != nil {
		if err := a.rdb.Close(); err != nil {
			a.log.Warn().Err(err).Msg("failed to close redis client")
		}
	}
}
