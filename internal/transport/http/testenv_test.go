package http

import (
	"context"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/pulsechat/pulsechat-server/internal/auth"
	"github.com/pulsechat/pulsechat-server/internal/config"
	"github.com/pulsechat/pulsechat-server/internal/core"
	"github.com/pulsechat/pulsechat-server/internal/message"
	"github.com/pulsechat/pulsechat-server/internal/presence"
	"github.com/pulsechat/pulsechat-server/internal/ratelimit"
	"github.com/pulsechat/pulsechat-server/internal/store"
	"github.com/pulsechat/pulsechat-server/internal/store/sqlite"
)

// capturingMailer records the last code per recipient.
type capturingMailer struct {
	mu    sync.Mutex
	codes map[string]string
}

func (m *capturingMailer) SendOTP(_ context.Context, to, code string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.codes[to] = code
	return nil
}

func (m *capturingMailer) code(to string) string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.codes[to]
}

// testEnv wires the full HTTP surface against in-memory backends.
type testEnv struct {
	ts       *httptest.Server
	store    *sqlite.SQLiteStore
	tracker  *presence.Tracker
	mailer   *capturingMailer
	jwtCfg   *auth.JWTConfig
	registry *core.Registry
}

func newTestEnv(t *testing.T, rlCfg ratelimit.Config) *testEnv {
	t.Helper()

	st, err := sqlite.New(":memory:")
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { _ = st.Close() })

	redisSrv := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: redisSrv.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	logger := zerolog.Nop()
	jwtCfg := &auth.JWTConfig{
		Secret:   []byte("test-secret"),
		Issuer:   "pulsechat",
		Audience: "pulsechat-clients",
		TTL:      time.Hour,
	}
	mailer := &capturingMailer{codes: make(map[string]string)}
	authService := auth.NewService(st, jwtCfg, auth.NewOTPManager(rdb), mailer, &logger)

	registry := core.NewRegistry(&logger)
	tracker := presence.New(rdb, time.Hour)
	limiter := ratelimit.New(rdb, rlCfg)
	messages := message.NewService(st, registry, &logger)

	srv := NewServer(Deps{
		AuthService: authService,
		Store:       st,
		Registry:    registry,
		Presence:    tracker,
		Limiter:     limiter,
		Messages:    messages,
	}, config.Default(), &logger)

	ts := httptest.NewServer(srv.Handler)
	t.Cleanup(ts.Close)

	return &testEnv{
		ts:       ts,
		store:    st,
		tracker:  tracker,
		mailer:   mailer,
		jwtCfg:   jwtCfg,
		registry: registry,
	}
}

// seedVerifiedUser creates a verified user directly in the store and mints
// a token for it, bypassing the OTP flow.
func (env *testEnv) seedVerifiedUser(t *testing.T, username string) (*store.User, string) {
	t.Helper()
	ctx := context.Background()

	hash, err := auth.HashPassword("password123")
	if err != nil {
		t.Fatalf("hash password: %v", err)
	}
	user, err := env.store.CreateUser(ctx, username, username+"@example.com", hash)
	if err != nil {
		t.Fatalf("create user: %v", err)
	}
	if err := env.store.MarkUserVerified(ctx, user.ID); err != nil {
		t.Fatalf("mark verified: %v", err)
	}

	token, err := auth.GenerateToken(env.jwtCfg, user.ID, user.Username)
	if err != nil {
		t.Fatalf("generate token: %v", err)
	}
	return user, token
}

func (env *testEnv) wsURL(token string) string {
	url := "ws" + strings.TrimPrefix(env.ts.URL, "http") + "/ws/chat"
	if token != "" {
		url += "?token=" + token
	}
	return url
}
