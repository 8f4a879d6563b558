package http

import (
	"context"
	"errors"
	"io"
	stdhttp "net/http"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/rs/zerolog"

	"github.com/pulsechat/pulsechat-server/internal/auth"
	"github.com/pulsechat/pulsechat-server/internal/core"
	"github.com/pulsechat/pulsechat-server/internal/proto"
	"github.com/pulsechat/pulsechat-server/internal/store"
)

// teardownTimeout bounds session cleanup after the connection context is
// already dead.
const teardownTimeout = 5 * time.Second

// TokenValidator is the stateless token-validation collaborator the
// handshake depends on.
type TokenValidator interface {
	ValidateToken(token string) (*auth.Claims, error)
}

// WSHandler upgrades HTTP connections, authenticates them and bridges them
// to a core.Session.
type WSHandler struct {
	validator TokenValidator
	users     store.UserStore
	registry  *core.Registry
	presence  core.PresenceTracker
	limiter   core.RateLimiter
	messages  core.MessagePersister
	log       *zerolog.Logger
}

// NewWSHandler builds a new WebSocket handler.
func NewWSHandler(
	validator TokenValidator,
	users store.UserStore,
	registry *core.Registry,
	presence core.PresenceTracker,
	limiter core.RateLimiter,
	messages core.MessagePersister,
	logger *zerolog.Logger,
) stdhttp.Handler {
	return &WSHandler{
		validator: validator,
		users:     users,
		registry:  registry,
		presence:  presence,
		limiter:   limiter,
		messages:  messages,
		log:       logger,
	}
}

func (h *WSHandler) ServeHTTP(w stdhttp.ResponseWriter, r *stdhttp.Request) {
	ctx := r.Context()

	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		InsecureSkipVerify: true,
	})
	if err != nil {
		h.log.Error().Err(err).Msg("ws accept error")
		return
	}
	defer conn.Close(websocket.StatusInternalError, "internal error")

	// The handshake token travels in the query string. A rejected handshake
	// closes with a policy-violation code before any state is created.
	user, err := h.authenticate(ctx, r.URL.Query().Get("token"))
	if err != nil {
		h.log.Debug().Err(err).Msg("ws auth rejected")
		conn.Close(websocket.StatusPolicyViolation, "unauthorized")
		return
	}

	if err := h.users.TouchLastSeen(ctx, user.ID, time.Now()); err != nil {
		h.log.Warn().Err(err).Msg("failed to touch last_seen")
	}

	client := core.NewClient(user.ID, user.Username)
	sess := core.NewSession(h.registry, h.presence, h.limiter, h.messages, client, h.log)
	sess.Activate(ctx)
	defer func() {
		// Teardown runs on every exit path, including cancellation, so it
		// gets its own context.
		cleanupCtx, cancel := context.WithTimeout(context.Background(), teardownTimeout)
		defer cancel()
		sess.Close(cleanupCtx)
	}()

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	errCh := make(chan error, 2)
	go func() {
		errCh <- h.readLoop(ctx, conn, sess)
	}()
	go func() {
		errCh <- h.writeLoop(ctx, conn, client)
	}()

	err = <-errCh
	cancel() // stop the other goroutine
	<-errCh

	status := websocket.StatusNormalClosure
	reason := "closing"
	if errors.Is(err, errReplaced) {
		reason = "connection replaced"
		err = nil
	}
	if err != nil && !errors.Is(err, context.Canceled) {
		if errors.Is(err, io.EOF) {
			err = nil
		}
		if s := websocket.CloseStatus(err); s != 0 {
			status = s
		}
		if status == websocket.StatusNormalClosure || status == websocket.StatusGoingAway {
			err = nil
		}
		if err != nil {
			if status == websocket.StatusNormalClosure {
				status = websocket.StatusInternalError
			}
			reason = err.Error()
			h.log.Warn().Err(err).Str("username", user.Username).Msg("ws connection closed with error")
		}
	}

	conn.Close(status, reason)
}

var errReplaced = errors.New("connection replaced")

// authenticate resolves the handshake token to an active user.
func (h *WSHandler) authenticate(ctx context.Context, token string) (*store.User, error) {
	if token == "" {
		return nil, errors.New("missing token")
	}

	claims, err := h.validator.ValidateToken(token)
	if err != nil {
		return nil, err
	}

	user, err := h.users.GetUserByID(ctx, claims.UserID)
	if err != nil {
		return nil, err
	}
	if !user.IsActive {
		return nil, errors.New("account inactive")
	}

	return user, nil
}

func (h *WSHandler) readLoop(ctx context.Context, conn *websocket.Conn, sess *core.Session) error {
	for {
		var inbound proto.Inbound
		if err := wsjson.Read(ctx, conn, &inbound); err != nil {
			return err
		}
		dispatchInbound(ctx, sess, inbound, h.log)
	}
}

func (h *WSHandler) writeLoop(ctx context.Context, conn *websocket.Conn, client *core.Client) error {
	for {
		select {
		case ev := <-client.Events():
			if err := wsjson.Write(ctx, conn, outboundFromEvent(ev)); err != nil {
				h.log.Error().Err(err).Stringer("user_id", client.UserID).Msg("write ws event")
				return err
			}
		case <-client.Done():
			// Evicted by the registry: a newer connection for this user won
			// or delivery failed.
			return errReplaced
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}
