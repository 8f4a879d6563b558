package http

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"

	"github.com/pulsechat/pulsechat-server/internal/presence"
	"github.com/pulsechat/pulsechat-server/internal/proto"
	"github.com/pulsechat/pulsechat-server/internal/ratelimit"
)

func generousLimit() ratelimit.Config {
	return ratelimit.Config{Window: time.Minute, Max: 100}
}

type outboundEnvelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}

func dialWS(t *testing.T, ctx context.Context, env *testEnv, token string) *websocket.Conn {
	t.Helper()

	conn, _, err := websocket.Dial(ctx, env.wsURL(token), nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { _ = conn.Close(websocket.StatusNormalClosure, "") })
	return conn
}

func sendInbound(t *testing.T, ctx context.Context, conn *websocket.Conn, event string, data any) {
	t.Helper()

	in := proto.Inbound{Event: event}
	if data != nil {
		raw, err := json.Marshal(data)
		if err != nil {
			t.Fatalf("marshal inbound data: %v", err)
		}
		in.Data = raw
	}
	if err := wsjson.Write(ctx, conn, in); err != nil {
		t.Fatalf("write inbound: %v", err)
	}
}

// awaitEvent reads envelopes until one with the wanted tag arrives.
func awaitEvent(t *testing.T, ctx context.Context, conn *websocket.Conn, event string) json.RawMessage {
	t.Helper()

	for {
		var envelope outboundEnvelope
		if err := wsjson.Read(ctx, conn, &envelope); err != nil {
			t.Fatalf("read while waiting for %q: %v", event, err)
		}
		if envelope.Event == event {
			return envelope.Data
		}
	}
}

func onlineUsers(t *testing.T, env *testEnv) []presence.OnlineUser {
	t.Helper()

	resp, err := http.Get(env.ts.URL + "/api/users/online")
	if err != nil {
		t.Fatalf("get online users: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("unexpected status %d", resp.StatusCode)
	}

	var users []presence.OnlineUser
	if err := json.NewDecoder(resp.Body).Decode(&users); err != nil {
		t.Fatalf("decode online users: %v", err)
	}
	return users
}

func waitOnlineCount(t *testing.T, env *testEnv, want int) []presence.OnlineUser {
	t.Helper()

	deadline := time.Now().Add(2 * time.Second)
	for {
		users := onlineUsers(t, env)
		if len(users) == want {
			return users
		}
		if time.Now().After(deadline) {
			t.Fatalf("expected %d online users, got %v", want, users)
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func TestWSRejectsMissingToken(t *testing.T) {
	env := newTestEnv(t, generousLimit())
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	conn := dialWS(t, ctx, env, "")

	var envelope outboundEnvelope
	err := wsjson.Read(ctx, conn, &envelope)
	if err == nil {
		t.Fatalf("expected close, got event %+v", envelope)
	}
	if status := websocket.CloseStatus(err); status != websocket.StatusPolicyViolation {
		t.Fatalf("expected policy violation close, got %v (%v)", status, err)
	}
}

func TestWSRejectsInvalidToken(t *testing.T) {
	env := newTestEnv(t, generousLimit())
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	conn := dialWS(t, ctx, env, "not-a-valid-token")

	var envelope outboundEnvelope
	err := wsjson.Read(ctx, conn, &envelope)
	if err == nil {
		t.Fatalf("expected close, got event %+v", envelope)
	}
	if status := websocket.CloseStatus(err); status != websocket.StatusPolicyViolation {
		t.Fatalf("expected policy violation close, got %v (%v)", status, err)
	}
}

func TestWSChatFlow(t *testing.T) {
	env := newTestEnv(t, generousLimit())
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	_, aliceToken := env.seedVerifiedUser(t, "alice")
	bob, bobToken := env.seedVerifiedUser(t, "bob")

	aliceConn := dialWS(t, ctx, env, aliceToken)
	waitOnlineCount(t, env, 1)
	bobConn := dialWS(t, ctx, env, bobToken)

	// Alice sees bob join; bob gets no announcement about himself.
	var joined proto.PresenceData
	if err := json.Unmarshal(awaitEvent(t, ctx, aliceConn, proto.OutboundUserJoined), &joined); err != nil {
		t.Fatalf("unmarshal user_joined: %v", err)
	}
	if joined.UserID != bob.ID.String() || joined.Username != "bob" {
		t.Fatalf("unexpected join payload: %+v", joined)
	}

	// Bob sends a message; both sides receive it with server-assigned id.
	sendInbound(t, ctx, bobConn, proto.InboundSendMessage, proto.SendMessageData{Content: "  hello room  "})
	for _, conn := range []*websocket.Conn{aliceConn, bobConn} {
		var msg proto.MessageData
		if err := json.Unmarshal(awaitEvent(t, ctx, conn, proto.OutboundNewMessage), &msg); err != nil {
			t.Fatalf("unmarshal new_message: %v", err)
		}
		if msg.Content != "hello room" {
			t.Fatalf("expected trimmed content, got %q", msg.Content)
		}
		if msg.ID == "" || msg.UserID != bob.ID.String() || msg.Username != "bob" {
			t.Fatalf("unexpected message payload: %+v", msg)
		}
	}

	// Typing reaches alice but not bob. A follow-up ping proves bob's
	// stream carried no typing event: pong arrives first.
	sendInbound(t, ctx, bobConn, proto.InboundTyping, nil)
	var typing proto.PresenceData
	if err := json.Unmarshal(awaitEvent(t, ctx, aliceConn, proto.OutboundUserTyping), &typing); err != nil {
		t.Fatalf("unmarshal user_typing: %v", err)
	}
	if typing.UserID != bob.ID.String() {
		t.Fatalf("unexpected typing payload: %+v", typing)
	}

	sendInbound(t, ctx, bobConn, proto.InboundPing, nil)
	var next outboundEnvelope
	if err := wsjson.Read(ctx, bobConn, &next); err != nil {
		t.Fatalf("read pong: %v", err)
	}
	if next.Event != proto.OutboundPong {
		t.Fatalf("expected pong as bob's next event, got %q", next.Event)
	}

	// Bob disconnects; alice sees user_left.
	if err := bobConn.Close(websocket.StatusNormalClosure, "bye"); err != nil {
		t.Fatalf("close bob: %v", err)
	}
	var left proto.PresenceData
	if err := json.Unmarshal(awaitEvent(t, ctx, aliceConn, proto.OutboundUserLeft), &left); err != nil {
		t.Fatalf("unmarshal user_left: %v", err)
	}
	if left.UserID != bob.ID.String() {
		t.Fatalf("unexpected leave payload: %+v", left)
	}
}

func TestWSMessageTooLong(t *testing.T) {
	env := newTestEnv(t, generousLimit())
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	_, token := env.seedVerifiedUser(t, "alice")
	conn := dialWS(t, ctx, env, token)

	sendInbound(t, ctx, conn, proto.InboundSendMessage, proto.SendMessageData{
		Content: strings.Repeat("a", 2001),
	})

	var errData proto.ErrorData
	if err := json.Unmarshal(awaitEvent(t, ctx, conn, proto.OutboundError), &errData); err != nil {
		t.Fatalf("unmarshal error: %v", err)
	}
	if !strings.Contains(errData.Message, "2000") {
		t.Fatalf("unexpected error message: %q", errData.Message)
	}
}

func TestWSRateLimit(t *testing.T) {
	env := newTestEnv(t, ratelimit.Config{Window: time.Minute, Max: 2})
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	_, token := env.seedVerifiedUser(t, "alice")
	conn := dialWS(t, ctx, env, token)

	for i := 0; i < 3; i++ {
		sendInbound(t, ctx, conn, proto.InboundSendMessage, proto.SendMessageData{Content: "spam"})
	}

	// Two deliveries, then a rate-limit error.
	for i := 0; i < 2; i++ {
		var envelope outboundEnvelope
		if err := wsjson.Read(ctx, conn, &envelope); err != nil {
			t.Fatalf("read %d: %v", i+1, err)
		}
		if envelope.Event != proto.OutboundNewMessage {
			t.Fatalf("expected new_message %d, got %q", i+1, envelope.Event)
		}
	}
	var errData proto.ErrorData
	if err := json.Unmarshal(awaitEvent(t, ctx, conn, proto.OutboundError), &errData); err != nil {
		t.Fatalf("unmarshal error: %v", err)
	}
	if !strings.Contains(strings.ToLower(errData.Message), "rate limit") {
		t.Fatalf("unexpected error message: %q", errData.Message)
	}
}

func TestWSConnectionReplaced(t *testing.T) {
	env := newTestEnv(t, generousLimit())
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	user, token := env.seedVerifiedUser(t, "alice")

	first := dialWS(t, ctx, env, token)
	waitOnlineCount(t, env, 1)

	second := dialWS(t, ctx, env, token)

	// The first connection is closed cleanly by the server.
	var envelope outboundEnvelope
	err := wsjson.Read(ctx, first, &envelope)
	if err == nil {
		t.Fatalf("expected close on replaced connection, got %+v", envelope)
	}
	if status := websocket.CloseStatus(err); status != websocket.StatusNormalClosure {
		t.Fatalf("expected normal closure, got %v (%v)", status, err)
	}

	// The replacement keeps working and the user never went offline.
	sendInbound(t, ctx, second, proto.InboundPing, nil)
	awaitEvent(t, ctx, second, proto.OutboundPong)

	users := waitOnlineCount(t, env, 1)
	if users[0].ID != user.ID {
		t.Fatalf("unexpected online user: %+v", users[0])
	}
}

func TestWSPresenceLifecycle(t *testing.T) {
	env := newTestEnv(t, generousLimit())
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	user, token := env.seedVerifiedUser(t, "alice")

	if users := onlineUsers(t, env); len(users) != 0 {
		t.Fatalf("expected nobody online, got %v", users)
	}

	conn := dialWS(t, ctx, env, token)
	users := waitOnlineCount(t, env, 1)
	if users[0].ID != user.ID || users[0].Username != "alice" {
		t.Fatalf("unexpected online user: %+v", users[0])
	}

	if err := conn.Close(websocket.StatusNormalClosure, "bye"); err != nil {
		t.Fatalf("close: %v", err)
	}
	waitOnlineCount(t, env, 0)
}
