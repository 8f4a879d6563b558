// Command ws_smoke connects to a running server, sends one chat message and
// waits for its new_message echo. Useful as a quick end-to-end check against
// a deployed instance; pass a token obtained from /api/auth/login.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"

	"github.com/pulsechat/pulsechat-server/internal/proto"
)

func main() {
	if err := run(); err != nil {
		log.Printf("ws_smoke: %v", err)
		os.Exit(1)
	}
}

func run() error {
	addr := flag.String("addr", "ws://localhost:8080/ws/chat", "WebSocket address")
	token := flag.String("token", "", "JWT token (required)")
	text := flag.String("text", "hello from smoke test", "message text to send")
	timeout := flag.Duration("timeout", 5*time.Second, "total timeout for the run")
	flag.Parse()

	if *token == "" {
		return fmt.Errorf("missing -token")
	}

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	conn, _, err := websocket.Dial(ctx, *addr+"?token="+*token, nil)
	if err != nil {
		return fmt.Errorf("dial: %w", err)
	}
	defer conn.Close(websocket.StatusNormalClosure, "bye")

	payload, err := json.Marshal(proto.SendMessageData{Content: *text})
	if err != nil {
		return fmt.Errorf("marshal send_message: %w", err)
	}
	if err := wsjson.Write(ctx, conn, proto.Inbound{Event: proto.InboundSendMessage, Data: payload}); err != nil {
		return fmt.Errorf("send: %w", err)
	}

	for {
		var outbound struct {
			Event string          `json:"event"`
			Data  json.RawMessage `json:"data"`
		}
		if err := wsjson.Read(ctx, conn, &outbound); err != nil {
			return fmt.Errorf("read: %w", err)
		}

		fmt.Printf("Received outbound: event=%s\n", outbound.Event)

		switch outbound.Event {
		case proto.OutboundNewMessage:
			var msg proto.MessageData
			if err := json.Unmarshal(outbound.Data, &msg); err != nil {
				fmt.Printf("Raw data: %s\n", string(outbound.Data))
				return fmt.Errorf("unmarshal new_message: %w", err)
			}
			fmt.Printf("Message: id=%s user=%s content=%q created_at=%s\n",
				msg.ID, msg.Username, msg.Content, msg.CreatedAt.Format(time.RFC3339))
			return nil
		case proto.OutboundError:
			var errData proto.ErrorData
			if err := json.Unmarshal(outbound.Data, &errData); err == nil {
				return fmt.Errorf("server error: %s", errData.Message)
			}
			return fmt.Errorf("server error: %s", string(outbound.Data))
		default:
			// keep looping for the echo
		}
	}
}
