package http

import (
	"context"
	"encoding/json"

	"github.com/rs/zerolog"

	"github.com/pulsechat/pulsechat-server/internal/core"
	"github.com/pulsechat/pulsechat-server/internal/proto"
	"github.com/pulsechat/pulsechat-server/internal/store"
)

// dispatchInbound routes one decoded client event to the session.
// Unknown tags and malformed payloads are logged and ignored, never
// surfaced to the client.
func dispatchInbound(ctx context.Context, sess *core.Session, in proto.Inbound, logger *zerolog.Logger) {
	switch in.Event {
	case proto.InboundSendMessage:
		var data proto.SendMessageData
		if len(in.Data) > 0 {
			if err := json.Unmarshal(in.Data, &data); err != nil {
				logger.Warn().Err(err).Msg("malformed send_message payload")
				return
			}
		}
		sess.HandleSendMessage(ctx, data.Content)
	case proto.InboundTyping:
		sess.HandleTyping(ctx)
	case proto.InboundPing:
		sess.HandlePing(ctx)
	default:
		logger.Warn().Str("event", in.Event).Msg("unknown inbound event")
	}
}

func outboundFromEvent(ev core.Event) proto.Outbound {
	switch ev.Kind {
	case core.EventNewMessage:
		return proto.Outbound{Event: proto.OutboundNewMessage, Data: messageData(ev.Message)}
	case core.EventMessageEdited:
		return proto.Outbound{Event: proto.OutboundMessageEdited, Data: proto.MessageEditedData{
			MessageID: ev.Message.ID.String(),
			Content:   ev.Message.Content,
			UpdatedAt: ev.Message.UpdatedAt,
		}}
	case core.EventMessageDeleted:
		return proto.Outbound{Event: proto.OutboundMessageDeleted, Data: proto.MessageDeletedData{
			MessageID: ev.Message.ID.String(),
		}}
	case core.EventUserJoined:
		return proto.Outbound{Event: proto.OutboundUserJoined, Data: presenceData(ev)}
	case core.EventUserLeft:
		return proto.Outbound{Event: proto.OutboundUserLeft, Data: presenceData(ev)}
	case core.EventUserTyping:
		return proto.Outbound{Event: proto.OutboundUserTyping, Data: presenceData(ev)}
	case core.EventPong:
		return proto.Outbound{Event: proto.OutboundPong, Data: struct{}{}}
	case core.EventError:
		return proto.Outbound{Event: proto.OutboundError, Data: proto.ErrorData{Message: ev.ErrorMessage}}
	default:
		return proto.Outbound{Event: proto.OutboundError, Data: proto.ErrorData{Message: "unknown event"}}
	}
}

func presenceData(ev core.Event) proto.PresenceData {
	return proto.PresenceData{
		UserID:   ev.UserID.String(),
		Username: ev.Username,
	}
}

func messageData(m *store.Message) proto.MessageData {
	return proto.MessageData{
		ID:        m.ID.String(),
		UserID:    m.UserID.String(),
		Username:  m.Username,
		Content:   m.Content,
		CreatedAt: m.CreatedAt,
		UpdatedAt: m.UpdatedAt,
		IsDeleted: m.IsDeleted,
	}
}
