package http

import (
	"github.com/Dhanush032/realtime-chat-server/internal/core"
	"github.com/Dhanush032/realtime-chat-server/internal/proto"
)

func deliveredFromMessage(m core.Message) proto.MessageDelivered {
	return proto.MessageDelivered{
		ID:   m.ID,
		Room: m.Room,
		Seq:  m.Seq,
		User: m.From,
		Body: m.Body,
		TS:   m.CreatedAt.Unix(),
	}
}

func outboundFromEvent(event *core.Event) proto.Outbound {
	switch event.Kind {
	case core.EventMessage:
		return proto.Outbound{
			Type: proto.OutboundTypeMessage,
			Data: deliveredFromMessage(event.Message),
		}
	case core.EventPresence:
		data := proto.PresenceChanged{
			Room:   event.Room,
			User:   event.User,
			Online: event.Online,
		}
		if !event.LastSeen.IsZero() {
			data.LastSeen = event.LastSeen.Unix()
		}
		return proto.Outbound{Type: proto.OutboundTypePresence, Data: data}
	case core.EventMemberJoined:
		return proto.Outbound{
			Type: proto.OutboundTypeJoined,
			Data: proto.MemberJoined{Room: event.Room, User: event.User},
		}
	case core.EventMemberLeft:
		return proto.Outbound{
			Type: proto.OutboundTypeLeft,
			Data: proto.MemberLeft{Room: event.Room, User: event.User},
		}
	case core.EventHistory:
		messages := make([]proto.MessageDelivered, 0, len(event.Messages))
		for _, msg := range event.Messages {
			messages = append(messages, deliveredFromMessage(msg))
		}
		return proto.Outbound{
			Type: proto.OutboundTypeHistory,
			Data: proto.History{Room: event.Room, Messages: messages},
		}
	case core.EventPong:
		return proto.Outbound{Type: proto.OutboundTypePong}
	case core.EventError:
		if event.Error == nil {
			return proto.Outbound{Type: proto.OutboundTypeError, Error: &proto.Error{Code: "unknown", Msg: "unknown error"}}
		}
		return proto.Outbound{
			Type:  proto.OutboundTypeError,
			Error: &proto.Error{Code: event.Error.Code, Msg: event.Error.Message},
		}
	default:
		return proto.Outbound{Type: proto.OutboundTypeError, Error: &proto.Error{Code: "unknown", Msg: "unknown event"}}
	}
}
