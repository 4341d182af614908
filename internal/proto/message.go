package proto

import "encoding/json"

// Inbound is the envelope for frames coming from the client.
type Inbound struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

const (
	InboundTypeJoin  = "join_room"
	InboundTypeLeave = "leave_room"
	InboundTypeSend  = "send_message"
	InboundTypePing  = "ping"

	OutboundTypeMessage  = "message_delivered"
	OutboundTypePresence = "presence_changed"
	OutboundTypeJoined   = "member_joined"
	OutboundTypeLeft     = "member_left"
	OutboundTypeHistory  = "history"
	OutboundTypePong     = "pong"
	OutboundTypeError    = "error"
)

// JoinData requests to join or leave a specific room.
type JoinData struct {
	Room string `json:"room"`
}

// SendData is a chat message from the client.
type SendData struct {
	Room string `json:"room"`
	Body string `json:"body"`
}

// Outbound is the envelope for frames sent to the client.
type Outbound struct {
	Type  string `json:"type"`
	Data  any    `json:"data,omitempty"`
	Error *Error `json:"error,omitempty"`
}

// MessageDelivered carries one sequenced room message.
type MessageDelivered struct {
	ID   int64  `json:"id"`
	Room string `json:"room"`
	Seq  int64  `json:"seq"`
	User string `json:"user"`
	Body string `json:"body"`
	TS   int64  `json:"ts"`
}

// PresenceChanged notifies room members about an online/offline transition.
type PresenceChanged struct {
	Room     string `json:"room"`
	User     string `json:"user"`
	Online   bool   `json:"online"`
	LastSeen int64  `json:"last_seen,omitempty"`
}

// MemberJoined notifies that a connection joined a room.
type MemberJoined struct {
	Room string `json:"room"`
	User string `json:"user"`
}

// MemberLeft notifies that a connection left a room.
type MemberLeft struct {
	Room string `json:"room"`
	User string `json:"user"`
}

// History delivers message backfill to a client upon joining a room.
type History struct {
	Room     string             `json:"room"`
	Messages []MessageDelivered `json:"messages"`
}

// Error describes a protocol-level error response.
type Error struct {
	Code string `json:"code"`
	Msg  string `json:"msg"`
}
