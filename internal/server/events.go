package server

import (
	"encoding/json"
	"time"

	"github.com/npinheiro/converse/internal/types"
)

// Wire event names, client-to-server and server-to-client.
const (
	EventMessageSend        = "message:send"
	EventMessageSent        = "message:sent"
	EventMessageReceived    = "message:received"
	EventMessageRead        = "message:read"
	EventTypingStart        = "typing:start"
	EventTypingStop         = "typing:stop"
	EventChannelMessage     = "channel:message"
	EventChannelRead        = "channel:read"
	EventChannelTypingStart = "channel:typing:start"
	EventChannelTypingStop  = "channel:typing:stop"
	EventChannelJoined      = "channel:joined"
	EventChannelLeft        = "channel:left"
	EventUserStatus         = "user:status"
	EventError              = "error"
)

// ClientEvent is the inbound envelope. Data is decoded per event kind
// by the dispatcher.
type ClientEvent struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// ServerEvent is the outbound envelope.
type ServerEvent struct {
	Event string `json:"event"`
	Data  any    `json:"data,omitempty"`
}

type SendMessage struct {
	ReceiverId int64  `json:"receiver_id"`
	Content    string `json:"content"`
	Type       string `json:"type,omitempty"`
}

type MarkRead struct {
	MessageId *int64 `json:"message_id,omitempty"`
	SenderId  *int64 `json:"sender_id,omitempty"`
}

type Typing struct {
	ReceiverId int64 `json:"receiver_id"`
}

type SendChannelMessage struct {
	ChannelId int64  `json:"channel_id"`
	Content   string `json:"content"`
	Type      string `json:"type,omitempty"`
}

type ChannelRead struct {
	ChannelId int64 `json:"channel_id"`
}

type ChannelTyping struct {
	ChannelId int64 `json:"channel_id"`
}

type DirectMessagePayload struct {
	Message types.DirectMessage `json:"message"`
}

type ChannelMessagePayload struct {
	Message types.ChannelMessage `json:"message"`
}

// ReadReceipt notifies the original sender that the reader has seen
// their messages. MessageId is null for a bulk mark-read.
type ReadReceipt struct {
	By        int64     `json:"by"`
	MessageId *int64    `json:"message_id"`
	Timestamp time.Time `json:"timestamp"`
}

type ChannelReadReceipt struct {
	ChannelId int64     `json:"channel_id"`
	UserId    int64     `json:"user_id"`
	Timestamp time.Time `json:"timestamp"`
}

type TypingNotice struct {
	UserId    int64 `json:"user_id"`
	ChannelId int64 `json:"channel_id,omitempty"`
}

type UserStatus struct {
	UserId int64 `json:"user_id"`
	Online bool  `json:"online"`
}

type ChannelMembershipChange struct {
	ChannelId int64 `json:"channel_id"`
}

func errorEvent(err *Error) *ServerEvent {
	return &ServerEvent{Event: EventError, Data: err}
}

func Now() time.Time {
	return time.Now().UTC().Round(time.Millisecond)
}

func directMessageEvent(event string, msg types.DirectMessage) *ServerEvent {
	return &ServerEvent{Event: event, Data: DirectMessagePayload{Message: msg}}
}

func channelMessageEvent(msg types.ChannelMessage) *ServerEvent {
	return &ServerEvent{Event: EventChannelMessage, Data: ChannelMessagePayload{Message: msg}}
}
