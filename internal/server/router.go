package server

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/npinheiro/converse/internal/cache"
	"github.com/npinheiro/converse/internal/stats"
	"github.com/npinheiro/converse/internal/store"
	"github.com/npinheiro/converse/internal/types"
)

// MessageRouter persists inbound messages and fans them out to live
// connections. A message is never broadcast unless its persistence
// succeeded.
type MessageRouter struct {
	messages store.MessageStore
	channels store.ChannelStore
	registry *ConnectionRegistry
	rooms    *RoomRegistry
	unread   cache.UnreadCounter
	stats    stats.StatsProvider
	log      *zap.Logger
	timeout  time.Duration
}

func NewMessageRouter(messages store.MessageStore, channels store.ChannelStore,
	registry *ConnectionRegistry, rooms *RoomRegistry, unread cache.UnreadCounter,
	statsProvider stats.StatsProvider, log *zap.Logger, timeout time.Duration) *MessageRouter {
	return &MessageRouter{
		messages: messages,
		channels: channels,
		registry: registry,
		rooms:    rooms,
		unread:   unread,
		stats:    statsProvider,
		log:      log,
		timeout:  timeout,
	}
}

// SendDirect persists a direct message, acks the sender and delivers to
// the receiver's connection if one is live. An offline receiver
// discovers the message on their next historical fetch.
func (rt *MessageRouter) SendDirect(c *Client, req SendMessage) {
	if req.ReceiverId == 0 || req.Content == "" {
		c.queueEvent(errorEvent(ErrInvalidRequest("receiver_id and content are required")))
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), rt.timeout)
	defer cancel()

	saved, err := rt.messages.SaveDirectMessage(ctx, store.SaveDirectMessageParams{
		SenderId:   c.user.Id,
		ReceiverId: req.ReceiverId,
		Content:    req.Content,
		Type:       req.Type,
	})
	if err != nil {
		rt.log.Error("save direct message", zap.Int64("sender_id", c.user.Id), zap.Error(err))
		c.queueEvent(errorEvent(storageError(err)))
		return
	}

	msg := toDirectMessage(saved)
	c.queueEvent(directMessageEvent(EventMessageSent, msg))

	if receiver, ok := rt.registry.Lookup(req.ReceiverId); ok {
		receiver.queueEvent(directMessageEvent(EventMessageReceived, msg))
	}

	if err := rt.unread.IncrDirect(ctx, req.ReceiverId, c.user.Id); err != nil {
		rt.log.Warn("incr unread counter", zap.Int64("receiver_id", req.ReceiverId), zap.Error(err))
	}

	rt.stats.Incr(stats.NumDirectMessages)
}

// SendChannel validates membership against the channel store, persists
// the message and broadcasts it to the whole room, sender included.
func (rt *MessageRouter) SendChannel(c *Client, req SendChannelMessage) {
	if req.ChannelId == 0 || req.Content == "" {
		c.queueEvent(errorEvent(ErrInvalidRequest("channel_id and content are required")))
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), rt.timeout)
	defer cancel()

	// The store is asked, not the in-memory room: a stale subscription
	// must not authorize a send.
	member, err := rt.channels.IsMember(ctx, req.ChannelId, c.user.Id)
	if err != nil {
		rt.log.Error("membership check", zap.Int64("channel_id", req.ChannelId), zap.Error(err))
		c.queueEvent(errorEvent(storageError(err)))
		return
	}
	if !member {
		c.queueEvent(errorEvent(ErrNotAMember()))
		return
	}

	saved, err := rt.channels.SaveChannelMessage(ctx, store.SaveChannelMessageParams{
		ChannelId: req.ChannelId,
		SenderId:  c.user.Id,
		Content:   req.Content,
		Type:      req.Type,
	})
	if err != nil {
		rt.log.Error("save channel message", zap.Int64("channel_id", req.ChannelId), zap.Error(err))
		c.queueEvent(errorEvent(storageError(err)))
		return
	}

	rt.rooms.Broadcast(req.ChannelId, channelMessageEvent(toChannelMessage(saved)), nil)

	if memberIds, err := rt.channels.GetMemberIds(ctx, req.ChannelId); err == nil {
		if err := rt.unread.IncrChannel(ctx, req.ChannelId, c.user.Id, memberIds); err != nil {
			rt.log.Warn("incr channel unread", zap.Int64("channel_id", req.ChannelId), zap.Error(err))
		}
	} else {
		rt.log.Warn("get member ids", zap.Int64("channel_id", req.ChannelId), zap.Error(err))
	}

	rt.stats.Incr(stats.NumChannelMessages)
}

func toDirectMessage(m store.DirectMessage) types.DirectMessage {
	return types.DirectMessage{
		Id:         m.Id,
		SenderId:   m.SenderId,
		ReceiverId: m.ReceiverId,
		Content:    m.Content,
		Type:       m.Type,
		IsRead:     m.IsRead,
		CreatedAt:  m.CreatedAt,
	}
}

func toChannelMessage(m store.ChannelMessage) types.ChannelMessage {
	return types.ChannelMessage{
		Id:        m.Id,
		ChannelId: m.ChannelId,
		SenderId:  m.SenderId,
		Content:   m.Content,
		Type:      m.Type,
		CreatedAt: m.CreatedAt,
	}
}
