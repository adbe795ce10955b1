package server

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/npinheiro/converse/internal/cache"
	"github.com/npinheiro/converse/internal/stats"
	"github.com/npinheiro/converse/internal/store"
)

// ChatServer owns the session core: the connection registry, the live
// rooms and the event relays. It is an explicitly constructed instance
// passed to the transport layer; tests build their own.
type ChatServer struct {
	log      *zap.Logger
	registry *ConnectionRegistry
	rooms    *RoomRegistry
	channels store.ChannelStore
	presence *PresenceBroadcaster
	router   *MessageRouter
	receipts *ReadReceiptRelay
	typing   *TypingIndicatorRelay
	stats    stats.StatsProvider
	timeout  time.Duration
}

func NewChatServer(log *zap.Logger, users store.UserStore, messages store.MessageStore,
	channels store.ChannelStore, presenceCache cache.PresenceCache, unread cache.UnreadCounter,
	statsProvider stats.StatsProvider, storeTimeout time.Duration) (*ChatServer, error) {
	registry := NewConnectionRegistry()
	rooms := NewRoomRegistry(statsProvider)

	for _, metric := range []stats.Metric{
		stats.NumSessions,
		stats.NumActiveRooms,
		stats.NumDirectMessages,
		stats.NumChannelMessages,
	} {
		statsProvider.RegisterMetric(metric)
	}

	return &ChatServer{
		log:      log,
		registry: registry,
		rooms:    rooms,
		channels: channels,
		presence: NewPresenceBroadcaster(users, presenceCache, registry, log, storeTimeout),
		router:   NewMessageRouter(messages, channels, registry, rooms, unread, statsProvider, log, storeTimeout),
		receipts: NewReadReceiptRelay(messages, channels, registry, rooms, unread, log, storeTimeout),
		typing:   NewTypingIndicatorRelay(registry, rooms),
		stats:    statsProvider,
		timeout:  storeTimeout,
	}, nil
}

// Admit runs the admission pipeline for an authenticated connection:
// register the session, subscribe it to its channels' rooms, announce
// presence, then open it for event routing. A prior session for the
// same identity is evicted and force-closed.
func (cs *ChatServer) Admit(c *Client) {
	if evicted := cs.registry.Register(c); evicted != nil {
		cs.log.Info("evicting superseded session",
			zap.Int64("user_id", c.user.Id), zap.String("session", evicted.session))
		cs.evict(evicted)
	}

	ctx, cancel := context.WithTimeout(context.Background(), cs.timeout)
	defer cancel()

	channels, err := cs.channels.GetUserChannels(ctx, c.user.Id)
	if err != nil {
		// The session still comes up; it just holds no room
		// subscriptions until the client reconnects.
		cs.log.Error("load channel memberships", zap.Int64("user_id", c.user.Id), zap.Error(err))
	}
	for _, ch := range channels {
		cs.rooms.Subscribe(ch.Id, c)
	}

	if !c.transition(StateUnauthenticated, StateAdmitted) {
		// A replacement connection evicted this session while it was
		// still being admitted. Unwind the room subscriptions taken
		// above; the registry entry is already the replacement's.
		cs.rooms.RemoveAll(c)
		c.stopClient()
		cs.log.Info("session superseded during admission", zap.Int64("user_id", c.user.Id))
		return
	}

	cs.presence.Connected(c)
	cs.stats.Incr(stats.NumSessions)

	cs.log.Info("session admitted",
		zap.Int64("user_id", c.user.Id), zap.Int("rooms", len(channels)))
}

// Terminate tears a session down: deregister, leave every room, stop
// the pumps. It is idempotent; an evicted session arriving here later
// is a no-op. The offline announcement is skipped when a replacement
// session for the same identity is already live.
func (cs *ChatServer) Terminate(c *Client) {
	if !c.transition(StateAdmitted, StateTerminated) {
		return
	}

	cs.registry.Unregister(c.user.Id, c.session)
	cs.rooms.RemoveAll(c)
	c.stopClient()

	if _, ok := cs.registry.Lookup(c.user.Id); !ok {
		cs.presence.Disconnected(c)
	}

	cs.stats.Decr(stats.NumSessions)
	cs.log.Info("session terminated", zap.Int64("user_id", c.user.Id))
}

// evict force-closes a superseded session whatever state it is in,
// including one still inside Admit. Its registry entry has already been
// replaced, so only room state and the transport remain. The session
// gauge only moves for sessions that finished admission and were
// counted.
func (cs *ChatServer) evict(c *Client) {
	prev := SessionState(c.state.Swap(int32(StateTerminated)))
	if prev == StateTerminated {
		return
	}

	cs.rooms.RemoveAll(c)
	c.stopClient()

	if prev == StateAdmitted {
		cs.stats.Decr(stats.NumSessions)
	}
}

// SubscribeIdentity attaches an online identity's connection to a
// channel's room, for memberships granted mid-session. Offline
// identities pick the channel up at their next connection.
func (cs *ChatServer) SubscribeIdentity(userId, channelId int64) {
	c, ok := cs.registry.Lookup(userId)
	if !ok {
		return
	}

	cs.rooms.Subscribe(channelId, c)
	c.queueEvent(&ServerEvent{
		Event: EventChannelJoined,
		Data:  ChannelMembershipChange{ChannelId: channelId},
	})
}

// UnsubscribeIdentity detaches an online identity's connection from a
// channel's room after a membership revocation.
func (cs *ChatServer) UnsubscribeIdentity(userId, channelId int64) {
	c, ok := cs.registry.Lookup(userId)
	if !ok {
		return
	}

	cs.rooms.Unsubscribe(channelId, c)
	c.queueEvent(&ServerEvent{
		Event: EventChannelLeft,
		Data:  ChannelMembershipChange{ChannelId: channelId},
	})
}

// Shutdown stops every live session and waits for the registry to
// drain or the context to expire.
func (cs *ChatServer) Shutdown(ctx context.Context) error {
	cs.log.Info("shutting down chat server", zap.Int("sessions", cs.registry.Count()))

	for item := range cs.registry.conns.IterBuffered() {
		cs.Terminate(item.Val)
	}

	ticker := time.NewTicker(10 * time.Millisecond)
	defer ticker.Stop()

	for {
		if cs.registry.Count() == 0 {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}
