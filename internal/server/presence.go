package server

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/npinheiro/converse/internal/cache"
	"github.com/npinheiro/converse/internal/store"
)

// PresenceBroadcaster flips the durable online flag and announces the
// change to every other live connection. Persistence failures are
// logged and swallowed; the broadcast always goes out.
type PresenceBroadcaster struct {
	users    store.UserStore
	presence cache.PresenceCache
	registry *ConnectionRegistry
	log      *zap.Logger
	timeout  time.Duration
}

func NewPresenceBroadcaster(users store.UserStore, presence cache.PresenceCache,
	registry *ConnectionRegistry, log *zap.Logger, timeout time.Duration) *PresenceBroadcaster {
	return &PresenceBroadcaster{
		users:    users,
		presence: presence,
		registry: registry,
		log:      log,
		timeout:  timeout,
	}
}

// Connected marks the identity online and announces it to everyone but
// the newly admitted connection.
func (p *PresenceBroadcaster) Connected(c *Client) {
	p.persist(c.user.Id, true)
	p.registry.Broadcast(&ServerEvent{
		Event: EventUserStatus,
		Data:  UserStatus{UserId: c.user.Id, Online: true},
	}, c)
}

// Disconnected marks the identity offline and announces it.
func (p *PresenceBroadcaster) Disconnected(c *Client) {
	p.persist(c.user.Id, false)
	p.registry.Broadcast(&ServerEvent{
		Event: EventUserStatus,
		Data:  UserStatus{UserId: c.user.Id, Online: false},
	}, c)
}

func (p *PresenceBroadcaster) persist(userId int64, online bool) {
	ctx, cancel := context.WithTimeout(context.Background(), p.timeout)
	defer cancel()

	if err := p.users.UpdateOnlineStatus(ctx, userId, online); err != nil {
		p.log.Warn("update online status",
			zap.Int64("user_id", userId), zap.Bool("online", online), zap.Error(err))
	}

	var err error
	if online {
		err = p.presence.SetOnline(ctx, userId)
	} else {
		err = p.presence.SetOffline(ctx, userId)
	}
	if err != nil {
		p.log.Warn("update presence cache", zap.Int64("user_id", userId), zap.Error(err))
	}
}
