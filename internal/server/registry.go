package server

import (
	"strconv"

	cmap "github.com/orcaman/concurrent-map/v2"
)

// ConnectionRegistry maps an identity to its single live connection.
// The sharded map gives per-key atomicity without cross-identity
// contention; register, unregister and lookup for the same identity are
// linearizable through the shard lock.
type ConnectionRegistry struct {
	conns cmap.ConcurrentMap[string, *Client]
}

func NewConnectionRegistry() *ConnectionRegistry {
	return &ConnectionRegistry{
		conns: cmap.New[*Client](),
	}
}

func identityKey(userId int64) string {
	return strconv.FormatInt(userId, 10)
}

// Register binds the client to its identity and returns the client it
// replaced, if the identity already held a live connection.
func (r *ConnectionRegistry) Register(c *Client) (evicted *Client) {
	r.conns.Upsert(identityKey(c.user.Id), c, func(exists bool, current, incoming *Client) *Client {
		if exists && current != incoming {
			evicted = current
		}
		return incoming
	})
	return evicted
}

// Unregister removes the identity's entry only if it still points at
// the caller's session. Unregistering an absent or superseded session
// is a no-op.
func (r *ConnectionRegistry) Unregister(userId int64, session string) bool {
	return r.conns.RemoveCb(identityKey(userId), func(key string, current *Client, exists bool) bool {
		return exists && current.session == session
	})
}

func (r *ConnectionRegistry) Lookup(userId int64) (*Client, bool) {
	return r.conns.Get(identityKey(userId))
}

func (r *ConnectionRegistry) Count() int {
	return r.conns.Count()
}

// Broadcast queues an event on every live connection except skip.
// Delivery is best-effort; a full send buffer drops the event.
func (r *ConnectionRegistry) Broadcast(ev *ServerEvent, skip *Client) {
	for item := range r.conns.IterBuffered() {
		if item.Val == skip {
			continue
		}
		item.Val.queueEvent(ev)
	}
}
