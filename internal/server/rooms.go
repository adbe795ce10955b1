package server

import (
	"strconv"
	"sync"

	cmap "github.com/orcaman/concurrent-map/v2"

	"github.com/npinheiro/converse/internal/stats"
)

// Room is the in-memory subscription set mirroring one channel's
// membership. It exists only while at least one member is connected.
type Room struct {
	channelId int64

	mu      sync.RWMutex
	clients map[*Client]struct{}
}

func (r *Room) add(c *Client) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.clients[c] = struct{}{}
}

// remove reports whether the room is empty afterwards.
func (r *Room) remove(c *Client) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.clients, c)
	return len(r.clients) == 0
}

// Broadcast queues the event on every subscribed connection except
// skip. It runs concurrently with joins and leaves; a connection in the
// middle of joining may or may not see this particular event.
func (r *Room) Broadcast(ev *ServerEvent, skip *Client) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for c := range r.clients {
		if c == skip {
			continue
		}
		c.queueEvent(ev)
	}
}

func (r *Room) size() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.clients)
}

// RoomRegistry owns the live rooms, keyed by channel id. Rooms are
// created on first subscribe and dropped when the last subscriber
// leaves.
type RoomRegistry struct {
	rooms cmap.ConcurrentMap[string, *Room]
	stats stats.StatsProvider
}

func NewRoomRegistry(statsProvider stats.StatsProvider) *RoomRegistry {
	return &RoomRegistry{
		rooms: cmap.New[*Room](),
		stats: statsProvider,
	}
}

func roomKey(channelId int64) string {
	return strconv.FormatInt(channelId, 10)
}

// Subscribe adds the connection to the channel's room, creating the
// room if needed.
func (rr *RoomRegistry) Subscribe(channelId int64, c *Client) {
	room := rr.rooms.Upsert(roomKey(channelId), nil, func(exists bool, current, _ *Room) *Room {
		if !exists || current == nil {
			current = &Room{
				channelId: channelId,
				clients:   make(map[*Client]struct{}),
			}
			rr.stats.Incr(stats.NumActiveRooms)
		}
		current.add(c)
		return current
	})
	c.trackRoom(room)
}

// Unsubscribe removes the connection from the channel's room and drops
// the room if it became empty.
func (rr *RoomRegistry) Unsubscribe(channelId int64, c *Client) {
	removed := rr.rooms.RemoveCb(roomKey(channelId), func(key string, room *Room, exists bool) bool {
		if !exists {
			return false
		}
		return room.remove(c)
	})
	if removed {
		rr.stats.Decr(stats.NumActiveRooms)
	}
	c.untrackRoom(channelId)
}

// RemoveAll detaches the connection from every room it holds. Called
// synchronously on termination.
func (rr *RoomRegistry) RemoveAll(c *Client) {
	for _, room := range c.roomsSnapshot() {
		rr.Unsubscribe(room.channelId, c)
	}
}

// Broadcast fans an event out to the channel's room, if loaded. A
// missing room means no subscriber is connected; the event is dropped.
func (rr *RoomRegistry) Broadcast(channelId int64, ev *ServerEvent, skip *Client) {
	if room, ok := rr.rooms.Get(roomKey(channelId)); ok {
		room.Broadcast(ev, skip)
	}
}

func (rr *RoomRegistry) Count() int {
	return rr.rooms.Count()
}
