package server

import (
	"encoding/json"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/npinheiro/converse/internal/types"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingInterval   = (pongWait * 9) / 10
	maxMessageSize = 4096
	sendBufferSize = 256
)

// SessionState is the lifecycle of one identity-connection binding.
// Only Admitted sessions may route events.
type SessionState int32

const (
	StateUnauthenticated SessionState = iota
	StateAdmitted
	StateTerminated
)

type Client struct {
	// session distinguishes this binding from a later one for the same
	// identity, so an evicted connection cannot unregister its
	// replacement.
	session string
	conn    *websocket.Conn
	srv     *ChatServer
	log     *zap.Logger
	user    types.User
	send    chan *ServerEvent

	rooms   map[int64]*Room
	roomsMu sync.RWMutex

	state    atomic.Int32
	stop     chan struct{}
	stopOnce sync.Once
}

func NewClient(user types.User, conn *websocket.Conn, srv *ChatServer, log *zap.Logger) *Client {
	session := uuid.NewString()
	return &Client{
		session: session,
		conn:    conn,
		srv:     srv,
		log:     log.With(zap.Int64("user_id", user.Id), zap.String("session", session)),
		user:    user,
		send:    make(chan *ServerEvent, sendBufferSize),
		rooms:   make(map[int64]*Room),
		stop:    make(chan struct{}),
	}
}

func (c *Client) State() SessionState {
	return SessionState(c.state.Load())
}

func (c *Client) setState(s SessionState) {
	c.state.Store(int32(s))
}

// transition atomically moves from one state to another and reports
// whether the move happened.
func (c *Client) transition(from, to SessionState) bool {
	return c.state.CompareAndSwap(int32(from), int32(to))
}

func (c *Client) WriteLoop() {
	ticker := time.NewTicker(pingInterval)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case ev, ok := <-c.send:
			if !ok {
				return
			}

			bytes, err := json.Marshal(ev)
			if err != nil {
				c.log.Error("serialize event", zap.Error(err))
				continue
			}

			if !c.writeMessage(websocket.TextMessage, bytes) {
				return
			}
		case <-c.stop:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			c.conn.WriteMessage(websocket.CloseMessage, nil)
			return
		case <-ticker.C:
			if !c.writeMessage(websocket.PingMessage, nil) {
				return
			}
		}
	}
}

func (c *Client) ReadLoop() {
	defer func() {
		c.conn.Close()
		c.srv.Terminate(c)
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, raw, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure,
				websocket.CloseNormalClosure) {
				c.log.Warn("read message", zap.Error(err))
			}
			break
		}

		var ev ClientEvent
		if err := json.Unmarshal(raw, &ev); err != nil {
			c.queueEvent(errorEvent(ErrInvalidRequest("invalid event format")))
			continue
		}

		c.dispatch(&ev)
	}
}

// dispatch routes one inbound event to its handler. Events are handled
// sequentially per connection, which keeps a sender's persistence calls
// ordered with respect to each other.
func (c *Client) dispatch(ev *ClientEvent) {
	if c.State() != StateAdmitted {
		c.queueEvent(errorEvent(ErrInvalidState()))
		return
	}

	switch ev.Event {
	case EventMessageSend:
		var req SendMessage
		if !c.decode(ev.Data, &req) {
			return
		}
		c.srv.router.SendDirect(c, req)
	case EventMessageRead:
		var req MarkRead
		if !c.decode(ev.Data, &req) {
			return
		}
		c.srv.receipts.MarkRead(c, req)
	case EventTypingStart, EventTypingStop:
		var req Typing
		if !c.decode(ev.Data, &req) {
			return
		}
		c.srv.typing.Direct(c, req.ReceiverId, ev.Event == EventTypingStart)
	case EventChannelMessage:
		var req SendChannelMessage
		if !c.decode(ev.Data, &req) {
			return
		}
		c.srv.router.SendChannel(c, req)
	case EventChannelRead:
		var req ChannelRead
		if !c.decode(ev.Data, &req) {
			return
		}
		c.srv.receipts.MarkChannelRead(c, req)
	case EventChannelTypingStart, EventChannelTypingStop:
		var req ChannelTyping
		if !c.decode(ev.Data, &req) {
			return
		}
		c.srv.typing.Channel(c, req.ChannelId, ev.Event == EventChannelTypingStart)
	default:
		c.queueEvent(errorEvent(ErrInvalidRequest("unknown event: " + ev.Event)))
	}
}

func (c *Client) decode(data json.RawMessage, v any) bool {
	if err := json.Unmarshal(data, v); err != nil {
		c.queueEvent(errorEvent(ErrInvalidRequest("invalid event payload")))
		return false
	}
	return true
}

// queueEvent hands an event to the write pump without blocking. A full
// buffer drops the event; delivery is best-effort.
func (c *Client) queueEvent(ev *ServerEvent) bool {
	select {
	case <-c.stop:
		return false
	default:
	}

	select {
	case c.send <- ev:
		return true
	default:
		c.log.Warn("send buffer full, dropping event", zap.String("event", ev.Event))
		return false
	}
}

func (c *Client) writeMessage(msgType int, msg []byte) bool {
	c.conn.SetWriteDeadline(time.Now().Add(writeWait))

	if err := c.conn.WriteMessage(msgType, msg); err != nil {
		if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure,
			websocket.CloseNormalClosure) {
			c.log.Warn("write message", zap.Error(err))
		}
		return false
	}

	return true
}

func (c *Client) stopClient() {
	c.stopOnce.Do(func() {
		close(c.stop)
	})
}

func (c *Client) trackRoom(r *Room) {
	c.roomsMu.Lock()
	defer c.roomsMu.Unlock()
	c.rooms[r.channelId] = r
}

func (c *Client) untrackRoom(channelId int64) {
	c.roomsMu.Lock()
	defer c.roomsMu.Unlock()
	delete(c.rooms, channelId)
}

func (c *Client) roomsSnapshot() []*Room {
	c.roomsMu.RLock()
	defer c.roomsMu.RUnlock()

	rooms := make([]*Room, 0, len(c.rooms))
	for _, r := range c.rooms {
		rooms = append(rooms, r)
	}
	return rooms
}
