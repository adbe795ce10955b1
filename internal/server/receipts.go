package server

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/npinheiro/converse/internal/cache"
	"github.com/npinheiro/converse/internal/store"
)

// ReadReceiptRelay records read state durably, then notifies the
// original sender's connection if one is live. No notification is sent
// to an offline sender; the read state is still observable on the next
// historical fetch.
type ReadReceiptRelay struct {
	messages store.MessageStore
	channels store.ChannelStore
	registry *ConnectionRegistry
	rooms    *RoomRegistry
	unread   cache.UnreadCounter
	log      *zap.Logger
	timeout  time.Duration
}

func NewReadReceiptRelay(messages store.MessageStore, channels store.ChannelStore,
	registry *ConnectionRegistry, rooms *RoomRegistry, unread cache.UnreadCounter,
	log *zap.Logger, timeout time.Duration) *ReadReceiptRelay {
	return &ReadReceiptRelay{
		messages: messages,
		channels: channels,
		registry: registry,
		rooms:    rooms,
		unread:   unread,
		log:      log,
		timeout:  timeout,
	}
}

// MarkRead handles a direct-message read receipt. With a message id it
// marks that one message; with only a counterpart sender id it marks
// every unread message from that sender, idempotently.
func (rr *ReadReceiptRelay) MarkRead(c *Client, req MarkRead) {
	if req.MessageId == nil && req.SenderId == nil {
		c.queueEvent(errorEvent(ErrInvalidRequest("message_id or sender_id is required")))
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), rr.timeout)
	defer cancel()

	switch {
	case req.MessageId != nil:
		affected, err := rr.messages.MarkMessageRead(ctx, *req.MessageId, c.user.Id)
		if err != nil {
			rr.log.Error("mark message read", zap.Int64("message_id", *req.MessageId), zap.Error(err))
			c.queueEvent(errorEvent(storageError(err)))
			return
		}
		if affected == 0 {
			// Marking a message that does not exist yet, or is not
			// addressed to the reader, fails rather than silently
			// succeeding.
			c.queueEvent(errorEvent(ErrNotFound("message not found")))
			return
		}
	default:
		if _, err := rr.messages.MarkAllFromSenderRead(ctx, *req.SenderId, c.user.Id); err != nil {
			rr.log.Error("mark all read", zap.Int64("sender_id", *req.SenderId), zap.Error(err))
			c.queueEvent(errorEvent(storageError(err)))
			return
		}
	}

	if req.SenderId != nil {
		// A single-message read takes one off the counter; only the
		// bulk form clears it.
		var err error
		if req.MessageId != nil {
			err = rr.unread.DecrDirect(ctx, c.user.Id, *req.SenderId)
		} else {
			err = rr.unread.ResetDirect(ctx, c.user.Id, *req.SenderId)
		}
		if err != nil {
			rr.log.Warn("update unread counter", zap.Int64("sender_id", *req.SenderId), zap.Error(err))
		}

		if sender, ok := rr.registry.Lookup(*req.SenderId); ok {
			sender.queueEvent(&ServerEvent{
				Event: EventMessageRead,
				Data: ReadReceipt{
					By:        c.user.Id,
					MessageId: req.MessageId,
					Timestamp: Now(),
				},
			})
		}
	}
}

// MarkChannelRead records a read row for every unread message in the
// channel, then tells the rest of the room.
func (rr *ReadReceiptRelay) MarkChannelRead(c *Client, req ChannelRead) {
	if req.ChannelId == 0 {
		c.queueEvent(errorEvent(ErrInvalidRequest("channel_id is required")))
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), rr.timeout)
	defer cancel()

	if _, err := rr.channels.MarkChannelMessagesRead(ctx, req.ChannelId, c.user.Id); err != nil {
		rr.log.Error("mark channel read", zap.Int64("channel_id", req.ChannelId), zap.Error(err))
		c.queueEvent(errorEvent(storageError(err)))
		return
	}

	if err := rr.unread.ResetChannel(ctx, c.user.Id, req.ChannelId); err != nil {
		rr.log.Warn("reset channel unread", zap.Int64("channel_id", req.ChannelId), zap.Error(err))
	}

	rr.rooms.Broadcast(req.ChannelId, &ServerEvent{
		Event: EventChannelRead,
		Data: ChannelReadReceipt{
			ChannelId: req.ChannelId,
			UserId:    c.user.Id,
			Timestamp: Now(),
		},
	}, c)
}
