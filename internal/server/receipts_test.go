package server

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"github.com/npinheiro/converse/internal/cache"
	"github.com/npinheiro/converse/internal/store"
	"github.com/npinheiro/converse/internal/testutil"
)

type receiptsFixture struct {
	relay    *ReadReceiptRelay
	registry *ConnectionRegistry
	rooms    *RoomRegistry
	messages *store.MockMessageStore
	channels *store.MockChannelStore
	unread   *cache.MockUnreadCounter
}

func newReceiptsFixture(t *testing.T) *receiptsFixture {
	f := &receiptsFixture{
		registry: NewConnectionRegistry(),
		rooms:    NewRoomRegistry(newTestStats()),
		messages: &store.MockMessageStore{},
		channels: &store.MockChannelStore{},
		unread:   &cache.MockUnreadCounter{},
	}
	f.relay = NewReadReceiptRelay(f.messages, f.channels, f.registry, f.rooms,
		f.unread, testutil.TestLogger(t), testTimeout)
	return f
}

func int64Ptr(v int64) *int64 { return &v }

func TestMarkRead_SingleMessageNotifiesSender(t *testing.T) {
	f := newReceiptsFixture(t)

	reader := newTestClient(t, 2)
	sender := newTestClient(t, 1)
	f.registry.Register(sender)

	f.messages.On("MarkMessageRead", mock.Anything, int64(100), int64(2)).Return(int64(1), nil)
	f.unread.On("DecrDirect", mock.Anything, int64(2), int64(1)).Return(nil)

	f.relay.MarkRead(reader, MarkRead{MessageId: int64Ptr(100), SenderId: int64Ptr(1)})

	receipt := recvEvent(t, sender)
	assert.Equal(t, EventMessageRead, receipt.Event)
	data := receipt.Data.(ReadReceipt)
	assert.Equal(t, int64(2), data.By)
	assert.Equal(t, int64(100), *data.MessageId)

	assertNoEvent(t, reader)
	f.messages.AssertExpectations(t)
	f.unread.AssertExpectations(t)
	// reading one message must not clear the whole per-peer counter
	f.unread.AssertNotCalled(t, "ResetDirect", mock.Anything, mock.Anything, mock.Anything)
}

func TestMarkRead_UnknownMessageFails(t *testing.T) {
	f := newReceiptsFixture(t)

	reader := newTestClient(t, 2)
	sender := newTestClient(t, 1)
	f.registry.Register(sender)

	// zero rows affected: the message does not exist yet or is not
	// addressed to the reader
	f.messages.On("MarkMessageRead", mock.Anything, int64(100), int64(2)).Return(int64(0), nil)

	f.relay.MarkRead(reader, MarkRead{MessageId: int64Ptr(100), SenderId: int64Ptr(1)})

	err := recvError(t, reader)
	assert.Equal(t, CodeNotFound, err.Code)
	assertNoEvent(t, sender)
}

func TestMarkRead_BulkIsIdempotent(t *testing.T) {
	f := newReceiptsFixture(t)

	reader := newTestClient(t, 2)
	sender := newTestClient(t, 1)
	f.registry.Register(sender)

	f.messages.On("MarkAllFromSenderRead", mock.Anything, int64(1), int64(2)).
		Return(int64(3), nil).Once()
	f.messages.On("MarkAllFromSenderRead", mock.Anything, int64(1), int64(2)).
		Return(int64(0), nil).Once()
	f.unread.On("ResetDirect", mock.Anything, int64(2), int64(1)).Return(nil)

	f.relay.MarkRead(reader, MarkRead{SenderId: int64Ptr(1)})
	f.relay.MarkRead(reader, MarkRead{SenderId: int64Ptr(1)})

	for i := 0; i < 2; i++ {
		receipt := recvEvent(t, sender)
		assert.Equal(t, EventMessageRead, receipt.Event)
		assert.Nil(t, receipt.Data.(ReadReceipt).MessageId)
	}

	assertNoEvent(t, reader)
	f.messages.AssertExpectations(t)
}

func TestMarkRead_RequiresTarget(t *testing.T) {
	f := newReceiptsFixture(t)
	reader := newTestClient(t, 2)

	f.relay.MarkRead(reader, MarkRead{})

	err := recvError(t, reader)
	assert.Equal(t, CodeInvalidRequest, err.Code)
}

func TestMarkRead_OfflineSenderGetsNoReceipt(t *testing.T) {
	f := newReceiptsFixture(t)
	reader := newTestClient(t, 2)

	f.messages.On("MarkAllFromSenderRead", mock.Anything, int64(1), int64(2)).Return(int64(2), nil)
	f.unread.On("ResetDirect", mock.Anything, int64(2), int64(1)).Return(nil)

	f.relay.MarkRead(reader, MarkRead{SenderId: int64Ptr(1)})

	assertNoEvent(t, reader)
}

func TestMarkRead_StorageFailure(t *testing.T) {
	f := newReceiptsFixture(t)
	reader := newTestClient(t, 2)

	f.messages.On("MarkAllFromSenderRead", mock.Anything, int64(1), int64(2)).
		Return(int64(0), errors.New("db down"))

	f.relay.MarkRead(reader, MarkRead{SenderId: int64Ptr(1)})

	err := recvError(t, reader)
	assert.Equal(t, CodeStorageFailure, err.Code)
	f.unread.AssertNotCalled(t, "ResetDirect", mock.Anything, mock.Anything, mock.Anything)
}

func TestMarkChannelRead_BroadcastsToRoom(t *testing.T) {
	f := newReceiptsFixture(t)

	reader := newTestClient(t, 2)
	member := newTestClient(t, 1)
	f.rooms.Subscribe(10, reader)
	f.rooms.Subscribe(10, member)

	f.channels.On("MarkChannelMessagesRead", mock.Anything, int64(10), int64(2)).Return(int64(4), nil)
	f.unread.On("ResetChannel", mock.Anything, int64(2), int64(10)).Return(nil)

	f.relay.MarkChannelRead(reader, ChannelRead{ChannelId: 10})

	receipt := recvEvent(t, member)
	assert.Equal(t, EventChannelRead, receipt.Event)
	data := receipt.Data.(ChannelReadReceipt)
	assert.Equal(t, int64(10), data.ChannelId)
	assert.Equal(t, int64(2), data.UserId)

	assertNoEvent(t, reader)
	f.channels.AssertExpectations(t)
}

func TestMarkChannelRead_RequiresChannel(t *testing.T) {
	f := newReceiptsFixture(t)
	reader := newTestClient(t, 2)

	f.relay.MarkChannelRead(reader, ChannelRead{})

	err := recvError(t, reader)
	assert.Equal(t, CodeInvalidRequest, err.Code)
}
