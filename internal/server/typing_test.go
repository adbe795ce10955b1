package server

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTypingDirect_DeliversToOnlineReceiver(t *testing.T) {
	registry := NewConnectionRegistry()
	relay := NewTypingIndicatorRelay(registry, NewRoomRegistry(newTestStats()))

	sender := newTestClient(t, 1)
	receiver := newTestClient(t, 2)
	registry.Register(receiver)

	relay.Direct(sender, 2, true)

	ev := recvEvent(t, receiver)
	assert.Equal(t, EventTypingStart, ev.Event)
	assert.Equal(t, int64(1), ev.Data.(TypingNotice).UserId)

	relay.Direct(sender, 2, false)
	ev = recvEvent(t, receiver)
	assert.Equal(t, EventTypingStop, ev.Event)
}

func TestTypingDirect_OfflineReceiverDropsSilently(t *testing.T) {
	registry := NewConnectionRegistry()
	relay := NewTypingIndicatorRelay(registry, NewRoomRegistry(newTestStats()))

	sender := newTestClient(t, 1)

	relay.Direct(sender, 2, true)

	// no error event either: typing is fire-and-forget
	assertNoEvent(t, sender)
}

func TestTypingDirect_RequiresReceiver(t *testing.T) {
	registry := NewConnectionRegistry()
	relay := NewTypingIndicatorRelay(registry, NewRoomRegistry(newTestStats()))

	sender := newTestClient(t, 1)
	relay.Direct(sender, 0, true)

	err := recvError(t, sender)
	assert.Equal(t, CodeInvalidRequest, err.Code)
}

func TestTypingChannel_BroadcastsSkippingSender(t *testing.T) {
	registry := NewConnectionRegistry()
	rooms := NewRoomRegistry(newTestStats())
	relay := NewTypingIndicatorRelay(registry, rooms)

	sender := newTestClient(t, 1)
	member := newTestClient(t, 2)
	rooms.Subscribe(10, sender)
	rooms.Subscribe(10, member)

	relay.Channel(sender, 10, true)

	ev := recvEvent(t, member)
	assert.Equal(t, EventChannelTypingStart, ev.Event)
	notice := ev.Data.(TypingNotice)
	assert.Equal(t, int64(1), notice.UserId)
	assert.Equal(t, int64(10), notice.ChannelId)

	assertNoEvent(t, sender)
}
