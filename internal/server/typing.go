package server

// TypingIndicatorRelay forwards transient typing signals. It never
// touches storage; an offline target or an empty room silently drops
// the event.
type TypingIndicatorRelay struct {
	registry *ConnectionRegistry
	rooms    *RoomRegistry
}

func NewTypingIndicatorRelay(registry *ConnectionRegistry, rooms *RoomRegistry) *TypingIndicatorRelay {
	return &TypingIndicatorRelay{
		registry: registry,
		rooms:    rooms,
	}
}

func (t *TypingIndicatorRelay) Direct(c *Client, receiverId int64, start bool) {
	if receiverId == 0 {
		c.queueEvent(errorEvent(ErrInvalidRequest("receiver_id is required")))
		return
	}

	receiver, ok := t.registry.Lookup(receiverId)
	if !ok {
		return
	}

	event := EventTypingStop
	if start {
		event = EventTypingStart
	}

	receiver.queueEvent(&ServerEvent{
		Event: event,
		Data:  TypingNotice{UserId: c.user.Id},
	})
}

func (t *TypingIndicatorRelay) Channel(c *Client, channelId int64, start bool) {
	if channelId == 0 {
		c.queueEvent(errorEvent(ErrInvalidRequest("channel_id is required")))
		return
	}

	event := EventChannelTypingStop
	if start {
		event = EventChannelTypingStart
	}

	t.rooms.Broadcast(channelId, &ServerEvent{
		Event: event,
		Data:  TypingNotice{UserId: c.user.Id, ChannelId: channelId},
	}, c)
}
