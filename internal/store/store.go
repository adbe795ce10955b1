package store

import (
	"context"
	"errors"
)

// ErrNotFound is returned when a referenced row does not exist.
var ErrNotFound = errors.New("not found")

// ErrDuplicate is returned when an insert violates a unique constraint.
var ErrDuplicate = errors.New("already exists")

// Member roles within a channel.
const (
	RoleAdmin  = "admin"
	RoleMember = "member"
)

// UserStore owns the identity rows. The routing core only reads and
// writes the online flag and last-active timestamp.
type UserStore interface {
	CreateUser(ctx context.Context, params CreateUserParams) (User, error)
	GetUserById(ctx context.Context, id int64) (User, error)
	GetUserByEmail(ctx context.Context, email string) (User, error)
	UpdateOnlineStatus(ctx context.Context, userId int64, online bool) error
}

// MessageStore is durable storage for direct messages.
type MessageStore interface {
	SaveDirectMessage(ctx context.Context, params SaveDirectMessageParams) (DirectMessage, error)
	GetConversation(ctx context.Context, userId, peerId int64, limit, offset int) ([]DirectMessage, error)
	GetConversations(ctx context.Context, userId int64) ([]Conversation, error)
	// MarkMessageRead marks a single message read and returns the number
	// of rows affected. The reader must be the message's receiver.
	MarkMessageRead(ctx context.Context, messageId, readerId int64) (int64, error)
	// MarkAllFromSenderRead marks every unread message from sender to
	// reader as read and returns the number of rows affected.
	MarkAllFromSenderRead(ctx context.Context, senderId, readerId int64) (int64, error)
}

// ChannelStore is durable storage of channel definitions, membership
// rows and channel messages.
type ChannelStore interface {
	CreateChannel(ctx context.Context, params CreateChannelParams) (Channel, error)
	GetChannelById(ctx context.Context, id int64) (Channel, error)
	GetUserChannels(ctx context.Context, userId int64) ([]Channel, error)
	IsMember(ctx context.Context, channelId, userId int64) (bool, error)
	// GetMemberRole returns ErrNotFound for a non-member.
	GetMemberRole(ctx context.Context, channelId, userId int64) (string, error)
	GetMemberIds(ctx context.Context, channelId int64) ([]int64, error)
	AddMember(ctx context.Context, channelId, userId int64, role string) error
	RemoveMember(ctx context.Context, channelId, userId int64) error
	SaveChannelMessage(ctx context.Context, params SaveChannelMessageParams) (ChannelMessage, error)
	GetChannelMessages(ctx context.Context, channelId int64, limit, offset int) ([]ChannelMessage, error)
	// MarkChannelMessagesRead records a read row for every message the
	// reader has not yet read, excluding the reader's own messages, and
	// returns the number of rows inserted.
	MarkChannelMessagesRead(ctx context.Context, channelId, readerId int64) (int64, error)
}
