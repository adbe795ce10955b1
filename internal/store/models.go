package store

import "time"

type User struct {
	Id           int64
	Username     string
	EmailAddress string
	PasswordHash string
	Online       bool
	LastActive   time.Time
	CreatedAt    time.Time
}

type DirectMessage struct {
	Id         int64
	SenderId   int64
	ReceiverId int64
	Content    string
	Type       string
	IsRead     bool
	CreatedAt  time.Time
}

type ChannelMessage struct {
	Id        int64
	ChannelId int64
	SenderId  int64
	Content   string
	Type      string
	CreatedAt time.Time
}

type Channel struct {
	Id          int64
	PublicId    string
	Name        string
	Description string
	Image       string
	CreatorId   int64
	IsPrivate   bool
	CreatedAt   time.Time
	// Role and UnreadCount are populated by GetUserChannels.
	Role        string
	UnreadCount int
}

type Conversation struct {
	PeerId      int64
	Username    string
	Online      bool
	LastMessage DirectMessage
	UnreadCount int
}

type CreateUserParams struct {
	Username     string
	EmailAddress string
	PasswordHash string
}

type SaveDirectMessageParams struct {
	SenderId   int64
	ReceiverId int64
	Content    string
	Type       string
}

type SaveChannelMessageParams struct {
	ChannelId int64
	SenderId  int64
	Content   string
	Type      string
}

type CreateChannelParams struct {
	Name        string
	Description string
	Image       string
	CreatorId   int64
	IsPrivate   bool
}
