package types

import (
	"time"
)

type User struct {
	Id           int64     `json:"id"`
	Username     string    `json:"username"`
	EmailAddress string    `json:"email_address,omitempty"`
	Password     string    `json:"-"`
	Online       bool      `json:"online"`
	LastActive   time.Time `json:"last_active,omitempty"`
	CreatedAt    time.Time `json:"created_at,omitempty"`
}

type DirectMessage struct {
	Id         int64     `json:"id"`
	SenderId   int64     `json:"sender_id"`
	ReceiverId int64     `json:"receiver_id"`
	Content    string    `json:"content"`
	Type       string    `json:"type"`
	IsRead     bool      `json:"is_read"`
	CreatedAt  time.Time `json:"created_at"`
}

type ChannelMessage struct {
	Id        int64     `json:"id"`
	ChannelId int64     `json:"channel_id"`
	SenderId  int64     `json:"sender_id"`
	Content   string    `json:"content"`
	Type      string    `json:"type"`
	CreatedAt time.Time `json:"created_at"`
}

type Channel struct {
	Id          int64     `json:"id"`
	PublicId    string    `json:"public_id"`
	Name        string    `json:"name"`
	Description string    `json:"description,omitempty"`
	Image       string    `json:"image,omitempty"`
	CreatorId   int64     `json:"creator_id"`
	IsPrivate   bool      `json:"is_private"`
	Role        string    `json:"role,omitempty"`
	UnreadCount int       `json:"unread_count"`
	CreatedAt   time.Time `json:"created_at,omitempty"`
}

// Conversation is the latest direct message exchanged with a counterpart
// plus the caller's unread count for that counterpart.
type Conversation struct {
	UserId      int64         `json:"user_id"`
	Username    string        `json:"username"`
	Online      bool          `json:"online"`
	LastMessage DirectMessage `json:"last_message"`
	UnreadCount int           `json:"unread_count"`
}
