// Package cache holds the best-effort redis side of presence and unread
// bookkeeping. Callers log failures and move on; nothing here is
// load-bearing for message durability.
package cache

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// PresenceCache tracks last-active timestamps and the online flag in a
// fast store alongside the durable user row.
type PresenceCache interface {
	SetOnline(ctx context.Context, userId int64) error
	SetOffline(ctx context.Context, userId int64) error
	IsOnline(ctx context.Context, userId int64) (bool, error)
}

// UnreadCounter counts unread direct and channel messages per user.
type UnreadCounter interface {
	IncrDirect(ctx context.Context, userId, senderId int64) error
	DecrDirect(ctx context.Context, userId, senderId int64) error
	ResetDirect(ctx context.Context, userId, senderId int64) error
	IncrChannel(ctx context.Context, channelId, senderId int64, memberIds []int64) error
	ResetChannel(ctx context.Context, userId, channelId int64) error
}

// NewRedisClient connects to redis and verifies the connection.
func NewRedisClient(addr, password string, db int) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	if _, err := client.Ping(context.Background()).Result(); err != nil {
		return nil, fmt.Errorf("ping redis: %w", err)
	}

	return client, nil
}
