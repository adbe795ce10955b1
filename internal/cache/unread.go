package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Unread counters expire after two weeks; the durable read state in the
// stores remains the source of truth.
const unreadExpireAt = 14 * 24 * time.Hour

type RedisUnreadCounter struct {
	redis *redis.Client
}

func NewRedisUnreadCounter(rds *redis.Client) *RedisUnreadCounter {
	return &RedisUnreadCounter{redis: rds}
}

func (u *RedisUnreadCounter) IncrDirect(ctx context.Context, userId, senderId int64) error {
	name := u.directKey(userId, senderId)
	pipe := u.redis.Pipeline()
	pipe.Incr(ctx, name)
	pipe.Expire(ctx, name, unreadExpireAt)
	_, err := pipe.Exec(ctx)
	return err
}

// DecrDirect takes one read message off the counter. The key is dropped
// when the count reaches zero, and a decrement against a missing key is
// cleaned up rather than left negative.
func (u *RedisUnreadCounter) DecrDirect(ctx context.Context, userId, senderId int64) error {
	name := u.directKey(userId, senderId)
	remaining, err := u.redis.Decr(ctx, name).Result()
	if err != nil {
		return err
	}
	if remaining <= 0 {
		return u.redis.Del(ctx, name).Err()
	}
	return nil
}

func (u *RedisUnreadCounter) ResetDirect(ctx context.Context, userId, senderId int64) error {
	return u.redis.Del(ctx, u.directKey(userId, senderId)).Err()
}

// IncrChannel bumps the channel counter for every member except the
// sender.
func (u *RedisUnreadCounter) IncrChannel(ctx context.Context, channelId, senderId int64, memberIds []int64) error {
	pipe := u.redis.Pipeline()
	for _, memberId := range memberIds {
		if memberId == senderId {
			continue
		}
		name := u.channelKey(memberId, channelId)
		pipe.Incr(ctx, name)
		pipe.Expire(ctx, name, unreadExpireAt)
	}
	_, err := pipe.Exec(ctx)
	return err
}

func (u *RedisUnreadCounter) ResetChannel(ctx context.Context, userId, channelId int64) error {
	return u.redis.Del(ctx, u.channelKey(userId, channelId)).Err()
}

func (u *RedisUnreadCounter) directKey(userId, senderId int64) string {
	return fmt.Sprintf("converse:unread:direct:%d:%d", userId, senderId)
}

func (u *RedisUnreadCounter) channelKey(userId, channelId int64) string {
	return fmt.Sprintf("converse:unread:channel:%d:%d", userId, channelId)
}
