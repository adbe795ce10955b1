package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Online keys carry a TTL so a crashed process does not leave users
// pinned online forever.
const onlineExpireAt = 5 * time.Minute

type RedisPresenceCache struct {
	redis *redis.Client
}

func NewRedisPresenceCache(rds *redis.Client) *RedisPresenceCache {
	return &RedisPresenceCache{redis: rds}
}

func (p *RedisPresenceCache) SetOnline(ctx context.Context, userId int64) error {
	pipe := p.redis.Pipeline()
	pipe.Set(ctx, p.onlineKey(userId), 1, onlineExpireAt)
	pipe.Set(ctx, p.lastActiveKey(userId), time.Now().UnixMilli(), 0)
	_, err := pipe.Exec(ctx)
	return err
}

func (p *RedisPresenceCache) SetOffline(ctx context.Context, userId int64) error {
	pipe := p.redis.Pipeline()
	pipe.Del(ctx, p.onlineKey(userId))
	pipe.Set(ctx, p.lastActiveKey(userId), time.Now().UnixMilli(), 0)
	_, err := pipe.Exec(ctx)
	return err
}

func (p *RedisPresenceCache) IsOnline(ctx context.Context, userId int64) (bool, error) {
	n, err := p.redis.Exists(ctx, p.onlineKey(userId)).Result()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func (p *RedisPresenceCache) onlineKey(userId int64) string {
	return fmt.Sprintf("converse:presence:online:%d", userId)
}

func (p *RedisPresenceCache) lastActiveKey(userId int64) string {
	return fmt.Sprintf("converse:presence:last_active:%d", userId)
}
