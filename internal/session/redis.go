// Package session 以 Redis 快取登入 token
package session

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const keyPrefix = "session:"

// RedisCache token -> 帳號，依 TTL 自動過期
type RedisCache struct {
	client redis.Cmdable
}

// NewRedisCache 建立 Redis token 快取
func NewRedisCache(client redis.Cmdable) *RedisCache {
	return &RedisCache{client: client}
}

func key(token string) string {
	return keyPrefix + token
}

// Save 寫入 token；ttl 為 0 表示不過期
func (c *RedisCache) Save(ctx context.Context, token, username string, ttl time.Duration) error {
	if err := c.client.Set(ctx, key(token), username, ttl).Err(); err != nil {
		return fmt.Errorf("save session: %w", err)
	}
	return nil
}

// Lookup 未命中時回傳 ok=false
func (c *RedisCache) Lookup(ctx context.Context, token string) (string, bool, error) {
	username, err := c.client.Get(ctx, key(token)).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("lookup session: %w", err)
	}
	return username, true, nil
}

// Delete 刪除 token
func (c *RedisCache) Delete(ctx context.Context, token string) error {
	if err := c.client.Del(ctx, key(token)).Err(); err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	return nil
}
