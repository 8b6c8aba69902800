package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// tokenBucketScript 在 Redis 內原子地補充並扣除令牌
//
// KEYS[1]: 桶的 hash key
// ARGV[1]: 容量
// ARGV[2]: 每秒補充數
// ARGV[3]: 目前時間（毫秒）
// ARGV[4]: key 存活秒數
var tokenBucketScript = redis.NewScript(`
local key = KEYS[1]
local capacity = tonumber(ARGV[1])
local refill_rate = tonumber(ARGV[2])
local now = tonumber(ARGV[3])
local ttl = tonumber(ARGV[4])

local state = redis.call('HMGET', key, 'tokens', 'last_refill')
local tokens = tonumber(state[1]) or capacity
local last_refill = tonumber(state[2]) or now

local elapsed = math.max(0, now - last_refill)
tokens = math.min(capacity, tokens + elapsed * refill_rate / 1000)

local allowed = 0
if tokens >= 1 then
    tokens = tokens - 1
    allowed = 1
end

redis.call('HSET', key, 'tokens', tostring(tokens), 'last_refill', now)
redis.call('EXPIRE', key, ttl)
return allowed
`)

// DistributedTokenBucket 以 Redis 共享狀態的令牌桶，多個實例共用同一份計數
type DistributedTokenBucket struct {
	client     redis.Scripter
	prefix     string
	capacity   int64
	refillRate float64
	ttl        time.Duration
}

// NewDistributedTokenBucket 建立分散式令牌桶
func NewDistributedTokenBucket(client redis.Scripter, capacity int64, refillRate float64) *DistributedTokenBucket {
	return &DistributedTokenBucket{
		client:     client,
		prefix:     "ratelimit:",
		capacity:   capacity,
		refillRate: refillRate,
		ttl:        time.Hour,
	}
}

// Allow 實作 Limiter；Redis 錯誤時放行並回傳錯誤
func (d *DistributedTokenBucket) Allow(ctx context.Context, key string) (bool, error) {
	result, err := tokenBucketScript.Run(ctx, d.client,
		[]string{d.prefix + key},
		d.capacity,
		d.refillRate,
		time.Now().UnixMilli(),
		int64(d.ttl.Seconds()),
	).Int()
	if err != nil {
		return true, fmt.Errorf("redis token bucket: %w", err)
	}
	return result == 1, nil
}
