package ratelimit_test

import (
	"context"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/koopa0/system-design/14-monster-tcg/internal/ratelimit"
	"github.com/koopa0/system-design/14-monster-tcg/internal/testutils"
)

// TestDistributedTokenBucket 使用真實 Redis 測試共享計數
func TestDistributedTokenBucket(t *testing.T) {
	env := testutils.SetupRedis(t)
	client := env.RedisClient
	ctx := context.Background()

	// 兩個實例共用同一個 Redis
	a := ratelimit.NewDistributedTokenBucket(client, 3, 0.001)
	b := ratelimit.NewDistributedTokenBucket(client, 3, 0.001)

	results := make([]bool, 0, 4)
	for _, l := range []*ratelimit.DistributedTokenBucket{a, b, a, b} {
		ok, err := l.Allow(ctx, "login")
		require.NoError(t, err)
		results = append(results, ok)
	}
	assert.Equal(t, []bool{true, true, true, false}, results)

	ok, err := a.Allow(ctx, "other")
	require.NoError(t, err)
	assert.True(t, ok)

	ttl, err := client.TTL(ctx, "ratelimit:login").Result()
	require.NoError(t, err)
	assert.Greater(t, ttl, time.Minute)
}

// TestDistributedTokenBucket_FailOpen 測試 Redis 不可用時放行
func TestDistributedTokenBucket_FailOpen(t *testing.T) {
	client := redis.NewClient(&redis.Options{Addr: "127.0.0.1:1", DialTimeout: 50 * time.Millisecond, MaxRetries: -1})
	defer client.Close()

	l := ratelimit.NewDistributedTokenBucket(client, 1, 1)
	ok, err := l.Allow(context.Background(), "k")
	assert.Error(t, err)
	assert.True(t, ok)
}
