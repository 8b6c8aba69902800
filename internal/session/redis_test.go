package session_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/koopa0/system-design/14-monster-tcg/internal/session"
	"github.com/koopa0/system-design/14-monster-tcg/internal/testutils"
)

func TestRedisCache(t *testing.T) {
	env := testutils.SetupRedis(t)
	cache := session.NewRedisCache(env.RedisClient)
	ctx := context.Background()

	_, ok, err := cache.Lookup(ctx, "missing")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, cache.Save(ctx, "kienboec-mtcgToken", "kienboec", time.Hour))
	username, ok, err := cache.Lookup(ctx, "kienboec-mtcgToken")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "kienboec", username)

	ttl, err := env.RedisClient.TTL(ctx, "session:kienboec-mtcgToken").Result()
	require.NoError(t, err)
	assert.Greater(t, ttl, 59*time.Minute)

	require.NoError(t, cache.Delete(ctx, "kienboec-mtcgToken"))
	_, ok, err = cache.Lookup(ctx, "kienboec-mtcgToken")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestRedisCache_Unavailable(t *testing.T) {
	env := testutils.SetupRedis(t)
	cache := session.NewRedisCache(env.RedisClient)
	require.NoError(t, env.RedisClient.Close())

	_, ok, err := cache.Lookup(context.Background(), "token")
	assert.Error(t, err)
	assert.False(t, ok)
}
