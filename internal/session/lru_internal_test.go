package session

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLRUCache(t *testing.T) {
	ctx := context.Background()

	t.Run("evicts least recently used", func(t *testing.T) {
		c := NewLRUCache(2)
		require.NoError(t, c.Save(ctx, "a", "alice", 0))
		require.NoError(t, c.Save(ctx, "b", "bob", 0))

		// 讀取 a 使 b 成為最久未使用
		_, ok, _ := c.Lookup(ctx, "a")
		require.True(t, ok)
		require.NoError(t, c.Save(ctx, "c", "carol", 0))

		_, ok, _ = c.Lookup(ctx, "b")
		assert.False(t, ok)
		u, ok, _ := c.Lookup(ctx, "a")
		assert.True(t, ok)
		assert.Equal(t, "alice", u)
		assert.Equal(t, 2, c.Len())
	})

	t.Run("expires entries", func(t *testing.T) {
		now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
		c := NewLRUCache(10)
		c.now = func() time.Time { return now }

		require.NoError(t, c.Save(ctx, "t", "kienboec", time.Minute))
		_, ok, _ := c.Lookup(ctx, "t")
		assert.True(t, ok)

		now = now.Add(time.Minute)
		_, ok, _ = c.Lookup(ctx, "t")
		assert.False(t, ok)
		assert.Equal(t, 0, c.Len())
	})

	t.Run("update and delete", func(t *testing.T) {
		c := NewLRUCache(10)
		require.NoError(t, c.Save(ctx, "t", "old", 0))
		require.NoError(t, c.Save(ctx, "t", "new", 0))
		u, _, _ := c.Lookup(ctx, "t")
		assert.Equal(t, "new", u)
		assert.Equal(t, 1, c.Len())

		require.NoError(t, c.Delete(ctx, "t"))
		require.NoError(t, c.Delete(ctx, "missing"))
		_, ok, _ := c.Lookup(ctx, "t")
		assert.False(t, ok)
	})
}
