package snowflake_test

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/koopa0/system-design/14-monster-tcg/pkg/snowflake"
)

// TestNew_InvalidNode 測試節點 ID 範圍
func TestNew_InvalidNode(t *testing.T) {
	_, err := snowflake.New(-1)
	assert.ErrorIs(t, err, snowflake.ErrInvalidNode)

	_, err = snowflake.New(snowflake.MaxNode + 1)
	assert.ErrorIs(t, err, snowflake.ErrInvalidNode)
}

// TestNext_Monotonic 測試 ID 遞增並保留節點與時間
func TestNext_Monotonic(t *testing.T) {
	g, err := snowflake.New(7)
	require.NoError(t, err)

	start := time.Now().Add(-time.Millisecond)
	prev := int64(0)
	for i := 0; i < 10000; i++ {
		id, err := g.Next()
		require.NoError(t, err)
		require.Greater(t, id, prev)
		prev = id
	}
	assert.Equal(t, int64(7), snowflake.Node(prev))
	assert.False(t, snowflake.Time(prev).Before(start.Truncate(time.Millisecond)))
}

// TestNext_ClockBackwards 測試時鐘回撥處理
func TestNext_ClockBackwards(t *testing.T) {
	now := time.UnixMilli(snowflake.Epoch + 10_000)
	g, err := snowflake.New(1,
		snowflake.WithMaxBackward(100*time.Millisecond),
		snowflake.WithClock(func() time.Time { return now }),
	)
	require.NoError(t, err)

	first, err := g.Next()
	require.NoError(t, err)

	now = now.Add(-50 * time.Millisecond)
	second, err := g.Next()
	require.NoError(t, err)
	assert.Greater(t, second, first)

	now = now.Add(-time.Second)
	_, err = g.Next()
	assert.ErrorIs(t, err, snowflake.ErrClockMovedBackwards)
}

// TestNext_Concurrent 測試並發產生不重複
func TestNext_Concurrent(t *testing.T) {
	g, err := snowflake.New(3)
	require.NoError(t, err)

	const workers, perWorker = 8, 1000
	var (
		mu  sync.Mutex
		wg  sync.WaitGroup
		ids = make(map[int64]struct{}, workers*perWorker)
	)
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < perWorker; i++ {
				id, err := g.Next()
				if err != nil {
					t.Error(err)
					return
				}
				mu.Lock()
				ids[id] = struct{}{}
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	assert.Len(t, ids, workers*perWorker)
}
