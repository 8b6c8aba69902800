// Package snowflake 產生依時間遞增的 64-bit ID
//
// 卡包以此 ID 為主鍵，購買時取最小 ID 即為最早建立的卡包。
//
//	64-bit = [1-bit 符號][41-bit 時間戳][10-bit 節點][12-bit 序列號]
package snowflake

import (
	"errors"
	"fmt"
	"sync"
	"time"
)

const (
	// Epoch 2024-01-01 00:00:00 UTC（毫秒）
	Epoch int64 = 1704067200000

	nodeBits     = 10
	sequenceBits = 12

	MaxNode     = (1 << nodeBits) - 1
	maxSequence = (1 << sequenceBits) - 1

	nodeShift      = sequenceBits
	timestampShift = sequenceBits + nodeBits

	defaultMaxBackward = 5 * time.Second
)

var (
	// ErrInvalidNode 節點 ID 超出範圍
	ErrInvalidNode = errors.New("snowflake: node must be between 0 and 1023")
	// ErrClockMovedBackwards 時鐘回撥超過容忍值
	ErrClockMovedBackwards = errors.New("snowflake: clock moved backwards")
)

// Generator 並發安全的 ID 產生器
type Generator struct {
	mu          sync.Mutex
	node        int64
	sequence    int64
	last        int64
	maxBackward int64
	now         func() time.Time
}

// Option 設定 Generator
type Option func(*Generator)

// WithMaxBackward 設定可容忍的時鐘回撥
func WithMaxBackward(d time.Duration) Option {
	return func(g *Generator) { g.maxBackward = d.Milliseconds() }
}

// WithClock 替換時間來源，測試用
func WithClock(now func() time.Time) Option {
	return func(g *Generator) { g.now = now }
}

// New 建立節點 ID 為 node 的產生器
func New(node int64, opts ...Option) (*Generator, error) {
	if node < 0 || node > MaxNode {
		return nil, fmt.Errorf("%w: got %d", ErrInvalidNode, node)
	}
	g := &Generator{
		node:        node,
		maxBackward: defaultMaxBackward.Milliseconds(),
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(g)
	}
	return g, nil
}

// Next 產生下一個 ID
//
// 小幅時鐘回撥時沿用上次時間戳繼續遞增序列號；超過容忍值則回傳錯誤。
func (g *Generator) Next() (int64, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	ts := g.now().UnixMilli()
	if ts < g.last {
		offset := g.last - ts
		if offset > g.maxBackward {
			return 0, fmt.Errorf("%w: offset=%dms", ErrClockMovedBackwards, offset)
		}
		ts = g.last
	}

	if ts == g.last {
		g.sequence = (g.sequence + 1) & maxSequence
		if g.sequence == 0 {
			ts = g.waitNext(g.last)
		}
	} else {
		g.sequence = 0
	}
	g.last = ts

	return ((ts - Epoch) << timestampShift) | (g.node << nodeShift) | g.sequence, nil
}

func (g *Generator) waitNext(last int64) int64 {
	ts := g.now().UnixMilli()
	for ts <= last {
		time.Sleep(10 * time.Microsecond)
		ts = g.now().UnixMilli()
	}
	return ts
}

// Time 回傳 ID 內含的建立時間
func Time(id int64) time.Time {
	return time.UnixMilli((id >> timestampShift) + Epoch)
}

// Node 回傳 ID 內含的節點 ID
func Node(id int64) int64 {
	return (id >> nodeShift) & MaxNode
}
