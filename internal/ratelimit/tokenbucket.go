// Package ratelimit 提供令牌桶限流器與路由 middleware
package ratelimit

import (
	"context"
	"sync"
	"time"
)

// Limiter 以 key 為單位判斷是否放行
type Limiter interface {
	Allow(ctx context.Context, key string) (bool, error)
}

// TokenBucket 單一令牌桶
type TokenBucket struct {
	mu         sync.Mutex
	capacity   float64
	tokens     float64
	refillRate float64 // 每秒補充數
	lastRefill time.Time
	now        func() time.Time
}

// NewTokenBucket 建立滿桶的令牌桶
func NewTokenBucket(capacity int64, refillRate float64) *TokenBucket {
	return newTokenBucket(capacity, refillRate, time.Now)
}

func newTokenBucket(capacity int64, refillRate float64, now func() time.Time) *TokenBucket {
	return &TokenBucket{
		capacity:   float64(capacity),
		tokens:     float64(capacity),
		refillRate: refillRate,
		lastRefill: now(),
		now:        now,
	}
}

// Allow 取出一個令牌，桶空時回傳 false
func (tb *TokenBucket) Allow() bool {
	tb.mu.Lock()
	defer tb.mu.Unlock()

	now := tb.now()
	if elapsed := now.Sub(tb.lastRefill).Seconds(); elapsed > 0 {
		tb.tokens = min(tb.capacity, tb.tokens+elapsed*tb.refillRate)
		tb.lastRefill = now
	}

	if tb.tokens >= 1 {
		tb.tokens--
		return true
	}
	return false
}

// Tokens 回傳目前令牌數（監控用）
func (tb *TokenBucket) Tokens() float64 {
	tb.mu.Lock()
	defer tb.mu.Unlock()
	return tb.tokens
}

// Local 單機版，每個 key 一個令牌桶
type Local struct {
	mu         sync.Mutex
	buckets    map[string]*TokenBucket
	capacity   int64
	refillRate float64
	now        func() time.Time
}

// NewLocal 建立單機限流器
func NewLocal(capacity int64, refillRate float64) *Local {
	return &Local{
		buckets:    make(map[string]*TokenBucket),
		capacity:   capacity,
		refillRate: refillRate,
		now:        time.Now,
	}
}

// Allow 實作 Limiter
func (l *Local) Allow(_ context.Context, key string) (bool, error) {
	l.mu.Lock()
	b, ok := l.buckets[key]
	if !ok {
		b = newTokenBucket(l.capacity, l.refillRate, l.now)
		l.buckets[key] = b
	}
	l.mu.Unlock()

	return b.Allow(), nil
}
