package session

import (
	"container/list"
	"context"
	"sync"
	"time"
)

// LRUCache 單機 token 快取，容量滿時淘汰最久未使用的 token
//
// 未啟用 Redis 時使用；多個實例之間不共享。
type LRUCache struct {
	capacity int
	items    map[string]*list.Element
	order    *list.List // 前端為最近使用
	mu       sync.Mutex
	now      func() time.Time
}

type lruEntry struct {
	token    string
	username string
	expires  time.Time // 零值表示不過期
}

// NewLRUCache 建立容量為 capacity 的快取
func NewLRUCache(capacity int) *LRUCache {
	if capacity <= 0 {
		capacity = 1
	}
	return &LRUCache{
		capacity: capacity,
		items:    make(map[string]*list.Element),
		order:    list.New(),
		now:      time.Now,
	}
}

// Save 寫入或更新 token；ttl 為 0 表示不過期
func (c *LRUCache) Save(_ context.Context, token, username string, ttl time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	var expires time.Time
	if ttl > 0 {
		expires = c.now().Add(ttl)
	}

	if elem, ok := c.items[token]; ok {
		e := elem.Value.(*lruEntry)
		e.username = username
		e.expires = expires
		c.order.MoveToFront(elem)
		return nil
	}

	c.items[token] = c.order.PushFront(&lruEntry{token: token, username: username, expires: expires})
	if c.order.Len() > c.capacity {
		c.evict()
	}
	return nil
}

// Lookup 過期的 token 視為未命中並移除
func (c *LRUCache) Lookup(_ context.Context, token string) (string, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	elem, ok := c.items[token]
	if !ok {
		return "", false, nil
	}
	e := elem.Value.(*lruEntry)
	if !e.expires.IsZero() && !c.now().Before(e.expires) {
		c.remove(elem)
		return "", false, nil
	}
	c.order.MoveToFront(elem)
	return e.username, true, nil
}

// Delete 移除 token
func (c *LRUCache) Delete(_ context.Context, token string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if elem, ok := c.items[token]; ok {
		c.remove(elem)
	}
	return nil
}

// Len 目前快取的 token 數
func (c *LRUCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.order.Len()
}

func (c *LRUCache) evict() {
	if elem := c.order.Back(); elem != nil {
		c.remove(elem)
	}
}

func (c *LRUCache) remove(elem *list.Element) {
	c.order.Remove(elem)
	delete(c.items, elem.Value.(*lruEntry).token)
}
