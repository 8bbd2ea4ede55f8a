package cache

import (
	"container/list"
	"sync"
	"time"
)

// LRUCache evicts the least recently used entry past maxSize and any entry
// idle for longer than ttl. Every Get refreshes the entry's deadline.
type LRUCache[T any] struct {
	mu      sync.Mutex
	maxSize int
	ttl     time.Duration
	items   map[string]*list.Element
	lru     *list.List
	onEvict func(key string, data T)
	now     func() time.Time
}

type cacheItem[T any] struct {
	key       string
	data      T
	expiresAt time.Time
}

type Option[T any] func(*LRUCache[T])

// WithEvictionHandler registers fn for entries dropped by capacity, expiry
// or Delete. It runs after the cache lock is released.
func WithEvictionHandler[T any](fn func(key string, data T)) Option[T] {
	return func(c *LRUCache[T]) { c.onEvict = fn }
}

func WithClock[T any](now func() time.Time) Option[T] {
	return func(c *LRUCache[T]) { c.now = now }
}

// NewLRUCache creates a new LRU cache with TTL
func NewLRUCache[T any](maxSize int, ttl time.Duration, opts ...Option[T]) *LRUCache[T] {
	c := &LRUCache[T]{
		maxSize: maxSize,
		ttl:     ttl,
		items:   make(map[string]*list.Element),
		lru:     list.New(),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Get retrieves a value from the cache
func (c *LRUCache[T]) Get(key string) (T, bool) {
	c.mu.Lock()
	data, ok, evicted := c.getLocked(key)
	c.mu.Unlock()
	c.notify(evicted)
	return data, ok
}

// GetOrCreate returns the cached value for key, building and storing one
// with create when there is none. create runs under the cache lock.
func (c *LRUCache[T]) GetOrCreate(key string, create func() T) T {
	c.mu.Lock()
	data, ok, evicted := c.getLocked(key)
	if !ok {
		data = create()
		evicted = append(evicted, c.setLocked(key, data)...)
	}
	c.mu.Unlock()
	c.notify(evicted)
	return data
}

// Set stores a value in the cache
func (c *LRUCache[T]) Set(key string, data T) {
	c.mu.Lock()
	evicted := c.setLocked(key, data)
	c.mu.Unlock()
	c.notify(evicted)
}

// Delete removes a key from the cache
func (c *LRUCache[T]) Delete(key string) {
	c.mu.Lock()
	var evicted []*cacheItem[T]
	if elem, exists := c.items[key]; exists {
		evicted = append(evicted, c.removeElement(elem))
	}
	c.mu.Unlock()
	c.notify(evicted)
}

// CleanExpired removes all expired entries and returns count of removed items
func (c *LRUCache[T]) CleanExpired() int {
	c.mu.Lock()
	now := c.now()
	var evicted []*cacheItem[T]
	for elem := c.lru.Back(); elem != nil; {
		prev := elem.Prev()
		if item := elem.Value.(*cacheItem[T]); now.After(item.expiresAt) {
			evicted = append(evicted, c.removeElement(elem))
		}
		elem = prev
	}
	c.mu.Unlock()
	c.notify(evicted)
	return len(evicted)
}

// Purge drops every entry, e.g. on shutdown.
func (c *LRUCache[T]) Purge() int {
	c.mu.Lock()
	evicted := make([]*cacheItem[T], 0, c.lru.Len())
	for elem := c.lru.Back(); elem != nil; {
		prev := elem.Prev()
		evicted = append(evicted, c.removeElement(elem))
		elem = prev
	}
	c.mu.Unlock()
	c.notify(evicted)
	return len(evicted)
}

// Size returns the current number of items in the cache
func (c *LRUCache[T]) Size() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.items)
}

func (c *LRUCache[T]) getLocked(key string) (T, bool, []*cacheItem[T]) {
	var zero T
	elem, exists := c.items[key]
	if !exists {
		return zero, false, nil
	}

	item := elem.Value.(*cacheItem[T])
	now := c.now()
	if now.After(item.expiresAt) {
		return zero, false, []*cacheItem[T]{c.removeElement(elem)}
	}

	item.expiresAt = now.Add(c.ttl)
	c.lru.MoveToFront(elem)
	return item.data, true, nil
}

func (c *LRUCache[T]) setLocked(key string, data T) []*cacheItem[T] {
	item := &cacheItem[T]{
		key:       key,
		data:      data,
		expiresAt: c.now().Add(c.ttl),
	}

	if elem, exists := c.items[key]; exists {
		old := elem.Value.(*cacheItem[T])
		elem.Value = item
		c.lru.MoveToFront(elem)
		return []*cacheItem[T]{old}
	}

	elem := c.lru.PushFront(item)
	c.items[key] = elem

	var evicted []*cacheItem[T]
	for c.maxSize > 0 && c.lru.Len() > c.maxSize {
		evicted = append(evicted, c.removeElement(c.lru.Back()))
	}
	return evicted
}

func (c *LRUCache[T]) removeElement(elem *list.Element) *cacheItem[T] {
	item := elem.Value.(*cacheItem[T])
	delete(c.items, item.key)
	c.lru.Remove(elem)
	return item
}

func (c *LRUCache[T]) notify(evicted []*cacheItem[T]) {
	if c.onEvict == nil {
		return
	}
	for _, item := range evicted {
		c.onEvict(item.key, item.data)
	}
}
