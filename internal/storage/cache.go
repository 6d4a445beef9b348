package storage

import (
	"container/list"
	"strings"
	"sync"
	"time"
)

// queryCache is a write-through LRU cache with per-entry expiration for
// store reads. Keys are "tables|op|args"; the tables segment names every
// table the query touched so a mutation on any of them evicts the entry.
type queryCache struct {
	mu      sync.Mutex
	cap     int
	ttl     time.Duration
	order   *list.List
	entries map[string]*list.Element

	hits   uint64
	misses uint64
}

type cacheEntry struct {
	key     string
	value   interface{}
	expires time.Time
}

func newQueryCache(capacity int, ttl time.Duration) *queryCache {
	return &queryCache{
		cap:     capacity,
		ttl:     ttl,
		order:   list.New(),
		entries: make(map[string]*list.Element, capacity),
	}
}

// cacheKey builds the key for an operation over the named tables.
func cacheKey(tables, op string, args ...string) string {
	return tables + "|" + op + "|" + strings.Join(args, ",")
}

func (c *queryCache) get(key string) (interface{}, bool) {
	if c == nil {
		return nil, false
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	el, ok := c.entries[key]
	if !ok {
		c.misses++
		return nil, false
	}
	entry := el.Value.(*cacheEntry)
	if time.Now().After(entry.expires) {
		c.order.Remove(el)
		delete(c.entries, key)
		c.misses++
		return nil, false
	}
	c.order.MoveToFront(el)
	c.hits++
	return entry.value, true
}

func (c *queryCache) set(key string, value interface{}) {
	if c == nil {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	if el, ok := c.entries[key]; ok {
		el.Value.(*cacheEntry).value = value
		el.Value.(*cacheEntry).expires = time.Now().Add(c.ttl)
		c.order.MoveToFront(el)
		return
	}
	el := c.order.PushFront(&cacheEntry{key: key, value: value, expires: time.Now().Add(c.ttl)})
	c.entries[key] = el

	for c.order.Len() > c.cap {
		oldest := c.order.Back()
		c.order.Remove(oldest)
		delete(c.entries, oldest.Value.(*cacheEntry).key)
	}
}

// invalidate drops every entry whose tables segment mentions table. It runs
// synchronously inside the mutation path so no read after the mutation can
// see the pre-mutation value.
func (c *queryCache) invalidate(table string) {
	if c == nil {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	for key, el := range c.entries {
		tables := key[:strings.IndexByte(key, '|')]
		if strings.Contains(tables, table) {
			c.order.Remove(el)
			delete(c.entries, key)
		}
	}
}

func (c *queryCache) stats() (hits, misses uint64) {
	if c == nil {
		return 0, 0
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.hits, c.misses
}
