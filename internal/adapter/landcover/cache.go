package landcover

import (
	"context"
	"fmt"
	"sync"

	"github.com/couchcryptid/wildfire-tracker/internal/observability"
)

// CachedLooker wraps a Looker with an in-memory LRU cache keyed on
// coordinates rounded to 4 decimals (about 10 m).
type CachedLooker struct {
	inner   Looker
	cache   *lruCache
	metrics *observability.Metrics
}

// NewCachedLooker creates a cache decorator around a land-cover lookup.
func NewCachedLooker(inner Looker, maxEntries int, metrics *observability.Metrics) *CachedLooker {
	return &CachedLooker{
		inner:   inner,
		cache:   newLRUCache(maxEntries),
		metrics: metrics,
	}
}

func (c *CachedLooker) Lookup(ctx context.Context, lat, lon float64) (Result, error) {
	key := fmt.Sprintf("%.4f,%.4f", lat, lon)
	if result, ok := c.cache.get(key); ok {
		c.metrics.LandcoverCache.WithLabelValues("hit").Inc()
		return result, nil
	}
	c.metrics.LandcoverCache.WithLabelValues("miss").Inc()
	result, err := c.inner.Lookup(ctx, lat, lon)
	if err != nil {
		return result, err
	}
	c.cache.put(key, result)
	return result, nil
}

// lruCache is a simple thread-safe LRU cache of lookup results.
type lruCache struct {
	maxEntries int
	mu         sync.Mutex
	entries    map[string]*entry
	head       *entry // most recently used
	tail       *entry // least recently used
}

type entry struct {
	key   string
	value Result
	prev  *entry
	next  *entry
}

func newLRUCache(maxEntries int) *lruCache {
	return &lruCache{
		maxEntries: max(1, maxEntries),
		entries:    make(map[string]*entry),
	}
}

func (c *lruCache) len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

func (c *lruCache) get(key string) (Result, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[key]
	if !ok {
		return Result{}, false
	}
	c.moveToFront(e)
	return e.value, true
}

func (c *lruCache) put(key string, value Result) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if e, ok := c.entries[key]; ok {
		e.value = value
		c.moveToFront(e)
		return
	}

	e := &entry{key: key, value: value}
	c.entries[key] = e
	c.addToFront(e)

	if len(c.entries) > c.maxEntries {
		c.evictTail()
	}
}

func (c *lruCache) moveToFront(e *entry) {
	if e == c.head {
		return
	}
	c.remove(e)
	c.addToFront(e)
}

func (c *lruCache) addToFront(e *entry) {
	e.next = c.head
	e.prev = nil
	if c.head != nil {
		c.head.prev = e
	}
	c.head = e
	if c.tail == nil {
		c.tail = e
	}
}

func (c *lruCache) remove(e *entry) {
	if e.prev != nil {
		e.prev.next = e.next
	} else {
		c.head = e.next
	}
	if e.next != nil {
		e.next.prev = e.prev
	} else {
		c.tail = e.prev
	}
}

func (c *lruCache) evictTail() {
	if c.tail == nil {
		return
	}
	delete(c.entries, c.tail.key)
	c.remove(c.tail)
}
