package cache

import (
	"container/list"
	"context"
	"sync"
	"sync/atomic"

	"github.com/hupe1980/segkit/resource"
)

// LRUBlockCache evicts the least recently used entries once its byte
// capacity is reached.
type LRUBlockCache struct {
	mu        sync.Mutex
	capacity  int64
	size      int64
	items     map[Key]*list.Element
	evictList *list.List
	rc        *resource.Controller

	hits   atomic.Int64
	misses atomic.Int64
}

type entry struct {
	key   Key
	value []byte
}

var _ BlockCache = (*LRUBlockCache)(nil)

// NewLRUBlockCache creates a cache holding up to capacity bytes. When rc is
// non-nil every cached byte is also reserved there.
func NewLRUBlockCache(capacity int64, rc *resource.Controller) *LRUBlockCache {
	return &LRUBlockCache{
		capacity:  capacity,
		items:     make(map[Key]*list.Element),
		evictList: list.New(),
		rc:        rc,
	}
}

// Get returns a cached value.
func (c *LRUBlockCache) Get(_ context.Context, key Key) ([]byte, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if el, ok := c.items[key]; ok {
		c.hits.Add(1)
		c.evictList.MoveToFront(el)
		return el.Value.(*entry).value, true
	}
	c.misses.Add(1)
	return nil, false
}

// Set stores a value. Values larger than the capacity, or rejected by the
// resource controller, are not cached.
func (c *LRUBlockCache) Set(_ context.Context, key Key, b []byte) {
	c.mu.Lock()
	defer c.mu.Unlock()

	newSize := int64(len(b))
	if newSize > c.capacity {
		return
	}

	if el, ok := c.items[key]; ok {
		ent := el.Value.(*entry)
		oldSize := int64(len(ent.value))
		if newSize > oldSize && !c.rc.TryAcquireMemory(newSize-oldSize) {
			return
		}
		if newSize < oldSize {
			c.rc.ReleaseMemory(oldSize - newSize)
		}
		c.evictList.MoveToFront(el)
		c.size += newSize - oldSize
		ent.value = b
		c.evictTo(c.capacity, el)
		return
	}

	// Free local room first so released bytes can be reserved again.
	c.evictTo(c.capacity-newSize, nil)
	if !c.rc.TryAcquireMemory(newSize) {
		return
	}
	c.items[key] = c.evictList.PushFront(&entry{key: key, value: b})
	c.size += newSize
}

// evictTo drops entries from the back until size <= limit, never
// evicting keep.
func (c *LRUBlockCache) evictTo(limit int64, keep *list.Element) {
	for c.size > limit {
		el := c.evictList.Back()
		if el == nil || el == keep {
			return
		}
		c.removeElement(el)
	}
}

// Invalidate removes entries matching predicate.
func (c *LRUBlockCache) Invalidate(predicate func(key Key) bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	var doomed []*list.Element
	for key, el := range c.items {
		if predicate(key) {
			doomed = append(doomed, el)
		}
	}
	for _, el := range doomed {
		c.removeElement(el)
	}
}

// Close drops every entry and returns its reservations.
func (c *LRUBlockCache) Close() error {
	c.Invalidate(func(Key) bool { return true })
	return nil
}

// Stats returns hit and miss counts.
func (c *LRUBlockCache) Stats() (hits, misses int64) {
	return c.hits.Load(), c.misses.Load()
}

// Size returns the cached bytes.
func (c *LRUBlockCache) Size() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.size
}

// Len returns the number of entries.
func (c *LRUBlockCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.items)
}

func (c *LRUBlockCache) removeElement(el *list.Element) {
	c.evictList.Remove(el)
	ent := el.Value.(*entry)
	delete(c.items, ent.key)
	n := int64(len(ent.value))
	c.size -= n
	c.rc.ReleaseMemory(n)
}
