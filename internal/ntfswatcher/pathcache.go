package ntfswatcher

import (
	"container/list"
	"sync"

	"ultrasearch/internal/ids"
)

// PathCache is a bounded, thread-safe LRU mapping FileId (FRN) to resolved
// path, accelerating repeated parent-FRN chasing during MFT enumeration
// (spec §4.2: "an LRU cache of at most ~50k (DocKey → path) entries").
// The eviction structure follows the teacher pack's container/list LRU
// idiom (BuddyAnonymous-kv-engine/internal/block/lru.go), generalized from
// byte-slice block values to resolved path strings and made safe for the
// "single-writer-multi-reader" access pattern §5 requires of path caches.
type PathCache struct {
	mu       sync.Mutex
	ll       *list.List
	table    map[ids.FileId]*list.Element
	capacity int
}

type pathCacheEntry struct {
	key  ids.FileId
	path string
}

// DefaultPathCacheCapacity is the §4.2 default of ~50k entries.
const DefaultPathCacheCapacity = 50_000

// NewPathCache creates a cache bounded to capacity entries.
func NewPathCache(capacity int) *PathCache {
	if capacity <= 0 {
		capacity = DefaultPathCacheCapacity
	}
	return &PathCache{
		ll:       list.New(),
		table:    make(map[ids.FileId]*list.Element),
		capacity: capacity,
	}
}

// Get returns the cached path for frn, promoting it to most-recently-used.
func (c *PathCache) Get(frn ids.FileId) (string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if elem, ok := c.table[frn]; ok {
		c.ll.MoveToFront(elem)
		return elem.Value.(*pathCacheEntry).path, true
	}
	return "", false
}

// Put inserts or refreshes the cached path for frn, evicting the least
// recently used entry if the cache is full.
func (c *PathCache) Put(frn ids.FileId, path string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if elem, ok := c.table[frn]; ok {
		elem.Value.(*pathCacheEntry).path = path
		c.ll.MoveToFront(elem)
		return
	}

	elem := c.ll.PushFront(&pathCacheEntry{key: frn, path: path})
	c.table[frn] = elem

	for c.ll.Len() > c.capacity {
		back := c.ll.Back()
		if back == nil {
			break
		}
		c.ll.Remove(back)
		delete(c.table, back.Value.(*pathCacheEntry).key)
	}
}

// Invalidate removes a single cached entry (used on rename/delete).
func (c *PathCache) Invalidate(frn ids.FileId) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if elem, ok := c.table[frn]; ok {
		c.ll.Remove(elem)
		delete(c.table, frn)
	}
}

// Len reports the current number of cached entries.
func (c *PathCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.ll.Len()
}
