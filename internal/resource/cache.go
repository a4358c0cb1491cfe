package resource

import (
	"sync"

	orderedmap "github.com/wk8/go-ordered-map/v2"
)

// DefaultCapacity is the number of artifacts kept in memory.
const DefaultCapacity = 32

// Cache is a fixed-capacity artifact cache with strict FIFO eviction: the
// oldest inserted key is evicted first, regardless of how often it is read.
type Cache struct {
	mu       sync.Mutex
	capacity int
	entries  *orderedmap.OrderedMap[string, *Artifact]
}

// NewCache creates a cache holding at most capacity artifacts.
// Non-positive capacities use DefaultCapacity.
func NewCache(capacity int) *Cache {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Cache{capacity: capacity, entries: orderedmap.New[string, *Artifact]()}
}

// Get returns the artifact stored under key.
func (c *Cache) Get(key string) (*Artifact, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.entries.Get(key)
}

// Put stores a under key, evicting the oldest entries when full. It
// returns the evicted keys. Replacing an existing key keeps its position.
func (c *Cache) Put(key string, a *Artifact) []string {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, ok := c.entries.Get(key); ok {
		c.entries.Set(key, a)
		return nil
	}

	var evicted []string
	for c.entries.Len() >= c.capacity {
		oldest := c.entries.Oldest()
		c.entries.Delete(oldest.Key)
		evicted = append(evicted, oldest.Key)
	}
	c.entries.Set(key, a)
	return evicted
}

// Keys returns the cached keys from oldest to newest.
func (c *Cache) Keys() []string {
	c.mu.Lock()
	defer c.mu.Unlock()

	keys := make([]string, 0, c.entries.Len())
	for pair := c.entries.Oldest(); pair != nil; pair = pair.Next() {
		keys = append(keys, pair.Key)
	}
	return keys
}

// Len returns the number of cached artifacts.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.entries.Len()
}

// Capacity returns the configured capacity.
func (c *Cache) Capacity() int { return c.capacity }

// Reset drops every entry.
func (c *Cache) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = orderedmap.New[string, *Artifact]()
}
