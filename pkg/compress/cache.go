package compress

import (
	"crypto/sha256"
	"encoding/hex"
	"sync"
)

// DefaultCacheSize is the number of remote results kept before eviction.
const DefaultCacheSize = 100

// fifoCache memoises remote results. Once it holds more than max entries the
// oldest inserted key is evicted, one per insert. Reads do not refresh an
// entry's position, so this is insertion order, not LRU.
type fifoCache struct {
	mu    sync.Mutex
	max   int
	order []string
	items map[string]Result
}

func newFIFOCache(max int) *fifoCache {
	if max <= 0 {
		max = DefaultCacheSize
	}
	return &fifoCache{
		max:   max,
		items: make(map[string]Result),
	}
}

func (c *fifoCache) get(key string) (Result, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	r, ok := c.items[key]
	return r, ok
}

func (c *fifoCache) put(key string, r Result) {
	c.mu.Lock()
	defer c.mu.Unlock()

	// Re-inserting an existing key keeps its original position.
	if _, ok := c.items[key]; ok {
		c.items[key] = r
		return
	}

	c.items[key] = r
	c.order = append(c.order, key)

	if len(c.order) > c.max {
		oldest := c.order[0]
		c.order = c.order[1:]
		delete(c.items, oldest)
	}
}

func (c *fifoCache) len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.items)
}

func (c *fifoCache) clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.order = nil
	c.items = make(map[string]Result)
}

func cacheKey(prompt, contextText string) string {
	sum := sha256.Sum256([]byte(prompt + contextText))
	return hex.EncodeToString(sum[:])
}
