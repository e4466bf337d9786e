package team

import "sync"

// Cache memoizes computed team stats per user. Writes to the referral
// forest invalidate the affected lineage explicitly; there is no TTL
// and no process-wide shared state beyond this owned component.
type Cache struct {
	mu sync.RWMutex
	m  map[string]Stats
}

func NewCache() *Cache {
	return &Cache{m: make(map[string]Stats)}
}

func (c *Cache) Get(userID string) (Stats, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	s, ok := c.m[userID]
	return s, ok
}

func (c *Cache) Put(userID string, s Stats) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.m[userID] = s
}

func (c *Cache) Invalidate(userIDs ...string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, id := range userIDs {
		delete(c.m, id)
	}
}
