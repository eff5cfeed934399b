package inmemory

import (
	"sync"
	"time"

	profiledomain "family-tree-go/internal/domain/profile"
)

// InMemoryProfileCache keeps profiles until their TTL passes. Entries are
// cloned on the way in and on the way out, so callers never share a
// ChildrenIDs slice with the cache.
type InMemoryProfileCache struct {
	mu    sync.RWMutex
	items map[string]profileItem
}

type profileItem struct {
	value     profiledomain.Profile
	expiresAt time.Time
}

func NewInMemoryProfileCache() *InMemoryProfileCache {
	return &InMemoryProfileCache{
		items: make(map[string]profileItem),
	}
}

func (c *InMemoryProfileCache) GetByID(id string) (*profiledomain.Profile, bool) {
	now := time.Now()

	c.mu.RLock()
	item, ok := c.items[id]
	c.mu.RUnlock()
	if !ok {
		return nil, false
	}

	if !item.expiresAt.After(now) {
		c.mu.Lock()
		item, ok = c.items[id]
		if ok && !item.expiresAt.After(now) {
			delete(c.items, id)
		}
		c.mu.Unlock()
		return nil, false
	}

	value := item.value.Clone()
	return &value, true
}

func (c *InMemoryProfileCache) SetByID(id string, profile *profiledomain.Profile, ttl time.Duration) {
	if profile == nil || ttl <= 0 {
		c.DeleteByID(id)
		return
	}

	c.mu.Lock()
	c.items[id] = profileItem{
		value:     profile.Clone(),
		expiresAt: time.Now().Add(ttl),
	}
	c.mu.Unlock()
}

func (c *InMemoryProfileCache) DeleteByID(ids ...string) {
	c.mu.Lock()
	for _, id := range ids {
		delete(c.items, id)
	}
	c.mu.Unlock()
}

func (c *InMemoryProfileCache) Clear() {
	c.mu.Lock()
	c.items = make(map[string]profileItem)
	c.mu.Unlock()
}
