// pkg/memcache/event_cache.go
package memcache

import (
	"sync"
	"time"
)

// EventCache is a short-TTL, in-process dedup layer in front of the durable
// webhook ledger. It only saves a database round trip for rapid redeliveries;
// the unique index on the ledger remains the real guard.
type EventCache interface {
	Seen(eventID string) bool
	Mark(eventID string, ttl time.Duration)
}

type entry struct {
	expiresAt time.Time
}

type eventCache struct {
	mu   sync.RWMutex
	data map[string]entry
}

func NewEventCache() EventCache {
	return &eventCache{
		data: make(map[string]entry),
	}
}

func (c *eventCache) Seen(eventID string) bool {
	c.mu.RLock()
	e, ok := c.data[eventID]
	c.mu.RUnlock()
	if !ok {
		return false
	}
	if time.Now().After(e.expiresAt) {
		c.mu.Lock()
		delete(c.data, eventID) // cleanup expired
		c.mu.Unlock()
		return false
	}
	return true
}

func (c *eventCache) Mark(eventID string, ttl time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.data[eventID] = entry{expiresAt: time.Now().Add(ttl)}
}
