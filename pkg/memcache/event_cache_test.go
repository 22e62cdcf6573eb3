package memcache

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestEventCacheMarkAndSeen(t *testing.T) {
	cache := NewEventCache()

	assert.False(t, cache.Seen("evt_1"))

	cache.Mark("evt_1", time.Minute)
	assert.True(t, cache.Seen("evt_1"))
	assert.False(t, cache.Seen("evt_2"))
}

func TestEventCacheExpiry(t *testing.T) {
	cache := NewEventCache()

	cache.Mark("evt_short", 10*time.Millisecond)
	assert.True(t, cache.Seen("evt_short"))

	time.Sleep(25 * time.Millisecond)
	assert.False(t, cache.Seen("evt_short"))
}
