package visibility

import (
	"sync"

	"github.com/OneOfOne/xxhash"

	"github.com/ecsnet/replicore/codec"
)

// ttlCache is the short-TTL is_visible memo. Entries are valid for ttl ticks
// from when they were written; sweepExpired (called from ApplyChanges)
// reclaims space in buckets but a stale hit is also caught lazily by get's
// own tick comparison, so a slow sweep never produces a wrong answer.
type ttlCache struct {
	mu      sync.Mutex
	ttl     uint32
	tick    uint32
	entries map[uint64]cacheEntry
}

type cacheEntry struct {
	value     bool
	expiresAt uint32
}

func newTTLCache(ttl uint32) *ttlCache {
	return &ttlCache{ttl: ttl, entries: make(map[uint64]cacheEntry)}
}

func cacheKey(entity codec.EntityID, client ClientID) uint64 {
	h := xxhash.New64()
	var buf [8]byte
	for i := 0; i < 8; i++ {
		buf[i] = byte(entity >> (8 * i))
	}
	h.Write(buf[:])
	h.Write([]byte(client))
	return h.Sum64()
}

func (c *ttlCache) get(entity codec.EntityID, client ClientID) (bool, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[cacheKey(entity, client)]
	if !ok || e.expiresAt <= c.tick {
		return false, false
	}
	return e.value, true
}

func (c *ttlCache) put(entity codec.EntityID, client ClientID, value bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[cacheKey(entity, client)] = cacheEntry{value: value, expiresAt: c.tick + c.ttl}
}

func (c *ttlCache) invalidate(entity codec.EntityID, client ClientID) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, cacheKey(entity, client))
}

// invalidateEntity drops every cached entry, not only entity's: the cache is
// keyed by hash, not by entity, so one entity's entries cannot be picked
// out. Acceptable since invalidation only happens on explicit
// Set/SetGlobal/RemoveEntity calls, not on the IsVisible hot path.
func (c *ttlCache) invalidateEntity(entity codec.EntityID) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[uint64]cacheEntry)
}

func (c *ttlCache) invalidateClient(client ClientID) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[uint64]cacheEntry)
}

// sweepExpired advances the cache's tick counter and drops expired entries.
func (c *ttlCache) sweepExpired() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.tick++
	for k, e := range c.entries {
		if e.expiresAt <= c.tick {
			delete(c.entries, k)
		}
	}
}
