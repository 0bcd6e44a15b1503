package cache

import (
	"time"

	gocache "github.com/patrickmn/go-cache"

	"github.com/gracevcs/grace-server/pkg/metrics"
)

// Presence is the tri-state answer of an existence lookup.
type Presence int

const (
	// PresenceUnknown means the cache holds nothing for the key; the
	// caller must fall through to the authoritative actor.
	PresenceUnknown Presence = iota
	PresenceExists
	PresenceNotExists
)

const (
	// DefaultTTL bounds how long a cached answer is trusted.
	DefaultTTL = 5 * time.Minute

	doesNotExist = ""
)

// ExistenceCache is a short-TTL, process-local map used to short-circuit
// existence checks and name resolution without consulting an actor. It
// is never authoritative: a contradiction or a miss falls through to the
// entity actor.
type ExistenceCache struct {
	entries *gocache.Cache
	ttl     time.Duration
}

// NewExistenceCache creates a cache with the given absolute TTL.
// A non-positive ttl falls back to DefaultTTL.
func NewExistenceCache(ttl time.Duration) *ExistenceCache {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &ExistenceCache{
		entries: gocache.New(ttl, 2*ttl),
		ttl:     ttl,
	}
}

// Lookup returns the cached presence for key and, when the key is known
// to exist, the id it resolves to.
func (c *ExistenceCache) Lookup(key string) (Presence, string) {
	v, found := c.entries.Get(key)
	if !found {
		metrics.CacheMisses.Inc()
		return PresenceUnknown, ""
	}
	metrics.CacheHits.Inc()
	id := v.(string)
	if id == doesNotExist {
		return PresenceNotExists, ""
	}
	return PresenceExists, id
}

// MarkExists records that key resolves to id.
func (c *ExistenceCache) MarkExists(key, id string) {
	c.entries.Set(key, id, c.ttl)
}

// MarkNotExists records that key is known not to exist.
func (c *ExistenceCache) MarkNotExists(key string) {
	c.entries.Set(key, doesNotExist, c.ttl)
}

// Invalidate drops any cached answer for key.
func (c *ExistenceCache) Invalidate(key string) {
	c.entries.Delete(key)
}

// Len returns the number of live entries, expired included until sweep.
func (c *ExistenceCache) Len() int {
	return c.entries.ItemCount()
}
