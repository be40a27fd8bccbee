package status

import (
	"sync"
	"time"
)

// DefaultTTL is how long a cached snapshot counts as fresh. A little over two
// sweep intervals, so a single failed sweep does not flip surfaces to stale.
const DefaultTTL = 75 * time.Second

// Cache holds the most recent snapshot per container. Writes are
// last-fetch-wins: a snapshot whose FetchedAt is older than the cached one is
// dropped, so a slow fetch that completes after a newer one can never roll
// the cache backwards. Each key updates atomically and independently; there
// is no cross-container transaction.
type Cache struct {
	mu  sync.RWMutex
	ttl time.Duration
	m   map[string]Snapshot
}

func NewCache(ttl time.Duration) *Cache {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Cache{ttl: ttl, m: make(map[string]Snapshot)}
}

// Put stores snap unless a newer snapshot for the same name is already
// cached. Returns whether the write took effect.
func (c *Cache) Put(snap Snapshot) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if old, ok := c.m[snap.Name]; ok && old.FetchedAt.After(snap.FetchedAt) {
		return false
	}
	c.m[snap.Name] = snap
	return true
}

// Get returns the cached snapshot. ok=false means the container has never
// been fetched.
func (c *Cache) Get(name string) (snap Snapshot, ok bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	snap, ok = c.m[name]
	return snap, ok
}

// Staleness returns the age of the cached snapshot at now. ok=false means
// the container has never been fetched. An entry is fresh while its age is
// within TTL.
func (c *Cache) Staleness(name string, now time.Time) (age time.Duration, ok bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	snap, ok := c.m[name]
	if !ok {
		return 0, false
	}
	return now.Sub(snap.FetchedAt), true
}

// TTL is the freshness window snapshots are judged against.
func (c *Cache) TTL() time.Duration {
	return c.ttl
}

// All returns a copy of every cached snapshot.
func (c *Cache) All() map[string]Snapshot {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make(map[string]Snapshot, len(c.m))
	for k, v := range c.m {
		out[k] = v
	}
	return out
}

// Forget drops a container from the cache, for containers removed from the
// configuration.
func (c *Cache) Forget(name string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.m, name)
}
