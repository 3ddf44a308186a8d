package snapshot

import (
	"time"

	"github.com/maypok86/otter"

	"github.com/mevdschee/tqentity/entity"
)

// RetentionCache keeps snapshots beyond a single unit of work, expiring them
// after a TTL. Unlike TxCache it is safe for concurrent use; it backs the
// "ttl" retention mode.
type RetentionCache struct {
	store otter.CacheWithVariableTTL[entity.Key, entity.Entity]
	ttl   time.Duration
}

// NewRetentionCache creates a TTL-bound snapshot cache holding at most
// maxSize entries.
func NewRetentionCache(maxSize int, ttl time.Duration) (*RetentionCache, error) {
	store, err := otter.MustBuilder[entity.Key, entity.Entity](maxSize).
		WithVariableTTL().
		Build()
	if err != nil {
		return nil, err
	}
	return &RetentionCache{store: store, ttl: ttl}, nil
}

// Lookup returns the stored snapshot for the key.
func (c *RetentionCache) Lookup(k entity.Key) (entity.Entity, bool) {
	return c.store.Get(k)
}

// Store records the observed state for the key with the configured TTL.
func (c *RetentionCache) Store(k entity.Key, e entity.Entity) {
	c.store.Set(k, e, c.ttl)
}

// Invalidate removes the entry for the key.
func (c *RetentionCache) Invalidate(k entity.Key) {
	c.store.Delete(k)
}

// Clear removes all entries.
func (c *RetentionCache) Clear() {
	c.store.Clear()
}

// Close releases the cache's background resources.
func (c *RetentionCache) Close() {
	c.store.Close()
}
