// Package snapshot holds the last-observed state of entities between reads
// and writes. The dirty checker compares candidates against these snapshots;
// the orchestrator invalidates entries after successful writes so stale
// state is never used for a second comparison.
package snapshot

import "github.com/mevdschee/tqentity/entity"

// Cache maps primary keys to the last-observed entity snapshot. Lookup must
// return the same object reference across repeated calls within one unit of
// work as long as the entry is unchanged; the identity fast path of the
// dirty checker depends on it.
type Cache interface {
	// Lookup returns the snapshot stored for the key, if any.
	Lookup(k entity.Key) (entity.Entity, bool)

	// Store records e as the observed state for the key.
	Store(k entity.Key, e entity.Entity)

	// Invalidate removes the entry for the key. Called after a write: the
	// just-written entity becomes unknown state until it is re-read.
	Invalidate(k entity.Key)

	// Clear removes all entries, ending the unit of work.
	Clear()
}

// TxCache is a plain transaction-scoped cache. It is bound to a single unit
// of work on a single goroutine and does no locking.
type TxCache struct {
	entries map[entity.Key]entity.Entity
}

// NewTxCache returns an empty transaction-scoped cache.
func NewTxCache() *TxCache {
	return &TxCache{entries: make(map[entity.Key]entity.Entity)}
}

// Lookup returns the stored snapshot for the key.
func (c *TxCache) Lookup(k entity.Key) (entity.Entity, bool) {
	e, ok := c.entries[k]
	return e, ok
}

// Store records the observed state for the key.
func (c *TxCache) Store(k entity.Key, e entity.Entity) {
	c.entries[k] = e
}

// Invalidate removes the entry for the key.
func (c *TxCache) Invalidate(k entity.Key) {
	delete(c.entries, k)
}

// Clear removes all entries.
func (c *TxCache) Clear() {
	c.entries = make(map[entity.Key]entity.Entity)
}

// Len returns the number of cached snapshots.
func (c *TxCache) Len() int {
	return len(c.entries)
}
