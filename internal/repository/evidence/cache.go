package evidence

import (
	"context"
	"fmt"
	"sync"

	"github.com/kailas-cloud/feedtag/internal/domain/bayes"
)

// Compile-time check: Cache implements bayes.Store.
var _ bayes.Store = (*Cache)(nil)

// Cache is a write-behind bayes.Store: reads and writes hit memory, Flush pushes
// the words touched since the last successful flush to the backend.
type Cache struct {
	tag     string
	backend Backend
	mem     *bayes.MemoryStore

	flushMu   sync.Mutex // serializes Flush so batches reach the backend in order
	mu        sync.Mutex
	dirty     map[string]struct{}
	removed   map[string]struct{}
	saved     bayes.Totals
	persisted bool
}

// NewCache creates an empty cache for a tag not yet persisted.
func NewCache(tag string, backend Backend) *Cache {
	return newCache(tag, backend, bayes.NewMemoryStore(), bayes.Totals{}, false)
}

// Load restores a tag from the backend. A tag with no saved evidence opens
// empty and is written on its first Flush.
func Load(ctx context.Context, tag string, backend Backend) (*Cache, error) {
	snap, err := backend.Load(ctx, tag)
	if err != nil {
		return nil, fmt.Errorf("load %s: %w", tag, err)
	}
	if len(snap.Words) == 0 && snap.Totals.Docs() == 0 {
		return NewCache(tag, backend), nil
	}
	return newCache(tag, backend, bayes.RestoreMemoryStore(snap), snap.Totals, true), nil
}

func newCache(tag string, backend Backend, mem *bayes.MemoryStore, saved bayes.Totals, persisted bool) *Cache {
	return &Cache{
		tag:       tag,
		backend:   backend,
		mem:       mem,
		dirty:     make(map[string]struct{}),
		removed:   make(map[string]struct{}),
		saved:     saved,
		persisted: persisted,
	}
}

// Get returns the in-memory record.
func (c *Cache) Get(word string) (bayes.WordRecord, bool) { return c.mem.Get(word) }

// Apply updates memory first, then marks the words dirty.
func (c *Cache) Apply(d bayes.Delta) {
	c.mem.Apply(d)
	c.mu.Lock()
	defer c.mu.Unlock()
	for w := range d.Counts {
		c.dirty[w] = struct{}{}
		delete(c.removed, w)
	}
}

// Remove deletes the records and queues their removal.
func (c *Cache) Remove(words ...string) {
	if len(words) == 0 {
		return
	}
	c.mem.Remove(words...)
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, w := range words {
		delete(c.dirty, w)
		c.removed[w] = struct{}{}
	}
}

// Range iterates the in-memory records.
func (c *Cache) Range(fn func(word string, rec bayes.WordRecord) bool) { c.mem.Range(fn) }

// Totals returns the in-memory document totals.
func (c *Cache) Totals() bayes.Totals { return c.mem.Totals() }

// Len returns the in-memory vocabulary size.
func (c *Cache) Len() int { return c.mem.Len() }

// Pending returns the number of words waiting for the next flush.
func (c *Cache) Pending() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.dirty) + len(c.removed)
}

// Flush persists pending changes. On failure the changes stay queued for the next call.
func (c *Cache) Flush(ctx context.Context) error {
	c.flushMu.Lock()
	defer c.flushMu.Unlock()

	c.mu.Lock()
	dirty, removed := c.dirty, c.removed
	totals := c.mem.Totals()
	if len(dirty) == 0 && len(removed) == 0 && c.persisted && totals == c.saved {
		c.mu.Unlock()
		return nil
	}
	c.dirty = make(map[string]struct{})
	c.removed = make(map[string]struct{})
	c.mu.Unlock()

	batch := Batch{
		Upserts:  make(map[string]bayes.WordRecord, len(dirty)),
		Removals: make([]string, 0, len(removed)),
		Totals:   totals,
	}
	for w := range dirty {
		if rec, ok := c.mem.Get(w); ok {
			batch.Upserts[w] = rec
		} else {
			batch.Removals = append(batch.Removals, w)
		}
	}
	for w := range removed {
		batch.Removals = append(batch.Removals, w)
	}

	if err := c.backend.Save(ctx, c.tag, batch); err != nil {
		c.requeue(dirty, removed)
		return fmt.Errorf("flush %s: %w", c.tag, err)
	}

	c.mu.Lock()
	c.saved = totals
	c.persisted = true
	c.mu.Unlock()
	return nil
}

// requeue merges a failed batch back; newer marks win.
func (c *Cache) requeue(dirty, removed map[string]struct{}) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for w := range dirty {
		if _, gone := c.removed[w]; !gone {
			c.dirty[w] = struct{}{}
		}
	}
	for w := range removed {
		if _, back := c.dirty[w]; !back {
			c.removed[w] = struct{}{}
		}
	}
}
