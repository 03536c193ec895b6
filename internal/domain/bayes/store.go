package bayes

import (
	"context"
	"sync"
)

// Store holds the word evidence and document totals behind one Classifier.
// Implementations must apply a Delta atomically.
type Store interface {
	Get(word string) (WordRecord, bool)
	Apply(d Delta)
	Remove(words ...string)
	// Range calls fn for every word until fn returns false. fn must not modify the store.
	Range(fn func(word string, rec WordRecord) bool)
	Totals() Totals
	Len() int
}

// Compile-time check: MemoryStore implements Store.
var _ Store = (*MemoryStore)(nil)

// MemoryStore is a mutex-guarded in-memory Store.
type MemoryStore struct {
	mu     sync.RWMutex
	words  map[string]WordRecord
	totals Totals
}

// NewMemoryStore creates an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{words: make(map[string]WordRecord)}
}

// RestoreMemoryStore creates a store pre-filled from a snapshot. The snapshot map is copied.
func RestoreMemoryStore(s Snapshot) *MemoryStore {
	words := make(map[string]WordRecord, len(s.Words))
	for w, rec := range s.Words {
		words[w] = rec
	}
	return &MemoryStore{words: words, totals: s.Totals}
}

// Get returns the record for word.
func (m *MemoryStore) Get(word string) (WordRecord, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	rec, ok := m.words[word]
	return rec, ok
}

// Apply merges one document's evidence and bumps the class total.
func (m *MemoryStore) Apply(d Delta) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for w, n := range d.Counts {
		m.words[w] = d.applyTo(m.words[w], n)
	}
	if d.Positive {
		m.totals.Positive++
	} else {
		m.totals.Negative++
	}
}

// Remove deletes whole records.
func (m *MemoryStore) Remove(words ...string) {
	if len(words) == 0 {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, w := range words {
		delete(m.words, w)
	}
}

// Range iterates the records under the read lock.
func (m *MemoryStore) Range(fn func(word string, rec WordRecord) bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for w, rec := range m.words {
		if !fn(w, rec) {
			return
		}
	}
}

// Totals returns the per-class document counts.
func (m *MemoryStore) Totals() Totals {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.totals
}

// Len returns the vocabulary size.
func (m *MemoryStore) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.words)
}

// Snapshot returns a deep copy of the store contents.
func (m *MemoryStore) Snapshot() Snapshot {
	m.mu.RLock()
	defer m.mu.RUnlock()
	words := make(map[string]WordRecord, len(m.words))
	for w, rec := range m.words {
		words[w] = rec
	}
	return Snapshot{Words: words, Totals: m.totals}
}

// DurableStore is a Store whose changes reach durable storage only when Flush runs.
type DurableStore interface {
	Store
	Flush(ctx context.Context) error
	// Pending returns the number of words changed since the last successful Flush.
	Pending() int
}
