package evidence

import (
	"context"
	"sync"

	"github.com/kailas-cloud/feedtag/internal/db"
	"github.com/kailas-cloud/feedtag/internal/domain/bayes"
)

// mockHashStore implements the hashStore consumer interface for tests.
type mockHashStore struct {
	hgetAllFn      func(ctx context.Context, key string) (map[string]string, error)
	hupdateMultiFn func(ctx context.Context, updates []db.HashUpdate) error
	delFn          func(ctx context.Context, keys ...string) error
	scanFn         func(ctx context.Context, pattern string) ([]string, error)
}

func (m *mockHashStore) HGetAll(ctx context.Context, key string) (map[string]string, error) {
	if m.hgetAllFn != nil {
		return m.hgetAllFn(ctx, key)
	}
	return map[string]string{}, nil
}

func (m *mockHashStore) HUpdateMulti(ctx context.Context, updates []db.HashUpdate) error {
	if m.hupdateMultiFn != nil {
		return m.hupdateMultiFn(ctx, updates)
	}
	return nil
}

func (m *mockHashStore) Del(ctx context.Context, keys ...string) error {
	if m.delFn != nil {
		return m.delFn(ctx, keys...)
	}
	return nil
}

func (m *mockHashStore) Scan(ctx context.Context, pattern string) ([]string, error) {
	if m.scanFn != nil {
		return m.scanFn(ctx, pattern)
	}
	return nil, nil
}

// memBackend is an in-memory Backend recording every saved batch.
type memBackend struct {
	mu      sync.Mutex
	tags    map[string]bayes.Snapshot
	batches []Batch
	saveErr error
}

func newMemBackend() *memBackend {
	return &memBackend{tags: make(map[string]bayes.Snapshot)}
}

func (b *memBackend) Load(_ context.Context, tag string) (bayes.Snapshot, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	snap := b.tags[tag]
	words := make(map[string]bayes.WordRecord, len(snap.Words))
	for w, rec := range snap.Words {
		words[w] = rec
	}
	return bayes.Snapshot{Words: words, Totals: snap.Totals}, nil
}

func (b *memBackend) Save(_ context.Context, tag string, batch Batch) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.saveErr != nil {
		return b.saveErr
	}
	b.batches = append(b.batches, batch)
	snap, ok := b.tags[tag]
	if !ok {
		snap = bayes.Snapshot{Words: make(map[string]bayes.WordRecord)}
	}
	for w, rec := range batch.Upserts {
		snap.Words[w] = rec
	}
	for _, w := range batch.Removals {
		delete(snap.Words, w)
	}
	snap.Totals = batch.Totals
	b.tags[tag] = snap
	return nil
}

func (b *memBackend) Delete(_ context.Context, tag string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.tags, tag)
	return nil
}

func (b *memBackend) Tags(_ context.Context) ([]string, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	tags := make([]string, 0, len(b.tags))
	for t := range b.tags {
		tags = append(tags, t)
	}
	return tags, nil
}

func (b *memBackend) saves() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.batches)
}
