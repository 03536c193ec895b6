package tagging

import (
	"context"
	"errors"
	"sort"
	"strings"
	"sync"
	"testing"

	"go.uber.org/zap"

	"github.com/kailas-cloud/feedtag/internal/domain/bayes"
)

// spaceTokenizer splits on whitespace and lower-cases.
type spaceTokenizer struct{}

func (spaceTokenizer) Tokenize(text string) []string { return strings.Fields(strings.ToLower(text)) }
func (spaceTokenizer) Term(s string) string           { return strings.ToLower(strings.TrimSpace(s)) }

// mockDurable is a MemoryStore that counts flushes.
type mockDurable struct {
	*bayes.MemoryStore
	mu       sync.Mutex
	flushes  int
	flushErr error
	// entered and release, when set, hold Flush until the test lets it go.
	entered chan struct{}
	release chan struct{}
}

func (m *mockDurable) Flush(_ context.Context) error {
	if m.release != nil {
		close(m.entered)
		<-m.release
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.flushErr != nil {
		return m.flushErr
	}
	m.flushes++
	return nil
}

func (m *mockDurable) Pending() int { return 0 }

func (m *mockDurable) flushCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.flushes
}

// mockTagStore implements TagStore over mockDurable stores.
type mockTagStore struct {
	mu      sync.Mutex
	stores  map[string]*mockDurable
	deleted []string
	openErr error
	tagsErr error
}

func newMockTagStore(persisted ...string) *mockTagStore {
	m := &mockTagStore{stores: make(map[string]*mockDurable)}
	for _, t := range persisted {
		m.stores[t] = &mockDurable{MemoryStore: bayes.NewMemoryStore()}
	}
	return m
}

func (m *mockTagStore) Open(_ context.Context, tag string) (bayes.DurableStore, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.openErr != nil {
		return nil, m.openErr
	}
	st, ok := m.stores[tag]
	if !ok {
		st = &mockDurable{MemoryStore: bayes.NewMemoryStore()}
		m.stores[tag] = st
	}
	return st, nil
}

func (m *mockTagStore) Delete(_ context.Context, tag string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.stores, tag)
	m.deleted = append(m.deleted, tag)
	return nil
}

func (m *mockTagStore) Tags(_ context.Context) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.tagsErr != nil {
		return nil, m.tagsErr
	}
	tags := make([]string, 0, len(m.stores))
	for t := range m.stores {
		tags = append(tags, t)
	}
	sort.Strings(tags)
	return tags, nil
}

func (m *mockTagStore) store(tag string) *mockDurable {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.stores[tag]
}

var errBackendDown = errors.New("backend down")

func testConfig() Config {
	return Config{Reduce: bayes.ReduceConfig{MinDocSupport: 1, MaxDocFraction: 1}}
}

func newTestService(t *testing.T, store TagStore) *Service {
	t.Helper()
	svc, err := New(store, spaceTokenizer{}, testConfig(), zap.NewNop())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return svc
}
