package evidence

import (
	"context"
	"errors"
	"reflect"
	"sort"
	"sync"
	"testing"

	"github.com/kailas-cloud/feedtag/internal/domain/bayes"
)

func TestCache_FlushThenLoadRoundTrip(t *testing.T) {
	backend := newMemBackend()
	ctx := context.Background()

	c := bayes.New("golang")
	c.Add("golang", []string{"go", "channels", "go"})
	c.Add("other", []string{"java", "beans"})
	before := c.Score([]string{"go", "java"})

	cache := NewCache("golang", backend)
	cache.Apply(bayes.NewDelta(true, []string{"go", "channels", "go"}))
	cache.Apply(bayes.NewDelta(false, []string{"java", "beans"}))
	if err := cache.Flush(ctx); err != nil {
		t.Fatalf("Flush: %v", err)
	}

	loaded, err := Load(ctx, "golang", backend)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if loaded.Len() != 4 {
		t.Errorf("Len = %d, want 4", loaded.Len())
	}
	if got := loaded.Totals(); got != (bayes.Totals{Positive: 1, Negative: 1}) {
		t.Errorf("Totals = %+v", got)
	}
	rec, _ := loaded.Get("go")
	if rec.PositiveOccurrences != 2 || rec.PositiveDocs != 1 {
		t.Errorf("go = %+v", rec)
	}

	after := bayes.New("golang", bayes.WithStore(loaded)).Score([]string{"go", "java"})
	if after != before {
		t.Errorf("score after reload = %v, want %v", after, before)
	}
}

func TestCache_FlushOnlyDirtyWords(t *testing.T) {
	backend := newMemBackend()
	ctx := context.Background()
	cache := NewCache("golang", backend)

	cache.Apply(bayes.NewDelta(true, []string{"a", "b"}))
	if err := cache.Flush(ctx); err != nil {
		t.Fatalf("Flush: %v", err)
	}
	cache.Apply(bayes.NewDelta(false, []string{"c"}))
	if err := cache.Flush(ctx); err != nil {
		t.Fatalf("Flush: %v", err)
	}

	last := backend.batches[len(backend.batches)-1]
	if len(last.Upserts) != 1 {
		t.Fatalf("expected 1 upsert, got %v", last.Upserts)
	}
	if _, ok := last.Upserts["c"]; !ok {
		t.Errorf("expected c upserted, got %v", last.Upserts)
	}
	if last.Totals != (bayes.Totals{Positive: 1, Negative: 1}) {
		t.Errorf("totals = %+v", last.Totals)
	}
}

func TestCache_FlushNoopWhenClean(t *testing.T) {
	backend := newMemBackend()
	ctx := context.Background()
	cache := NewCache("golang", backend)

	if err := cache.Flush(ctx); err != nil {
		t.Fatalf("Flush: %v", err)
	}
	if backend.saves() != 1 {
		t.Fatalf("new tag must be persisted once, saves = %d", backend.saves())
	}
	if err := cache.Flush(ctx); err != nil {
		t.Fatalf("Flush: %v", err)
	}
	if backend.saves() != 1 {
		t.Errorf("clean flush must not save, saves = %d", backend.saves())
	}
}

func TestCache_RemovalsPersist(t *testing.T) {
	backend := newMemBackend()
	ctx := context.Background()
	cache := NewCache("golang", backend)

	cache.Apply(bayes.NewDelta(true, []string{"keep", "drop"}))
	if err := cache.Flush(ctx); err != nil {
		t.Fatalf("Flush: %v", err)
	}
	cache.Remove("drop")
	if cache.Pending() != 1 {
		t.Errorf("Pending = %d, want 1", cache.Pending())
	}
	if err := cache.Flush(ctx); err != nil {
		t.Fatalf("Flush: %v", err)
	}

	snap, _ := backend.Load(ctx, "golang")
	if _, ok := snap.Words["drop"]; ok {
		t.Error("drop should be removed from backend")
	}
	if _, ok := snap.Words["keep"]; !ok {
		t.Error("keep should survive")
	}
}

func TestCache_RemoveThenReAdd(t *testing.T) {
	backend := newMemBackend()
	ctx := context.Background()
	cache := NewCache("golang", backend)

	cache.Apply(bayes.NewDelta(true, []string{"w"}))
	cache.Remove("w")
	cache.Apply(bayes.NewDelta(false, []string{"w"}))
	if err := cache.Flush(ctx); err != nil {
		t.Fatalf("Flush: %v", err)
	}
	snap, _ := backend.Load(ctx, "golang")
	want := bayes.WordRecord{NegativeOccurrences: 1, NegativeDocs: 1}
	if snap.Words["w"] != want {
		t.Errorf("w = %+v, want %+v", snap.Words["w"], want)
	}
}

func TestCache_FailedFlushKeepsPending(t *testing.T) {
	backend := newMemBackend()
	backend.saveErr = errors.New("backend down")
	ctx := context.Background()
	cache := NewCache("golang", backend)

	cache.Apply(bayes.NewDelta(true, []string{"a", "b"}))
	if err := cache.Flush(ctx); err == nil {
		t.Fatal("expected flush error")
	}
	if cache.Pending() != 2 {
		t.Fatalf("Pending = %d, want 2", cache.Pending())
	}

	backend.saveErr = nil
	if err := cache.Flush(ctx); err != nil {
		t.Fatalf("Flush: %v", err)
	}
	if cache.Pending() != 0 {
		t.Errorf("Pending = %d, want 0", cache.Pending())
	}
	snap, _ := backend.Load(ctx, "golang")
	got := make([]string, 0, len(snap.Words))
	for w := range snap.Words {
		got = append(got, w)
	}
	sort.Strings(got)
	if !reflect.DeepEqual(got, []string{"a", "b"}) {
		t.Errorf("persisted words = %v", got)
	}
}

func TestCache_ReduceThroughClassifier(t *testing.T) {
	backend := newMemBackend()
	ctx := context.Background()
	cache := NewCache("golang", backend)
	c := bayes.New("golang", bayes.WithStore(cache))

	c.Add("golang", []string{"go", "rare"})
	c.Add("golang", []string{"go"})
	c.Add("other", []string{"java"})
	if err := cache.Flush(ctx); err != nil {
		t.Fatalf("Flush: %v", err)
	}

	removed, err := c.Reduce(bayes.ReduceConfig{MinDocSupport: 2, MaxDocFraction: 1})
	if err != nil {
		t.Fatalf("Reduce: %v", err)
	}
	if removed != 2 {
		t.Fatalf("removed = %d, want 2", removed)
	}
	if err := cache.Flush(ctx); err != nil {
		t.Fatalf("Flush: %v", err)
	}
	snap, _ := backend.Load(ctx, "golang")
	if len(snap.Words) != 1 {
		t.Errorf("persisted words = %v, want only go", snap.Words)
	}
}

func TestCache_ConcurrentApplyAndFlush(t *testing.T) {
	backend := newMemBackend()
	ctx := context.Background()
	cache := NewCache("golang", backend)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			for j := 0; j < 50; j++ {
				cache.Apply(bayes.NewDelta(i%2 == 0, []string{"shared", "w"}))
				if j%10 == 0 {
					_ = cache.Flush(ctx)
				}
			}
		}(i)
	}
	wg.Wait()
	if err := cache.Flush(ctx); err != nil {
		t.Fatalf("Flush: %v", err)
	}

	snap, _ := backend.Load(ctx, "golang")
	if snap.Totals.Docs() != 400 {
		t.Errorf("persisted docs = %d, want 400", snap.Totals.Docs())
	}
	rec := snap.Words["shared"]
	if rec.Support() != 400 {
		t.Errorf("shared support = %d, want 400", rec.Support())
	}
	if got, _ := cache.Get("shared"); got != rec {
		t.Errorf("memory %+v != persisted %+v", got, rec)
	}
}
