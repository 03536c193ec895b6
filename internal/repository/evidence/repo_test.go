package evidence

import (
	"context"
	"testing"

	"github.com/kailas-cloud/feedtag/internal/domain/bayes"
)

func TestRepo_OpenNewTagPersistsOnFlush(t *testing.T) {
	backend := newMemBackend()
	repo := NewRepo(backend)
	ctx := context.Background()

	store, err := repo.Open(ctx, "golang")
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if store.Len() != 0 {
		t.Errorf("new tag Len = %d", store.Len())
	}
	if err := store.Flush(ctx); err != nil {
		t.Fatalf("Flush: %v", err)
	}
	tags, _ := repo.Tags(ctx)
	if len(tags) != 1 || tags[0] != "golang" {
		t.Errorf("tags = %v", tags)
	}
}

func TestRepo_OpenRestoresEvidence(t *testing.T) {
	backend := newMemBackend()
	repo := NewRepo(backend)
	ctx := context.Background()

	first, _ := repo.Open(ctx, "golang")
	first.Apply(bayes.NewDelta(true, []string{"go"}))
	if err := first.Flush(ctx); err != nil {
		t.Fatalf("Flush: %v", err)
	}

	second, err := repo.Open(ctx, "golang")
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if rec, ok := second.Get("go"); !ok || rec.PositiveDocs != 1 {
		t.Errorf("go = %+v, %v", rec, ok)
	}
	if second.Pending() != 0 {
		t.Errorf("restored store should be clean, Pending = %d", second.Pending())
	}
	saves := backend.saves()
	if err := second.Flush(ctx); err != nil {
		t.Fatalf("Flush: %v", err)
	}
	if backend.saves() != saves {
		t.Error("clean restored store must not write")
	}
}

func TestRepo_Delete(t *testing.T) {
	backend := newMemBackend()
	repo := NewRepo(backend)
	ctx := context.Background()

	store, _ := repo.Open(ctx, "golang")
	_ = store.Flush(ctx)
	if err := repo.Delete(ctx, "golang"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	tags, _ := repo.Tags(ctx)
	if len(tags) != 0 {
		t.Errorf("tags after delete = %v", tags)
	}
}
