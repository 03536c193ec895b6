package evidence

import (
	"context"
	"fmt"

	"github.com/kailas-cloud/feedtag/internal/domain/bayes"
)

// Repo opens write-behind caches over a Backend, one per tag.
type Repo struct {
	backend Backend
}

// NewRepo creates a repository over backend.
func NewRepo(backend Backend) *Repo {
	return &Repo{backend: backend}
}

// Open returns a write-behind cache loaded with the persisted evidence of tag.
func (r *Repo) Open(ctx context.Context, tag string) (bayes.DurableStore, error) {
	c, err := Load(ctx, tag, r.backend)
	if err != nil {
		return nil, err
	}
	return c, nil
}

// Delete drops the persisted evidence of tag.
func (r *Repo) Delete(ctx context.Context, tag string) error {
	if err := r.backend.Delete(ctx, tag); err != nil {
		return fmt.Errorf("delete %s: %w", tag, err)
	}
	return nil
}

// Tags lists persisted tags.
func (r *Repo) Tags(ctx context.Context) ([]string, error) {
	tags, err := r.backend.Tags(ctx)
	if err != nil {
		return nil, fmt.Errorf("list tags: %w", err)
	}
	return tags, nil
}
