// Package evidence persists per-tag word evidence behind a write-behind cache.
package evidence

import (
	"context"

	"github.com/kailas-cloud/feedtag/internal/domain/bayes"
)

// Batch is the set of changes accumulated for one tag since the last flush.
type Batch struct {
	// Upserts carries absolute record values, not increments.
	Upserts  map[string]bayes.WordRecord
	Removals []string
	Totals   bayes.Totals
}

// Empty reports whether the batch carries no word changes.
func (b Batch) Empty() bool { return len(b.Upserts) == 0 && len(b.Removals) == 0 }

// Backend is a durable evidence store. Implementations must apply a Batch atomically
// or report an error leaving the previous state readable.
type Backend interface {
	Load(ctx context.Context, tag string) (bayes.Snapshot, error)
	Save(ctx context.Context, tag string, b Batch) error
	Delete(ctx context.Context, tag string) error
	Tags(ctx context.Context) ([]string, error)
}
