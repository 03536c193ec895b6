package tagging

import (
	"context"

	"github.com/kailas-cloud/feedtag/internal/domain/bayes"
)

// TagStore persists evidence per tag. A nil TagStore keeps every tag in memory only.
type TagStore interface {
	Open(ctx context.Context, tag string) (bayes.DurableStore, error)
	Delete(ctx context.Context, tag string) error
	Tags(ctx context.Context) ([]string, error)
}

// Tokenizer turns document text into tokens.
type Tokenizer interface {
	Tokenize(text string) []string
	Term(s string) string
}
