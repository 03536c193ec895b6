// Package bayes implements the per-tag word-evidence classifier:
// training counts, feature pruning and Graham-style document scoring.
package bayes

import (
	"io"
	"sync"
)

// DefaultTopWords is the number of most extreme word probabilities combined into a document score.
const DefaultTopWords = 100

// Classifier answers "is this document an instance of tag Name?".
// Add, Score and WordProbability may run concurrently; Reduce is exclusive.
type Classifier struct {
	name     string
	store    Store
	topWords int
	mu       sync.RWMutex
}

// Option configures a Classifier.
type Option func(*Classifier)

// WithStore selects the evidence store (default: a fresh MemoryStore).
func WithStore(s Store) Option {
	return func(c *Classifier) {
		if s != nil {
			c.store = s
		}
	}
}

// WithTopWords overrides how many word probabilities are combined per document.
func WithTopWords(k int) Option {
	return func(c *Classifier) {
		if k > 0 {
			c.topWords = k
		}
	}
}

// New creates an empty classifier for the given tag.
func New(name string, opts ...Option) *Classifier {
	c := &Classifier{name: name, topWords: DefaultTopWords}
	for _, opt := range opts {
		opt(c)
	}
	if c.store == nil {
		c.store = NewMemoryStore()
	}
	return c
}

// Name returns the tag this classifier discriminates for.
func (c *Classifier) Name() string { return c.name }

// Add trains one document. label equal to Name() counts as positive evidence,
// anything else as negative.
func (c *Classifier) Add(label string, tokens []string) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	c.store.Apply(NewDelta(label == c.name, tokens))
}

// Stats describes the current size of the evidence store.
type Stats struct {
	Name         string
	Words        int
	PositiveDocs int64
	NegativeDocs int64
}

// Stats returns vocabulary size and document totals.
func (c *Classifier) Stats() Stats {
	c.mu.RLock()
	defer c.mu.RUnlock()
	t := c.store.Totals()
	return Stats{
		Name:         c.name,
		Words:        c.store.Len(),
		PositiveDocs: t.Positive,
		NegativeDocs: t.Negative,
	}
}

// Close releases the store if it holds resources. No-op for in-memory stores.
func (c *Classifier) Close() error {
	if cl, ok := c.store.(io.Closer); ok {
		return cl.Close()
	}
	return nil
}
