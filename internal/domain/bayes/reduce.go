package bayes

import (
	"fmt"
	"math"

	"github.com/kailas-cloud/feedtag/internal/domain"
)

// ReduceConfig holds the feature-selection thresholds.
type ReduceConfig struct {
	// MinDocSupport drops words seen in fewer documents.
	MinDocSupport int
	// MaxDocFraction drops words present in more than this share of all documents.
	MaxDocFraction float64
	// MinProbDistance drops words whose class fraction lies closer to 0.5.
	MinProbDistance float64
}

// Validate checks every threshold against its range.
func (c ReduceConfig) Validate() error {
	if c.MinDocSupport < 1 {
		return fmt.Errorf("%w: min_doc_support must be >= 1, got %d", domain.ErrInvalidReduceConfig, c.MinDocSupport)
	}
	if math.IsNaN(c.MaxDocFraction) || c.MaxDocFraction <= 0 || c.MaxDocFraction > 1 {
		return fmt.Errorf("%w: max_doc_fraction must be in (0,1], got %g", domain.ErrInvalidReduceConfig, c.MaxDocFraction)
	}
	if math.IsNaN(c.MinProbDistance) || c.MinProbDistance < 0 || c.MinProbDistance >= 0.5 {
		return fmt.Errorf("%w: min_prob_distance must be in [0,0.5), got %g",
			domain.ErrInvalidReduceConfig, c.MinProbDistance)
	}
	return nil
}

func (c ReduceConfig) String() string {
	return fmt.Sprintf("{minDoc=%d maxDocP=%g minP=%g}", c.MinDocSupport, c.MaxDocFraction, c.MinProbDistance)
}

// prunes reports whether a word fails any threshold.
func (c ReduceConfig) prunes(rec WordRecord, maxDocs float64) bool {
	support := rec.Support()
	if support < int64(c.MinDocSupport) || float64(support) > maxDocs {
		return true
	}
	frac, ok := rec.ClassFraction()
	return ok && math.Abs(frac-neutralProbability) < c.MinProbDistance
}

// Reduce removes words that are too rare, too common, or lean toward neither class.
// Counts of surviving words are untouched, so a second pass with the same cfg removes nothing.
func (c *Classifier) Reduce(cfg ReduceConfig) (removed int, err error) {
	if err := cfg.Validate(); err != nil {
		return 0, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	maxDocs := float64(c.store.Totals().Docs()) * cfg.MaxDocFraction

	var doomed []string
	c.store.Range(func(word string, rec WordRecord) bool {
		if cfg.prunes(rec, maxDocs) {
			doomed = append(doomed, word)
		}
		return true
	})
	c.store.Remove(doomed...)

	return len(doomed), nil
}
