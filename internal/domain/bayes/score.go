package bayes

import (
	"math"
	"sort"
)

const (
	neutralProbability = 0.5
	minProbability     = 0.01
	maxProbability     = 0.99

	// positiveWeight doubles positive occurrences: tags usually have far fewer
	// positive than negative training documents.
	positiveWeight = 2
)

// WordProbability estimates P(tag | word). Unknown words are neutral (0.5).
func (c *Classifier) WordProbability(word string) float64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.wordProbability(word, c.store.Totals())
}

func (c *Classifier) wordProbability(word string, totals Totals) float64 {
	rec, ok := c.store.Get(word)
	if !ok {
		return neutralProbability
	}

	var posRate, negRate float64
	if totals.Positive > 0 {
		posRate = math.Min(1, float64(rec.PositiveOccurrences)*positiveWeight/float64(totals.Positive))
	}
	if totals.Negative > 0 {
		negRate = math.Min(1, float64(rec.NegativeOccurrences)/float64(totals.Negative))
	}
	if posRate+negRate == 0 {
		return neutralProbability
	}

	p := posRate / (posRate + negRate)
	return math.Max(minProbability, math.Min(maxProbability, p))
}

// Score returns the probability that a tokenized document belongs to the tag.
// Only the topWords probabilities farthest from 0.5 take part.
func (c *Classifier) Score(tokens []string) float64 {
	c.mu.RLock()
	totals := c.store.Totals()
	probs := make([]float64, len(tokens))
	for i, t := range tokens {
		probs[i] = c.wordProbability(t, totals)
	}
	c.mu.RUnlock()

	return combine(mostInteresting(probs, c.topWords))
}

// mostInteresting keeps the k probabilities with the largest distance from 0.5.
// The sort is stable, so ties keep their order of appearance.
func mostInteresting(probs []float64, k int) []float64 {
	sort.SliceStable(probs, func(i, j int) bool {
		return math.Abs(probs[i]-neutralProbability) > math.Abs(probs[j]-neutralProbability)
	})
	if len(probs) > k {
		probs = probs[:k]
	}
	return probs
}

// combine merges independent estimates: Πp / (Πp + Π(1-p)).
// Evaluated in log-odds form so that long documents cannot underflow;
// an empty or all-neutral input yields exactly 0.5.
func combine(probs []float64) float64 {
	var eta float64
	for _, p := range probs {
		eta += math.Log(1-p) - math.Log(p)
	}
	return 1 / (1 + math.Exp(eta))
}
