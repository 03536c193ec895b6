package bayes

// WordRecord is the evidence collected for one token.
// Occurrences count every appearance, Docs count documents containing the token at least once.
type WordRecord struct {
	PositiveOccurrences int64
	NegativeOccurrences int64
	PositiveDocs        int64
	NegativeDocs        int64
}

// Support returns the number of training documents containing the word.
func (r WordRecord) Support() int64 { return r.PositiveDocs + r.NegativeDocs }

// ClassFraction returns the share of occurrences seen in positive documents.
// ok is false when the word has no occurrences at all.
func (r WordRecord) ClassFraction() (fraction float64, ok bool) {
	total := r.PositiveOccurrences + r.NegativeOccurrences
	if total == 0 {
		return 0, false
	}
	return float64(r.PositiveOccurrences) / float64(total), true
}

// Totals holds the number of training documents per class.
type Totals struct {
	Positive int64
	Negative int64
}

// Docs returns the number of training documents across both classes.
func (t Totals) Docs() int64 { return t.Positive + t.Negative }

// Delta is the evidence contributed by a single training document.
type Delta struct {
	Positive bool
	// Counts maps each distinct token of the document to its number of occurrences.
	Counts map[string]int64
}

// NewDelta counts the tokens of one document.
func NewDelta(positive bool, tokens []string) Delta {
	counts := make(map[string]int64, len(tokens))
	for _, t := range tokens {
		counts[t]++
	}
	return Delta{Positive: positive, Counts: counts}
}

// applyTo merges the delta into rec for a single word seen n times.
func (d Delta) applyTo(rec WordRecord, n int64) WordRecord {
	if d.Positive {
		rec.PositiveOccurrences += n
		rec.PositiveDocs++
	} else {
		rec.NegativeOccurrences += n
		rec.NegativeDocs++
	}
	return rec
}

// Snapshot is a point-in-time copy of an evidence store.
type Snapshot struct {
	Words  map[string]WordRecord
	Totals Totals
}
