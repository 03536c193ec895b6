package feedtag

import (
	"github.com/kailas-cloud/feedtag/internal/domain/entry"
	"github.com/kailas-cloud/feedtag/internal/domain/verdict"
	"github.com/kailas-cloud/feedtag/internal/usecase/tagging"
)

// Verdict is the action a score recommends.
type Verdict string

// Verdicts.
const (
	VerdictNone    Verdict = Verdict(verdict.None)
	VerdictSuggest Verdict = Verdict(verdict.Suggest)
	VerdictAuto    Verdict = Verdict(verdict.Auto)
)

// Document is training or scoring input: text (HTML allowed) or ready tokens.
type Document struct {
	Text   string
	Tokens []string
}

// Text builds a Document from text or an HTML fragment.
func Text(s string) Document { return Document{Text: s} }

// Tokens builds a Document from pre-tokenized words.
func Tokens(words ...string) Document { return Document{Tokens: words} }

// TagInfo describes one tag's classifier.
type TagInfo struct {
	Name         string
	Words        int
	PositiveDocs int64
	NegativeDocs int64
	PendingWords int // changed words not yet flushed
}

// ReduceConfig holds the feature-pruning thresholds.
type ReduceConfig struct {
	MinDocSupport   int
	MaxDocFraction  float64
	MinProbDistance float64
}

// Score is the probability that a document belongs to a tag.
type Score struct {
	Tag         string
	Probability float64
	Verdict     Verdict
}

// Entry is a feed article.
type Entry struct {
	ID          string
	Title       string
	Summary     string // HTML
	Content     string // HTML
	OriginID    string
	OriginTitle string
	Keywords    []string
	Alternates  []string
	Categories  []string
	Tags        []string // tag labels; "global." tags are ignored
	Unread      bool
}

// Recommendation lists the suggested and auto tags for one entry.
type Recommendation struct {
	EntryID string
	Title   string
	Scores  []Score
}

func (d Document) toDomain() tagging.Document {
	return tagging.Document{Text: d.Text, Tokens: d.Tokens}
}

func (e Entry) toDomain() (entry.Entry, error) {
	return entry.New(entry.Fields{
		ID:          e.ID,
		Title:       e.Title,
		Summary:     e.Summary,
		Content:     e.Content,
		OriginID:    e.OriginID,
		OriginTitle: e.OriginTitle,
		Keywords:    e.Keywords,
		Alternates:  e.Alternates,
		Categories:  e.Categories,
		Tags:        e.Tags,
		Unread:      e.Unread,
	})
}

func tagInfoFromDomain(info tagging.TagInfo) TagInfo {
	return TagInfo{
		Name:         info.Name,
		Words:        info.Words,
		PositiveDocs: info.PositiveDocs,
		NegativeDocs: info.NegativeDocs,
		PendingWords: info.Pending,
	}
}

func scoreFromDomain(r tagging.Recommendation) Score {
	return Score{Tag: r.Tag, Probability: r.Probability, Verdict: Verdict(r.Verdict)}
}

func scoresFromDomain(recs []tagging.Recommendation) []Score {
	out := make([]Score, len(recs))
	for i, r := range recs {
		out[i] = scoreFromDomain(r)
	}
	return out
}
