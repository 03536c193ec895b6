package entry

import (
	"fmt"
	"strings"
)

// Untagged is the label of an entry without user tags.
const Untagged = "untagged"

// systemTagPrefix marks reader-managed tags such as global.read or global.saved.
const systemTagPrefix = "global."

// Fields holds the raw attributes of a feed article.
type Fields struct {
	ID          string
	Title       string
	Summary     string // HTML
	Content     string // HTML
	OriginID    string
	OriginTitle string
	Keywords    []string
	Alternates  []string // alternate hrefs
	Categories  []string // category labels
	Tags        []string // tag labels as stored by the reader
	Unread      bool
}

// Entry is a feed article (immutable value object).
type Entry struct {
	f      Fields
	labels []string
}

// Tokenizer turns entry text into normalized tokens.
type Tokenizer interface {
	// Tokenize extracts tokens from HTML or plain text.
	Tokenize(text string) []string
	// Term normalizes a single label-like value (keyword, category) into one token.
	Term(s string) string
}

// New validates and creates an Entry.
func New(f Fields) (Entry, error) {
	if strings.TrimSpace(f.ID) == "" {
		return Entry{}, fmt.Errorf("entry ID is required")
	}
	f.Keywords = cloneStrings(f.Keywords)
	f.Alternates = cloneStrings(f.Alternates)
	f.Categories = cloneStrings(f.Categories)
	f.Tags = cloneStrings(f.Tags)
	return Entry{f: f, labels: userLabels(f.Tags)}, nil
}

// ID returns the entry identifier.
func (e Entry) ID() string { return e.f.ID }

// Title returns the entry title.
func (e Entry) Title() string { return e.f.Title }

// Unread reports whether the user has not read the entry yet.
func (e Entry) Unread() bool { return e.f.Unread }

// Labels returns user tag labels, or [Untagged] when there are none.
func (e Entry) Labels() []string { return e.labels }

// Untagged reports whether the entry carries no user tag.
func (e Entry) Untagged() bool {
	return len(e.labels) == 1 && e.labels[0] == Untagged
}

// HasTag reports whether the user tagged the entry with tag.
func (e Entry) HasTag(tag string) bool {
	for _, l := range e.labels {
		if l == tag {
			return true
		}
	}
	return false
}

// TrainingLabel decides how the entry trains the classifier for tag.
// Tagged entries are positive; read entries without the tag are negative;
// unread entries without the tag carry no opinion yet and are skipped (ok=false).
func (e Entry) TrainingLabel(tag string) (label string, ok bool) {
	if e.HasTag(tag) {
		return tag, true
	}
	if !e.f.Unread {
		return "", true
	}
	return "", false
}

// Tokens collects tokens from every textual field of the entry.
func (e Entry) Tokens(t Tokenizer) []string {
	var out []string
	for _, text := range []string{e.f.Summary, e.f.Content, e.f.Title, e.f.OriginID, e.f.OriginTitle} {
		out = append(out, t.Tokenize(text)...)
	}
	for _, k := range e.f.Keywords {
		if term := t.Term(k); term != "" {
			out = append(out, term)
		}
	}
	for _, href := range e.f.Alternates {
		out = append(out, t.Tokenize(href)...)
	}
	for _, c := range e.f.Categories {
		if term := t.Term(c); term != "" {
			out = append(out, term)
		}
	}
	return out
}

func userLabels(tags []string) []string {
	labels := make([]string, 0, len(tags))
	for _, t := range tags {
		t = strings.TrimSpace(t)
		if t == "" || strings.HasPrefix(t, systemTagPrefix) {
			continue
		}
		labels = append(labels, t)
	}
	if len(labels) == 0 {
		return []string{Untagged}
	}
	return labels
}

func cloneStrings(s []string) []string {
	if s == nil {
		return nil
	}
	c := make([]string, len(s))
	copy(c, s)
	return c
}
