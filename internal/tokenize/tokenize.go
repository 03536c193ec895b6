// Package tokenize turns feed HTML into normalized word tokens.
package tokenize

import (
	"fmt"
	"strings"
	"sync"
	"unicode"
	"unicode/utf8"

	"github.com/tebeka/snowball"
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// Config holds tokenizer settings.
type Config struct {
	Stem      bool   // apply Snowball stemming
	Language  string // Snowball language, e.g. "english", "german"
	MinLength int    // drop tokens shorter than this many runes
}

// Tokenizer strips markup, lower-cases and splits text on non-letters.
// Safe for concurrent use.
type Tokenizer struct {
	minLength int
	lower     cases.Caser

	mu      sync.Mutex // guards stemmer and lower
	stemmer *snowball.Stemmer
}

// New creates a Tokenizer. Call Close to release the stemmer.
func New(cfg Config) (*Tokenizer, error) {
	t := &Tokenizer{
		minLength: cfg.MinLength,
		lower:     cases.Lower(language.Und),
	}
	if t.minLength < 1 {
		t.minLength = 1
	}
	if cfg.Stem {
		lang := cfg.Language
		if lang == "" {
			lang = "english"
		}
		st, err := snowball.New(lang)
		if err != nil {
			return nil, fmt.Errorf("create %s stemmer: %w", lang, err)
		}
		t.stemmer = st
	}
	return t, nil
}

// Close releases the stemmer.
func (t *Tokenizer) Close() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.stemmer != nil {
		t.stemmer.Close()
		t.stemmer = nil
	}
}

// Tokenize extracts tokens from an HTML fragment or plain text.
func (t *Tokenizer) Tokenize(text string) []string {
	if strings.TrimSpace(text) == "" {
		return nil
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	plain := t.lower.String(PlainText(text))
	words := strings.FieldsFunc(plain, func(r rune) bool { return !unicode.IsLetter(r) })

	out := words[:0]
	for _, w := range words {
		if w = t.normalize(w); w != "" {
			out = append(out, w)
		}
	}
	return out
}

// Term normalizes a keyword or category label into a single token.
func (t *Tokenizer) Term(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return ""
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.normalize(t.lower.String(s))
}

// normalize applies the length filter and stemming. Caller holds mu.
func (t *Tokenizer) normalize(w string) string {
	if utf8.RuneCountInString(w) < t.minLength {
		return ""
	}
	if t.stemmer != nil {
		w = t.stemmer.Stem(w)
	}
	return w
}

// PlainText returns the text content of an HTML fragment, skipping script and style bodies.
// Text nodes are joined with spaces so adjacent block elements do not glue words together.
func PlainText(fragment string) string {
	var b strings.Builder
	z := html.NewTokenizer(strings.NewReader(fragment))
	skip := 0
	for {
		switch z.Next() {
		case html.ErrorToken:
			return b.String()
		case html.StartTagToken:
			if a := tagAtom(z); a == atom.Script || a == atom.Style {
				skip++
			}
		case html.EndTagToken:
			if a := tagAtom(z); (a == atom.Script || a == atom.Style) && skip > 0 {
				skip--
			}
		case html.TextToken:
			if skip == 0 {
				b.Write(z.Text())
				b.WriteByte(' ')
			}
		}
	}
}

func tagAtom(z *html.Tokenizer) atom.Atom {
	name, _ := z.TagName()
	return atom.Lookup(name)
}
