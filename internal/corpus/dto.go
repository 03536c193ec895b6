package corpus

import (
	"strings"

	"github.com/kailas-cloud/feedtag/internal/domain/entry"
)

// entryDTO mirrors a feed reader's stream item as exported to JSON.
type entryDTO struct {
	ID         string     `json:"id"`
	OriginID   string     `json:"originId"`
	Title      string     `json:"title"`
	Keywords   []string   `json:"keywords"`
	Unread     bool       `json:"unread"`
	Origin     *originDTO `json:"origin"`
	Summary    *bodyDTO   `json:"summary"`
	Content    *bodyDTO   `json:"content"`
	Alternate  []hrefDTO  `json:"alternate"`
	Categories []labelDTO `json:"categories"`
	Tags       []labelDTO `json:"tags"`
}

type originDTO struct {
	StreamID string `json:"streamId"`
	Title    string `json:"title"`
	HTMLURL  string `json:"htmlUrl"`
}

type bodyDTO struct {
	Content string `json:"content"`
}

type hrefDTO struct {
	Href string `json:"href"`
	Type string `json:"type"`
}

type labelDTO struct {
	ID    string `json:"id"`
	Label string `json:"label"`
}

// name prefers the label and falls back to the id suffix ("user/x/tag/global.saved").
func (l labelDTO) name() string {
	if l.Label != "" {
		return l.Label
	}
	if i := strings.LastIndex(l.ID, "/tag/"); i >= 0 {
		return l.ID[i+len("/tag/"):]
	}
	if i := strings.LastIndex(l.ID, "/category/"); i >= 0 {
		return l.ID[i+len("/category/"):]
	}
	return ""
}

func (d entryDTO) toDomain() (entry.Entry, error) {
	f := entry.Fields{
		ID:       d.ID,
		Title:    d.Title,
		OriginID: d.OriginID,
		Keywords: d.Keywords,
		Unread:   d.Unread,
	}
	if d.Origin != nil {
		f.OriginTitle = d.Origin.Title
	}
	if d.Summary != nil {
		f.Summary = d.Summary.Content
	}
	if d.Content != nil {
		f.Content = d.Content.Content
	}
	for _, a := range d.Alternate {
		if a.Href != "" {
			f.Alternates = append(f.Alternates, a.Href)
		}
	}
	for _, c := range d.Categories {
		if n := c.name(); n != "" {
			f.Categories = append(f.Categories, n)
		}
	}
	for _, t := range d.Tags {
		if n := t.name(); n != "" {
			f.Tags = append(f.Tags, n)
		}
	}
	return entry.New(f)
}
