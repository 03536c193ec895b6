package chi

import (
	"github.com/kailas-cloud/feedtag/internal/domain/bayes"
	"github.com/kailas-cloud/feedtag/internal/usecase/tagging"
)

// TagResponse describes one tag.
type TagResponse struct {
	Name         string `json:"name"`
	Words        int    `json:"words"`
	PositiveDocs int64  `json:"positive_docs"`
	NegativeDocs int64  `json:"negative_docs"`
	Pending      int    `json:"pending_words"`
}

// TagListResponse is the body of GET /tags.
type TagListResponse struct {
	Items []TagResponse `json:"items"`
}

// CreateTagRequest is the body of POST /tags.
type CreateTagRequest struct {
	Name string `json:"name"`
}

// DocumentRequest carries text (HTML allowed) or pre-tokenized words.
type DocumentRequest struct {
	Text   string   `json:"text,omitempty"`
	Tokens []string `json:"tokens,omitempty"`
}

// TrainRequest is the body of POST /train.
type TrainRequest struct {
	Labels []string `json:"labels"`
	DocumentRequest
}

// TrainResponse echoes the labels trained positive.
type TrainResponse struct {
	Labels []string `json:"labels"`
	Tags   int      `json:"tags"`
}

// TrainEntriesResponse is the body of POST /train/entries.
type TrainEntriesResponse struct {
	Entries   int `json:"entries"`
	Documents int `json:"documents"`
}

// ReduceRequest overrides the configured thresholds. Omitted fields keep the configured value.
type ReduceRequest struct {
	MinDocSupport   *int     `json:"min_doc_support,omitempty"`
	MaxDocFraction  *float64 `json:"max_doc_fraction,omitempty"`
	MinProbDistance *float64 `json:"min_prob_distance,omitempty"`
}

// ReduceResponse reports how many words a reduction pruned.
type ReduceResponse struct {
	Tag     string `json:"tag"`
	Removed int    `json:"removed"`
	Words   int    `json:"words"`
}

// ReduceAllResponse maps each tag to the words pruned from it.
type ReduceAllResponse struct {
	Removed map[string]int `json:"removed"`
}

// ScoreResponse is one tag's verdict for a document.
type ScoreResponse struct {
	Tag         string  `json:"tag"`
	Probability float64 `json:"probability"`
	Verdict     string  `json:"verdict"`
}

// ScoreListResponse is the body of POST /score.
type ScoreListResponse struct {
	Items []ScoreResponse `json:"items"`
}

// RecommendationResponse lists actionable tags for one entry.
type RecommendationResponse struct {
	EntryID string          `json:"entry_id"`
	Title   string          `json:"title"`
	Tags    []ScoreResponse `json:"tags"`
}

// RecommendListResponse is the body of POST /recommend.
type RecommendListResponse struct {
	Items []RecommendationResponse `json:"items"`
}

// HealthResponse is the body of GET /health.
type HealthResponse struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks"`
}

func (d DocumentRequest) toDomain() tagging.Document {
	return tagging.Document{Text: d.Text, Tokens: d.Tokens}
}

func (r ReduceRequest) apply(base bayes.ReduceConfig) bayes.ReduceConfig {
	if r.MinDocSupport != nil {
		base.MinDocSupport = *r.MinDocSupport
	}
	if r.MaxDocFraction != nil {
		base.MaxDocFraction = *r.MaxDocFraction
	}
	if r.MinProbDistance != nil {
		base.MinProbDistance = *r.MinProbDistance
	}
	return base
}

func tagToResponse(info tagging.TagInfo) TagResponse {
	return TagResponse{
		Name:         info.Name,
		Words:        info.Words,
		PositiveDocs: info.PositiveDocs,
		NegativeDocs: info.NegativeDocs,
		Pending:      info.Pending,
	}
}

func scoreToResponse(r tagging.Recommendation) ScoreResponse {
	return ScoreResponse{Tag: r.Tag, Probability: r.Probability, Verdict: string(r.Verdict)}
}

func scoresToResponse(recs []tagging.Recommendation) []ScoreResponse {
	out := make([]ScoreResponse, len(recs))
	for i, r := range recs {
		out[i] = scoreToResponse(r)
	}
	return out
}
