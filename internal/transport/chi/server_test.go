package chi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"go.uber.org/zap"

	"github.com/kailas-cloud/feedtag/internal/domain"
	"github.com/kailas-cloud/feedtag/internal/domain/bayes"
	"github.com/kailas-cloud/feedtag/internal/tokenize"
	healthuc "github.com/kailas-cloud/feedtag/internal/usecase/health"
	"github.com/kailas-cloud/feedtag/internal/usecase/tagging"
)

type stubPinger struct{ err error }

func (p stubPinger) Ping(context.Context) error { return p.err }

func newTestRouter(t *testing.T, health *healthuc.Service) (http.Handler, *tagging.Service) {
	t.Helper()
	tok, err := tokenize.New(tokenize.Config{MinLength: 1})
	if err != nil {
		t.Fatal(err)
	}
	svc, err := tagging.New(nil, tok, tagging.Config{
		Reduce: bayes.ReduceConfig{MinDocSupport: 1, MaxDocFraction: 1, MinProbDistance: 0},
	}, zap.NewNop())
	if err != nil {
		t.Fatal(err)
	}
	if health == nil {
		health = healthuc.New(nil, nil)
	}
	srv := NewServer(svc, health, zap.NewNop())
	return NewRouter(srv, RouterConfig{MaxBodyBytes: 1 << 16}), svc
}

func do(t *testing.T, h http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	switch b := body.(type) {
	case nil:
	case string:
		buf.WriteString(b)
	default:
		if err := json.NewEncoder(&buf).Encode(b); err != nil {
			t.Fatal(err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	return rr
}

func decode[T any](t *testing.T, rr *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.NewDecoder(rr.Body).Decode(&v); err != nil {
		t.Fatalf("decode %T: %v (body %q)", v, err, rr.Body.String())
	}
	return v
}

func train(t *testing.T, h http.Handler, labels []string, text string) {
	t.Helper()
	rr := do(t, h, http.MethodPost, "/train", TrainRequest{Labels: labels, DocumentRequest: DocumentRequest{Text: text}})
	if rr.Code != http.StatusOK {
		t.Fatalf("train: %d %s", rr.Code, rr.Body.String())
	}
}

func TestPutTag(t *testing.T) {
	h, _ := newTestRouter(t, nil)

	rr := do(t, h, http.MethodPut, "/tags/golang", nil)
	if rr.Code != http.StatusCreated {
		t.Fatalf("first PUT: got %d, want 201", rr.Code)
	}
	if got := decode[TagResponse](t, rr); got.Name != "golang" {
		t.Errorf("name = %q", got.Name)
	}

	rr = do(t, h, http.MethodPut, "/tags/golang", nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("second PUT: got %d, want 200", rr.Code)
	}

	rr = do(t, h, http.MethodPut, "/tags/global.saved", nil)
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("system tag: got %d, want 400", rr.Code)
	}
	if got := decode[ErrorResponse](t, rr); got.Code != CodeInvalidTag {
		t.Errorf("code = %s, want %s", got.Code, CodeInvalidTag)
	}
}

func TestCreateTag_Conflict(t *testing.T) {
	h, _ := newTestRouter(t, nil)

	rr := do(t, h, http.MethodPost, "/tags", CreateTagRequest{Name: "golang"})
	if rr.Code != http.StatusCreated {
		t.Fatalf("first POST: got %d, want 201 (%s)", rr.Code, rr.Body.String())
	}
	if got := decode[TagResponse](t, rr); got.Name != "golang" {
		t.Errorf("name = %q", got.Name)
	}

	rr = do(t, h, http.MethodPost, "/tags", CreateTagRequest{Name: "golang"})
	if rr.Code != http.StatusConflict {
		t.Fatalf("duplicate POST: got %d, want 409", rr.Code)
	}
	if got := decode[ErrorResponse](t, rr); got.Code != CodeTagExists {
		t.Errorf("code = %s, want %s", got.Code, CodeTagExists)
	}

	rr = do(t, h, http.MethodPost, "/tags", CreateTagRequest{})
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("empty name: got %d, want 400", rr.Code)
	}
}

func TestListAndGetTags(t *testing.T) {
	h, _ := newTestRouter(t, nil)
	train(t, h, []string{"golang"}, "goroutine channel")
	train(t, h, []string{"cooking"}, "flour oven")

	rr := do(t, h, http.MethodGet, "/tags", nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("list: %d", rr.Code)
	}
	list := decode[TagListResponse](t, rr)
	if len(list.Items) != 2 || list.Items[0].Name != "cooking" || list.Items[1].Name != "golang" {
		t.Fatalf("items = %+v", list.Items)
	}
	if list.Items[1].PositiveDocs != 1 || list.Items[1].NegativeDocs != 1 {
		t.Errorf("golang totals = %+v", list.Items[1])
	}

	rr = do(t, h, http.MethodGet, "/tags/golang", nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("get: %d", rr.Code)
	}
	rr = do(t, h, http.MethodGet, "/tags/rust", nil)
	if rr.Code != http.StatusNotFound {
		t.Fatalf("get missing: got %d, want 404", rr.Code)
	}
	if got := decode[ErrorResponse](t, rr); got.Code != CodeTagNotFound {
		t.Errorf("code = %s", got.Code)
	}
}

func TestDeleteTag(t *testing.T) {
	h, _ := newTestRouter(t, nil)
	do(t, h, http.MethodPut, "/tags/golang", nil)

	if rr := do(t, h, http.MethodDelete, "/tags/golang", nil); rr.Code != http.StatusNoContent {
		t.Fatalf("delete: got %d, want 204", rr.Code)
	}
	if rr := do(t, h, http.MethodDelete, "/tags/golang", nil); rr.Code != http.StatusNotFound {
		t.Fatalf("second delete: got %d, want 404", rr.Code)
	}
}

func TestTrain_Errors(t *testing.T) {
	h, _ := newTestRouter(t, nil)

	rr := do(t, h, http.MethodPost, "/train", TrainRequest{Labels: []string{"golang"}})
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("empty document: got %d, want 400", rr.Code)
	}
	if got := decode[ErrorResponse](t, rr); got.Code != CodeEmptyDocument {
		t.Errorf("code = %s", got.Code)
	}

	if rr := do(t, h, http.MethodPost, "/train", "{broken"); rr.Code != http.StatusBadRequest {
		t.Fatalf("malformed body: got %d, want 400", rr.Code)
	}
	if rr := do(t, h, http.MethodPost, "/train", nil); rr.Code != http.StatusBadRequest {
		t.Fatalf("missing body: got %d, want 400", rr.Code)
	}
}

func TestScore(t *testing.T) {
	h, _ := newTestRouter(t, nil)
	for range 5 {
		train(t, h, []string{"golang"}, "goroutine channel compiler")
		train(t, h, []string{"cooking"}, "flour oven butter")
	}

	rr := do(t, h, http.MethodPost, "/tags/golang/score", DocumentRequest{Tokens: []string{"goroutine", "channel"}})
	if rr.Code != http.StatusOK {
		t.Fatalf("score tag: %d %s", rr.Code, rr.Body.String())
	}
	got := decode[ScoreResponse](t, rr)
	if got.Tag != "golang" || got.Probability <= 0.9 || got.Verdict != "auto" {
		t.Errorf("score = %+v", got)
	}

	rr = do(t, h, http.MethodPost, "/score", DocumentRequest{Text: "<p>butter and flour</p>"})
	if rr.Code != http.StatusOK {
		t.Fatalf("score all: %d", rr.Code)
	}
	all := decode[ScoreListResponse](t, rr)
	if len(all.Items) != 2 || all.Items[0].Tag != "cooking" {
		t.Fatalf("items = %+v", all.Items)
	}
	if all.Items[0].Probability < all.Items[1].Probability {
		t.Error("items must be sorted by probability descending")
	}

	if rr := do(t, h, http.MethodPost, "/tags/rust/score", DocumentRequest{Text: "x"}); rr.Code != http.StatusNotFound {
		t.Fatalf("unknown tag: got %d, want 404", rr.Code)
	}
}

func TestReduceTag(t *testing.T) {
	h, _ := newTestRouter(t, nil)
	train(t, h, []string{"golang"}, "goroutine shared")
	train(t, h, []string{"cooking"}, "oven shared")

	// every word appears in at most half the docs; 0.4 prunes them all
	rr := do(t, h, http.MethodPost, "/tags/golang/reduce", map[string]any{"max_doc_fraction": 0.4})
	if rr.Code != http.StatusOK {
		t.Fatalf("reduce: %d %s", rr.Code, rr.Body.String())
	}
	got := decode[ReduceResponse](t, rr)
	if got.Removed == 0 || got.Words != 0 {
		t.Errorf("reduce = %+v", got)
	}

	rr = do(t, h, http.MethodPost, "/tags/cooking/reduce", nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("reduce without body: %d", rr.Code)
	}

	rr = do(t, h, http.MethodPost, "/tags/cooking/reduce", map[string]any{"min_doc_support": 0})
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("invalid config: got %d, want 400", rr.Code)
	}
	if got := decode[ErrorResponse](t, rr); got.Code != CodeInvalidReduceConfig {
		t.Errorf("code = %s", got.Code)
	}

	if rr := do(t, h, http.MethodPost, "/reduce", nil); rr.Code != http.StatusOK {
		t.Fatalf("reduce all: %d", rr.Code)
	}
}

func TestTrainEntriesAndRecommend(t *testing.T) {
	h, _ := newTestRouter(t, nil)

	var corpus strings.Builder
	for i := range 6 {
		corpus.WriteString(`{"id":"g` + string(rune('a'+i)) + `","title":"goroutine channel","tags":[{"label":"golang"}]}` + "\n")
		corpus.WriteString(`{"id":"c` + string(rune('a'+i)) + `","title":"flour oven","unread":false}` + "\n")
	}
	rr := do(t, h, http.MethodPost, "/train/entries", corpus.String())
	if rr.Code != http.StatusOK {
		t.Fatalf("train entries: %d %s", rr.Code, rr.Body.String())
	}
	if got := decode[TrainEntriesResponse](t, rr); got.Entries != 12 || got.Documents != 12 {
		t.Errorf("train entries = %+v", got)
	}

	unread := `{"id":"u1","title":"goroutine channel","unread":true}` + "\n" +
		`{"id":"u2","title":"goroutine channel","unread":true,"tags":[{"label":"golang"}]}` + "\n"
	rr = do(t, h, http.MethodPost, "/recommend", unread)
	if rr.Code != http.StatusOK {
		t.Fatalf("recommend: %d %s", rr.Code, rr.Body.String())
	}
	got := decode[RecommendListResponse](t, rr)
	if len(got.Items) != 1 || got.Items[0].EntryID != "u1" || got.Items[0].Tags[0].Tag != "golang" {
		t.Fatalf("recommend = %+v", got)
	}

	if rr := do(t, h, http.MethodPost, "/recommend", "{nope"); rr.Code != http.StatusBadRequest {
		t.Fatalf("bad corpus: got %d, want 400", rr.Code)
	}
}

func TestFlush_MemoryMode(t *testing.T) {
	h, _ := newTestRouter(t, nil)
	if rr := do(t, h, http.MethodPost, "/flush", nil); rr.Code != http.StatusNoContent {
		t.Fatalf("flush: got %d, want 204", rr.Code)
	}
}

func TestHealthCheck(t *testing.T) {
	tests := []struct {
		name       string
		pinger     healthuc.StoragePinger
		wantCode   int
		wantStatus string
	}{
		{name: "memory mode", wantCode: http.StatusOK, wantStatus: "ok"},
		{name: "storage up", pinger: stubPinger{}, wantCode: http.StatusOK, wantStatus: "ok"},
		{
			name: "storage down", pinger: stubPinger{err: errors.New("refused")},
			wantCode: http.StatusServiceUnavailable, wantStatus: "error",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h, _ := newTestRouter(t, healthuc.New(tt.pinger, nil))
			rr := do(t, h, http.MethodGet, "/health", nil)
			if rr.Code != tt.wantCode {
				t.Fatalf("got %d, want %d", rr.Code, tt.wantCode)
			}
			if got := decode[HealthResponse](t, rr); got.Status != tt.wantStatus {
				t.Errorf("status = %q, want %q", got.Status, tt.wantStatus)
			}
		})
	}
}

func TestMetricsEndpoint(t *testing.T) {
	h, _ := newTestRouter(t, nil)
	rr := do(t, h, http.MethodGet, "/metrics", nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("metrics: %d", rr.Code)
	}
	if !strings.Contains(rr.Body.String(), "go_goroutines") {
		t.Error("metrics output must include default collectors")
	}
}

func TestRequestID(t *testing.T) {
	h, _ := newTestRouter(t, nil)
	rr := do(t, h, http.MethodGet, "/tags", nil)
	if rr.Header().Get("X-Request-ID") == "" {
		t.Error("X-Request-ID must be set")
	}
}

func TestBodyTooLarge(t *testing.T) {
	h, _ := newTestRouter(t, nil)
	big := DocumentRequest{Text: strings.Repeat("a ", 1<<16)}
	rr := do(t, h, http.MethodPost, "/score", big)
	if rr.Code != http.StatusRequestEntityTooLarge {
		t.Fatalf("got %d, want 413", rr.Code)
	}
}

func TestJSONRecoverer(t *testing.T) {
	h := jsonRecoverer(zap.NewNop())(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic("boom")
	}))
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/", http.NoBody))
	if rr.Code != http.StatusInternalServerError {
		t.Fatalf("got %d, want 500", rr.Code)
	}
	if got := decode[ErrorResponse](t, rr); got.Code != CodeInternalError {
		t.Errorf("code = %s", got.Code)
	}
}

func TestHandleDomainError(t *testing.T) {
	s := NewServer(nil, nil, zap.NewNop())
	tests := []struct {
		err  error
		want int
		code ErrorCode
	}{
		{domain.ErrTagNotFound, http.StatusNotFound, CodeTagNotFound},
		{domain.ErrTagExists, http.StatusConflict, CodeTagExists},
		{domain.ErrInvalidTag, http.StatusBadRequest, CodeInvalidTag},
		{domain.ErrEmptyDocument, http.StatusBadRequest, CodeEmptyDocument},
		{domain.ErrInvalidReduceConfig, http.StatusBadRequest, CodeInvalidReduceConfig},
		{errors.New("redis: connection refused"), http.StatusInternalServerError, CodeInternalError},
	}
	for _, tt := range tests {
		rr := httptest.NewRecorder()
		s.handleDomainError(rr, tt.err)
		if rr.Code != tt.want {
			t.Errorf("%v: got %d, want %d", tt.err, rr.Code, tt.want)
		}
		got := decode[ErrorResponse](t, rr)
		if got.Code != tt.code {
			t.Errorf("%v: code = %s, want %s", tt.err, got.Code, tt.code)
		}
		if tt.code == CodeInternalError && strings.Contains(got.Message, "redis") {
			t.Errorf("internal details leaked: %q", got.Message)
		}
	}
}
