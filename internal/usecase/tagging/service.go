// Package tagging keeps one classifier per tag and routes training, pruning,
// scoring and persistence across them.
package tagging

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/kailas-cloud/feedtag/internal/domain"
	"github.com/kailas-cloud/feedtag/internal/domain/bayes"
	"github.com/kailas-cloud/feedtag/internal/domain/entry"
	"github.com/kailas-cloud/feedtag/internal/domain/verdict"
	"github.com/kailas-cloud/feedtag/internal/metrics"
)

// DefaultParallelism bounds concurrent per-tag work.
const DefaultParallelism = 8

var tagPattern = regexp.MustCompile(`^[\p{L}\p{N}][\p{L}\p{N}_.:+-]{0,127}$`)

// Config tunes a Service.
type Config struct {
	Reduce bayes.ReduceConfig
	// ReduceOnTrain prunes every tag after a bulk TrainEntries call.
	ReduceOnTrain bool
	TopWords      int
	Policy        verdict.Policy
	Parallelism   int
}

// Document is training or scoring input: text (HTML allowed) or ready tokens.
type Document struct {
	Text   string
	Tokens []string
}

// TagInfo describes one registered tag.
type TagInfo struct {
	bayes.Stats
	Pending int
}

// Recommendation is the score of one document against one tag.
type Recommendation struct {
	Tag         string
	Probability float64
	Verdict     verdict.Verdict
}

// EntryRecommendation lists the actionable tags for one entry.
type EntryRecommendation struct {
	EntryID         string
	Title           string
	Recommendations []Recommendation
}

type tagState struct {
	clf     *bayes.Classifier
	durable bayes.DurableStore // nil in memory mode
}

// Service is the classifier registry.
type Service struct {
	store     TagStore
	tokenizer Tokenizer
	cfg       Config
	logger    *zap.Logger

	mu   sync.RWMutex
	tags map[string]*tagState

	// flushMu keeps Delete from racing a Flush that could write a dropped tag back.
	flushMu sync.Mutex
	// lastFlush is read by health checks without waiting on a running flush.
	lastFlush atomic.Pointer[flushOutcome]
}

type flushOutcome struct{ err error }

// New creates a tagging service. store may be nil for memory-only operation.
func New(store TagStore, tokenizer Tokenizer, cfg Config, logger *zap.Logger) (*Service, error) {
	if err := cfg.Reduce.Validate(); err != nil {
		return nil, fmt.Errorf("reduce config: %w", err)
	}
	if cfg.Parallelism <= 0 {
		cfg.Parallelism = DefaultParallelism
	}
	if cfg.TopWords <= 0 {
		cfg.TopWords = bayes.DefaultTopWords
	}
	if cfg.Policy == (verdict.Policy{}) {
		cfg.Policy = verdict.DefaultPolicy()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		store:     store,
		tokenizer: tokenizer,
		cfg:       cfg,
		logger:    logger,
		tags:      make(map[string]*tagState),
	}, nil
}

// ValidateTag checks a tag name. Reader-managed "global." tags are rejected.
func ValidateTag(tag string) error {
	if !tagPattern.MatchString(tag) || strings.HasPrefix(tag, "global.") || tag == entry.Untagged {
		return fmt.Errorf("%w: %q", domain.ErrInvalidTag, tag)
	}
	return nil
}

// Load restores every persisted tag. No-op in memory mode.
func (s *Service) Load(ctx context.Context) error {
	if s.store == nil {
		return nil
	}
	names, err := s.store.Tags(ctx)
	if err != nil {
		return fmt.Errorf("list persisted tags: %w", err)
	}

	states := make([]*tagState, len(names))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.cfg.Parallelism)
	for i, name := range names {
		g.Go(func() error {
			st, err := s.open(gctx, name)
			if err != nil {
				return err
			}
			states[i] = st
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return fmt.Errorf("load tags: %w", err)
	}

	s.mu.Lock()
	for i, name := range names {
		s.tags[name] = states[i]
		metrics.VocabularyWords.WithLabelValues(name).Set(float64(states[i].clf.Stats().Words))
	}
	s.mu.Unlock()

	s.logger.Info("tags loaded", zap.Int("count", len(names)))
	return nil
}

func (s *Service) open(ctx context.Context, tag string) (*tagState, error) {
	if s.store == nil {
		return &tagState{clf: bayes.New(tag, bayes.WithTopWords(s.cfg.TopWords))}, nil
	}
	ds, err := s.store.Open(ctx, tag)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", tag, err)
	}
	clf := bayes.New(tag, bayes.WithStore(ds), bayes.WithTopWords(s.cfg.TopWords))
	return &tagState{clf: clf, durable: ds}, nil
}

// Create registers a tag. created is false when the tag already existed.
func (s *Service) Create(ctx context.Context, tag string) (info TagInfo, created bool, err error) {
	if err := ValidateTag(tag); err != nil {
		return TagInfo{}, false, err
	}

	s.mu.RLock()
	st, ok := s.tags[tag]
	s.mu.RUnlock()
	if ok {
		return st.info(), false, nil
	}

	st, err = s.open(ctx, tag)
	if err != nil {
		return TagInfo{}, false, fmt.Errorf("create tag: %w", err)
	}
	if st.durable != nil {
		if err := st.durable.Flush(ctx); err != nil {
			return TagInfo{}, false, fmt.Errorf("persist tag %s: %w", tag, err)
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if existing, ok := s.tags[tag]; ok {
		return existing.info(), false, nil
	}
	s.tags[tag] = st
	s.logger.Info("tag created", zap.String("tag", tag))
	return st.info(), true, nil
}

// Register creates a tag that must not exist yet.
func (s *Service) Register(ctx context.Context, tag string) (TagInfo, error) {
	info, created, err := s.Create(ctx, tag)
	if err != nil {
		return TagInfo{}, err
	}
	if !created {
		return TagInfo{}, fmt.Errorf("%w: %s", domain.ErrTagExists, tag)
	}
	return info, nil
}

// ensure registers every missing tag of labels, skipping Untagged.
// With lenient set, labels that are not valid tag names are ignored.
func (s *Service) ensure(ctx context.Context, labels []string, lenient bool) error {
	for _, l := range labels {
		if l == entry.Untagged {
			continue
		}
		_, _, err := s.Create(ctx, l)
		if lenient && errors.Is(err, domain.ErrInvalidTag) {
			s.logger.Warn("label skipped", zap.String("label", l))
			continue
		}
		if err != nil {
			return err
		}
	}
	return nil
}

// Get returns the stats of one tag.
func (s *Service) Get(_ context.Context, tag string) (TagInfo, error) {
	st, err := s.lookup(tag)
	if err != nil {
		return TagInfo{}, err
	}
	return st.info(), nil
}

// List returns every tag sorted by name.
func (s *Service) List(_ context.Context) []TagInfo {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]TagInfo, 0, len(s.tags))
	for _, st := range s.tags {
		out = append(out, st.info())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Delete drops a tag and its persisted evidence.
func (s *Service) Delete(ctx context.Context, tag string) error {
	s.flushMu.Lock()
	defer s.flushMu.Unlock()

	s.mu.Lock()
	st, ok := s.tags[tag]
	if ok {
		delete(s.tags, tag)
	}
	s.mu.Unlock()
	if !ok {
		return fmt.Errorf("delete %q: %w", tag, domain.ErrTagNotFound)
	}

	var err error
	if s.store != nil {
		err = s.store.Delete(ctx, tag)
	}
	err = errors.Join(err, st.clf.Close())
	if err != nil {
		return fmt.Errorf("delete tag %s: %w", tag, err)
	}
	metrics.ForgetTag(tag)
	s.logger.Info("tag deleted", zap.String("tag", tag))
	return nil
}

// Train adds one document to every tag: positive for tags listed in labels,
// negative for the rest. Unknown labels are registered first.
func (s *Service) Train(ctx context.Context, labels []string, doc Document) error {
	tokens, err := s.tokens(doc)
	if err != nil {
		return err
	}
	if err := s.ensure(ctx, labels, false); err != nil {
		return err
	}

	positive := make(map[string]struct{}, len(labels))
	for _, l := range labels {
		positive[l] = struct{}{}
	}

	return s.eachTag(ctx, func(_ context.Context, tag string, st *tagState) error {
		if _, ok := positive[tag]; ok {
			st.clf.Add(tag, tokens)
			metrics.TrainDocumentsTotal.WithLabelValues(tag, "positive").Inc()
		} else {
			st.clf.Add("", tokens)
			metrics.TrainDocumentsTotal.WithLabelValues(tag, "negative").Inc()
		}
		metrics.VocabularyWords.WithLabelValues(tag).Set(float64(st.clf.Stats().Words))
		return nil
	})
}

// TrainEntries trains every tag on a feed corpus. Each entry's user labels are
// registered as tags; per tag an entry is positive when tagged, negative when
// read, and skipped when unread.
func (s *Service) TrainEntries(ctx context.Context, entries []entry.Entry) (trained int, err error) {
	tokens := make([][]string, len(entries))
	for i, e := range entries {
		if err := s.ensure(ctx, e.Labels(), true); err != nil {
			return 0, err
		}
		tokens[i] = e.Tokens(s.tokenizer)
	}

	var mu sync.Mutex
	err = s.eachTag(ctx, func(ctx context.Context, tag string, st *tagState) error {
		var pos, neg int
		for i, e := range entries {
			if i%256 == 0 && ctx.Err() != nil {
				return ctx.Err()
			}
			label, ok := e.TrainingLabel(tag)
			if !ok {
				continue
			}
			st.clf.Add(label, tokens[i])
			if label == tag {
				pos++
			} else {
				neg++
			}
		}
		metrics.TrainDocumentsTotal.WithLabelValues(tag, "positive").Add(float64(pos))
		metrics.TrainDocumentsTotal.WithLabelValues(tag, "negative").Add(float64(neg))
		metrics.VocabularyWords.WithLabelValues(tag).Set(float64(st.clf.Stats().Words))
		mu.Lock()
		trained += pos + neg
		mu.Unlock()
		return nil
	})
	if err != nil {
		return trained, fmt.Errorf("train entries: %w", err)
	}

	if s.cfg.ReduceOnTrain {
		if _, err := s.ReduceAll(ctx); err != nil {
			return trained, err
		}
	}
	s.logger.Info("corpus trained", zap.Int("entries", len(entries)), zap.Int("documents", trained))
	return trained, nil
}

// ReduceConfig returns the thresholds Reduce applies by default.
func (s *Service) ReduceConfig() bayes.ReduceConfig { return s.cfg.Reduce }

// Reduce prunes one tag. A nil cfg applies the configured thresholds.
func (s *Service) Reduce(ctx context.Context, tag string, cfg *bayes.ReduceConfig) (int, error) {
	st, err := s.lookup(tag)
	if err != nil {
		return 0, err
	}
	rc := s.cfg.Reduce
	if cfg != nil {
		rc = *cfg
	}
	return s.reduce(ctx, tag, st, rc)
}

func (s *Service) reduce(_ context.Context, tag string, st *tagState, rc bayes.ReduceConfig) (int, error) {
	removed, err := st.clf.Reduce(rc)
	if err != nil {
		return 0, fmt.Errorf("reduce %s: %w", tag, err)
	}
	metrics.ReduceRemovedTotal.WithLabelValues(tag).Add(float64(removed))
	metrics.VocabularyWords.WithLabelValues(tag).Set(float64(st.clf.Stats().Words))
	s.logger.Debug("tag reduced", zap.String("tag", tag), zap.Int("removed", removed), zap.Stringer("config", rc))
	return removed, nil
}

// ReduceAll prunes every tag with the configured thresholds.
func (s *Service) ReduceAll(ctx context.Context) (map[string]int, error) {
	var mu sync.Mutex
	out := make(map[string]int)
	err := s.eachTag(ctx, func(ctx context.Context, tag string, st *tagState) error {
		n, err := s.reduce(ctx, tag, st, s.cfg.Reduce)
		if err != nil {
			return err
		}
		mu.Lock()
		out[tag] = n
		mu.Unlock()
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("reduce all: %w", err)
	}
	return out, nil
}

// Score rates a document against one tag.
func (s *Service) Score(_ context.Context, tag string, doc Document) (Recommendation, error) {
	st, err := s.lookup(tag)
	if err != nil {
		return Recommendation{}, err
	}
	tokens, err := s.tokens(doc)
	if err != nil {
		return Recommendation{}, err
	}
	return s.score(tag, st, tokens), nil
}

func (s *Service) score(tag string, st *tagState, tokens []string) Recommendation {
	start := time.Now()
	p := st.clf.Score(tokens)
	metrics.ScoreDuration.WithLabelValues(tag).Observe(time.Since(start).Seconds())
	v := s.cfg.Policy.Decide(p)
	metrics.VerdictsTotal.WithLabelValues(string(v)).Inc()
	return Recommendation{Tag: tag, Probability: p, Verdict: v}
}

// ScoreAll rates a document against every tag, most probable first.
func (s *Service) ScoreAll(ctx context.Context, doc Document) ([]Recommendation, error) {
	tokens, err := s.tokens(doc)
	if err != nil {
		return nil, err
	}
	return s.scoreAll(ctx, tokens)
}

func (s *Service) scoreAll(ctx context.Context, tokens []string) ([]Recommendation, error) {
	var mu sync.Mutex
	var out []Recommendation
	err := s.eachTag(ctx, func(_ context.Context, tag string, st *tagState) error {
		r := s.score(tag, st, tokens)
		mu.Lock()
		out = append(out, r)
		mu.Unlock()
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("score all: %w", err)
	}
	sortRecommendations(out)
	return out, nil
}

// Recommend scores unread, untagged entries and keeps the tags whose verdict is
// Suggest or Auto. Entries with no such tag are omitted.
func (s *Service) Recommend(ctx context.Context, entries []entry.Entry) ([]EntryRecommendation, error) {
	var out []EntryRecommendation
	for _, e := range entries {
		if !e.Unread() || !e.Untagged() {
			continue
		}
		recs, err := s.scoreAll(ctx, e.Tokens(s.tokenizer))
		if err != nil {
			return nil, fmt.Errorf("recommend %s: %w", e.ID(), err)
		}
		actionable := recs[:0]
		for _, r := range recs {
			if r.Verdict != verdict.None {
				actionable = append(actionable, r)
			}
		}
		if len(actionable) == 0 {
			continue
		}
		out = append(out, EntryRecommendation{EntryID: e.ID(), Title: e.Title(), Recommendations: actionable})
	}
	return out, nil
}

// Flush persists dirty evidence of every tag. Failed tags keep their changes
// queued; the joined error names each of them.
func (s *Service) Flush(ctx context.Context) error {
	if s.store == nil {
		return nil
	}
	s.flushMu.Lock()
	defer s.flushMu.Unlock()

	start := time.Now()
	var mu sync.Mutex
	var errs []error
	_ = s.eachTag(ctx, func(ctx context.Context, tag string, st *tagState) error {
		if err := st.durable.Flush(ctx); err != nil {
			mu.Lock()
			errs = append(errs, err)
			mu.Unlock()
		}
		metrics.PendingWords.WithLabelValues(tag).Set(float64(st.durable.Pending()))
		return nil
	})
	metrics.FlushDuration.Observe(time.Since(start).Seconds())

	err := errors.Join(errs...)
	s.lastFlush.Store(&flushOutcome{err: err})
	if err != nil {
		metrics.FlushTotal.WithLabelValues("error").Inc()
		s.logger.Error("flush failed", zap.Int("failed_tags", len(errs)), zap.Error(err))
		return fmt.Errorf("flush: %w", err)
	}
	metrics.FlushTotal.WithLabelValues("ok").Inc()
	return nil
}

// LastFlushError returns the outcome of the most recent Flush.
func (s *Service) LastFlushError() error {
	if o := s.lastFlush.Load(); o != nil {
		return o.err
	}
	return nil
}

// Close flushes pending evidence and releases every classifier.
func (s *Service) Close(ctx context.Context) error {
	err := s.Flush(ctx)
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, st := range s.tags {
		err = errors.Join(err, st.clf.Close())
	}
	return err
}

func (s *Service) lookup(tag string) (*tagState, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	st, ok := s.tags[tag]
	if !ok {
		return nil, fmt.Errorf("tag %q: %w", tag, domain.ErrTagNotFound)
	}
	return st, nil
}

// eachTag runs fn for every registered tag with bounded parallelism.
func (s *Service) eachTag(ctx context.Context, fn func(ctx context.Context, tag string, st *tagState) error) error {
	s.mu.RLock()
	snapshot := make(map[string]*tagState, len(s.tags))
	for tag, st := range s.tags {
		snapshot[tag] = st
	}
	s.mu.RUnlock()

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.cfg.Parallelism)
	for tag, st := range snapshot {
		g.Go(func() error { return fn(gctx, tag, st) })
	}
	return g.Wait() //nolint:wrapcheck // callers wrap with operation context
}

// tokens normalizes caller tokens the same way text-derived ones are, so
// both input paths build and hit the same evidence.
func (s *Service) tokens(doc Document) ([]string, error) {
	if len(doc.Tokens) > 0 {
		out := make([]string, 0, len(doc.Tokens))
		for _, raw := range doc.Tokens {
			if t := s.tokenizer.Term(raw); t != "" {
				out = append(out, t)
			}
		}
		if len(out) == 0 {
			return nil, fmt.Errorf("%w: no usable tokens", domain.ErrEmptyDocument)
		}
		return out, nil
	}
	if strings.TrimSpace(doc.Text) == "" {
		return nil, domain.ErrEmptyDocument
	}
	return s.tokenizer.Tokenize(doc.Text), nil
}

func (st *tagState) info() TagInfo {
	info := TagInfo{Stats: st.clf.Stats()}
	if st.durable != nil {
		info.Pending = st.durable.Pending()
	}
	return info
}

func sortRecommendations(recs []Recommendation) {
	sort.SliceStable(recs, func(i, j int) bool {
		if recs[i].Probability != recs[j].Probability {
			return recs[i].Probability > recs[j].Probability
		}
		return recs[i].Tag < recs[j].Tag
	})
}
