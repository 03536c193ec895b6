package feedtag

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/feedtag/internal/db/redis"
	"github.com/kailas-cloud/feedtag/internal/db/sqlite"
	"github.com/kailas-cloud/feedtag/internal/domain"
	"github.com/kailas-cloud/feedtag/internal/domain/bayes"
	"github.com/kailas-cloud/feedtag/internal/domain/entry"
	"github.com/kailas-cloud/feedtag/internal/domain/verdict"
	"github.com/kailas-cloud/feedtag/internal/repository/evidence"
	"github.com/kailas-cloud/feedtag/internal/tokenize"
	healthuc "github.com/kailas-cloud/feedtag/internal/usecase/health"
	"github.com/kailas-cloud/feedtag/internal/usecase/tagging"
)

const defaultReadinessTimeout = 10 * time.Second

// tagUseCase is the internal interface for substitution in tests.
type tagUseCase interface {
	Load(ctx context.Context) error
	Create(ctx context.Context, tag string) (tagging.TagInfo, bool, error)
	Register(ctx context.Context, tag string) (tagging.TagInfo, error)
	Get(ctx context.Context, tag string) (tagging.TagInfo, error)
	List(ctx context.Context) []tagging.TagInfo
	Delete(ctx context.Context, tag string) error
	Train(ctx context.Context, labels []string, doc tagging.Document) error
	TrainEntries(ctx context.Context, entries []entry.Entry) (int, error)
	ReduceConfig() bayes.ReduceConfig
	Reduce(ctx context.Context, tag string, cfg *bayes.ReduceConfig) (int, error)
	ReduceAll(ctx context.Context) (map[string]int, error)
	Score(ctx context.Context, tag string, doc tagging.Document) (tagging.Recommendation, error)
	ScoreAll(ctx context.Context, doc tagging.Document) ([]tagging.Recommendation, error)
	Recommend(ctx context.Context, entries []entry.Entry) ([]tagging.EntryRecommendation, error)
	Flush(ctx context.Context) error
	Close(ctx context.Context) error
}

// Client is the feedtag SDK entry point. Safe for concurrent use.
type Client struct {
	tags      tagUseCase
	healthSvc healthUseCase
	release   func()
	obs       *observer
}

// New creates a Client, connects the configured storage and loads every
// persisted tag. The provided context is used for the readiness check and load.
func New(ctx context.Context, opts ...Option) (*Client, error) {
	cfg := &clientConfig{
		driver:    "memory",
		keyPrefix: domain.KeyPrefix,
		readiness: defaultReadinessTimeout,
		minLength: 2,
	}
	for _, o := range opts {
		o.apply(cfg)
	}

	obs, err := newObserver(cfg.logger, cfg.metricsReg)
	if err != nil {
		return nil, err
	}

	tok, err := tokenize.New(tokenize.Config{Stem: cfg.stem, Language: cfg.language, MinLength: cfg.minLength})
	if err != nil {
		return nil, fmt.Errorf("feedtag: %w", err)
	}

	store, pinger, closeStore, err := openStore(ctx, cfg)
	if err != nil {
		tok.Close()
		return nil, err
	}
	release := func() {
		closeStore()
		tok.Close()
	}

	tcfg, err := taggingConfig(cfg)
	if err != nil {
		release()
		return nil, err
	}
	svc, err := tagging.New(store, tok, tcfg, zap.NewNop())
	if err != nil {
		release()
		return nil, fmt.Errorf("feedtag: %w", err)
	}
	if err := svc.Load(ctx); err != nil {
		release()
		return nil, fmt.Errorf("feedtag: load tags: %w", err)
	}

	// Pass nil interfaces (not typed nil pointers) in memory mode.
	var flushReporter healthuc.FlushReporter
	if store != nil {
		flushReporter = svc
	}

	return &Client{
		tags:      svc,
		healthSvc: healthuc.New(pinger, flushReporter),
		release:   release,
		obs:       obs,
	}, nil
}

func openStore(ctx context.Context, cfg *clientConfig) (tagging.TagStore, healthuc.StoragePinger, func(), error) {
	switch cfg.driver {
	case "memory":
		return nil, nil, func() {}, nil
	case "valkey", "redis":
		s, err := redis.NewStore(redis.Config{Addrs: cfg.addrs, Password: cfg.password})
		if err != nil {
			return nil, nil, nil, fmt.Errorf("feedtag: create %s store: %w", cfg.driver, err)
		}
		if err := s.WaitForReady(ctx, cfg.readiness); err != nil {
			s.Close()
			return nil, nil, nil, fmt.Errorf("feedtag: database not ready: %w", err)
		}
		return evidence.NewRepo(evidence.NewHashRepo(s, cfg.keyPrefix)), s, s.Close, nil
	case "sqlite":
		s, err := sqlite.Open(ctx, cfg.sqlitePath)
		if err != nil {
			return nil, nil, nil, fmt.Errorf("feedtag: %w", err)
		}
		return evidence.NewRepo(evidence.NewSQLRepo(s)), s, s.Close, nil
	default:
		return nil, nil, nil, fmt.Errorf("feedtag: unknown driver %q", cfg.driver)
	}
}

func taggingConfig(cfg *clientConfig) (tagging.Config, error) {
	rc := bayes.ReduceConfig{MinDocSupport: 1, MaxDocFraction: 0.94, MinProbDistance: 0.03}
	if cfg.reduce != nil {
		rc = bayes.ReduceConfig(*cfg.reduce)
	}
	policy := verdict.DefaultPolicy()
	if cfg.autoThreshold != 0 || cfg.suggestThresh != 0 {
		p, err := verdict.NewPolicy(cfg.autoThreshold, cfg.suggestThresh)
		if err != nil {
			return tagging.Config{}, fmt.Errorf("feedtag: %w", err)
		}
		policy = p
	}
	return tagging.Config{
		Reduce:        rc,
		ReduceOnTrain: cfg.reduceOnTrain,
		TopWords:      cfg.topWords,
		Policy:        policy,
	}, nil
}

// Close flushes pending evidence and releases all resources.
func (c *Client) Close(ctx context.Context) (err error) {
	call := c.obs.begin("close", "")
	defer func() { c.obs.end(call, err) }()

	err = c.tags.Close(ctx)
	if c.release != nil {
		c.release()
	}
	if err != nil {
		return fmt.Errorf("close: %w", err)
	}
	return nil
}

// Flush writes pending evidence to storage. No-op in memory mode.
func (c *Client) Flush(ctx context.Context) (err error) {
	call := c.obs.begin("flush", "")
	defer func() { c.obs.end(call, err) }()

	if err = c.tags.Flush(ctx); err != nil {
		return fmt.Errorf("flush: %w", err)
	}
	return nil
}

// CreateTag registers a tag. created is false when it already existed.
func (c *Client) CreateTag(ctx context.Context, tag string) (info TagInfo, created bool, err error) {
	call := c.obs.begin("create_tag", tag)
	defer func() { c.obs.end(call, err) }()

	ti, created, err := c.tags.Create(ctx, tag)
	if err != nil {
		return TagInfo{}, false, fmt.Errorf("create tag: %w", err)
	}
	return tagInfoFromDomain(ti), created, nil
}

// RegisterTag creates a tag that must not exist yet; a duplicate fails with ErrTagExists.
func (c *Client) RegisterTag(ctx context.Context, tag string) (info TagInfo, err error) {
	call := c.obs.begin("register_tag", tag)
	defer func() { c.obs.end(call, err) }()

	ti, err := c.tags.Register(ctx, tag)
	if err != nil {
		return TagInfo{}, fmt.Errorf("register tag: %w", err)
	}
	return tagInfoFromDomain(ti), nil
}

// Tag returns the stats of one tag.
func (c *Client) Tag(ctx context.Context, tag string) (TagInfo, error) {
	ti, err := c.tags.Get(ctx, tag)
	if err != nil {
		return TagInfo{}, fmt.Errorf("get tag: %w", err)
	}
	return tagInfoFromDomain(ti), nil
}

// Tags lists every tag sorted by name.
func (c *Client) Tags(ctx context.Context) []TagInfo {
	infos := c.tags.List(ctx)
	out := make([]TagInfo, len(infos))
	for i, ti := range infos {
		out[i] = tagInfoFromDomain(ti)
	}
	return out
}

// DeleteTag drops a tag and its persisted evidence.
func (c *Client) DeleteTag(ctx context.Context, tag string) (err error) {
	call := c.obs.begin("delete_tag", tag)
	defer func() { c.obs.end(call, err) }()

	if err = c.tags.Delete(ctx, tag); err != nil {
		return fmt.Errorf("delete tag: %w", err)
	}
	return nil
}

// Train adds doc as positive evidence to every tag in labels and as negative
// evidence to all other tags. Unknown labels become tags.
func (c *Client) Train(ctx context.Context, labels []string, doc Document) (err error) {
	call := c.obs.begin("train", "")
	defer func() { c.obs.end(call, err) }()

	if err = c.tags.Train(ctx, labels, doc.toDomain()); err != nil {
		return fmt.Errorf("train: %w", err)
	}
	return nil
}

// TrainEntries trains every tag on a feed corpus and returns the number of
// (entry, tag) documents added. Unread entries without a tag are skipped.
func (c *Client) TrainEntries(ctx context.Context, entries []Entry) (n int, err error) {
	call := c.obs.begin("train_entries", "")
	defer func() { c.obs.end(call, err) }()

	domEntries, err := entriesToDomain(entries)
	if err != nil {
		return 0, err
	}
	n, err = c.tags.TrainEntries(ctx, domEntries)
	if err != nil {
		return n, fmt.Errorf("train entries: %w", err)
	}
	return n, nil
}

// Reduce prunes uninformative words from one tag. A nil cfg applies the
// configured thresholds. Returns the number of words removed.
func (c *Client) Reduce(ctx context.Context, tag string, cfg *ReduceConfig) (removed int, err error) {
	call := c.obs.begin("reduce", tag)
	defer func() { c.obs.end(call, err) }()

	var rc *bayes.ReduceConfig
	if cfg != nil {
		r := bayes.ReduceConfig(*cfg)
		rc = &r
	}
	removed, err = c.tags.Reduce(ctx, tag, rc)
	if err != nil {
		return 0, fmt.Errorf("reduce: %w", err)
	}
	return removed, nil
}

// ReduceAll prunes every tag with the configured thresholds.
func (c *Client) ReduceAll(ctx context.Context) (removed map[string]int, err error) {
	call := c.obs.begin("reduce_all", "")
	defer func() { c.obs.end(call, err) }()

	removed, err = c.tags.ReduceAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("reduce all: %w", err)
	}
	return removed, nil
}

// Score rates doc against one tag.
func (c *Client) Score(ctx context.Context, tag string, doc Document) (s Score, err error) {
	call := c.obs.begin("score", tag)
	defer func() { c.obs.end(call, err) }()

	rec, err := c.tags.Score(ctx, tag, doc.toDomain())
	if err != nil {
		return Score{}, fmt.Errorf("score: %w", err)
	}
	s = scoreFromDomain(rec)
	c.obs.scored("score", []Score{s})
	return s, nil
}

// ScoreAll rates doc against every tag, most probable first.
func (c *Client) ScoreAll(ctx context.Context, doc Document) (scores []Score, err error) {
	call := c.obs.begin("score_all", "")
	defer func() { c.obs.end(call, err) }()

	recs, err := c.tags.ScoreAll(ctx, doc.toDomain())
	if err != nil {
		return nil, fmt.Errorf("score all: %w", err)
	}
	scores = scoresFromDomain(recs)
	c.obs.scored("score_all", scores)
	return scores, nil
}

// Recommend scores unread, untagged entries and returns those with at least
// one suggested or auto tag.
func (c *Client) Recommend(ctx context.Context, entries []Entry) (recs []Recommendation, err error) {
	call := c.obs.begin("recommend", "")
	defer func() { c.obs.end(call, err) }()

	domEntries, err := entriesToDomain(entries)
	if err != nil {
		return nil, err
	}
	res, err := c.tags.Recommend(ctx, domEntries)
	if err != nil {
		return nil, fmt.Errorf("recommend: %w", err)
	}
	recs = make([]Recommendation, len(res))
	for i, r := range res {
		recs[i] = Recommendation{EntryID: r.EntryID, Title: r.Title, Scores: scoresFromDomain(r.Recommendations)}
		c.obs.scored("recommend", recs[i].Scores)
	}
	return recs, nil
}

func entriesToDomain(entries []Entry) ([]entry.Entry, error) {
	out := make([]entry.Entry, len(entries))
	var errs []error
	for i, e := range entries {
		de, err := e.toDomain()
		if err != nil {
			errs = append(errs, fmt.Errorf("entry %d: %w", i, err))
			continue
		}
		out[i] = de
	}
	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}
	return out, nil
}
