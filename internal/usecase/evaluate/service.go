// Package evaluate searches reduce thresholds by repeated random hold-out:
// every grid config is scored by its mean F-beta over several train/test splits.
package evaluate

import (
	"context"
	"errors"
	"fmt"
	"math"
	"math/rand/v2"
	"sort"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/kailas-cloud/feedtag/internal/domain/bayes"
	"github.com/kailas-cloud/feedtag/internal/domain/entry"
)

// Grid search defaults.
const (
	DefaultFolds       = 15
	DefaultTestRatio   = 0.1
	DefaultThreshold   = 0.9
	DefaultBeta        = 0.75
	DefaultParallelism = 4
)

// ErrNoSamples is returned when the corpus has nothing to train on.
var ErrNoSamples = errors.New("no samples")

// Config drives one grid search.
type Config struct {
	Folds     int
	TestRatio float64
	// Threshold is the probability a document must exceed to count as a match.
	Threshold   float64
	Beta        float64
	Grid        []bayes.ReduceConfig
	TopWords    int
	Seed        uint64
	Parallelism int
}

// DefaultGrid spans minDoc {1,2} x maxDocP {0.98..0.94} x minP {0..0.05}.
func DefaultGrid() []bayes.ReduceConfig {
	var grid []bayes.ReduceConfig
	for _, minDoc := range []int{1, 2} {
		for _, maxDocP := range []float64{0.98, 0.97, 0.96, 0.95, 0.94} {
			for _, minP := range []float64{0, 0.01, 0.015, 0.02, 0.03, 0.04, 0.05} {
				grid = append(grid, bayes.ReduceConfig{
					MinDocSupport: minDoc, MaxDocFraction: maxDocP, MinProbDistance: minP,
				})
			}
		}
	}
	return grid
}

// DefaultConfig returns the standard search settings.
func DefaultConfig() Config {
	return Config{
		Folds:       DefaultFolds,
		TestRatio:   DefaultTestRatio,
		Threshold:   DefaultThreshold,
		Beta:        DefaultBeta,
		Grid:        DefaultGrid(),
		TopWords:    bayes.DefaultTopWords,
		Seed:        1,
		Parallelism: DefaultParallelism,
	}
}

// Validate checks ranges.
func (c Config) Validate() error {
	if c.Folds < 1 {
		return fmt.Errorf("folds must be >= 1, got %d", c.Folds)
	}
	if !(c.TestRatio > 0 && c.TestRatio < 1) {
		return fmt.Errorf("test_ratio must be in (0,1), got %g", c.TestRatio)
	}
	if !(c.Threshold >= 0 && c.Threshold <= 1) {
		return fmt.Errorf("threshold must be in [0,1], got %g", c.Threshold)
	}
	if !(c.Beta > 0) || math.IsInf(c.Beta, 0) {
		return fmt.Errorf("beta must be > 0, got %g", c.Beta)
	}
	if len(c.Grid) == 0 {
		return fmt.Errorf("grid is empty")
	}
	for i, rc := range c.Grid {
		if err := rc.Validate(); err != nil {
			return fmt.Errorf("grid[%d]: %w", i, err)
		}
	}
	return nil
}

// Sample is one labelled document.
type Sample struct {
	Label  string
	Tokens []string
}

// SamplesFromEntries labels each entry with its first user tag, or entry.Untagged.
func SamplesFromEntries(entries []entry.Entry, t entry.Tokenizer) []Sample {
	out := make([]Sample, len(entries))
	for i, e := range entries {
		out[i] = Sample{Label: e.Labels()[0], Tokens: e.Tokens(t)}
	}
	return out
}

// Result is the cross-validated quality of one reduce config.
type Result struct {
	Reduce bayes.ReduceConfig
	// MeanF averages the F-beta of folds where it is defined.
	MeanF      float64
	ValidFolds int
	Confusion  Confusion
}

// Service runs grid searches.
type Service struct {
	cfg    Config
	logger *zap.Logger
}

// New creates an evaluation service.
func New(cfg Config, logger *zap.Logger) (*Service, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("evaluate config: %w", err)
	}
	if cfg.Parallelism <= 0 {
		cfg.Parallelism = DefaultParallelism
	}
	if cfg.TopWords <= 0 {
		cfg.TopWords = bayes.DefaultTopWords
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{cfg: cfg, logger: logger}, nil
}

// fold is one train/test split with a trained, unreduced snapshot per tag.
type fold struct {
	test   []Sample
	models map[string]bayes.Snapshot
}

// Run scores every grid config and returns results best first.
// Tags are the distinct sample labels other than entry.Untagged.
// Every config is scored on the same splits.
func (s *Service) Run(ctx context.Context, samples []Sample) ([]Result, error) {
	if len(samples) == 0 {
		return nil, ErrNoSamples
	}
	tags := tagsOf(samples)
	if len(tags) == 0 {
		return nil, fmt.Errorf("%w: corpus has no tagged entries", ErrNoSamples)
	}

	folds := make([]fold, s.cfg.Folds)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.cfg.Parallelism)
	for i := range folds {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			folds[i] = s.buildFold(samples, tags, s.cfg.Seed+uint64(i))
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("build folds: %w", err)
	}

	results := make([]Result, len(s.cfg.Grid))
	var mu sync.Mutex
	done := 0
	g, gctx = errgroup.WithContext(ctx)
	g.SetLimit(s.cfg.Parallelism)
	for i, rc := range s.cfg.Grid {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			r, err := s.evaluate(rc, folds, tags)
			if err != nil {
				return err
			}
			results[i] = r
			mu.Lock()
			done++
			s.logger.Debug("config evaluated",
				zap.Stringer("config", rc), zap.Float64("f", r.MeanF),
				zap.Int("done", done), zap.Int("total", len(s.cfg.Grid)))
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("grid search: %w", err)
	}

	sort.SliceStable(results, func(i, j int) bool { return results[i].MeanF > results[j].MeanF })
	s.logger.Info("grid search finished",
		zap.Int("configs", len(results)), zap.Int("folds", s.cfg.Folds),
		zap.Stringer("best", results[0].Reduce), zap.Float64("best_f", results[0].MeanF))
	return results, nil
}

func (s *Service) buildFold(samples []Sample, tags []string, seed uint64) fold {
	rng := rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
	var train []Sample
	var test []Sample
	for _, smp := range samples {
		if rng.Float64() < s.cfg.TestRatio {
			test = append(test, smp)
		} else {
			train = append(train, smp)
		}
	}

	models := make(map[string]bayes.Snapshot, len(tags))
	for _, tag := range tags {
		ms := bayes.NewMemoryStore()
		clf := bayes.New(tag, bayes.WithStore(ms))
		for _, smp := range train {
			clf.Add(smp.Label, smp.Tokens)
		}
		models[tag] = ms.Snapshot()
	}
	return fold{test: test, models: models}
}

func (s *Service) evaluate(rc bayes.ReduceConfig, folds []fold, tags []string) (Result, error) {
	fs := make([]float64, len(folds))
	var total Confusion
	for i, f := range folds {
		var c Confusion
		for _, tag := range tags {
			clf := bayes.New(tag,
				bayes.WithStore(bayes.RestoreMemoryStore(f.models[tag])),
				bayes.WithTopWords(s.cfg.TopWords))
			if _, err := clf.Reduce(rc); err != nil {
				return Result{}, fmt.Errorf("reduce %s: %w", tag, err)
			}
			for _, smp := range f.test {
				c.Record(clf.Score(smp.Tokens) > s.cfg.Threshold, smp.Label == tag)
			}
		}
		fs[i] = c.FBeta(s.cfg.Beta)
		total.Add(c)
	}
	mean, n := meanIgnoringNaN(fs)
	return Result{Reduce: rc, MeanF: mean, ValidFolds: n, Confusion: total}, nil
}

func tagsOf(samples []Sample) []string {
	seen := make(map[string]struct{})
	for _, smp := range samples {
		if smp.Label != entry.Untagged {
			seen[smp.Label] = struct{}{}
		}
	}
	tags := make([]string, 0, len(seen))
	for t := range seen {
		tags = append(tags, t)
	}
	sort.Strings(tags)
	return tags
}
