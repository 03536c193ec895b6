package main

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/feedtag/internal/config"
	"github.com/kailas-cloud/feedtag/internal/db/redis"
	"github.com/kailas-cloud/feedtag/internal/db/sqlite"
	"github.com/kailas-cloud/feedtag/internal/domain/bayes"
	"github.com/kailas-cloud/feedtag/internal/domain/verdict"
	"github.com/kailas-cloud/feedtag/internal/repository/evidence"
	"github.com/kailas-cloud/feedtag/internal/tokenize"
	"github.com/kailas-cloud/feedtag/internal/usecase/evaluate"
	"github.com/kailas-cloud/feedtag/internal/usecase/health"
	"github.com/kailas-cloud/feedtag/internal/usecase/tagging"
)

// storage is the opened evidence backend. tags and pinger are nil in memory mode.
type storage struct {
	tags   tagging.TagStore
	pinger health.StoragePinger
	close  func()
}

// openStorage connects the configured driver and waits until it answers.
func openStorage(ctx context.Context, cfg config.StorageConfig, logger *zap.Logger) (storage, error) {
	readiness := time.Duration(cfg.ReadinessTimeout) * time.Second

	switch cfg.Driver {
	case config.DriverMemory:
		logger.Warn("Evidence is kept in memory only and is lost on exit")
		return storage{close: func() {}}, nil

	case config.DriverRedis, config.DriverValkey:
		store, err := redis.NewStore(redis.Config{
			Addrs:    cfg.Addrs,
			Username: cfg.Username,
			Password: cfg.Password,
			DB:       cfg.DB,
		})
		if err != nil {
			return storage{}, fmt.Errorf("create %s store: %w", cfg.Driver, err)
		}
		if err := store.WaitForReady(ctx, readiness); err != nil {
			store.Close()
			return storage{}, fmt.Errorf("%s not ready: %w", cfg.Driver, err)
		}
		logger.Info("Connected to database", zap.String("driver", cfg.Driver), zap.Strings("addrs", cfg.Addrs))
		repo := evidence.NewRepo(evidence.NewHashRepo(store, cfg.KeyPrefix))
		return storage{tags: repo, pinger: store, close: store.Close}, nil

	case config.DriverSQLite:
		store, err := sqlite.Open(ctx, cfg.SQLitePath)
		if err != nil {
			return storage{}, fmt.Errorf("open sqlite: %w", err)
		}
		if err := store.WaitForReady(ctx, readiness); err != nil {
			store.Close()
			return storage{}, fmt.Errorf("sqlite not ready: %w", err)
		}
		logger.Info("Opened database", zap.String("driver", cfg.Driver), zap.String("path", cfg.SQLitePath))
		repo := evidence.NewRepo(evidence.NewSQLRepo(store))
		return storage{tags: repo, pinger: store, close: store.Close}, nil

	default:
		return storage{}, fmt.Errorf("unknown storage driver %q", cfg.Driver)
	}
}

func newTokenizer(cfg config.TokenizerConfig) (*tokenize.Tokenizer, error) {
	tok, err := tokenize.New(tokenize.Config{
		Stem:      cfg.Stem,
		Language:  cfg.Language,
		MinLength: cfg.MinLength,
	})
	if err != nil {
		return nil, fmt.Errorf("create tokenizer: %w", err)
	}
	return tok, nil
}

func reduceConfig(rc config.ReduceConfig) bayes.ReduceConfig {
	return bayes.ReduceConfig{
		MinDocSupport:   rc.MinDocSupport,
		MaxDocFraction:  rc.MaxDocFraction,
		MinProbDistance: rc.MinProbDistance,
	}
}

func taggingConfig(cfg config.ClassifierConfig) (tagging.Config, error) {
	policy, err := verdict.NewPolicy(cfg.AutoThreshold, cfg.SuggestThreshold)
	if err != nil {
		return tagging.Config{}, fmt.Errorf("verdict policy: %w", err)
	}
	return tagging.Config{
		Reduce:        reduceConfig(cfg.Reduce),
		ReduceOnTrain: cfg.ReduceOnTrain,
		TopWords:      cfg.TopWords,
		Policy:        policy,
		Parallelism:   cfg.Parallelism,
	}, nil
}

func evaluateConfig(cfg config.EvaluateConfig, topWords int) evaluate.Config {
	ec := evaluate.Config{
		Folds:       cfg.Folds,
		TestRatio:   cfg.TestRatio,
		Threshold:   cfg.Threshold,
		Beta:        cfg.Beta,
		Grid:        evaluate.DefaultGrid(),
		TopWords:    topWords,
		Seed:        cfg.Seed,
		Parallelism: cfg.Parallelism,
	}
	if len(cfg.Grid) > 0 {
		ec.Grid = make([]bayes.ReduceConfig, len(cfg.Grid))
		for i, rc := range cfg.Grid {
			ec.Grid[i] = reduceConfig(rc)
		}
	}
	return ec
}
