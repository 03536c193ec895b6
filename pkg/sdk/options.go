package feedtag

import (
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Option configures the Client.
type Option interface {
	apply(*clientConfig)
}

// optionFunc adapts a function to the Option interface.
type optionFunc func(*clientConfig)

func (f optionFunc) apply(c *clientConfig) { f(c) }

type clientConfig struct {
	driver     string // "memory", "valkey", "redis" or "sqlite"
	addrs      []string
	password   string
	sqlitePath string
	keyPrefix  string
	readiness  time.Duration

	reduce        *ReduceConfig
	reduceOnTrain bool
	autoThreshold float64
	suggestThresh float64
	topWords      int

	stem      bool
	language  string
	minLength int

	logger     *slog.Logger
	metricsReg prometheus.Registerer
}

// WithMemory keeps evidence in process memory only. This is the default.
func WithMemory() Option {
	return optionFunc(func(c *clientConfig) {
		c.driver = "memory"
	})
}

// WithValkey persists evidence to a Valkey instance.
func WithValkey(addr, password string) Option {
	return optionFunc(func(c *clientConfig) {
		c.driver = "valkey"
		c.addrs = []string{addr}
		c.password = password
	})
}

// WithRedis persists evidence to a Redis instance.
func WithRedis(addr, password string) Option {
	return optionFunc(func(c *clientConfig) {
		c.driver = "redis"
		c.addrs = []string{addr}
		c.password = password
	})
}

// WithSQLite persists evidence to a SQLite file.
func WithSQLite(path string) Option {
	return optionFunc(func(c *clientConfig) {
		c.driver = "sqlite"
		c.sqlitePath = path
	})
}

// WithKeyPrefix namespaces Valkey/Redis keys. Default: "feedtag:".
func WithKeyPrefix(prefix string) Option {
	return optionFunc(func(c *clientConfig) {
		c.keyPrefix = prefix
	})
}

// WithReadinessTimeout bounds the initial connection wait. Default: 10s.
func WithReadinessTimeout(d time.Duration) Option {
	return optionFunc(func(c *clientConfig) {
		c.readiness = d
	})
}

// WithReduce sets the thresholds Reduce applies when called without overrides.
// Default: {MinDocSupport: 1, MaxDocFraction: 0.94, MinProbDistance: 0.03}.
func WithReduce(rc ReduceConfig) Option {
	return optionFunc(func(c *clientConfig) {
		c.reduce = &rc
	})
}

// WithReduceOnTrain prunes every tag after TrainEntries.
func WithReduceOnTrain() Option {
	return optionFunc(func(c *clientConfig) {
		c.reduceOnTrain = true
	})
}

// WithThresholds sets the auto and suggest verdict thresholds. Defaults: 0.9 and 0.6.
func WithThresholds(auto, suggest float64) Option {
	return optionFunc(func(c *clientConfig) {
		c.autoThreshold = auto
		c.suggestThresh = suggest
	})
}

// WithTopWords sets how many of the most decisive words a score combines. Default: 100.
func WithTopWords(k int) Option {
	return optionFunc(func(c *clientConfig) {
		c.topWords = k
	})
}

// WithStemming enables Snowball stemming for the given language (e.g. "english").
func WithStemming(language string) Option {
	return optionFunc(func(c *clientConfig) {
		c.stem = true
		c.language = language
	})
}

// WithMinTokenLength drops shorter tokens. Default: 2.
func WithMinTokenLength(n int) Option {
	return optionFunc(func(c *clientConfig) {
		c.minLength = n
	})
}

// WithLogger enables structured logging for SDK operations.
// Pass nil to disable (default). Uses standard library slog.
func WithLogger(l *slog.Logger) Option {
	return optionFunc(func(c *clientConfig) {
		c.logger = l
	})
}

// WithPrometheus registers SDK metrics (operation counts and durations)
// on the given registerer. Pass nil to disable (default).
func WithPrometheus(reg prometheus.Registerer) Option {
	return optionFunc(func(c *clientConfig) {
		c.metricsReg = reg
	})
}
