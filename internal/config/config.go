package config

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"runtime"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Storage drivers.
const (
	DriverMemory = "memory"
	DriverRedis  = "redis"
	DriverValkey = "valkey"
	DriverSQLite = "sqlite"
)

// Config holds the feedtag configuration.
type Config struct {
	HTTP       HTTPConfig       `yaml:"http"`
	Auth       AuthConfig       `yaml:"auth"`
	Logging    LoggingConfig    `yaml:"logging"`
	Storage    StorageConfig    `yaml:"storage"`
	Classifier ClassifierConfig `yaml:"classifier"`
	Tokenizer  TokenizerConfig  `yaml:"tokenizer"`
	Evaluate   EvaluateConfig   `yaml:"evaluate"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level string `yaml:"level"` // debug, info, warn, error (default: determined by env)
}

// AuthConfig holds API authentication settings.
type AuthConfig struct {
	APIKeys []string `yaml:"api_keys"`
}

// HTTPConfig holds HTTP server settings.
type HTTPConfig struct {
	Port            int   `yaml:"port"`
	ReadTimeoutSec  int   `yaml:"read_timeout_sec"`
	WriteTimeoutSec int   `yaml:"write_timeout_sec"`
	ShutdownSec     int   `yaml:"shutdown_timeout_sec"`
	MaxBodyBytes    int64 `yaml:"max_body_bytes"`
}

// StorageConfig selects and configures the evidence backend.
type StorageConfig struct {
	Driver           string   `yaml:"driver"` // memory, redis, valkey, sqlite (default: memory)
	Addrs            []string `yaml:"addrs"`
	Username         string   `yaml:"username"`
	Password         string   `yaml:"password"`
	DB               int      `yaml:"db"`
	SQLitePath       string   `yaml:"sqlite_path"`
	KeyPrefix        string   `yaml:"key_prefix"`
	FlushSchedule    string   `yaml:"flush_schedule"` // cron spec, e.g. "@every 30s"
	ReadinessTimeout int      `yaml:"readiness_timeout_sec"`
}

// Durable reports whether evidence outlives the process.
func (s StorageConfig) Durable() bool { return s.Driver != DriverMemory }

// ReduceConfig holds the feature-pruning thresholds applied by the service.
type ReduceConfig struct {
	MinDocSupport   int     `yaml:"min_doc_support"`
	MaxDocFraction  float64 `yaml:"max_doc_fraction"`
	MinProbDistance float64 `yaml:"min_prob_distance"`
}

// ClassifierConfig holds scoring and pruning settings.
type ClassifierConfig struct {
	Reduce           ReduceConfig `yaml:"reduce"`
	ReduceOnTrain    bool         `yaml:"reduce_on_train"`
	TopWords         int          `yaml:"top_words"`
	AutoThreshold    float64      `yaml:"auto_threshold"`
	SuggestThreshold float64      `yaml:"suggest_threshold"`
	Parallelism      int          `yaml:"parallelism"`
}

// TokenizerConfig holds text normalization settings.
type TokenizerConfig struct {
	Stem      bool   `yaml:"stem"`
	Language  string `yaml:"language"`
	MinLength int    `yaml:"min_length"`
}

// EvaluateConfig holds grid-search settings. An empty grid selects the built-in one.
type EvaluateConfig struct {
	Folds       int            `yaml:"folds"`
	TestRatio   float64        `yaml:"test_ratio"`
	Threshold   float64        `yaml:"threshold"`
	Beta        float64        `yaml:"beta"`
	Seed        uint64         `yaml:"seed"`
	Parallelism int            `yaml:"parallelism"`
	Grid        []ReduceConfig `yaml:"grid"`
}

// ReadTimeout returns the HTTP read timeout.
func (h HTTPConfig) ReadTimeout() time.Duration { return time.Duration(h.ReadTimeoutSec) * time.Second }

// WriteTimeout returns the HTTP write timeout.
func (h HTTPConfig) WriteTimeout() time.Duration { return time.Duration(h.WriteTimeoutSec) * time.Second }

// ShutdownTimeout returns the graceful shutdown budget.
func (h HTTPConfig) ShutdownTimeout() time.Duration { return time.Duration(h.ShutdownSec) * time.Second }

// Load reads configuration from a YAML file by environment name (local, dev, prod).
func Load(env string) (Config, error) {
	return LoadFile(findConfigPath(env))
}

// LoadFile reads configuration from an explicit path.
func LoadFile(configPath string) (Config, error) {
	data, err := os.ReadFile(filepath.Clean(configPath))
	if err != nil {
		return Config{}, fmt.Errorf("failed to read config %s: %w", configPath, err)
	}

	// Substitute env variables of the form ${VAR}
	data = expandEnvVars(data)

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("failed to parse config: %w", err)
	}

	cfg.ApplyDefaults()

	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("invalid config: %w", err)
	}

	return cfg, nil
}

// GetEnv returns the current environment from the ENV variable, defaulting to "local".
func GetEnv() string {
	if env := os.Getenv("ENV"); env != "" {
		return env
	}
	return "local"
}

// ApplyDefaults fills empty fields with default values.
func (c *Config) ApplyDefaults() {
	if c.HTTP.ReadTimeoutSec <= 0 {
		c.HTTP.ReadTimeoutSec = 10
	}
	if c.HTTP.WriteTimeoutSec <= 0 {
		c.HTTP.WriteTimeoutSec = 10
	}
	if c.HTTP.ShutdownSec <= 0 {
		c.HTTP.ShutdownSec = 10
	}
	if c.HTTP.MaxBodyBytes <= 0 {
		c.HTTP.MaxBodyBytes = 4 << 20
	}

	if c.Storage.Driver == "" {
		c.Storage.Driver = DriverMemory
	}
	if c.Storage.KeyPrefix == "" {
		c.Storage.KeyPrefix = "feedtag:"
	}
	if c.Storage.FlushSchedule == "" {
		c.Storage.FlushSchedule = "@every 30s"
	}
	if c.Storage.ReadinessTimeout <= 0 {
		c.Storage.ReadinessTimeout = 10
	}
	if c.Storage.SQLitePath == "" {
		c.Storage.SQLitePath = "feedtag.db"
	}

	if c.Classifier.Reduce == (ReduceConfig{}) {
		c.Classifier.Reduce = ReduceConfig{MinDocSupport: 1, MaxDocFraction: 0.94, MinProbDistance: 0.03}
	}
	if c.Classifier.TopWords <= 0 {
		c.Classifier.TopWords = 100
	}
	if c.Classifier.AutoThreshold == 0 {
		c.Classifier.AutoThreshold = 0.9
	}
	if c.Classifier.SuggestThreshold == 0 {
		c.Classifier.SuggestThreshold = 0.6
	}
	if c.Classifier.Parallelism <= 0 {
		c.Classifier.Parallelism = runtime.GOMAXPROCS(0)
	}

	if c.Tokenizer.Language == "" {
		c.Tokenizer.Language = "english"
	}
	if c.Tokenizer.MinLength <= 0 {
		c.Tokenizer.MinLength = 2
	}

	if c.Evaluate.Folds <= 0 {
		c.Evaluate.Folds = 15
	}
	if c.Evaluate.TestRatio == 0 {
		c.Evaluate.TestRatio = 0.1
	}
	if c.Evaluate.Threshold == 0 {
		c.Evaluate.Threshold = 0.9
	}
	if c.Evaluate.Beta == 0 {
		c.Evaluate.Beta = 0.75
	}
	if c.Evaluate.Seed == 0 {
		c.Evaluate.Seed = 1
	}
	if c.Evaluate.Parallelism <= 0 {
		c.Evaluate.Parallelism = runtime.GOMAXPROCS(0)
	}
}

// Validate checks the configuration for correctness.
func (c *Config) Validate() error {
	if c.HTTP.Port <= 0 || c.HTTP.Port > 65535 {
		return fmt.Errorf("http.port must be between 1 and 65535, got %d", c.HTTP.Port)
	}

	switch c.Storage.Driver {
	case DriverMemory:
	case DriverRedis, DriverValkey:
		if len(c.Storage.Addrs) == 0 {
			return fmt.Errorf("storage.addrs is required for driver %q", c.Storage.Driver)
		}
	case DriverSQLite:
		if c.Storage.SQLitePath == "" {
			return fmt.Errorf("storage.sqlite_path is required for driver %q", c.Storage.Driver)
		}
	default:
		return fmt.Errorf("storage.driver must be one of memory, redis, valkey, sqlite, got %q", c.Storage.Driver)
	}

	cl := c.Classifier
	if cl.SuggestThreshold < 0 || cl.AutoThreshold > 1 || cl.SuggestThreshold > cl.AutoThreshold {
		return fmt.Errorf("classifier thresholds must satisfy 0 <= suggest_threshold (%g) <= auto_threshold (%g) <= 1",
			cl.SuggestThreshold, cl.AutoThreshold)
	}
	if c.Tokenizer.MinLength < 1 {
		return fmt.Errorf("tokenizer.min_length must be >= 1, got %d", c.Tokenizer.MinLength)
	}
	if c.Evaluate.TestRatio <= 0 || c.Evaluate.TestRatio >= 1 {
		return fmt.Errorf("evaluate.test_ratio must be in (0,1), got %g", c.Evaluate.TestRatio)
	}
	if c.Evaluate.Beta <= 0 {
		return fmt.Errorf("evaluate.beta must be > 0, got %g", c.Evaluate.Beta)
	}
	return nil
}

// findConfigPath locates the config file.
func findConfigPath(env string) string {
	filename := fmt.Sprintf("%s.yaml", env)

	// 1. Check ./config/
	if path := filepath.Join("config", filename); fileExists(path) {
		return path
	}

	// 2. Check relative to the source file
	_, b, _, _ := runtime.Caller(0)
	projectRoot := filepath.Dir(filepath.Dir(filepath.Dir(b))) // internal/config -> project root
	if path := filepath.Join(projectRoot, "config", filename); fileExists(path) {
		return path
	}

	// 3. Fallback to ./config/
	return filepath.Join("config", filename)
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// expandEnvVars replaces ${VAR} and ${VAR:-default} with environment variable values.
var envVarRegex = regexp.MustCompile(`\$\{([^}]+)\}`)

func expandEnvVars(data []byte) []byte {
	return envVarRegex.ReplaceAllFunc(data, func(match []byte) []byte {
		expr := string(match[2 : len(match)-1]) // strip ${ and }
		varName, defaultVal, hasDefault := strings.Cut(expr, ":-")
		val := os.Getenv(varName)
		if val == "" && hasDefault {
			val = defaultVal
		}
		return []byte(val)
	})
}
