// Package config loads arbor settings from a YAML file and ARBOR_* environment variables.
package config

import (
	"encoding/base64"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"regexp"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/aretw0/arbor/internal/logging"
)

// Store kinds.
const (
	StoreMemory = "memory"
	StoreFile   = "file"
	StoreRedis  = "redis"
	StoreSQLite = "sqlite"
)

// Retrieval kinds.
const (
	RetrievalHTTP   = "http"
	RetrievalSQLite = "sqlite"
)

// Config is the full set of settings.
type Config struct {
	LogLevel          string          `yaml:"log_level"`
	LogFormat         string          `yaml:"log_format"`
	Store             StoreConfig     `yaml:"store"`
	Model             ModelConfig     `yaml:"model"`
	Retrieval         RetrievalConfig `yaml:"retrieval"`
	Solver            SolverConfig    `yaml:"solver"`
	Retry             RetryConfig     `yaml:"retry"`
	SynthesisAttempts int             `yaml:"synthesis_attempts"`
	HTTP              HTTPConfig      `yaml:"http"`
	Metrics           MetricsConfig   `yaml:"metrics"`
}

// StoreConfig selects the checkpoint backend and its at-rest protections.
type StoreConfig struct {
	Kind  string      `yaml:"kind"`
	Path  string      `yaml:"path"`
	Redis RedisConfig `yaml:"redis"`

	// EncryptionKey is a base64 AES-256 key; empty disables encryption.
	EncryptionKey  string   `yaml:"encryption_key"`
	FallbackKeys   []string `yaml:"fallback_keys"`
	RedactPatterns []string `yaml:"redact_patterns"`
}

// RedisConfig is used by the redis store and the distributed locker.
type RedisConfig struct {
	Addr     string        `yaml:"addr"`
	Password string        `yaml:"password"`
	DB       int           `yaml:"db"`
	Prefix   string        `yaml:"prefix"`
	TTL      time.Duration `yaml:"ttl"`
}

// ModelConfig selects the OpenAI-compatible chat model.
type ModelConfig struct {
	Model       string  `yaml:"model"`
	BaseURL     string  `yaml:"base_url"`
	APIKeyEnv   string  `yaml:"api_key_env"`
	Temperature float64 `yaml:"temperature"`
}

// RetrievalConfig selects the knowledge backend.
type RetrievalConfig struct {
	Kind      string        `yaml:"kind"`
	BaseURL   string        `yaml:"base_url"`
	APIKeyEnv string        `yaml:"api_key_env"`
	Timeout   time.Duration `yaml:"timeout"`
	// IndexPath is the SQLite section index used when Kind is sqlite.
	IndexPath string `yaml:"index_path"`
	Limit     int    `yaml:"limit"`
}

// SolverConfig points at the external computational engine.
type SolverConfig struct {
	BaseURL      string        `yaml:"base_url"`
	APIKeyEnv    string        `yaml:"api_key_env"`
	PollInterval time.Duration `yaml:"poll_interval"`
	Timeout      time.Duration `yaml:"timeout"`
}

// RetryConfig bounds retries of collaborator calls.
type RetryConfig struct {
	MaxAttempts int           `yaml:"max_attempts"`
	BaseDelay   time.Duration `yaml:"base_delay"`
	MaxDelay    time.Duration `yaml:"max_delay"`
}

// HTTPConfig configures arbor serve.
type HTTPConfig struct {
	Addr string `yaml:"addr"`
}

// MetricsConfig toggles the prometheus endpoint.
type MetricsConfig struct {
	Enabled bool `yaml:"enabled"`
}

// Default returns the settings used when nothing is configured.
func Default() Config {
	return Config{
		LogLevel:  "info",
		LogFormat: logging.FormatText,
		Store: StoreConfig{
			Kind: StoreFile,
			Redis: RedisConfig{
				Addr:   "localhost:6379",
				Prefix: "arbor:session:",
			},
		},
		Model: ModelConfig{
			Model:     "gpt-4o-mini",
			APIKeyEnv: "OPENAI_API_KEY",
		},
		Retrieval: RetrievalConfig{
			Kind:      RetrievalHTTP,
			BaseURL:   "http://localhost:8081",
			APIKeyEnv: "ARBOR_RETRIEVAL_API_KEY",
			Timeout:   30 * time.Second,
			IndexPath: ".arbor/index.db",
			Limit:     3,
		},
		Solver: SolverConfig{
			BaseURL:      "http://localhost:8082",
			APIKeyEnv:    "ARBOR_SOLVER_API_KEY",
			PollInterval: 500 * time.Millisecond,
			Timeout:      2 * time.Minute,
		},
		Retry: RetryConfig{
			MaxAttempts: 3,
			BaseDelay:   200 * time.Millisecond,
			MaxDelay:    5 * time.Second,
		},
		SynthesisAttempts: 3,
		HTTP:              HTTPConfig{Addr: ":8080"},
		Metrics:           MetricsConfig{Enabled: true},
	}
}

// Load reads path over the defaults and applies environment overrides.
// An empty path skips the file.
func Load(path string) (Config, error) {
	return LoadWithEnv(path, os.LookupEnv)
}

// LoadWithEnv is Load with an explicit environment lookup.
func LoadWithEnv(path string, lookup func(string) (string, bool)) (Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return cfg, fmt.Errorf("failed to read config: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("failed to parse %s: %w", path, err)
		}
	}

	if err := applyEnv(&cfg, lookup); err != nil {
		return cfg, err
	}
	return cfg, cfg.Validate()
}

func applyEnv(cfg *Config, lookup func(string) (string, bool)) error {
	str := map[string]*string{
		"ARBOR_LOG_LEVEL":      &cfg.LogLevel,
		"ARBOR_LOG_FORMAT":     &cfg.LogFormat,
		"ARBOR_STORE_KIND":     &cfg.Store.Kind,
		"ARBOR_STORE_PATH":     &cfg.Store.Path,
		"ARBOR_REDIS_ADDR":     &cfg.Store.Redis.Addr,
		"ARBOR_REDIS_PASSWORD": &cfg.Store.Redis.Password,
		"ARBOR_ENCRYPTION_KEY": &cfg.Store.EncryptionKey,
		"ARBOR_MODEL":          &cfg.Model.Model,
		"ARBOR_MODEL_BASE_URL": &cfg.Model.BaseURL,
		"ARBOR_RETRIEVAL_KIND": &cfg.Retrieval.Kind,
		"ARBOR_RETRIEVAL_URL":  &cfg.Retrieval.BaseURL,
		"ARBOR_INDEX_PATH":     &cfg.Retrieval.IndexPath,
		"ARBOR_SOLVER_URL":     &cfg.Solver.BaseURL,
		"ARBOR_HTTP_ADDR":      &cfg.HTTP.Addr,
	}
	for key, dst := range str {
		if v, ok := lookup(key); ok {
			*dst = v
		}
	}

	ints := map[string]*int{
		"ARBOR_REDIS_DB":           &cfg.Store.Redis.DB,
		"ARBOR_RETRY_ATTEMPTS":     &cfg.Retry.MaxAttempts,
		"ARBOR_SYNTHESIS_ATTEMPTS": &cfg.SynthesisAttempts,
	}
	for key, dst := range ints {
		if v, ok := lookup(key); ok {
			n, err := strconv.Atoi(v)
			if err != nil {
				return fmt.Errorf("%s: %w", key, err)
			}
			*dst = n
		}
	}

	if v, ok := lookup("ARBOR_METRICS"); ok {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("ARBOR_METRICS: %w", err)
		}
		cfg.Metrics.Enabled = b
	}
	return nil
}

// Validate rejects inconsistent settings.
func (c Config) Validate() error {
	var errs []error

	if _, err := c.Level(); err != nil {
		errs = append(errs, err)
	}
	switch c.LogFormat {
	case "", logging.FormatText, logging.FormatJSON:
	default:
		errs = append(errs, fmt.Errorf("unknown log_format %q", c.LogFormat))
	}

	switch c.Store.Kind {
	case StoreMemory, StoreFile, StoreSQLite:
	case StoreRedis:
		if c.Store.Redis.Addr == "" {
			errs = append(errs, errors.New("store.redis.addr is required for the redis store"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown store kind %q", c.Store.Kind))
	}

	if c.Store.EncryptionKey != "" {
		if _, _, err := c.EncryptionKeys(); err != nil {
			errs = append(errs, err)
		}
	}
	for _, p := range c.Store.RedactPatterns {
		if _, err := regexp.Compile(p); err != nil {
			errs = append(errs, fmt.Errorf("redact pattern %q: %w", p, err))
		}
	}

	switch c.Retrieval.Kind {
	case RetrievalHTTP:
		if c.Retrieval.BaseURL == "" {
			errs = append(errs, errors.New("retrieval.base_url is required"))
		}
	case RetrievalSQLite:
		if c.Retrieval.IndexPath == "" {
			errs = append(errs, errors.New("retrieval.index_path is required"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown retrieval kind %q", c.Retrieval.Kind))
	}

	if c.Retry.MaxAttempts < 1 {
		errs = append(errs, fmt.Errorf("retry.max_attempts must be at least 1, got %d", c.Retry.MaxAttempts))
	}
	if c.Retry.MaxDelay > 0 && c.Retry.MaxDelay < c.Retry.BaseDelay {
		errs = append(errs, errors.New("retry.max_delay is shorter than retry.base_delay"))
	}
	if c.SynthesisAttempts < 1 {
		errs = append(errs, fmt.Errorf("synthesis_attempts must be at least 1, got %d", c.SynthesisAttempts))
	}

	return errors.Join(errs...)
}

// Level parses LogLevel.
func (c Config) Level() (slog.Level, error) {
	var l slog.Level
	if err := l.UnmarshalText([]byte(strings.ToUpper(c.LogLevel))); err != nil {
		return slog.LevelInfo, fmt.Errorf("log_level: %w", err)
	}
	return l, nil
}

// EncryptionKeys decodes the active and fallback keys. Each must be 32 bytes.
func (c Config) EncryptionKeys() ([]byte, [][]byte, error) {
	active, err := decodeKey(c.Store.EncryptionKey)
	if err != nil {
		return nil, nil, fmt.Errorf("store.encryption_key: %w", err)
	}
	var fallback [][]byte
	for i, k := range c.Store.FallbackKeys {
		key, err := decodeKey(k)
		if err != nil {
			return nil, nil, fmt.Errorf("store.fallback_keys[%d]: %w", i, err)
		}
		fallback = append(fallback, key)
	}
	return active, fallback, nil
}

func decodeKey(s string) ([]byte, error) {
	key, err := base64.StdEncoding.DecodeString(s)
	if err != nil {
		return nil, err
	}
	if len(key) != 32 {
		return nil, fmt.Errorf("key must be 32 bytes, got %d", len(key))
	}
	return key, nil
}

// Secret reads the value of the environment variable named by envName.
func Secret(envName string) string {
	if envName == "" {
		return ""
	}
	return os.Getenv(envName)
}
