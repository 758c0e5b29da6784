// Package config provides layered configuration for srch.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"

	srcherr "github.com/rpopa-dp/srch/internal/errors"
	"github.com/rpopa-dp/srch/internal/logging"
)

// MaxResultsLimit is the largest accepted search.max_results.
const MaxResultsLimit = 10

// ProjectConfigNames are the project config file names, in lookup order.
var ProjectConfigNames = []string{".srch.yaml", ".srch.yml", ".srch.toml"}

// Config holds all configuration for srch.
type Config struct {
	Version   int             `yaml:"version" toml:"version"`
	Index     IndexConfig     `yaml:"index" toml:"index"`
	Storage   StorageConfig   `yaml:"storage" toml:"storage"`
	Search    SearchConfig    `yaml:"search" toml:"search"`
	Indexing  IndexingConfig  `yaml:"indexing" toml:"indexing"`
	Cache     CacheConfig     `yaml:"cache" toml:"cache"`
	Metrics   MetricsConfig   `yaml:"metrics" toml:"metrics"`
	Telemetry TelemetryConfig `yaml:"telemetry" toml:"telemetry"`
	Kafka     KafkaConfig     `yaml:"kafka" toml:"kafka"`
	Logging   LoggingConfig   `yaml:"logging" toml:"logging"`
}

// IndexConfig selects where `srch index` reads documents from by default.
type IndexConfig struct {
	// Source is the default source kind: dir, wiki or kafka.
	Source string `yaml:"source" toml:"source"`
}

// StorageConfig configures the index backend.
type StorageConfig struct {
	Backend     string `yaml:"backend" toml:"backend"`
	Path        string `yaml:"path" toml:"path"`
	PostgresDSN string `yaml:"postgres_dsn,omitempty" toml:"postgres_dsn,omitempty"`
}

// SearchConfig configures query handling.
type SearchConfig struct {
	MaxResults int `yaml:"max_results" toml:"max_results"`
}

// IndexingConfig configures the ingestion runner.
type IndexingConfig struct {
	// MaxDocuments caps dump and stream sources (0 = unlimited).
	MaxDocuments    int  `yaml:"max_documents" toml:"max_documents"`
	ContinueOnError bool `yaml:"continue_on_error" toml:"continue_on_error"`
	Prefetch        int  `yaml:"prefetch" toml:"prefetch"`
}

// CacheConfig configures the search-result cache.
type CacheConfig struct {
	Backend   string `yaml:"backend" toml:"backend"`
	Size      int    `yaml:"size" toml:"size"`
	RedisAddr string `yaml:"redis_addr,omitempty" toml:"redis_addr,omitempty"`
	TTL       string `yaml:"ttl" toml:"ttl"`
}

// TTLDuration parses TTL, returning 0 when it is empty.
func (c CacheConfig) TTLDuration() time.Duration {
	d, _ := time.ParseDuration(c.TTL)
	return d
}

// MetricsConfig configures the Prometheus endpoint.
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled" toml:"enabled"`
	Addr    string `yaml:"addr" toml:"addr"`
}

// TelemetryConfig configures the persisted query statistics.
type TelemetryConfig struct {
	Enabled bool   `yaml:"enabled" toml:"enabled"`
	Path    string `yaml:"path" toml:"path"`
}

// KafkaConfig configures the kafka document source.
type KafkaConfig struct {
	Brokers     []string `yaml:"brokers" toml:"brokers"`
	Topic       string   `yaml:"topic" toml:"topic"`
	GroupID     string   `yaml:"group_id" toml:"group_id"`
	IdleTimeout string   `yaml:"idle_timeout,omitempty" toml:"idle_timeout,omitempty"`
}

// IdleTimeoutDuration parses IdleTimeout, returning 0 when it is empty.
func (k KafkaConfig) IdleTimeoutDuration() time.Duration {
	d, _ := time.ParseDuration(k.IdleTimeout)
	return d
}

// LoggingConfig configures log output.
type LoggingConfig struct {
	Level string `yaml:"level" toml:"level"`
	File  string `yaml:"file,omitempty" toml:"file,omitempty"`
}

// NewConfig creates a new Config with sensible defaults.
func NewConfig() *Config {
	return &Config{
		Version: 1,
		Index: IndexConfig{
			Source: "dir",
		},
		Storage: StorageConfig{
			Backend: "sqlite",
			Path:    "./index.db",
		},
		Search: SearchConfig{
			MaxResults: MaxResultsLimit,
		},
		Indexing: IndexingConfig{
			MaxDocuments: 10000,
			Prefetch:     64,
		},
		Cache: CacheConfig{
			Backend: "lru",
			Size:    1000,
			TTL:     "10m",
		},
		Metrics: MetricsConfig{
			Addr: "127.0.0.1:9464",
		},
		Telemetry: TelemetryConfig{
			Enabled: true,
			Path:    defaultTelemetryPath(),
		},
		Kafka: KafkaConfig{
			Brokers: []string{"localhost:9092"},
			Topic:   "documents",
			GroupID: "srch",
		},
		Logging: LoggingConfig{
			Level: "warn",
		},
	}
}

func defaultTelemetryPath() string {
	return filepath.Join(filepath.Dir(logging.DefaultLogDir()), "telemetry.db")
}

// GetUserConfigPath returns the path to the user/global configuration file.
//   - $XDG_CONFIG_HOME/srch/config.yaml (if XDG_CONFIG_HOME is set)
//   - ~/.config/srch/config.yaml (default)
func GetUserConfigPath() string {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, "srch", "config.yaml")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(os.TempDir(), ".config", "srch", "config.yaml")
	}
	return filepath.Join(home, ".config", "srch", "config.yaml")
}

// UserConfigExists returns true if the user configuration file exists.
func UserConfigExists() bool {
	return fileExists(GetUserConfigPath())
}

// Load loads configuration for the project rooted at dir.
// It applies configuration in order of increasing precedence:
//  1. Hardcoded defaults
//  2. User/global config (~/.config/srch/config.yaml)
//  3. Project config (.srch.yaml, .srch.yml or .srch.toml in dir)
//  4. Environment variables (SRCH_*)
//
// Command-line flags are applied by the caller on top of the result.
func Load(dir string) (*Config, error) {
	cfg := NewConfig()

	if path := GetUserConfigPath(); fileExists(path) {
		if err := cfg.loadFile(path); err != nil {
			return nil, err
		}
	}

	if path := FindProjectConfig(dir); path != "" {
		if err := cfg.loadFile(path); err != nil {
			return nil, err
		}
	}

	if err := cfg.applyEnvOverrides(); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// FindProjectConfig returns the first project config file found in dir, or "".
func FindProjectConfig(dir string) string {
	for _, name := range ProjectConfigNames {
		path := filepath.Join(dir, name)
		if fileExists(path) {
			return path
		}
	}
	return ""
}

// loadFile decodes path on top of c. Keys absent from the file keep their
// current value, so booleans can be switched off explicitly.
func (c *Config) loadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return srcherr.New(srcherr.ErrCodeConfigNotFound, "failed to read config file", err).
			WithDetail("path", path)
	}

	if strings.EqualFold(filepath.Ext(path), ".toml") {
		err = toml.Unmarshal(data, c)
	} else {
		err = yaml.Unmarshal(data, c)
	}
	if err != nil {
		return srcherr.ConfigError("failed to parse config file", err).
			WithDetail("path", path).
			WithSuggestion("Check the file syntax or regenerate it with 'srch config init --force'")
	}
	return nil
}

// applyEnvOverrides applies SRCH_* environment variable overrides.
func (c *Config) applyEnvOverrides() error {
	str := map[string]*string{
		"SRCH_SOURCE":          &c.Index.Source,
		"SRCH_STORAGE_BACKEND": &c.Storage.Backend,
		"SRCH_STORAGE_PATH":    &c.Storage.Path,
		"SRCH_POSTGRES_DSN":    &c.Storage.PostgresDSN,
		"SRCH_CACHE_BACKEND":   &c.Cache.Backend,
		"SRCH_REDIS_ADDR":      &c.Cache.RedisAddr,
		"SRCH_CACHE_TTL":       &c.Cache.TTL,
		"SRCH_METRICS_ADDR":    &c.Metrics.Addr,
		"SRCH_TELEMETRY_PATH":  &c.Telemetry.Path,
		"SRCH_KAFKA_TOPIC":     &c.Kafka.Topic,
		"SRCH_KAFKA_GROUP_ID":  &c.Kafka.GroupID,
		"SRCH_LOG_LEVEL":       &c.Logging.Level,
		"SRCH_LOG_FILE":        &c.Logging.File,
	}
	for key, dst := range str {
		if v := os.Getenv(key); v != "" {
			*dst = v
		}
	}

	ints := map[string]*int{
		"SRCH_MAX_RESULTS":   &c.Search.MaxResults,
		"SRCH_MAX_DOCUMENTS": &c.Indexing.MaxDocuments,
		"SRCH_PREFETCH":      &c.Indexing.Prefetch,
		"SRCH_CACHE_SIZE":    &c.Cache.Size,
	}
	for key, dst := range ints {
		v := os.Getenv(key)
		if v == "" {
			continue
		}
		n, err := strconv.Atoi(strings.TrimSpace(v))
		if err != nil {
			return srcherr.ConfigError("invalid integer in environment", err).WithDetail("variable", key)
		}
		*dst = n
	}

	bools := map[string]*bool{
		"SRCH_CONTINUE_ON_ERROR": &c.Indexing.ContinueOnError,
		"SRCH_METRICS_ENABLED":   &c.Metrics.Enabled,
		"SRCH_TELEMETRY_ENABLED": &c.Telemetry.Enabled,
	}
	for key, dst := range bools {
		if v := os.Getenv(key); v != "" {
			*dst = strings.ToLower(v) == "true" || v == "1"
		}
	}

	if v := os.Getenv("SRCH_KAFKA_BROKERS"); v != "" {
		c.Kafka.Brokers = splitList(v)
	}
	return nil
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// Validate validates the configuration and returns an error if invalid.
func (c *Config) Validate() error {
	invalid := func(key, format string, args ...any) error {
		return srcherr.ConfigError(fmt.Sprintf(format, args...), nil).WithDetail("key", key)
	}

	switch c.Index.Source {
	case "dir", "wiki", "kafka":
	default:
		return invalid("index.source", "index.source must be 'dir', 'wiki' or 'kafka', got %q", c.Index.Source)
	}

	switch c.Storage.Backend {
	case "sqlite", "sqlite3", "memory":
		if c.Storage.Backend != "memory" && c.Storage.Path == "" {
			return invalid("storage.path", "storage.path is required for the %s backend", c.Storage.Backend)
		}
	case "postgres":
		if c.Storage.PostgresDSN == "" {
			return invalid("storage.postgres_dsn", "storage.postgres_dsn is required for the postgres backend")
		}
	default:
		return invalid("storage.backend", "storage.backend must be 'sqlite', 'sqlite3', 'postgres' or 'memory', got %q", c.Storage.Backend)
	}

	if c.Search.MaxResults < 1 || c.Search.MaxResults > MaxResultsLimit {
		return invalid("search.max_results", "search.max_results must be between 1 and %d, got %d", MaxResultsLimit, c.Search.MaxResults)
	}

	if c.Indexing.MaxDocuments < 0 {
		return invalid("indexing.max_documents", "indexing.max_documents must be non-negative, got %d", c.Indexing.MaxDocuments)
	}
	if c.Indexing.Prefetch < 0 {
		return invalid("indexing.prefetch", "indexing.prefetch must be non-negative, got %d", c.Indexing.Prefetch)
	}

	switch c.Cache.Backend {
	case "none", "lru":
	case "redis":
		if c.Cache.RedisAddr == "" {
			return invalid("cache.redis_addr", "cache.redis_addr is required for the redis cache")
		}
	default:
		return invalid("cache.backend", "cache.backend must be 'none', 'lru' or 'redis', got %q", c.Cache.Backend)
	}
	if c.Cache.Size < 0 {
		return invalid("cache.size", "cache.size must be non-negative, got %d", c.Cache.Size)
	}
	if c.Cache.TTL != "" {
		if _, err := time.ParseDuration(c.Cache.TTL); err != nil {
			return invalid("cache.ttl", "cache.ttl is not a duration: %q", c.Cache.TTL)
		}
	}

	if c.Kafka.IdleTimeout != "" {
		if _, err := time.ParseDuration(c.Kafka.IdleTimeout); err != nil {
			return invalid("kafka.idle_timeout", "kafka.idle_timeout is not a duration: %q", c.Kafka.IdleTimeout)
		}
	}

	if !logging.ValidLevel(c.Logging.Level) {
		return invalid("logging.level", "logging.level must be 'debug', 'info', 'warn' or 'error', got %q", c.Logging.Level)
	}
	return nil
}

// YAML renders the configuration as YAML.
func (c *Config) YAML() ([]byte, error) {
	return yaml.Marshal(c)
}

// WriteYAML writes the configuration to a YAML file.
func (c *Config) WriteYAML(path string) error {
	data, err := c.YAML()
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}
