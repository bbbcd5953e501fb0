// Package config loads newsintel settings from YAML, embedded defaults and
// environment overrides.
package config

import (
	"embed"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/adrg/xdg"
	"gopkg.in/yaml.v3"
)

//go:embed default_config.yaml
var defaultConfigFS embed.FS

// Validation errors.
var (
	ErrInvalidLLMMode      = errors.New("llm.mode must be one of: remote, local")
	ErrInvalidEmbedder     = errors.New("embedder.provider must be one of: hash, ollama, genai")
	ErrInvalidDimensions   = errors.New("embedder.dimensions must be at least 1")
	ErrInvalidFeedType     = errors.New("feed.type must be one of: newsapi, rss")
	ErrNoFeedSources       = errors.New("feed.sources needs at least one enabled source for rss")
	ErrInvalidStoreDriver  = errors.New("store.driver must be one of: sqlite, postgres")
	ErrMissingDSN          = errors.New("store.dsn is required for postgres")
	ErrInvalidPageSize     = errors.New("ingest.page_size must be at least 1")
	ErrInvalidMaxResults   = errors.New("ingest.max_results must be at least 1")
	ErrInvalidMaxAttempts  = errors.New("ingest.retry.max_attempts must be at least 1")
	ErrInvalidMultiplier   = errors.New("ingest.retry.backoff_multiplier must be >= 1.0")
	ErrInvalidMaxK         = errors.New("clustering.max_k must be at least 1")
	ErrInvalidLogLevel     = errors.New("logging.level must be one of: debug, info, warn, error")
	ErrInvalidChatLimit    = errors.New("chat.max_articles must be at least 1")
	ErrInvalidPreviewLimit = errors.New("preview.default_limit must be at least 1")
)

const (
	ModeRemote = "remote"
	ModeLocal  = "local"
)

type Config struct {
	LLM        LLMConfig        `yaml:"llm"`
	Embedder   EmbedderConfig   `yaml:"embedder"`
	Feed       FeedConfig       `yaml:"feed"`
	Ingest     IngestConfig     `yaml:"ingest"`
	Clustering ClusteringConfig `yaml:"clustering"`
	Summarize  SummarizeConfig  `yaml:"summarize"`
	Chat       ChatConfig       `yaml:"chat"`
	Preview    PreviewConfig    `yaml:"preview"`
	Store      StoreConfig      `yaml:"store"`
	Queue      QueueConfig      `yaml:"queue"`
	Server     ServerConfig     `yaml:"server"`
	Logging    LoggingConfig    `yaml:"logging"`
}

// LLMConfig selects the completion backend for the whole process.
type LLMConfig struct {
	Mode    string       `yaml:"mode"` // "remote" or "local"
	Timeout string       `yaml:"timeout"`
	Remote  RemoteConfig `yaml:"remote"`
	Local   LocalConfig  `yaml:"local"`
}

type RemoteConfig struct {
	APIKey  string `yaml:"api_key"`
	Model   string `yaml:"model"`
	BaseURL string `yaml:"base_url"`
}

type LocalConfig struct {
	BaseURL string `yaml:"base_url"`
	Model   string `yaml:"model"`
}

type EmbedderConfig struct {
	Provider   string            `yaml:"provider"` // "hash", "ollama" or "genai"
	Dimensions int               `yaml:"dimensions"`
	Timeout    string            `yaml:"timeout"`
	Ollama     OllamaEmbedConfig `yaml:"ollama"`
	GenAI      GenAIEmbedConfig  `yaml:"genai"`
}

type OllamaEmbedConfig struct {
	BaseURL string `yaml:"base_url"`
	Model   string `yaml:"model"`
}

type GenAIEmbedConfig struct {
	APIKey string `yaml:"api_key"`
	Model  string `yaml:"model"`
}

type FeedConfig struct {
	Type    string        `yaml:"type"` // "newsapi" or "rss"
	Timeout string        `yaml:"timeout"`
	NewsAPI NewsAPIConfig `yaml:"newsapi"`
	Sources []Source      `yaml:"sources"`
}

type NewsAPIConfig struct {
	APIKey  string `yaml:"api_key"`
	Country string `yaml:"country"`
	BaseURL string `yaml:"base_url"`
}

// Source is an RSS or Atom feed polled by the rss feed type.
type Source struct {
	Name    string `yaml:"name"`
	Type    string `yaml:"type"`
	URL     string `yaml:"url"`
	Enabled bool   `yaml:"enabled"`
}

type IngestConfig struct {
	PageSize   int         `yaml:"page_size"`
	MaxResults int         `yaml:"max_results"`
	Retry      RetryConfig `yaml:"retry"`
}

// RetryConfig wraps the enrichment step. One attempt means no retry.
type RetryConfig struct {
	MaxAttempts       int     `yaml:"max_attempts"`
	InitialDelay      string  `yaml:"initial_delay"`
	BackoffMultiplier float64 `yaml:"backoff_multiplier"`
}

type ClusteringConfig struct {
	MaxK                int  `yaml:"max_k"`
	PruneStaleSummaries bool `yaml:"prune_stale_summaries"`
}

type SummarizeConfig struct {
	BatchSize int `yaml:"batch_size"`
}

type ChatConfig struct {
	MaxArticles int `yaml:"max_articles"`
}

type PreviewConfig struct {
	DefaultLimit int `yaml:"default_limit"`
}

type StoreConfig struct {
	Driver string `yaml:"driver"` // "sqlite" or "postgres"
	Path   string `yaml:"path,omitempty"`
	DSN    string `yaml:"dsn,omitempty"`
}

type QueueConfig struct {
	RedisAddr string `yaml:"redis_addr,omitempty"`
	Key       string `yaml:"key"`
}

type ServerConfig struct {
	Addr  string `yaml:"addr"`
	Token string `yaml:"token,omitempty"`
}

type LoggingConfig struct {
	Level string `yaml:"level"`
}

// LLMTimeout returns the per-request timeout for completion calls.
func (c *Config) LLMTimeout() time.Duration {
	return parseDuration(c.LLM.Timeout, 60*time.Second)
}

func (c *Config) EmbedderTimeout() time.Duration {
	return parseDuration(c.Embedder.Timeout, 30*time.Second)
}

func (c *Config) FeedTimeout() time.Duration {
	return parseDuration(c.Feed.Timeout, 30*time.Second)
}

func (c *Config) RetryInitialDelay() time.Duration {
	return parseDuration(c.Ingest.Retry.InitialDelay, 200*time.Millisecond)
}

// QueueEnabled reports whether new articles are pushed to Redis for summarization.
func (c *Config) QueueEnabled() bool {
	return c.Queue.RedisAddr != ""
}

// StorePath returns the SQLite database location.
func (c *Config) StorePath() string {
	if c.Store.Path != "" {
		return c.Store.Path
	}
	return DataPath()
}

func (c *Config) EnabledSources() []Source {
	var out []Source
	for _, s := range c.Feed.Sources {
		if s.Enabled {
			out = append(out, s)
		}
	}
	return out
}

func DefaultConfigPath() string {
	return filepath.Join(xdg.ConfigHome, "newsintel", "config.yaml")
}

func DataPath() string {
	return filepath.Join(xdg.DataHome, "newsintel", "newsintel.db")
}

// ParseDuration accepts Go durations and the "Nd" day syntax (e.g. 7d).
func ParseDuration(s string) (time.Duration, error) {
	if len(s) > 1 && s[len(s)-1] == 'd' {
		var days int
		if _, err := fmt.Sscanf(s, "%dd", &days); err == nil {
			return time.Duration(days) * 24 * time.Hour, nil
		}
	}
	return time.ParseDuration(s)
}

func parseDuration(s string, fallback time.Duration) time.Duration {
	if s == "" {
		return fallback
	}
	d, err := ParseDuration(s)
	if err != nil {
		return fallback
	}
	return d
}

func loadDefaults() (*Config, error) {
	data, err := defaultConfigFS.ReadFile("default_config.yaml")
	if err != nil {
		return nil, fmt.Errorf("reading embedded config: %w", err)
	}
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parsing embedded config: %w", err)
	}
	return &cfg, nil
}

// Load reads the config at path (or the default location), layering the file
// over embedded defaults and environment variables over both.
func Load(path string) (*Config, error) {
	cfg, err := loadDefaults()
	if err != nil {
		return nil, err
	}

	if path == "" {
		path = DefaultConfigPath()
	}

	data, err := os.ReadFile(path)
	switch {
	case os.IsNotExist(err):
		// Non-fatal: embedded defaults still apply.
		_ = writeDefaults(path)
	case err != nil:
		return nil, fmt.Errorf("reading config: %w", err)
	default:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parsing config %s: %w", path, err)
		}
	}

	applyEnv(cfg)
	if err := validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func writeDefaults(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	data, _ := defaultConfigFS.ReadFile("default_config.yaml")
	return os.WriteFile(path, data, 0o644)
}

func applyEnv(cfg *Config) {
	setString := func(dst *string, key string) {
		if v := os.Getenv(key); v != "" {
			*dst = v
		}
	}
	setInt := func(dst *int, key string) {
		if v := os.Getenv(key); v != "" {
			if n, err := strconv.Atoi(v); err == nil {
				*dst = n
			}
		}
	}

	setString(&cfg.LLM.Mode, "LLM_MODE")
	setString(&cfg.LLM.Remote.APIKey, "OPENAI_API_KEY")
	setString(&cfg.Feed.NewsAPI.APIKey, "NEWS_API_KEY")
	setString(&cfg.Embedder.GenAI.APIKey, "GENAI_API_KEY")
	setString(&cfg.Queue.RedisAddr, "REDIS_ADDR")
	setString(&cfg.Server.Token, "NEWSINTEL_TOKEN")
	setInt(&cfg.Ingest.PageSize, "INGEST_PAGE_SIZE")
	setInt(&cfg.Ingest.MaxResults, "INGEST_MAX_RESULTS")

	// LLM_BASE_URL and LLM_MODEL address whichever backend is active.
	if strings.EqualFold(cfg.LLM.Mode, ModeLocal) {
		setString(&cfg.LLM.Local.BaseURL, "LLM_BASE_URL")
		setString(&cfg.LLM.Local.Model, "LLM_MODEL")
	} else {
		setString(&cfg.LLM.Remote.BaseURL, "LLM_BASE_URL")
		setString(&cfg.LLM.Remote.Model, "LLM_MODEL")
	}

	if dsn := os.Getenv("DB_DSN"); dsn != "" {
		cfg.Store.Driver = "postgres"
		cfg.Store.DSN = dsn
	}
}

func validate(cfg *Config) error {
	cfg.LLM.Mode = strings.ToLower(cfg.LLM.Mode)
	if cfg.LLM.Mode != ModeRemote && cfg.LLM.Mode != ModeLocal {
		return ErrInvalidLLMMode
	}

	switch cfg.Embedder.Provider {
	case "hash", "ollama", "genai":
	default:
		return ErrInvalidEmbedder
	}
	if cfg.Embedder.Provider == "hash" && cfg.Embedder.Dimensions < 1 {
		return ErrInvalidDimensions
	}

	switch cfg.Feed.Type {
	case "newsapi":
	case "rss":
		if len(cfg.EnabledSources()) == 0 {
			return ErrNoFeedSources
		}
		if err := validateSources(cfg.Feed.Sources); err != nil {
			return err
		}
	default:
		return ErrInvalidFeedType
	}

	switch cfg.Store.Driver {
	case "sqlite":
	case "postgres":
		if cfg.Store.DSN == "" {
			return ErrMissingDSN
		}
	default:
		return ErrInvalidStoreDriver
	}

	if cfg.Ingest.PageSize < 1 {
		return ErrInvalidPageSize
	}
	if cfg.Ingest.MaxResults < 1 {
		return ErrInvalidMaxResults
	}
	if cfg.Ingest.Retry.MaxAttempts < 1 {
		return ErrInvalidMaxAttempts
	}
	if cfg.Ingest.Retry.BackoffMultiplier < 1.0 {
		return ErrInvalidMultiplier
	}
	if cfg.Clustering.MaxK < 1 {
		return ErrInvalidMaxK
	}
	if cfg.Chat.MaxArticles < 1 {
		return ErrInvalidChatLimit
	}
	if cfg.Preview.DefaultLimit < 1 {
		return ErrInvalidPreviewLimit
	}

	switch strings.ToLower(cfg.Logging.Level) {
	case "debug", "info", "warn", "error":
	default:
		return ErrInvalidLogLevel
	}
	return nil
}

func validateSources(sources []Source) error {
	validTypes := map[string]bool{"rss": true, "atom": true}
	for i, s := range sources {
		if s.Name == "" {
			return fmt.Errorf("source %d: name is required", i)
		}
		if s.URL == "" {
			return fmt.Errorf("source %q: url is required", s.Name)
		}
		u, err := url.Parse(s.URL)
		if err != nil {
			return fmt.Errorf("source %q: invalid url: %w", s.Name, err)
		}
		if u.Scheme != "http" && u.Scheme != "https" {
			return fmt.Errorf("source %q: url scheme must be http or https, got %q", s.Name, u.Scheme)
		}
		if !validTypes[s.Type] {
			return fmt.Errorf("source %q: unknown type %q (valid: rss, atom)", s.Name, s.Type)
		}
	}
	return nil
}
