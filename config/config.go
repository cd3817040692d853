package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
)

// ConfigPathEnvVar overrides the config file location
const ConfigPathEnvVar = "CONFIG_PATH"

// DefaultConfigPaths are searched in order when CONFIG_PATH is unset
var DefaultConfigPaths = []string{
	"config.yaml",
	"config.yml",
}

type Config struct {
	Server    ServerConfig    `koanf:"server"`
	Database  DatabaseConfig  `koanf:"database"`
	LLM       LLMConfig       `koanf:"llm"`
	YouTube   YouTubeConfig   `koanf:"youtube"`
	Trends    TrendsConfig    `koanf:"trends"`
	Expansion ExpansionConfig `koanf:"expansion"`
	Pipeline  PipelineConfig  `koanf:"pipeline"`
	Cache     CacheConfig     `koanf:"cache"`
	Momentum  MomentumConfig  `koanf:"momentum"`
	Logging   LoggingConfig   `koanf:"logging"`

	// Countries is the supported country table; it is code, not configuration
	Countries CountryTable `koanf:"-"`
}

type ServerConfig struct {
	Port            string        `koanf:"port"`
	Mode            string        `koanf:"mode"` // gin mode: debug, release or test
	ReadTimeout     time.Duration `koanf:"read_timeout"`
	WriteTimeout    time.Duration `koanf:"write_timeout"`
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout"`
}

type DatabaseConfig struct {
	Path string `koanf:"path"`
}

// LLMConfig covers both relevance scoring and term expansion
type LLMConfig struct {
	Provider             string        `koanf:"provider"` // "openai" or "groq"
	OpenAIKey            string        `koanf:"openai_api_key"`
	GroqKey              string        `koanf:"groq_api_key"`
	BaseURL              string        `koanf:"base_url"`
	ScoringModel         string        `koanf:"scoring_model"`
	ExpansionModel       string        `koanf:"expansion_model"`
	ExpansionEnabled     bool          `koanf:"expansion_enabled"`
	ExpansionTimeout     time.Duration `koanf:"expansion_timeout"`
	BatchSize            int           `koanf:"batch_size"`
	Parallelism          int           `koanf:"parallelism"`
	MonthlyBudget        float64       `koanf:"monthly_budget"` // EUR
	CostPerMillionTokens float64       `koanf:"cost_per_million_tokens"`
	OutputTokensPerVideo int           `koanf:"output_tokens_per_video"`
	ScoreValidity        time.Duration `koanf:"score_validity"`
	BatchTimeout         time.Duration `koanf:"batch_timeout"`
	MaxRetries           int           `koanf:"max_retries"`
	Temperature          float64       `koanf:"temperature"`
}

// APIKey returns the key for the selected provider
func (c LLMConfig) APIKey() string {
	if c.Provider == "openai" {
		return c.OpenAIKey
	}
	return c.GroqKey
}

// Enabled reports whether an LLM key is configured
func (c LLMConfig) Enabled() bool {
	return c.APIKey() != ""
}

type YouTubeConfig struct {
	APIKey             string        `koanf:"api_key"`
	BaseURL            string        `koanf:"base_url"`
	Timeout            time.Duration `koanf:"timeout"`
	RequestsPerSecond  float64       `koanf:"requests_per_second"`
	Burst              int           `koanf:"burst"`
	MaxResultsPerQuery int           `koanf:"max_results_per_query"`
	BreakerFailures    uint32        `koanf:"breaker_failures"`
	BreakerTimeout     time.Duration `koanf:"breaker_timeout"`
}

type TrendsConfig struct {
	Enabled bool          `koanf:"enabled"`
	RSSURL  string        `koanf:"rss_url"` // %s is replaced by the country code
	Timeout time.Duration `koanf:"timeout"`
}

type ExpansionConfig struct {
	MaxVariants int `koanf:"max_variants"`
}

type PipelineConfig struct {
	Timeout           time.Duration `koanf:"timeout"`
	TargetPoolSize    int           `koanf:"target_pool_size"`
	SearchParallelism int           `koanf:"search_parallelism"`
	TrendingFeedSize  int           `koanf:"trending_feed_size"`
	FeedFreshness     time.Duration `koanf:"feed_freshness"`
	FeedCrawlInterval time.Duration `koanf:"feed_crawl_interval"`
	DefaultLimit      int           `koanf:"default_limit"`
	MaxLimit          int           `koanf:"max_limit"`
	DetailsEnabled    bool          `koanf:"details_enabled"`
}

type CacheConfig struct {
	Backend      string        `koanf:"backend"` // "memory" or "badger"
	BadgerPath   string        `koanf:"badger_path"`
	ResultTTL    time.Duration `koanf:"result_ttl"`
	DegradedTTL  time.Duration `koanf:"degraded_ttl"`
	ExpansionTTL time.Duration `koanf:"expansion_ttl"`
	FeedTTL      time.Duration `koanf:"feed_ttl"`
}

// MomentumConfig holds the ranking weights
type MomentumConfig struct {
	ViewsPerHourWeight float64 `koanf:"views_per_hour_weight"`
	EngagementWeight   float64 `koanf:"engagement_weight"`
	RecencyWeight      float64 `koanf:"recency_weight"`
	RecencyDecayHours  float64 `koanf:"recency_decay_hours"`
	RelevanceBase      float64 `koanf:"relevance_base"`
	RelevanceSpan      float64 `koanf:"relevance_span"`
	TrendingBoost      float64 `koanf:"trending_boost"`
}

type LoggingConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"` // "json" or "console"
	Caller bool   `koanf:"caller"`
}

func defaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Port:            "8080",
			Mode:            "release",
			ReadTimeout:     15 * time.Second,
			WriteTimeout:    60 * time.Second,
			ShutdownTimeout: 10 * time.Second,
		},
		Database: DatabaseConfig{
			Path: "trends.db",
		},
		LLM: LLMConfig{
			Provider:             "groq",
			BaseURL:              "https://api.groq.com/openai/v1",
			ScoringModel:         "llama-3.3-70b-versatile",
			ExpansionModel:       "llama-3.1-8b-instant",
			ExpansionEnabled:     true,
			ExpansionTimeout:     8 * time.Second,
			BatchSize:            20,
			Parallelism:          3,
			MonthlyBudget:        500,
			CostPerMillionTokens: 0.20,
			OutputTokensPerVideo: 80,
			ScoreValidity:        24 * time.Hour,
			BatchTimeout:         30 * time.Second,
			MaxRetries:           1,
			Temperature:          0.1,
		},
		YouTube: YouTubeConfig{
			BaseURL:            "https://www.googleapis.com/youtube/v3",
			Timeout:            10 * time.Second,
			RequestsPerSecond:  5,
			Burst:              10,
			MaxResultsPerQuery: 20,
			BreakerFailures:    5,
			BreakerTimeout:     60 * time.Second,
		},
		Trends: TrendsConfig{
			Enabled: true,
			RSSURL:  "https://trends.google.com/trending/rss?geo=%s",
			Timeout: 5 * time.Second,
		},
		Expansion: ExpansionConfig{
			MaxVariants: 4,
		},
		Pipeline: PipelineConfig{
			Timeout:           45 * time.Second,
			TargetPoolSize:    60,
			SearchParallelism: 4,
			TrendingFeedSize:  50,
			FeedFreshness:     4 * time.Hour,
			FeedCrawlInterval: 2 * time.Hour,
			DefaultLimit:      10,
			MaxLimit:          50,
			DetailsEnabled:    true,
		},
		Cache: CacheConfig{
			Backend:      "memory",
			BadgerPath:   "data/cache",
			ResultTTL:    2 * time.Hour,
			DegradedTTL:  10 * time.Minute,
			ExpansionTTL: 2 * time.Hour,
			FeedTTL:      time.Hour,
		},
		Momentum: MomentumConfig{
			ViewsPerHourWeight: 0.6,
			EngagementWeight:   0.3,
			RecencyWeight:      0.1,
			RecencyDecayHours:  24,
			RelevanceBase:      0.5,
			RelevanceSpan:      1.5,
			TrendingBoost:      1.5,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
	}
}

// Default returns the built-in configuration without reading files or env
func Default() *Config {
	cfg := defaultConfig()
	cfg.Countries = DefaultCountries()
	return cfg
}

// LoadConfig layers defaults, an optional YAML file and environment variables.
// Precedence is env > file > defaults.
func LoadConfig() (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(structs.Provider(defaultConfig(), "koanf"), nil); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	if path := findConfigFile(); path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", path, err)
		}
	}

	if err := k.Load(env.Provider("", ".", envTransformFunc), nil); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	cfg := &Config{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal configuration: %w", err)
	}
	cfg.Countries = DefaultCountries()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return cfg, nil
}

func findConfigFile() string {
	if p := os.Getenv(ConfigPathEnvVar); p != "" {
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}
	for _, p := range DefaultConfigPaths {
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}
	return ""
}

// envMappings keeps the historical variable names working.
// Unmapped variables are ignored.
var envMappings = map[string]string{
	"port":                        "server.port",
	"gin_mode":                    "server.mode",
	"server_read_timeout":         "server.read_timeout",
	"server_write_timeout":        "server.write_timeout",
	"server_shutdown_timeout":     "server.shutdown_timeout",
	"db_path":                     "database.path",
	"llm_provider":                "llm.provider",
	"openai_api_key":              "llm.openai_api_key",
	"groq_api_key":                "llm.groq_api_key",
	"groq_base_url":               "llm.base_url",
	"llm_base_url":                "llm.base_url",
	"scoring_model":               "llm.scoring_model",
	"expansion_model":             "llm.expansion_model",
	"llm_expansion_enabled":       "llm.expansion_enabled",
	"llm_expansion_timeout":       "llm.expansion_timeout",
	"llm_batch_size":              "llm.batch_size",
	"llm_parallelism":             "llm.parallelism",
	"llm_monthly_budget":          "llm.monthly_budget",
	"llm_cost_per_million_tokens": "llm.cost_per_million_tokens",
	"llm_score_validity":          "llm.score_validity",
	"llm_batch_timeout":           "llm.batch_timeout",
	"youtube_api_key":             "youtube.api_key",
	"youtube_base_url":            "youtube.base_url",
	"youtube_timeout":             "youtube.timeout",
	"youtube_requests_per_second": "youtube.requests_per_second",
	"youtube_results_per_query":   "youtube.max_results_per_query",
	"youtube_max_results":         "pipeline.target_pool_size",
	"google_trends_enabled":       "trends.enabled",
	"google_trends_rss_url":       "trends.rss_url",
	"expansion_max_variants":      "expansion.max_variants",
	"pipeline_timeout":            "pipeline.timeout",
	"search_parallelism":          "pipeline.search_parallelism",
	"trending_feed_size":          "pipeline.trending_feed_size",
	"trending_feed_freshness":     "pipeline.feed_freshness",
	"trending_crawl_interval":     "pipeline.feed_crawl_interval",
	"default_limit":               "pipeline.default_limit",
	"max_limit":                   "pipeline.max_limit",
	"cache_backend":               "cache.backend",
	"cache_path":                  "cache.badger_path",
	"cache_ttl_search":            "cache.result_ttl",
	"cache_ttl_degraded":          "cache.degraded_ttl",
	"cache_ttl_expansion":         "cache.expansion_ttl",
	"cache_ttl_trending":          "cache.feed_ttl",
	"momentum_views_weight":       "momentum.views_per_hour_weight",
	"momentum_engagement_weight":  "momentum.engagement_weight",
	"momentum_recency_weight":     "momentum.recency_weight",
	"momentum_decay_hours":        "momentum.recency_decay_hours",
	"momentum_trending_boost":     "momentum.trending_boost",
	"log_level":                   "logging.level",
	"log_format":                  "logging.format",
	"log_caller":                  "logging.caller",
}

func envTransformFunc(key string) string {
	if mapped, ok := envMappings[strings.ToLower(key)]; ok {
		return mapped
	}
	return ""
}

// Validate checks the loaded configuration
func (c *Config) Validate() error {
	var errs []error

	if c.Server.Port == "" {
		errs = append(errs, errors.New("server.port is required"))
	}
	if c.Database.Path == "" {
		errs = append(errs, errors.New("database.path is required"))
	}
	if c.LLM.Provider != "openai" && c.LLM.Provider != "groq" {
		errs = append(errs, fmt.Errorf("llm.provider must be openai or groq, got %q", c.LLM.Provider))
	}
	if c.LLM.BatchSize <= 0 {
		errs = append(errs, errors.New("llm.batch_size must be positive"))
	}
	if c.LLM.Parallelism <= 0 {
		errs = append(errs, errors.New("llm.parallelism must be positive"))
	}
	if c.LLM.MonthlyBudget < 0 || c.LLM.CostPerMillionTokens < 0 {
		errs = append(errs, errors.New("llm budget and token cost must not be negative"))
	}
	if c.LLM.ScoreValidity <= 0 {
		errs = append(errs, errors.New("llm.score_validity must be positive"))
	}
	if c.Pipeline.MaxLimit <= 0 || c.Pipeline.MaxLimit > 50 {
		errs = append(errs, errors.New("pipeline.max_limit must be between 1 and 50"))
	}
	if c.Pipeline.DefaultLimit <= 0 || c.Pipeline.DefaultLimit > c.Pipeline.MaxLimit {
		errs = append(errs, errors.New("pipeline.default_limit must be between 1 and pipeline.max_limit"))
	}
	if c.Pipeline.Timeout <= 0 {
		errs = append(errs, errors.New("pipeline.timeout must be positive"))
	}
	if c.Pipeline.SearchParallelism <= 0 || c.Pipeline.TargetPoolSize <= 0 {
		errs = append(errs, errors.New("pipeline.search_parallelism and pipeline.target_pool_size must be positive"))
	}
	if c.Cache.Backend != "memory" && c.Cache.Backend != "badger" {
		errs = append(errs, fmt.Errorf("cache.backend must be memory or badger, got %q", c.Cache.Backend))
	}
	if c.Cache.ResultTTL <= 0 || c.Cache.DegradedTTL <= 0 {
		errs = append(errs, errors.New("cache ttls must be positive"))
	}
	if c.Momentum.RecencyDecayHours <= 0 {
		errs = append(errs, errors.New("momentum.recency_decay_hours must be positive"))
	}
	if c.Momentum.ViewsPerHourWeight < 0 || c.Momentum.EngagementWeight < 0 || c.Momentum.RecencyWeight < 0 {
		errs = append(errs, errors.New("momentum weights must not be negative"))
	}
	if len(c.Countries) == 0 {
		errs = append(errs, errors.New("country table is empty"))
	}

	return errors.Join(errs...)
}
