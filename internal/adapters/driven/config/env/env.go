package env

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Default values applied when the corresponding variable is unset.
const (
	DefaultBatchSize      = 5
	DefaultRateLimitRPM   = 60
	DefaultTimeoutSeconds = 120
	DefaultMaxTokens      = 4096
	DefaultModel          = "grok-3-mini"
	DefaultRefreshHours   = 24
)

// Config holds everything the engine reads from the environment.
type Config struct {
	// MongoURI is the document store connection string (required).
	MongoURI string

	// ElasticsearchHost is the search engine address. Empty disables
	// search indexing.
	ElasticsearchHost string

	// InitialDownloadDelay is the wait before the first scheduled
	// refresh. Zero means immediate.
	InitialDownloadDelay time.Duration

	// RefreshInterval is the period between scheduled refreshes.
	RefreshInterval time.Duration

	// AnalysisStartupDelay is the wait before analytics workers start.
	AnalysisStartupDelay time.Duration

	// BatchSize is the number of sections analysed concurrently.
	BatchSize int

	// RateLimitRPM is the LLM request budget per minute.
	RateLimitRPM int

	// AnalysisTimeout bounds a single LLM call.
	AnalysisTimeout time.Duration

	// MaxTokens caps LLM completion length.
	MaxTokens int

	// Model is the LLM model identifier.
	Model string

	// GrokAPIKey authenticates LLM calls. Empty disables the
	// section analysis worker.
	GrokAPIKey string
}

// Load reads configuration from the environment, applying defaults.
func Load() (*Config, error) {
	cfg := &Config{
		MongoURI:             os.Getenv("MONGO_URI"),
		ElasticsearchHost:    os.Getenv("ELASTICSEARCH_HOST"),
		InitialDownloadDelay: time.Duration(intEnv("INITIAL_DOWNLOAD_DELAY_MINUTES", 0)) * time.Minute,
		RefreshInterval:      time.Duration(intEnv("REFRESH_INTERVAL_HOURS", DefaultRefreshHours)) * time.Hour,
		AnalysisStartupDelay: time.Duration(intEnv("ANALYSIS_STARTUP_DELAY_MINUTES", 0)) * time.Minute,
		BatchSize:            intEnv("ANALYSIS_BATCH_SIZE", DefaultBatchSize),
		RateLimitRPM:         intEnv("ANALYSIS_RATE_LIMIT", DefaultRateLimitRPM),
		AnalysisTimeout:      time.Duration(intEnv("ANALYSIS_TIMEOUT_SECONDS", DefaultTimeoutSeconds)) * time.Second,
		MaxTokens:            intEnv("ANALYSIS_MAX_TOKENS", DefaultMaxTokens),
		Model:                stringEnv("ANALYSIS_MODEL", DefaultModel),
		GrokAPIKey:           os.Getenv("GROK_API_KEY"),
	}

	if cfg.MongoURI == "" {
		return nil, fmt.Errorf("MONGO_URI is required")
	}
	if cfg.BatchSize < 1 {
		cfg.BatchSize = DefaultBatchSize
	}
	if cfg.RateLimitRPM < 1 {
		cfg.RateLimitRPM = DefaultRateLimitRPM
	}

	return cfg, nil
}

// SectionAnalysisEnabled reports whether LLM-backed analysis can run.
func (c *Config) SectionAnalysisEnabled() bool {
	return c.GrokAPIKey != ""
}

// SearchEnabled reports whether a search engine is configured.
func (c *Config) SearchEnabled() bool {
	return c.ElasticsearchHost != ""
}

func stringEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func intEnv(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}
