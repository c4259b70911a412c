package env

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadRequiresMongoURI(t *testing.T) {
	t.Setenv("MONGO_URI", "")
	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "MONGO_URI")
}

func TestLoadDefaults(t *testing.T) {
	t.Setenv("MONGO_URI", "mongodb://localhost:27017/ecfr")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, DefaultBatchSize, cfg.BatchSize)
	assert.Equal(t, DefaultRateLimitRPM, cfg.RateLimitRPM)
	assert.Equal(t, DefaultTimeoutSeconds*time.Second, cfg.AnalysisTimeout)
	assert.Equal(t, DefaultModel, cfg.Model)
	assert.Equal(t, time.Duration(DefaultRefreshHours)*time.Hour, cfg.RefreshInterval)
	assert.Zero(t, cfg.InitialDownloadDelay)
	assert.False(t, cfg.SectionAnalysisEnabled())
	assert.False(t, cfg.SearchEnabled())
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("MONGO_URI", "mongodb://localhost:27017/ecfr")
	t.Setenv("ELASTICSEARCH_HOST", "http://localhost:9200")
	t.Setenv("ANALYSIS_BATCH_SIZE", "10")
	t.Setenv("ANALYSIS_RATE_LIMIT", "6")
	t.Setenv("ANALYSIS_TIMEOUT_SECONDS", "30")
	t.Setenv("ANALYSIS_MODEL", "grok-4")
	t.Setenv("GROK_API_KEY", "key")
	t.Setenv("REFRESH_INTERVAL_HOURS", "6")
	t.Setenv("INITIAL_DOWNLOAD_DELAY_MINUTES", "15")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 10, cfg.BatchSize)
	assert.Equal(t, 6, cfg.RateLimitRPM)
	assert.Equal(t, 30*time.Second, cfg.AnalysisTimeout)
	assert.Equal(t, "grok-4", cfg.Model)
	assert.Equal(t, 6*time.Hour, cfg.RefreshInterval)
	assert.Equal(t, 15*time.Minute, cfg.InitialDownloadDelay)
	assert.True(t, cfg.SectionAnalysisEnabled())
	assert.True(t, cfg.SearchEnabled())
}

func TestLoadIgnoresMalformedInts(t *testing.T) {
	t.Setenv("MONGO_URI", "mongodb://localhost:27017/ecfr")
	t.Setenv("ANALYSIS_BATCH_SIZE", "lots")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, DefaultBatchSize, cfg.BatchSize)
}
