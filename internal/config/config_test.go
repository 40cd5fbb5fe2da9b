package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	t.Chdir(t.TempDir())

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "sqlite", cfg.Store.Driver)
	assert.Equal(t, "mailtriage.db", cfg.Store.DatabaseURL)
	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, "json", cfg.Log.Format)
	assert.Equal(t, int64(2048), cfg.Anthropic.MaxTokens)
	assert.NotEmpty(t, cfg.Anthropic.Model)
	assert.Equal(t, 3, cfg.Pipeline.RetryMaxAttempts)
	assert.Equal(t, 500, cfg.Pipeline.RetryInitialDelayMs)
	assert.Equal(t, 120, cfg.Pipeline.AnalysisTimeoutSecs)
	assert.Equal(t, "https://api.keepnetlabs.com", cfg.Source.BaseURL)
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("MAILTRIAGE_STORE_DRIVER", "postgres")
	t.Setenv("MAILTRIAGE_ANTHROPIC_KEY", "sk-test")
	t.Setenv("MAILTRIAGE_SERVER_PORT", "9090")
	t.Setenv("MAILTRIAGE_PIPELINE_RETRY_MAX_ATTEMPTS", "5")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "postgres", cfg.Store.Driver)
	assert.Equal(t, "sk-test", cfg.Anthropic.Key)
	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, 5, cfg.Pipeline.RetryMaxAttempts)
}
