package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	// Pin only the state dir; everything else falls back to envDefault.
	for _, key := range []string{"ENVIRONMENT", "LOG_LEVEL", "LOG_FORMAT", "GUIDLY_API_URL", "GUIDLY_HTTP_TIMEOUT", "GUIDLY_ERROR_TTL"} {
		require.NoError(t, os.Unsetenv(key))
	}
	t.Setenv("GUIDLY_STATE_DIR", t.TempDir())

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "development", cfg.Environment)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, "text", cfg.LogFormat)
	assert.Equal(t, "http://localhost:8000", cfg.APIBaseURL)
	assert.Equal(t, 30*time.Second, cfg.HTTPTimeout)
	assert.Equal(t, 5*time.Second, cfg.ErrorBannerTTL)
	assert.NotEmpty(t, cfg.StateDir)
}

func TestLoad_Overrides(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("ENVIRONMENT", "production")
	t.Setenv("LOG_LEVEL", "warn")
	t.Setenv("LOG_FORMAT", "json")
	t.Setenv("GUIDLY_API_URL", "https://api.guidly.example")
	t.Setenv("GUIDLY_HTTP_TIMEOUT", "10s")
	t.Setenv("GUIDLY_STATE_DIR", filepath.Join(dir, "state"))
	t.Setenv("GUIDLY_ERROR_TTL", "2s")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "production", cfg.Environment)
	assert.Equal(t, "warn", cfg.LogLevel)
	assert.Equal(t, "json", cfg.LogFormat)
	assert.Equal(t, "https://api.guidly.example", cfg.APIBaseURL)
	assert.Equal(t, 10*time.Second, cfg.HTTPTimeout)
	assert.Equal(t, filepath.Join(dir, "state"), cfg.StateDir)
	assert.Equal(t, 2*time.Second, cfg.ErrorBannerTTL)
}

func TestLoad_InvalidLogLevel(t *testing.T) {
	t.Setenv("LOG_LEVEL", "loud")
	t.Setenv("GUIDLY_STATE_DIR", t.TempDir())

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "validate config")
}

func TestLoad_InvalidURL(t *testing.T) {
	t.Setenv("LOG_LEVEL", "info")
	t.Setenv("GUIDLY_API_URL", "not a url")
	t.Setenv("GUIDLY_STATE_DIR", t.TempDir())

	_, err := Load()
	require.Error(t, err)
}
