package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/pelletier/go-toml/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.toml"))
	require.NoError(t, err)

	assert.Equal(t, defaultAPIBaseURL, cfg.API.BaseURL)
	assert.Equal(t, 3, cfg.Downloads.MaxAttempts)
	assert.Equal(t, 3, cfg.Downloads.MaxConcurrent)
	assert.Equal(t, LedgerBackendStore, cfg.Storage.LedgerBackend)
	assert.True(t, cfg.Storage.FallbackToMemory)
	assert.False(t, strings.HasPrefix(cfg.Storage.Path, "~"), "home should be expanded")
}

func TestLoadOverrides(t *testing.T) {
	path := writeConfig(t, `
[api]
base_url = "https://digiman.example/api"
access_token = "secret"

[storage]
path = "/tmp/cache.db"
ledger_backend = "FILE"
ledger_path = "/tmp/downloads.json"

[downloads]
max_attempts = 5
retry_delay_ms = 250
retry_backoff = "exponential"

[logging]
format = "json"
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "https://digiman.example/api/", cfg.API.BaseURL)
	assert.Equal(t, "secret", cfg.API.AccessToken)
	assert.Equal(t, defaultRefreshPath, cfg.API.RefreshPath)
	assert.Equal(t, "/tmp/cache.db", cfg.Storage.Path)
	assert.Equal(t, LedgerBackendFile, cfg.Storage.LedgerBackend)
	assert.Equal(t, 5, cfg.Downloads.MaxAttempts)
	assert.Equal(t, 250, cfg.Downloads.RetryDelayMillis)
	assert.Equal(t, BackoffExponential, cfg.Downloads.RetryBackoff)
	assert.Equal(t, 3, cfg.Downloads.MaxConcurrent)
	assert.Equal(t, "json", cfg.Logging.Format)
}

func TestLoadRejectsInvalid(t *testing.T) {
	tests := []struct {
		name string
		body string
		want string
	}{
		{"zero attempts", "[downloads]\nmax_attempts = 0\n", "max_attempts"},
		{"zero concurrency", "[downloads]\nmax_concurrent = 0\n", "max_concurrent"},
		{"bad backoff", "[downloads]\nretry_backoff = \"jitter\"\n", "retry_backoff"},
		{"bad ledger", "[storage]\nledger_backend = \"redis\"\n", "ledger_backend"},
		{"bad log format", "[logging]\nformat = \"xml\"\n", "logging.format"},
		{"empty base url", "[api]\nbase_url = \"\"\n", "base_url"},
		{"bad jpeg quality", "[export]\njpeg_quality = 101\n", "jpeg_quality"},
		{"negative handle ttl", "[server]\nhandle_ttl_seconds = -1\n", "handle_ttl_seconds"},
		{"negative max handles", "[server]\nmax_handles = -5\n", "max_handles"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeConfig(t, tt.body))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestLoadMalformedTOML(t *testing.T) {
	_, err := Load(writeConfig(t, "[api\nbase_url = "))
	assert.Error(t, err)
}

func TestDefaultPathFromEnv(t *testing.T) {
	t.Setenv(EnvPath, "/etc/mangacache.toml")
	assert.Equal(t, "/etc/mangacache.toml", DefaultPath())
}

func TestSampleMatchesDefaults(t *testing.T) {
	var fromSample Config
	require.NoError(t, toml.Unmarshal([]byte(Sample()), &fromSample))

	defaults := Default()
	assert.Equal(t, defaults, fromSample)
}
