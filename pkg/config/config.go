// Package config loads the TOML configuration file and applies defaults.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"
)

// EnvPath overrides the configuration file location.
const EnvPath = "MANGACACHE_CONFIG"

// API configures the Digiman REST API client.
type API struct {
	BaseURL        string `toml:"base_url"`
	AccessToken    string `toml:"access_token"`
	RefreshPath    string `toml:"refresh_path"`
	TimeoutSeconds int    `toml:"timeout_seconds"`
}

// Storage configures the local cache store and the download ledger.
type Storage struct {
	Path             string `toml:"path"`
	FallbackToMemory bool   `toml:"fallback_to_memory"`
	LedgerBackend    string `toml:"ledger_backend"`
	LedgerPath       string `toml:"ledger_path"`
}

// Downloads configures the download orchestrator.
type Downloads struct {
	MaxAttempts         int    `toml:"max_attempts"`
	RetryDelayMillis    int    `toml:"retry_delay_ms"`
	RetryBackoff        string `toml:"retry_backoff"`
	MaxConcurrent       int    `toml:"max_concurrent"`
	ImageTimeoutSeconds int    `toml:"image_timeout_seconds"`
}

type Logging struct {
	Level  string `toml:"level"`
	Format string `toml:"format"`
}

// Server configures the HTTP surface and the page handles it serves.
type Server struct {
	Bind string `toml:"bind"`

	// Handles idle longer than this are revoked; 0 keeps them until deleted.
	HandleTTLSeconds int `toml:"handle_ttl_seconds"`
	MaxHandles       int `toml:"max_handles"`
}

// Export configures EPUB export of cached chapters.
type Export struct {
	Dir         string `toml:"dir"`
	MaxWidth    int    `toml:"max_width"`
	JPEGQuality int    `toml:"jpeg_quality"`
	Grayscale   bool   `toml:"grayscale"`
}

type Config struct {
	API       API       `toml:"api"`
	Storage   Storage   `toml:"storage"`
	Downloads Downloads `toml:"downloads"`
	Logging   Logging   `toml:"logging"`
	Server    Server    `toml:"server"`
	Export    Export    `toml:"export"`
}

// DefaultPath returns the configuration file location, honouring EnvPath.
func DefaultPath() string {
	if p := strings.TrimSpace(os.Getenv(EnvPath)); p != "" {
		return p
	}
	return expandHome(defaultConfigPath)
}

// Load reads the file at path over the defaults. A missing file yields the
// defaults. An empty path means DefaultPath.
func Load(path string) (*Config, error) {
	if path == "" {
		path = DefaultPath()
	}

	cfg := Default()
	raw, err := os.ReadFile(expandHome(path))
	switch {
	case errors.Is(err, fs.ErrNotExist):
	case err != nil:
		return nil, fmt.Errorf("read config: %w", err)
	default:
		if err := toml.Unmarshal(raw, &cfg); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	}

	cfg.normalize()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) normalize() {
	c.API.BaseURL = strings.TrimSpace(c.API.BaseURL)
	if c.API.BaseURL != "" && !strings.HasSuffix(c.API.BaseURL, "/") {
		c.API.BaseURL += "/"
	}
	c.Storage.Path = expandHome(c.Storage.Path)
	c.Storage.LedgerPath = expandHome(c.Storage.LedgerPath)
	c.Storage.LedgerBackend = strings.ToLower(strings.TrimSpace(c.Storage.LedgerBackend))
	c.Downloads.RetryBackoff = strings.ToLower(strings.TrimSpace(c.Downloads.RetryBackoff))
	c.Export.Dir = expandHome(c.Export.Dir)
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
}

// Validate reports the first invalid setting.
func (c *Config) Validate() error {
	if c.API.BaseURL == "" {
		return errors.New("api.base_url is required")
	}
	if c.Storage.Path == "" {
		return errors.New("storage.path is required")
	}
	switch c.Storage.LedgerBackend {
	case LedgerBackendStore:
	case LedgerBackendFile:
		if c.Storage.LedgerPath == "" {
			return errors.New("storage.ledger_path is required for the file ledger backend")
		}
	default:
		return fmt.Errorf("storage.ledger_backend: unsupported value %q", c.Storage.LedgerBackend)
	}
	if c.Downloads.MaxAttempts < 1 {
		return fmt.Errorf("downloads.max_attempts must be at least 1, got %d", c.Downloads.MaxAttempts)
	}
	if c.Downloads.MaxConcurrent < 1 {
		return fmt.Errorf("downloads.max_concurrent must be at least 1, got %d", c.Downloads.MaxConcurrent)
	}
	if c.Downloads.RetryDelayMillis < 0 {
		return errors.New("downloads.retry_delay_ms must not be negative")
	}
	switch c.Downloads.RetryBackoff {
	case BackoffConstant, BackoffExponential:
	default:
		return fmt.Errorf("downloads.retry_backoff: unsupported value %q", c.Downloads.RetryBackoff)
	}
	if c.Server.HandleTTLSeconds < 0 {
		return errors.New("server.handle_ttl_seconds must not be negative")
	}
	if c.Server.MaxHandles < 0 {
		return errors.New("server.max_handles must not be negative")
	}
	if c.Export.JPEGQuality < 0 || c.Export.JPEGQuality > 100 {
		return fmt.Errorf("export.jpeg_quality must be between 0 and 100, got %d", c.Export.JPEGQuality)
	}
	switch c.Logging.Format {
	case "", "auto", "console", "json":
	default:
		return fmt.Errorf("logging.format: unsupported value %q", c.Logging.Format)
	}
	return nil
}

func expandHome(path string) string {
	if path == "~" || strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return path
		}
		return filepath.Join(home, strings.TrimPrefix(path, "~"))
	}
	return path
}
