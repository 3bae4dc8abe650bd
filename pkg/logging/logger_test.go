package logging

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kerbaras/mangacache/pkg/config"
)

func TestNewJSON(t *testing.T) {
	var buf bytes.Buffer
	logger, err := New(Options{Level: "info", Format: "json", Output: &buf})
	require.NoError(t, err)

	logger.Info("download finished", "task_id", "t1")

	var record map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &record))
	assert.Equal(t, "download finished", record["msg"])
	assert.Equal(t, "t1", record["task_id"])
}

func TestAutoFormatOffTerminal(t *testing.T) {
	var buf bytes.Buffer
	logger, err := New(Options{Output: &buf})
	require.NoError(t, err)

	logger.Info("hello")
	assert.True(t, strings.HasPrefix(buf.String(), "{"), "non-terminal output should be JSON")
}

func TestConsoleFormat(t *testing.T) {
	var buf bytes.Buffer
	logger, err := New(Options{Format: "console", Output: &buf})
	require.NoError(t, err)

	logger.Warn("store degraded", "path", "/tmp/cache.db")
	assert.Contains(t, buf.String(), "level=WARN")
	assert.Contains(t, buf.String(), "path=/tmp/cache.db")
}

func TestLevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	logger, err := New(Options{Level: "warn", Format: "json", Output: &buf})
	require.NoError(t, err)

	logger.Info("dropped")
	assert.Empty(t, buf.String())
}

func TestUnsupportedFormat(t *testing.T) {
	_, err := New(Options{Format: "xml"})
	assert.Error(t, err)
}

func TestParseLevel(t *testing.T) {
	assert.Equal(t, slog.LevelDebug, parseLevel("DEBUG"))
	assert.Equal(t, slog.LevelWarn, parseLevel("warning"))
	assert.Equal(t, slog.LevelError, parseLevel("error"))
	assert.Equal(t, slog.LevelInfo, parseLevel(""))
}

func TestNewFromConfig(t *testing.T) {
	cfg := config.Default()
	logger, err := NewFromConfig(&cfg)
	require.NoError(t, err)
	assert.NotNil(t, logger)
}
