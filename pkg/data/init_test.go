package data

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInitDuckDB(t *testing.T) {
	tmpDir, err := os.MkdirTemp("", "test-init-*")
	if err != nil {
		t.Fatalf("Failed to create temp dir: %v", err)
	}
	defer os.RemoveAll(tmpDir)

	dbPath := filepath.Join(tmpDir, "test.db")

	db, err := InitDuckDB(dbPath)
	if err != nil {
		t.Fatalf("Failed to initialize DB: %v", err)
	}
	defer db.Close()

	var tableCount int
	err = db.QueryRow(`SELECT COUNT(*) FROM information_schema.tables WHERE table_name IN ('chapters', 'images', 'kv')`).Scan(&tableCount)
	if err != nil {
		t.Fatalf("Failed to query tables: %v", err)
	}

	if tableCount != 3 {
		t.Errorf("Expected 3 tables, got %d", tableCount)
	}
}

func TestInitDuckDBCreatesDirectory(t *testing.T) {
	tmpDir := t.TempDir()

	dbPath := filepath.Join(tmpDir, "nested", "dir", "test.db")

	db, err := InitDuckDB(dbPath)
	if err != nil {
		t.Fatalf("Failed to initialize DB with nested path: %v", err)
	}
	defer db.Close()

	if _, err := os.Stat(dbPath); os.IsNotExist(err) {
		t.Error("DB file was not created")
	}
}

func TestOpenStore(t *testing.T) {
	t.Run("durable store", func(t *testing.T) {
		store, degraded, err := OpenStore(StoreOptions{Path: filepath.Join(t.TempDir(), "cache.db")}, nil)
		require.NoError(t, err)
		defer store.Close()

		assert.False(t, degraded)
		assert.IsType(t, &Repository{}, store)
	})

	t.Run("falls back to memory", func(t *testing.T) {
		blocker := filepath.Join(t.TempDir(), "blocker")
		require.NoError(t, os.WriteFile(blocker, []byte("not a directory"), 0o644))

		store, degraded, err := OpenStore(StoreOptions{
			Path:             filepath.Join(blocker, "sub", "cache.db"),
			FallbackToMemory: true,
		}, nil)
		require.NoError(t, err)
		defer store.Close()

		assert.True(t, degraded)
		assert.IsType(t, &MemoryStore{}, store)
	})

	t.Run("no fallback", func(t *testing.T) {
		blocker := filepath.Join(t.TempDir(), "blocker")
		require.NoError(t, os.WriteFile(blocker, []byte("not a directory"), 0o644))

		_, _, err := OpenStore(StoreOptions{Path: filepath.Join(blocker, "cache.db")}, nil)
		assert.ErrorIs(t, err, ErrStorageUnavailable)
	})
}
