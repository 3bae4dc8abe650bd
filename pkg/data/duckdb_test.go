package data

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func setupTestDB(t *testing.T) (*Repository, func()) {
	t.Helper()

	tmpDir, err := os.MkdirTemp("", "mangacache-test-*")
	if err != nil {
		t.Fatalf("Failed to create temp dir: %v", err)
	}

	dbPath := filepath.Join(tmpDir, "test.db")
	db, err := InitDuckDB(dbPath)
	if err != nil {
		os.RemoveAll(tmpDir)
		t.Fatalf("Failed to init DB: %v", err)
	}

	repo := NewRepository(db)

	cleanup := func() {
		db.Close()
		os.RemoveAll(tmpDir)
	}

	return repo, cleanup
}

func TestPutAndGet(t *testing.T) {
	repo, cleanup := setupTestDB(t)
	defer cleanup()
	ctx := context.Background()

	if err := repo.Put(ctx, ImagesPartition, "m1_c1_page_0", []byte("page zero")); err != nil {
		t.Fatalf("Failed to put image: %v", err)
	}

	value, found, err := repo.Get(ctx, ImagesPartition, "m1_c1_page_0")
	if err != nil {
		t.Fatalf("Failed to get image: %v", err)
	}
	if !found {
		t.Fatal("Expected image to be found")
	}
	if string(value) != "page zero" {
		t.Errorf("Expected 'page zero', got '%s'", value)
	}

	// Same key in the other partition is independent
	_, found, err = repo.Get(ctx, ChaptersPartition, "m1_c1_page_0")
	if err != nil {
		t.Fatalf("Failed to get chapter: %v", err)
	}
	if found {
		t.Error("Partitions should not share keys")
	}
}

func TestPutOverwrites(t *testing.T) {
	repo, cleanup := setupTestDB(t)
	defer cleanup()
	ctx := context.Background()

	repo.Put(ctx, ChaptersPartition, "m1_c1", []byte(`{"id":"c1"}`))
	if err := repo.Put(ctx, ChaptersPartition, "m1_c1", []byte(`{"id":"c1","title":"new"}`)); err != nil {
		t.Fatalf("Failed to overwrite: %v", err)
	}

	value, _, _ := repo.Get(ctx, ChaptersPartition, "m1_c1")
	if string(value) != `{"id":"c1","title":"new"}` {
		t.Errorf("Expected overwritten value, got '%s'", value)
	}

	keys, err := repo.Keys(ctx, ChaptersPartition)
	if err != nil {
		t.Fatalf("Failed to list keys: %v", err)
	}
	if len(keys) != 1 {
		t.Errorf("Expected 1 key after overwrite, got %d", len(keys))
	}
}

func TestGetMissing(t *testing.T) {
	repo, cleanup := setupTestDB(t)
	defer cleanup()

	value, found, err := repo.Get(context.Background(), ChaptersPartition, "non-existent")
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}
	if found || value != nil {
		t.Error("Expected a miss for non-existent key")
	}
}

func TestKeysAndAll(t *testing.T) {
	repo, cleanup := setupTestDB(t)
	defer cleanup()
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		if err := repo.Put(ctx, ImagesPartition, ImageKey("m1", "c1", i), make([]byte, 10*(i+1))); err != nil {
			t.Fatalf("Failed to put page %d: %v", i, err)
		}
	}

	keys, err := repo.Keys(ctx, ImagesPartition)
	if err != nil {
		t.Fatalf("Failed to list keys: %v", err)
	}
	if len(keys) != 3 {
		t.Fatalf("Expected 3 keys, got %d", len(keys))
	}
	if keys[0] != "m1_c1_page_0" {
		t.Errorf("Expected keys ordered, got first '%s'", keys[0])
	}

	entries, err := repo.All(ctx, ImagesPartition)
	if err != nil {
		t.Fatalf("Failed to get all: %v", err)
	}
	total := 0
	for _, e := range entries {
		total += len(e.Value)
	}
	if total != 60 {
		t.Errorf("Expected 60 bytes total, got %d", total)
	}
}

func TestDelete(t *testing.T) {
	repo, cleanup := setupTestDB(t)
	defer cleanup()
	ctx := context.Background()

	repo.Put(ctx, ChaptersPartition, "m1_c1", []byte("{}"))
	if err := repo.Delete(ctx, ChaptersPartition, "m1_c1"); err != nil {
		t.Fatalf("Failed to delete: %v", err)
	}
	if _, found, _ := repo.Get(ctx, ChaptersPartition, "m1_c1"); found {
		t.Error("Expected record to be deleted")
	}

	// Deleting an absent key is a no-op
	if err := repo.Delete(ctx, ChaptersPartition, "m1_c1"); err != nil {
		t.Errorf("Expected no error deleting absent key, got: %v", err)
	}
}

func TestDeleteCascade(t *testing.T) {
	repo, cleanup := setupTestDB(t)
	defer cleanup()
	ctx := context.Background()

	repo.Put(ctx, ChaptersPartition, ChapterKey("m1", "c1"), []byte("{}"))
	repo.Put(ctx, ChaptersPartition, ChapterKey("m1", "c10"), []byte("{}"))
	for i := 0; i < 2; i++ {
		repo.Put(ctx, ImagesPartition, ImageKey("m1", "c1", i), []byte("x"))
		repo.Put(ctx, ImagesPartition, ImageKey("m1", "c10", i), []byte("y"))
	}

	removed, err := repo.DeleteCascade(ctx, ChapterKey("m1", "c1"), ImagePrefix("m1", "c1"))
	if err != nil {
		t.Fatalf("Failed to cascade delete: %v", err)
	}
	if !removed {
		t.Error("Expected chapter record to be reported removed")
	}

	keys, _ := repo.Keys(ctx, ImagesPartition)
	if len(keys) != 2 {
		t.Fatalf("Expected sibling chapter pages to survive, got %v", keys)
	}
	for _, k := range keys {
		if k[:6] != "m1_c10" {
			t.Errorf("Unexpected surviving key %s", k)
		}
	}

	removed, err = repo.DeleteCascade(ctx, ChapterKey("m1", "c1"), ImagePrefix("m1", "c1"))
	if err != nil {
		t.Fatalf("Second cascade should not fail: %v", err)
	}
	if removed {
		t.Error("Second cascade should report nothing removed")
	}
}

func TestKVSlot(t *testing.T) {
	repo, cleanup := setupTestDB(t)
	defer cleanup()
	ctx := context.Background()

	if _, found, err := repo.GetValue(ctx, "downloads_queue_v1"); err != nil || found {
		t.Fatalf("Expected empty slot, got found=%v err=%v", found, err)
	}

	repo.SetValue(ctx, "downloads_queue_v1", "[]")
	if err := repo.SetValue(ctx, "downloads_queue_v1", `[{"id":"a"}]`); err != nil {
		t.Fatalf("Failed to set value: %v", err)
	}

	value, found, err := repo.GetValue(ctx, "downloads_queue_v1")
	if err != nil || !found {
		t.Fatalf("Expected slot value, got found=%v err=%v", found, err)
	}
	if value != `[{"id":"a"}]` {
		t.Errorf("Unexpected slot value %s", value)
	}
}

func TestClosedRepositoryIsUnavailable(t *testing.T) {
	repo, cleanup := setupTestDB(t)
	defer cleanup()

	repo.Close()

	err := repo.Put(context.Background(), ChaptersPartition, "m1_c1", []byte("{}"))
	if !errors.Is(err, ErrStorageUnavailable) {
		t.Errorf("Expected ErrStorageUnavailable, got %v", err)
	}
	_, _, err = repo.Get(context.Background(), ChaptersPartition, "m1_c1")
	if !errors.Is(err, ErrStorageUnavailable) {
		t.Errorf("Expected ErrStorageUnavailable, got %v", err)
	}
}

func TestUnknownPartition(t *testing.T) {
	repo, cleanup := setupTestDB(t)
	defer cleanup()

	if err := repo.Put(context.Background(), Partition("covers"), "k", nil); err == nil {
		t.Error("Expected error for unknown partition")
	}
}
