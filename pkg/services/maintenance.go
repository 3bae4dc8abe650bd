package services

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sort"
	"strings"

	"github.com/kerbaras/mangacache/pkg/data"
	"github.com/kerbaras/mangacache/pkg/events"
	"github.com/kerbaras/mangacache/pkg/ledger"
)

// Maintenance inspects and prunes the chapter cache. Every method is total:
// storage failures are logged and answered with false or zero.
type Maintenance struct {
	store  data.Store
	ledger *ledger.Ledger
	bus    events.Publisher
	logger *slog.Logger
}

func NewMaintenance(store data.Store, l *ledger.Ledger, bus events.Publisher, logger *slog.Logger) *Maintenance {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Maintenance{store: store, ledger: l, bus: bus, logger: logger}
}

// IsDownloaded reports whether a chapter record exists. Blobs are not checked.
func (m *Maintenance) IsDownloaded(ctx context.Context, mangaID, chapterID string) bool {
	_, found, err := m.store.Get(ctx, data.ChaptersPartition, data.ChapterKey(mangaID, chapterID))
	if err != nil {
		m.warn("check chapter", err, "manga_id", mangaID, "chapter_id", chapterID)
		return false
	}
	return found
}

// SizeOf sums the bytes of every page blob of the chapter.
func (m *Maintenance) SizeOf(ctx context.Context, mangaID, chapterID string) int64 {
	entries, err := m.store.All(ctx, data.ImagesPartition)
	if err != nil {
		m.warn("size chapter", err, "manga_id", mangaID, "chapter_id", chapterID)
		return 0
	}
	prefix := data.ImagePrefix(mangaID, chapterID)
	var size int64
	for _, e := range entries {
		if strings.HasPrefix(e.Key, prefix) {
			size += int64(len(e.Value))
		}
	}
	return size
}

// TotalSize sums the bytes of every cached page blob.
func (m *Maintenance) TotalSize(ctx context.Context) int64 {
	entries, err := m.store.All(ctx, data.ImagesPartition)
	if err != nil {
		m.warn("size cache", err)
		return 0
	}
	var size int64
	for _, e := range entries {
		size += int64(len(e.Value))
	}
	return size
}

// Remove deletes a chapter record and its page blobs, and drops the
// downloaded ledger tasks for it. Removing an absent chapter succeeds. It
// returns false only when the record itself could not be deleted.
func (m *Maintenance) Remove(ctx context.Context, mangaID, chapterID string) bool {
	logger := m.logger.With("manga_id", mangaID, "chapter_id", chapterID)

	if err := purgeChapter(ctx, m.store, mangaID, chapterID); err != nil {
		logger.Warn("cascade delete failed, retrying record only", "error", err)
		if err := m.store.Delete(ctx, data.ChaptersPartition, data.ChapterKey(mangaID, chapterID)); err != nil {
			logger.Warn("failed to remove chapter", "error", err)
			events.Notify(m.bus, events.ToastError, "Failed to remove chapter")
			return false
		}
	}

	if m.ledger != nil {
		_, err := m.ledger.RemoveWhere(func(t data.DownloadTask) bool {
			return t.MangaID == mangaID && t.ChapterID == chapterID && t.Status == data.StatusDownloaded
		})
		if err != nil {
			logger.Warn("failed to drop download tasks", "error", err)
		}
	}

	events.Changed(m.bus)
	events.Notify(m.bus, events.ToastSuccess, "Removed chapter from downloads")
	logger.Info("chapter removed")
	return true
}

// ListAll enumerates cached chapters, sorted by manga id then chapter id.
func (m *Maintenance) ListAll(ctx context.Context) []data.ChapterRef {
	keys, err := m.store.Keys(ctx, data.ChaptersPartition)
	if err != nil {
		m.warn("list chapters", err)
		return nil
	}
	refs := make([]data.ChapterRef, 0, len(keys))
	for _, key := range keys {
		mangaID, chapterID, ok := data.SplitChapterKey(key)
		if !ok {
			m.logger.Debug("skipping malformed chapter key", "key", key)
			continue
		}
		refs = append(refs, data.ChapterRef{MangaID: mangaID, ChapterID: chapterID})
	}
	sort.Slice(refs, func(i, j int) bool {
		if refs[i].MangaID != refs[j].MangaID {
			return refs[i].MangaID < refs[j].MangaID
		}
		return refs[i].ChapterID < refs[j].ChapterID
	})
	return refs
}

// PruneOrphans deletes page blobs whose chapter record is gone and returns
// how many were removed. Keys belonging to a download still in progress must
// be excluded by the caller through keep.
func (m *Maintenance) PruneOrphans(ctx context.Context, keep func(chapterKey string) bool) int {
	chapters, err := m.store.Keys(ctx, data.ChaptersPartition)
	if err != nil {
		m.warn("list chapters", err)
		return 0
	}
	known := make(map[string]struct{}, len(chapters))
	for _, k := range chapters {
		known[k] = struct{}{}
	}

	images, err := m.store.Keys(ctx, data.ImagesPartition)
	if err != nil {
		m.warn("list images", err)
		return 0
	}
	pruned := 0
	for _, k := range images {
		parent, ok := data.ParentChapterKey(k)
		if !ok {
			continue
		}
		if _, exists := known[parent]; exists {
			continue
		}
		if keep != nil && keep(parent) {
			continue
		}
		if err := m.store.Delete(ctx, data.ImagesPartition, k); err != nil {
			m.warn("prune image", err, "key", k)
			continue
		}
		pruned++
	}
	if pruned > 0 {
		m.logger.Info("pruned orphaned page blobs", "count", pruned)
		events.Changed(m.bus)
	}
	return pruned
}

func (m *Maintenance) warn(op string, err error, attrs ...any) {
	msg := op + " failed"
	if errors.Is(err, data.ErrStorageUnavailable) {
		msg = op + " failed, cache store unavailable"
	}
	m.logger.Warn(msg, append(attrs, "error", err)...)
}
