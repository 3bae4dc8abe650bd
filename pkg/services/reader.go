package services

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"sync"

	"github.com/kerbaras/mangacache/pkg/data"
)

// Reader rehydrates cached chapters for offline reading.
type Reader struct {
	store   data.Store
	handles *HandleRegistry
	logger  *slog.Logger
}

func NewReader(store data.Store, handles *HandleRegistry, logger *slog.Logger) *Reader {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	if handles == nil {
		handles = NewHandleRegistry("")
	}
	return &Reader{store: store, handles: handles, logger: logger}
}

// LoadedChapter is a rehydrated chapter. Page URLs of cached pages are
// handles that stay valid until Release.
type LoadedChapter struct {
	Chapter data.Chapter
	Handles []string

	registry *HandleRegistry
	once     sync.Once
}

// Release revokes every handle of the chapter. Safe to call more than once.
func (l *LoadedChapter) Release() {
	if l == nil {
		return
	}
	l.once.Do(func() {
		for _, h := range l.Handles {
			l.registry.Revoke(h)
		}
	})
}

// Load returns the cached chapter, or false on a miss. Storage failures are
// logged and reported as a miss. Pages whose blob is missing keep their
// remote URL.
func (r *Reader) Load(ctx context.Context, mangaID, chapterID string) (*LoadedChapter, bool) {
	chapter, ok := r.record(ctx, mangaID, chapterID)
	if !ok {
		return nil, false
	}

	loaded := &LoadedChapter{registry: r.handles}
	for i := range chapter.Pages {
		body, found, err := r.store.Get(ctx, data.ImagesPartition, data.ImageKey(mangaID, chapterID, i))
		if err != nil {
			r.logFailure("read page", mangaID, chapterID, err)
			continue
		}
		if !found {
			continue
		}
		handle := r.handles.Create(body)
		chapter.Pages[i].URL = handle
		loaded.Handles = append(loaded.Handles, handle)
	}
	loaded.Chapter = *chapter
	return loaded, true
}

// LoadRaw returns the cached record with the page bytes in page order. A nil
// entry marks a page whose blob is missing.
func (r *Reader) LoadRaw(ctx context.Context, mangaID, chapterID string) (*data.Chapter, [][]byte, bool) {
	chapter, ok := r.record(ctx, mangaID, chapterID)
	if !ok {
		return nil, nil, false
	}
	pages := make([][]byte, len(chapter.Pages))
	for i := range chapter.Pages {
		body, found, err := r.store.Get(ctx, data.ImagesPartition, data.ImageKey(mangaID, chapterID, i))
		if err != nil {
			r.logFailure("read page", mangaID, chapterID, err)
			continue
		}
		if found {
			pages[i] = body
		}
	}
	return chapter, pages, true
}

func (r *Reader) record(ctx context.Context, mangaID, chapterID string) (*data.Chapter, bool) {
	raw, found, err := r.store.Get(ctx, data.ChaptersPartition, data.ChapterKey(mangaID, chapterID))
	if err != nil {
		r.logFailure("read chapter", mangaID, chapterID, err)
		return nil, false
	}
	if !found {
		return nil, false
	}
	var chapter data.Chapter
	if err := json.Unmarshal(raw, &chapter); err != nil {
		r.logger.Warn("discarding unreadable chapter record",
			"manga_id", mangaID,
			"chapter_id", chapterID,
			"error", err,
		)
		return nil, false
	}
	return &chapter, true
}

func (r *Reader) logFailure(op, mangaID, chapterID string, err error) {
	level := slog.LevelDebug
	if errors.Is(err, data.ErrStorageUnavailable) {
		level = slog.LevelWarn
	}
	r.logger.Log(context.Background(), level, op+" failed",
		"manga_id", mangaID,
		"chapter_id", chapterID,
		"error", err,
	)
}
