package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/kerbaras/mangacache/pkg/data"
	"github.com/kerbaras/mangacache/pkg/events"
	"github.com/kerbaras/mangacache/pkg/ledger"
	"github.com/kerbaras/mangacache/pkg/sources"
)

const (
	progressMetadata = 10
	progressPages    = 30
	progressImages   = 60
	progressCap      = 95

	msgNoPages   = "no pages found for chapter"
	msgCancelled = "download cancelled"
)

// ChapterInfo carries the display titles recorded on a download task.
type ChapterInfo struct {
	ChapterTitle string
	MangaTitle   string
}

// Downloader drives one chapter download end to end: metadata, page list,
// page blobs, then the chapter record. Outcomes are reported through the
// ledger and toasts, never as errors.
type Downloader struct {
	source sources.Source
	images sources.ImageFetcher
	store  data.Store
	ledger *ledger.Ledger
	bus    events.Publisher
	logger *slog.Logger
	now    func() time.Time
}

type DownloaderOption func(*Downloader)

func WithLogger(logger *slog.Logger) DownloaderOption {
	return func(d *Downloader) {
		if logger != nil {
			d.logger = logger
		}
	}
}

func WithClock(now func() time.Time) DownloaderOption {
	return func(d *Downloader) { d.now = now }
}

func NewDownloader(source sources.Source, images sources.ImageFetcher, store data.Store, l *ledger.Ledger, bus events.Publisher, opts ...DownloaderOption) *Downloader {
	d := &Downloader{
		source: source,
		images: images,
		store:  store,
		ledger: l,
		bus:    bus,
		logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Start downloads the chapter and returns the task id once the task is terminal.
func (d *Downloader) Start(ctx context.Context, mangaID, chapterID string, info ChapterInfo) string {
	task := d.Begin(mangaID, chapterID, info)
	d.Run(ctx, task)
	return task.ID
}

// Begin records a new downloading task at progress 0.
func (d *Downloader) Begin(mangaID, chapterID string, info ChapterInfo) data.DownloadTask {
	task := data.DownloadTask{
		ID:           newTaskID(d.now()),
		MangaID:      mangaID,
		ChapterID:    chapterID,
		ChapterTitle: info.ChapterTitle,
		MangaTitle:   info.MangaTitle,
		Status:       data.StatusDownloading,
		Progress:     0,
		CreatedAt:    d.now().UTC(),
	}
	if task.ChapterTitle == "" {
		task.ChapterTitle = "Chapter " + chapterID
	}
	if err := d.ledger.Add(task); err != nil {
		d.logger.Warn("failed to record download task",
			"task_id", task.ID,
			"manga_id", mangaID,
			"chapter_id", chapterID,
			"error", err,
		)
	}
	events.Notify(d.bus, events.ToastInfo, "Downloading "+task.ChapterTitle)
	return task
}

// Run performs the download for a task created by Begin and returns its
// terminal status. Once ctx is done nothing more is written to the store, and
// a chapter record written just before a cancel is purged again.
func (d *Downloader) Run(ctx context.Context, task data.DownloadTask) data.TaskStatus {
	logger := d.logger.With(
		"task_id", task.ID,
		"manga_id", task.MangaID,
		"chapter_id", task.ChapterID,
	)

	if err := d.download(ctx, task, logger); err != nil {
		if ctx.Err() != nil {
			err = errors.New(msgCancelled)
		}
		d.fail(ctx, task, err, logger)
		return data.StatusFailed
	}

	applied, err := d.ledger.UpdateIf(task.ID, isDownloading, data.DownloadedPatch())
	if err != nil {
		logger.Warn("failed to update download task", "error", err)
	} else if !applied && d.cancelled(task.ID) {
		// Cancel landed between the chapter record and this patch.
		d.discard(ctx, task, logger)
		return data.StatusFailed
	}
	events.Notify(d.bus, events.ToastSuccess, "Downloaded "+task.ChapterTitle)
	logger.Info("chapter downloaded")
	return data.StatusDownloaded
}

func (d *Downloader) download(ctx context.Context, task data.DownloadTask, logger *slog.Logger) error {
	chapter, err := d.source.FetchChapter(ctx, task.ChapterID)
	if err != nil {
		return err
	}
	d.patch(task.ID, data.ProgressPatch(progressMetadata), logger)

	pages, err := d.source.FetchPages(ctx, task.ChapterID)
	if err != nil {
		return err
	}
	if len(pages) == 0 {
		return errors.New(msgNoPages)
	}
	d.patch(task.ID, data.ProgressPatch(progressPages), logger)

	total := len(pages)
	for i, page := range pages {
		body, err := d.images.FetchImage(ctx, page.URL)
		if err != nil {
			return fmt.Errorf("failed to download page %d: %w", i+1, err)
		}

		if err := ctx.Err(); err != nil {
			return err
		}
		if err := d.store.Put(ctx, data.ImagesPartition, data.ImageKey(task.MangaID, task.ChapterID, i), body); err != nil {
			return fmt.Errorf("failed to store page %d: %w", i+1, err)
		}

		d.patch(task.ID, data.ProgressPatch(pageProgress(i, total)), logger)
	}

	chapter.ID = task.ChapterID
	if chapter.MangaID == "" {
		chapter.MangaID = task.MangaID
	}
	chapter.Pages = pages
	record, err := json.Marshal(chapter)
	if err != nil {
		return fmt.Errorf("failed to encode chapter: %w", err)
	}

	if err := ctx.Err(); err != nil {
		return err
	}
	if err := d.store.Put(ctx, data.ChaptersPartition, data.ChapterKey(task.MangaID, task.ChapterID), record); err != nil {
		return fmt.Errorf("failed to store chapter: %w", err)
	}
	if err := ctx.Err(); err != nil {
		d.discard(ctx, task, logger)
		return err
	}
	return nil
}

// discard drops the chapter record and blobs a cancelled run has written.
func (d *Downloader) discard(ctx context.Context, task data.DownloadTask, logger *slog.Logger) {
	if err := purgeChapter(context.WithoutCancel(ctx), d.store, task.MangaID, task.ChapterID); err != nil {
		logger.Warn("failed to purge cancelled chapter", "error", err)
	}
}

func (d *Downloader) cancelled(taskID string) bool {
	task, found, err := d.ledger.Get(taskID)
	return err == nil && found && task.Status == data.StatusFailed
}

// fail purges the blobs of a chapter that has no record, so a failed first
// download leaves nothing behind, then marks the task failed.
func (d *Downloader) fail(ctx context.Context, task data.DownloadTask, cause error, logger *slog.Logger) {
	cleanupCtx := context.WithoutCancel(ctx)
	key := data.ChapterKey(task.MangaID, task.ChapterID)
	if _, found, err := d.store.Get(cleanupCtx, data.ChaptersPartition, key); err == nil && !found {
		if err := purgeChapter(cleanupCtx, d.store, task.MangaID, task.ChapterID); err != nil {
			logger.Warn("failed to purge partial chapter", "error", err)
		}
	}

	message := cause.Error()
	d.patch(task.ID, data.FailedPatch(message), logger)
	events.Notify(d.bus, events.ToastError, fmt.Sprintf("Failed to download %s: %s", task.ChapterTitle, message))
	logger.Warn("chapter download failed", "error", cause)
}

// patch only touches tasks that are still downloading, so a task failed by
// Cancel never moves again.
func (d *Downloader) patch(taskID string, p data.TaskPatch, logger *slog.Logger) {
	_, err := d.ledger.UpdateIf(taskID, isDownloading, p)
	if err != nil {
		logger.Warn("failed to update download task", "error", err)
	}
}

func isDownloading(t data.DownloadTask) bool { return t.Status == data.StatusDownloading }

func pageProgress(i, total int) int {
	p := progressPages + (i+1)*progressImages/total
	if p > progressCap {
		return progressCap
	}
	return p
}

func newTaskID(now time.Time) string {
	id, err := uuid.NewV7()
	if err != nil {
		return fmt.Sprintf("dl_%d", now.UnixNano())
	}
	return "dl_" + strings.ReplaceAll(id.String(), "-", "")
}

// purgeChapter removes a chapter record and its page blobs, atomically when
// the store supports it.
func purgeChapter(ctx context.Context, store data.Store, mangaID, chapterID string) error {
	key := data.ChapterKey(mangaID, chapterID)
	prefix := data.ImagePrefix(mangaID, chapterID)
	if c, ok := store.(data.Cascader); ok {
		_, err := c.DeleteCascade(ctx, key, prefix)
		return err
	}

	if err := store.Delete(ctx, data.ChaptersPartition, key); err != nil {
		return err
	}
	keys, err := store.Keys(ctx, data.ImagesPartition)
	if err != nil {
		return err
	}
	var errs []error
	for _, k := range keys {
		if strings.HasPrefix(k, prefix) {
			if err := store.Delete(ctx, data.ImagesPartition, k); err != nil {
				errs = append(errs, err)
			}
		}
	}
	return errors.Join(errs...)
}
