package services

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/kerbaras/mangacache/pkg/data"
	"github.com/kerbaras/mangacache/pkg/events"
	"github.com/kerbaras/mangacache/pkg/ledger"
)

var (
	ErrClosed       = errors.New("controller closed")
	ErrTaskNotFound = errors.New("download task not found")
	ErrNotRetryable = errors.New("only failed downloads can be retried")
)

const (
	defaultConcurrency = 3
	msgInterrupted     = "interrupted"
	msgMissing         = "cached data missing"
)

// ChapterRequest is one chapter of a DownloadAll batch.
type ChapterRequest struct {
	ChapterID    string
	ChapterTitle string
}

// ReconcileReport summarises a Reconcile pass.
type ReconcileReport struct {
	Interrupted int
	Missing     int
	Orphans     int
	// Skipped counts downloading tasks left to the process that may own them.
	Skipped     int
}

type run struct {
	ready  chan struct{}
	done   chan struct{}
	cancel context.CancelFunc
	task   data.DownloadTask
}

// MangaController runs downloads in the background, at most one per chapter
// and at most MaxConcurrent at a time, and fronts the reader and cache
// maintenance for the UI.
type MangaController struct {
	downloader  *Downloader
	reader      *Reader
	maintenance *Maintenance
	ledger      *ledger.Ledger
	bus         *events.Bus
	logger      *slog.Logger

	ctx       context.Context
	cancelAll context.CancelFunc
	semaphore chan struct{}
	wg        sync.WaitGroup

	mu       sync.Mutex
	closed   bool
	inflight map[string]*run
	byTask   map[string]*run

	degraded bool
	closers  []io.Closer
}

type ControllerOptions struct {
	MaxConcurrent int
	Logger        *slog.Logger
}

func NewMangaController(d *Downloader, r *Reader, m *Maintenance, l *ledger.Ledger, bus *events.Bus, opts ControllerOptions) *MangaController {
	if opts.MaxConcurrent < 1 {
		opts.MaxConcurrent = defaultConcurrency
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &MangaController{
		downloader:  d,
		reader:      r,
		maintenance: m,
		ledger:      l,
		bus:         bus,
		logger:      logger,
		ctx:         ctx,
		cancelAll:   cancel,
		semaphore:   make(chan struct{}, opts.MaxConcurrent),
		inflight:    make(map[string]*run),
		byTask:      make(map[string]*run),
	}
}

func (c *MangaController) Reader() *Reader           { return c.reader }
func (c *MangaController) Maintenance() *Maintenance { return c.maintenance }
func (c *MangaController) Ledger() *ledger.Ledger    { return c.ledger }
func (c *MangaController) Bus() *events.Bus          { return c.bus }
func (c *MangaController) Handles() *HandleRegistry  { return c.reader.handles }

// Degraded reports whether the cache runs on the in-memory fallback store.
func (c *MangaController) Degraded() bool { return c.degraded }

// Tasks lists the download ledger, newest first.
func (c *MangaController) Tasks() ([]data.DownloadTask, error) {
	return c.ledger.List()
}

// MangaTitle returns the manga title recorded on any ledger task of mangaID.
func (c *MangaController) MangaTitle(mangaID string) string {
	tasks, err := c.ledger.List()
	if err != nil {
		return ""
	}
	for _, task := range tasks {
		if task.MangaID == mangaID && task.MangaTitle != "" {
			return task.MangaTitle
		}
	}
	return ""
}

// Start queues a chapter download and returns its task id. When the chapter
// is already downloading, the running task's id is returned with started
// false.
func (c *MangaController) Start(mangaID, chapterID string, info ChapterInfo) (string, bool, error) {
	key := data.ChapterKey(mangaID, chapterID)

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return "", false, ErrClosed
	}
	if existing, ok := c.inflight[key]; ok {
		c.mu.Unlock()
		<-existing.ready
		return existing.task.ID, false, nil
	}
	runCtx, cancel := context.WithCancel(c.ctx)
	r := &run{ready: make(chan struct{}), done: make(chan struct{}), cancel: cancel}
	c.inflight[key] = r
	c.wg.Add(1)
	c.mu.Unlock()

	// Begin publishes, so it runs without holding mu.
	r.task = c.downloader.Begin(mangaID, chapterID, info)
	c.mu.Lock()
	c.byTask[r.task.ID] = r
	c.mu.Unlock()
	close(r.ready)

	go func() {
		defer c.wg.Done()
		defer close(r.done)
		defer func() {
			cancel()
			c.mu.Lock()
			delete(c.inflight, key)
			delete(c.byTask, r.task.ID)
			c.mu.Unlock()
		}()

		select {
		case c.semaphore <- struct{}{}:
			defer func() { <-c.semaphore }()
		case <-runCtx.Done():
		}
		c.downloader.Run(runCtx, r.task)
	}()

	return r.task.ID, true, nil
}

// Running reports whether the task has a download in flight.
func (c *MangaController) Running(taskID string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.byTask[taskID]
	return ok
}

// Wait blocks until the task is no longer running and returns its ledger entry.
func (c *MangaController) Wait(ctx context.Context, taskID string) (data.DownloadTask, error) {
	c.mu.Lock()
	r, ok := c.byTask[taskID]
	c.mu.Unlock()
	if ok {
		select {
		case <-r.done:
		case <-ctx.Done():
			return data.DownloadTask{}, ctx.Err()
		}
	}

	task, found, err := c.ledger.Get(taskID)
	if err != nil {
		return data.DownloadTask{}, err
	}
	if !found {
		return data.DownloadTask{}, fmt.Errorf("%w: %s", ErrTaskNotFound, taskID)
	}
	return task, nil
}

// WaitAll blocks until every queued download has finished.
func (c *MangaController) WaitAll() {
	c.wg.Wait()
}

// Cancel fails a downloading task and stops its run. The run leaves no
// chapter record behind, even when it had just written one. It reports
// whether the task was downloading.
func (c *MangaController) Cancel(taskID string) (bool, error) {
	applied, err := c.ledger.UpdateIf(taskID, isDownloading, data.FailedPatch(msgCancelled))
	if err != nil {
		return false, err
	}

	c.mu.Lock()
	r, ok := c.byTask[taskID]
	c.mu.Unlock()
	if ok {
		r.cancel()
	}
	if applied {
		events.Notify(c.bus, events.ToastInfo, "Download cancelled")
	}
	if !applied && !ok {
		if _, found, err := c.ledger.Get(taskID); err != nil {
			return false, err
		} else if !found {
			return false, fmt.Errorf("%w: %s", ErrTaskNotFound, taskID)
		}
	}
	return applied || ok, nil
}

// Retry starts a fresh download for a failed task and removes the old entry.
func (c *MangaController) Retry(taskID string) (string, error) {
	task, found, err := c.ledger.Get(taskID)
	if err != nil {
		return "", err
	}
	if !found {
		return "", fmt.Errorf("%w: %s", ErrTaskNotFound, taskID)
	}
	if task.Status != data.StatusFailed {
		return "", ErrNotRetryable
	}

	id, _, err := c.Start(task.MangaID, task.ChapterID, ChapterInfo{
		ChapterTitle: task.ChapterTitle,
		MangaTitle:   task.MangaTitle,
	})
	if err != nil {
		return "", err
	}
	if err := c.ledger.Remove(taskID); err != nil {
		c.logger.Warn("failed to remove retried task", "task_id", taskID, "error", err)
	}
	return id, nil
}

// RemoveTask drops a ledger entry, cancelling its run first. Cached content
// is left alone. Unknown ids yield ErrTaskNotFound.
func (c *MangaController) RemoveTask(taskID string) error {
	c.mu.Lock()
	r, ok := c.byTask[taskID]
	c.mu.Unlock()
	if ok {
		if _, err := c.Cancel(taskID); err != nil {
			return err
		}
		<-r.done
	}
	removed, err := c.ledger.RemoveWhere(func(t data.DownloadTask) bool { return t.ID == taskID })
	if err != nil {
		return err
	}
	if removed == 0 && !ok {
		return fmt.Errorf("%w: %s", ErrTaskNotFound, taskID)
	}
	return nil
}

// DownloadAll downloads a batch of chapters of one manga and waits for all of
// them. The returned task ids follow the order of chapters.
func (c *MangaController) DownloadAll(ctx context.Context, mangaID, mangaTitle string, chapters []ChapterRequest) ([]string, error) {
	ids := make([]string, len(chapters))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(cap(c.semaphore))

	for i, ch := range chapters {
		g.Go(func() error {
			id, _, err := c.Start(mangaID, ch.ChapterID, ChapterInfo{
				ChapterTitle: ch.ChapterTitle,
				MangaTitle:   mangaTitle,
			})
			if err != nil {
				return err
			}
			ids[i] = id
			_, err = c.Wait(gctx, id)
			return err
		})
	}
	if err := g.Wait(); err != nil {
		return ids, err
	}
	return ids, nil
}

// Reconcile repairs the ledger and cache after an unclean shutdown: tasks
// left downloading without a run are failed, downloaded tasks whose record
// vanished are failed, and page blobs without a record are pruned. On a
// shared ledger another process may own the downloading tasks, so they are
// left alone and counted in Skipped.
func (c *MangaController) Reconcile(ctx context.Context) (ReconcileReport, error) {
	return c.reconcile(ctx, !c.ledger.Shared())
}

// ReconcileAll is Reconcile for a caller that knows no other process is
// downloading: interrupted tasks are failed on shared ledgers too.
func (c *MangaController) ReconcileAll(ctx context.Context) (ReconcileReport, error) {
	return c.reconcile(ctx, true)
}

func (c *MangaController) reconcile(ctx context.Context, failInterrupted bool) (ReconcileReport, error) {
	var report ReconcileReport

	tasks, err := c.ledger.List()
	if err != nil {
		return report, err
	}
	for _, t := range tasks {
		switch t.Status {
		case data.StatusDownloading, data.StatusIdle:
			if c.Running(t.ID) {
				continue
			}
			if !failInterrupted {
				report.Skipped++
				continue
			}
			ok, err := c.ledger.UpdateIf(t.ID, func(cur data.DownloadTask) bool {
				return !cur.Status.Terminal()
			}, data.FailedPatch(msgInterrupted))
			if err != nil {
				return report, err
			}
			if ok {
				report.Interrupted++
			}
		case data.StatusDownloaded:
			if c.maintenance.IsDownloaded(ctx, t.MangaID, t.ChapterID) {
				continue
			}
			if err := c.ledger.Update(t.ID, data.FailedPatch(msgMissing)); err != nil {
				return report, err
			}
			report.Missing++
		}
	}

	report.Orphans = c.maintenance.PruneOrphans(ctx, func(chapterKey string) bool {
		c.mu.Lock()
		defer c.mu.Unlock()
		_, running := c.inflight[chapterKey]
		return running
	})

	if report != (ReconcileReport{}) {
		c.logger.Info("reconciled download state",
			"interrupted", report.Interrupted,
			"missing", report.Missing,
			"orphans", report.Orphans,
			"skipped", report.Skipped,
		)
	}
	return report, nil
}

// Close cancels every running download, waits for them and releases the store.
func (c *MangaController) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	c.mu.Unlock()

	c.cancelAll()
	c.wg.Wait()

	var errs []error
	for _, closer := range c.closers {
		errs = append(errs, closer.Close())
	}
	return errors.Join(errs...)
}
