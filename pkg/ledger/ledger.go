// Package ledger keeps the list of download tasks shown in the downloads
// view. It is a progress record only; cached content lives in the data store.
package ledger

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"sync"

	"github.com/kerbaras/mangacache/pkg/data"
	"github.com/kerbaras/mangacache/pkg/events"
)

// DefaultKey is the slot the serialized task list is stored under.
const DefaultKey = "downloads_queue_v1"

// Slot is a durable holder for one serialized value.
type Slot interface {
	Load() ([]byte, error)
	// Update holds the slot exclusively while fn turns the current value into
	// the next one. A nil result leaves the stored value untouched.
	Update(fn func(current []byte) ([]byte, error)) error
}

// Ledger is an ordered task list, most recently created first. Every mutation
// rewrites the whole list and then publishes events.DownloadsChanged.
type Ledger struct {
	mu     sync.Mutex
	slot   Slot
	bus    events.Publisher
	logger *slog.Logger
}

func New(slot Slot, bus events.Publisher, logger *slog.Logger) *Ledger {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Ledger{slot: slot, bus: bus, logger: logger}
}

// Shared reports whether other processes may write the same ledger.
func (l *Ledger) Shared() bool {
	s, ok := l.slot.(interface{ Shared() bool })
	return ok && s.Shared()
}

func (l *Ledger) load() ([]data.DownloadTask, error) {
	raw, err := l.slot.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load downloads: %w", err)
	}
	return l.decode(raw), nil
}

// decode treats a corrupt slot as empty so the next write repairs it.
func (l *Ledger) decode(raw []byte) []data.DownloadTask {
	if len(raw) == 0 {
		return nil
	}
	var tasks []data.DownloadTask
	if err := json.Unmarshal(raw, &tasks); err != nil {
		l.logger.Warn("discarding unreadable download ledger", "error", err)
		return nil
	}
	return tasks
}

func encode(tasks []data.DownloadTask) ([]byte, error) {
	if tasks == nil {
		tasks = []data.DownloadTask{}
	}
	raw, err := json.Marshal(tasks)
	if err != nil {
		return nil, fmt.Errorf("failed to encode downloads: %w", err)
	}
	return raw, nil
}

// mutate runs fn over the stored list and persists the result when fn reports
// a change. The read and the write happen under one slot update, so writers
// in other processes cannot interleave. DownloadsChanged is published after
// the write, outside the lock, so listeners may query the ledger.
func (l *Ledger) mutate(fn func([]data.DownloadTask) ([]data.DownloadTask, bool)) (bool, error) {
	changed := false

	l.mu.Lock()
	err := l.slot.Update(func(raw []byte) ([]byte, error) {
		next, ok := fn(l.decode(raw))
		if !ok {
			return nil, nil
		}
		changed = true
		return encode(next)
	})
	l.mu.Unlock()

	if err != nil {
		return false, fmt.Errorf("failed to save downloads: %w", err)
	}
	if changed {
		events.Changed(l.bus)
	}
	return changed, nil
}

// List returns every task, most recently created first.
func (l *Ledger) List() ([]data.DownloadTask, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.load()
}

func (l *Ledger) Get(id string) (data.DownloadTask, bool, error) {
	tasks, err := l.List()
	if err != nil {
		return data.DownloadTask{}, false, err
	}
	for _, task := range tasks {
		if task.ID == id {
			return task, true, nil
		}
	}
	return data.DownloadTask{}, false, nil
}

// Add prepends task.
func (l *Ledger) Add(task data.DownloadTask) error {
	_, err := l.mutate(func(tasks []data.DownloadTask) ([]data.DownloadTask, bool) {
		return append([]data.DownloadTask{task}, tasks...), true
	})
	return err
}

// Update merges patch into the task with the given id. Unknown ids are ignored.
func (l *Ledger) Update(id string, patch data.TaskPatch) error {
	_, err := l.UpdateIf(id, func(data.DownloadTask) bool { return true }, patch)
	return err
}

// UpdateIf applies patch only while cond holds for the stored task, reporting
// whether the patch was applied.
func (l *Ledger) UpdateIf(id string, cond func(data.DownloadTask) bool, patch data.TaskPatch) (bool, error) {
	return l.mutate(func(tasks []data.DownloadTask) ([]data.DownloadTask, bool) {
		applied := false
		for i := range tasks {
			if tasks[i].ID == id && cond(tasks[i]) {
				patch.Apply(&tasks[i])
				applied = true
			}
		}
		return tasks, applied
	})
}

func (l *Ledger) Remove(id string) error {
	_, err := l.RemoveWhere(func(task data.DownloadTask) bool { return task.ID == id })
	return err
}

// RemoveWhere drops every task matching pred and returns how many were removed.
func (l *Ledger) RemoveWhere(pred func(data.DownloadTask) bool) (int, error) {
	removed := 0
	_, err := l.mutate(func(tasks []data.DownloadTask) ([]data.DownloadTask, bool) {
		kept := tasks[:0]
		for _, task := range tasks {
			if !pred(task) {
				kept = append(kept, task)
			}
		}
		removed = len(tasks) - len(kept)
		return kept, removed > 0
	})
	if err != nil {
		return 0, err
	}
	return removed, nil
}
