package screens

import (
	"context"
	"strings"
	"testing"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/kerbaras/mangacache/pkg/app/components"
	"github.com/kerbaras/mangacache/pkg/data"
	"github.com/kerbaras/mangacache/pkg/events"
	"github.com/kerbaras/mangacache/pkg/ledger"
	"github.com/kerbaras/mangacache/pkg/logging"
	"github.com/kerbaras/mangacache/pkg/services"
)

type noSource struct{}

func (noSource) FetchChapter(_ context.Context, id string) (*data.Chapter, error) {
	return &data.Chapter{ID: id}, nil
}

func (noSource) FetchPages(context.Context, string) ([]data.Page, error) {
	return nil, nil
}

type noImages struct{}

func (noImages) FetchImage(context.Context, string) ([]byte, error) {
	return nil, nil
}

func newTestController(t *testing.T) (*services.MangaController, *ledger.Ledger) {
	t.Helper()
	store := data.NewMemoryStore()
	bus := events.NewBus()
	logger := logging.Discard()
	downloads := ledger.New(ledger.NewStoreSlot(store, ledger.DefaultKey), bus, logger)

	c := services.NewMangaController(
		services.NewDownloader(noSource{}, noImages{}, store, downloads, bus, services.WithLogger(logger)),
		services.NewReader(store, services.NewHandleRegistry(""), logger),
		services.NewMaintenance(store, downloads, bus, logger),
		downloads, bus, services.ControllerOptions{Logger: logger},
	)
	t.Cleanup(func() { c.Close() })
	return c, downloads
}

func TestRootScreenTabs(t *testing.T) {
	controller, _ := newTestController(t)
	root := NewRootScreen(controller, nil)

	if root.currentView != downloadsView {
		t.Fatalf("expected downloads view first, got %d", root.currentView)
	}

	root.Update(tea.KeyMsg{Type: tea.KeyTab})
	if root.currentView != libraryView {
		t.Errorf("expected library view after tab, got %d", root.currentView)
	}

	root.Update(tea.KeyMsg{Type: tea.KeyTab})
	if root.currentView != downloadsView {
		t.Errorf("expected downloads view after second tab, got %d", root.currentView)
	}
}

func TestRootScreenToast(t *testing.T) {
	controller, _ := newTestController(t)
	root := NewRootScreen(controller, nil)

	root.Update(ToastMsg{Type: events.ToastSuccess, Message: "Downloaded Chapter 1"})

	if !strings.Contains(root.View(), "Downloaded Chapter 1") {
		t.Error("expected toast message in view")
	}
}

func TestDownloadsScreenLoadsTasks(t *testing.T) {
	controller, downloads := newTestController(t)
	if err := downloads.Add(data.DownloadTask{
		ID:           "dl_1",
		MangaID:      "m1",
		ChapterID:    "c1",
		ChapterTitle: "Chapter 1",
		Status:       data.StatusFailed,
		Error:        "no pages found for chapter",
	}); err != nil {
		t.Fatalf("add task: %v", err)
	}

	screen := NewDownloadsScreen(controller)
	screen.Update(screen.loadTasks())

	if got := screen.tasks.Count(components.SectionFailed); got != 1 {
		t.Fatalf("expected 1 failed task, got %d", got)
	}
	view := screen.View()
	if !strings.Contains(view, "Chapter 1") {
		t.Error("expected chapter title in view")
	}
	if !strings.Contains(view, "no pages found for chapter") {
		t.Error("expected error message in view")
	}
}

func TestRootScreenRefreshReloadsBothScreens(t *testing.T) {
	controller, _ := newTestController(t)
	root := NewRootScreen(controller, nil)

	_, cmd := root.Update(RefreshMsg{})
	if cmd == nil {
		t.Fatal("expected reload commands on refresh")
	}
}
