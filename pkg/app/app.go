package app

import (
	"context"
	"log/slog"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/kerbaras/mangacache/pkg/app/screens"
	"github.com/kerbaras/mangacache/pkg/events"
	"github.com/kerbaras/mangacache/pkg/integrations"
	"github.com/kerbaras/mangacache/pkg/services"
)

const eventBuffer = 128

type App struct {
	controller *services.MangaController
	exporter   *integrations.EPubBuilder
	logger     *slog.Logger
}

func NewApp(controller *services.MangaController, exporter *integrations.EPubBuilder, logger *slog.Logger) *App {
	if logger == nil {
		logger = slog.Default()
	}
	return &App{controller: controller, exporter: exporter, logger: logger}
}

func (a *App) Run() error {
	report, err := a.controller.Reconcile(context.Background())
	if err != nil {
		a.logger.Warn("failed to reconcile downloads", "error", err)
	} else if report.Interrupted+report.Missing+report.Orphans > 0 {
		a.logger.Info("reconciled downloads",
			"interrupted", report.Interrupted,
			"missing", report.Missing,
			"orphans", report.Orphans,
		)
	}

	model := screens.NewRootScreen(a.controller, a.exporter)
	p := tea.NewProgram(model, tea.WithAltScreen(), tea.WithMouseCellMotion())

	stop := forward(a.controller.Bus(), p.Send)
	defer stop()

	_, err = p.Run()
	return err
}

// forward relays bus events to send. Subscribers run on the publisher's
// goroutine, so events are queued and sent from a separate one. At most one
// refresh is pending at a time. Toasts queue up to eventBuffer and later ones
// are dropped while the queue is full.
func forward(bus *events.Bus, send func(tea.Msg)) (stop func()) {
	refresh := make(chan struct{}, 1)
	toasts := make(chan tea.Msg, eventBuffer)
	done := make(chan struct{})

	unsubscribe := bus.Subscribe(func(e events.Event) {
		switch e := e.(type) {
		case events.DownloadsChanged:
			select {
			case refresh <- struct{}{}:
			default:
			}
		case events.Toast:
			select {
			case toasts <- screens.ToastMsg(e):
			default:
			}
		}
	})

	go func() {
		for {
			select {
			case <-refresh:
				send(screens.RefreshMsg{})
			case msg := <-toasts:
				send(msg)
			case <-done:
				return
			}
		}
	}()

	return func() {
		unsubscribe()
		close(done)
	}
}
