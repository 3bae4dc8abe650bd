package screens

import (
	"fmt"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/kerbaras/mangacache/pkg/app/styles"
	"github.com/kerbaras/mangacache/pkg/events"
	"github.com/kerbaras/mangacache/pkg/integrations"
	"github.com/kerbaras/mangacache/pkg/services"
)

type screenType int

const (
	downloadsView screenType = iota
	libraryView
)

// RefreshMsg asks the screens to reload from the ledger and the store.
type RefreshMsg struct{}

// ToastMsg carries a notification published on the event bus.
type ToastMsg events.Toast

type RootScreen struct {
	controller *services.MangaController

	currentView screenType
	downloads   *DownloadsScreen
	library     *LibraryScreen
	keys        keyMap
	toast       *events.Toast

	width  int
	height int
}

func NewRootScreen(controller *services.MangaController, exporter *integrations.EPubBuilder) *RootScreen {
	return &RootScreen{
		controller:  controller,
		currentView: downloadsView,
		downloads:   NewDownloadsScreen(controller),
		library:     NewLibraryScreen(controller, exporter),
		keys:        newKeyMap(),
	}
}

func (r *RootScreen) Init() tea.Cmd {
	return tea.Batch(r.downloads.Init(), r.library.Init())
}

func (r *RootScreen) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		r.width = msg.Width
		r.height = msg.Height
		// Both screens track the size, not only the visible one.
		return r, r.broadcast(msg)

	case tea.KeyMsg:
		switch {
		case key.Matches(msg, r.keys.Quit):
			return r, tea.Quit
		case key.Matches(msg, r.keys.Tab):
			r.currentView = (r.currentView + 1) % 2
			return r, nil
		}

	case RefreshMsg:
		return r, r.broadcast(msg)

	case ToastMsg:
		toast := events.Toast(msg)
		r.toast = &toast
		return r, nil

	case tasksLoadedMsg, actionDoneMsg:
		newModel, cmd := r.downloads.Update(msg)
		r.downloads = newModel.(*DownloadsScreen)
		return r, cmd

	case libraryLoadedMsg, epubGeneratedMsg, chapterRemovedMsg:
		newModel, cmd := r.library.Update(msg)
		r.library = newModel.(*LibraryScreen)
		return r, cmd
	}

	// Forward message to active screen
	switch r.currentView {
	case downloadsView:
		newModel, cmd := r.downloads.Update(msg)
		r.downloads = newModel.(*DownloadsScreen)
		return r, cmd
	case libraryView:
		newModel, cmd := r.library.Update(msg)
		r.library = newModel.(*LibraryScreen)
		return r, cmd
	}

	return r, nil
}

func (r *RootScreen) broadcast(msg tea.Msg) tea.Cmd {
	newDownloads, downloadsCmd := r.downloads.Update(msg)
	r.downloads = newDownloads.(*DownloadsScreen)
	newLibrary, libraryCmd := r.library.Update(msg)
	r.library = newLibrary.(*LibraryScreen)
	return tea.Batch(downloadsCmd, libraryCmd)
}

func (r *RootScreen) View() string {
	tabs := r.renderTabs()

	var content string
	switch r.currentView {
	case downloadsView:
		content = r.downloads.View()
	case libraryView:
		content = r.library.View()
	}

	if r.toast == nil {
		return fmt.Sprintf("%s\n\n%s", tabs, content)
	}
	toast := styles.ToastStyle(r.toast.Type).Render(r.toast.Message)
	return fmt.Sprintf("%s\n\n%s\n%s", tabs, content, toast)
}

func (r *RootScreen) renderTabs() string {
	downloadsTab := "Downloads"
	libraryTab := "Library"

	if r.currentView == downloadsView {
		downloadsTab = styles.ActiveTabStyle.Render(downloadsTab)
		libraryTab = styles.InactiveTabStyle.Render(libraryTab)
	} else {
		downloadsTab = styles.InactiveTabStyle.Render(downloadsTab)
		libraryTab = styles.ActiveTabStyle.Render(libraryTab)
	}

	return lipgloss.JoinHorizontal(lipgloss.Top, downloadsTab, libraryTab)
}
