package screens

import (
	"context"
	"fmt"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/dustin/go-humanize"

	"github.com/kerbaras/mangacache/pkg/app/components"
	"github.com/kerbaras/mangacache/pkg/app/styles"
	"github.com/kerbaras/mangacache/pkg/integrations"
	"github.com/kerbaras/mangacache/pkg/services"
)

// LibraryScreen lists the chapters available offline.
type LibraryScreen struct {
	controller  *services.MangaController
	exporter    *integrations.EPubBuilder
	chapterList *components.ChapterList
	keys        keyMap
	help        help.Model
	width       int
	height      int
	status      string
	err         error
}

func NewLibraryScreen(controller *services.MangaController, exporter *integrations.EPubBuilder) *LibraryScreen {
	keys := newKeyMap()
	bindings := []key.Binding{keys.Remove}
	if exporter != nil {
		bindings = append(bindings, keys.Export)
	}
	return &LibraryScreen{
		controller:  controller,
		exporter:    exporter,
		chapterList: components.NewChapterList(),
		keys:        keys.with(bindings...),
		help:        help.New(),
	}
}

func (s *LibraryScreen) Init() tea.Cmd {
	return s.loadLibrary
}

func (s *LibraryScreen) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		s.width = msg.Width
		s.height = msg.Height
		s.chapterList.Width = msg.Width
		s.chapterList.Height = msg.Height - 10
		s.help.Width = msg.Width

	case tea.KeyMsg:
		switch {
		case key.Matches(msg, s.keys.Up):
			s.chapterList.Prev()
		case key.Matches(msg, s.keys.Down):
			s.chapterList.Next()
		case key.Matches(msg, s.keys.Reload):
			return s, s.loadLibrary
		case key.Matches(msg, s.keys.Remove):
			if selected := s.chapterList.Selected(); selected != nil {
				return s, s.removeChapter(*selected)
			}
		case key.Matches(msg, s.keys.Export):
			if selected := s.chapterList.Selected(); selected != nil && s.exporter != nil {
				return s, s.exportChapter(*selected)
			}
		}

	case RefreshMsg:
		return s, s.loadLibrary

	case libraryLoadedMsg:
		s.chapterList.SetItems(msg.items)
		s.err = msg.err

	case epubGeneratedMsg:
		s.err = msg.err
		if msg.err == nil {
			s.status = "EPUB written to " + msg.path
		}

	case chapterRemovedMsg:
		if !msg.ok {
			s.err = fmt.Errorf("could not remove chapter %s", msg.item.Ref.ChapterID)
		}
		return s, s.loadLibrary
	}

	return s, nil
}

func (s *LibraryScreen) View() string {
	header := styles.TitleStyle.Render(fmt.Sprintf("📚 Offline Library · %s", humanize.Bytes(uint64(s.chapterList.TotalSize()))))

	var notice string
	if s.controller.Degraded() {
		notice += styles.WarningStyle.Render("Cache store unavailable, downloads will not survive a restart") + "\n\n"
	}
	if s.err != nil {
		notice += styles.StatusError.Render(fmt.Sprintf("Error: %s", s.err)) + "\n\n"
	} else if s.status != "" {
		notice += styles.StatusCompleted.Render(s.status) + "\n\n"
	}

	return fmt.Sprintf("%s\n%s%s\n%s", header, notice, s.chapterList.View(), s.help.View(s.keys))
}

// Messages
type libraryLoadedMsg struct {
	items []components.ChapterListItem
	err   error
}

type epubGeneratedMsg struct {
	path string
	err  error
}

type chapterRemovedMsg struct {
	item components.ChapterListItem
	ok   bool
}

// Commands
func (s *LibraryScreen) loadLibrary() tea.Msg {
	ctx := context.Background()
	maintenance := s.controller.Maintenance()
	reader := s.controller.Reader()

	refs := maintenance.ListAll(ctx)
	items := make([]components.ChapterListItem, 0, len(refs))
	for _, ref := range refs {
		item := components.ChapterListItem{
			Ref:  ref,
			Size: maintenance.SizeOf(ctx, ref.MangaID, ref.ChapterID),
		}
		if chapter, _, ok := reader.LoadRaw(ctx, ref.MangaID, ref.ChapterID); ok {
			item.Title = chapter.DisplayTitle()
			item.Pages = len(chapter.Pages)
		}
		items = append(items, item)
	}
	return libraryLoadedMsg{items: items}
}

func (s *LibraryScreen) removeChapter(item components.ChapterListItem) tea.Cmd {
	return func() tea.Msg {
		ok := s.controller.Maintenance().Remove(context.Background(), item.Ref.MangaID, item.Ref.ChapterID)
		return chapterRemovedMsg{item: item, ok: ok}
	}
}

func (s *LibraryScreen) exportChapter(item components.ChapterListItem) tea.Cmd {
	return func() tea.Msg {
		chapter, pages, ok := s.controller.Reader().LoadRaw(context.Background(), item.Ref.MangaID, item.Ref.ChapterID)
		if !ok {
			return epubGeneratedMsg{err: fmt.Errorf("chapter %s is no longer cached", item.Ref.ChapterID)}
		}
		path, err := s.exporter.CreateEPub(s.controller.MangaTitle(item.Ref.MangaID), chapter, pages)
		return epubGeneratedMsg{path: path, err: err}
	}
}
