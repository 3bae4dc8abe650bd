package screens

import (
	"fmt"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/kerbaras/mangacache/pkg/app/components"
	"github.com/kerbaras/mangacache/pkg/app/styles"
	"github.com/kerbaras/mangacache/pkg/data"
	"github.com/kerbaras/mangacache/pkg/services"
)

// DownloadsScreen lists the download ledger and acts on the selected task.
type DownloadsScreen struct {
	controller *services.MangaController
	tasks      *components.TaskList
	keys       keyMap
	help       help.Model
	width      int
	height     int
	err        error
}

func NewDownloadsScreen(controller *services.MangaController) *DownloadsScreen {
	keys := newKeyMap()
	return &DownloadsScreen{
		controller: controller,
		tasks:      components.NewTaskList(80),
		keys:       keys.with(keys.Cancel, keys.Retry, keys.Remove),
		help:       help.New(),
	}
}

func (s *DownloadsScreen) Init() tea.Cmd {
	return s.loadTasks
}

func (s *DownloadsScreen) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		s.width = msg.Width
		s.height = msg.Height
		s.tasks.Width = msg.Width
		s.help.Width = msg.Width

	case tea.KeyMsg:
		switch {
		case key.Matches(msg, s.keys.Up):
			s.tasks.Prev()
		case key.Matches(msg, s.keys.Down):
			s.tasks.Next()
		case key.Matches(msg, s.keys.Reload):
			return s, s.loadTasks
		case key.Matches(msg, s.keys.Cancel):
			if task := s.tasks.Selected(); task != nil && task.Status == data.StatusDownloading {
				return s, s.cancel(task.ID)
			}
		case key.Matches(msg, s.keys.Retry):
			if task := s.tasks.Selected(); task != nil && task.Status == data.StatusFailed {
				return s, s.retry(task.ID)
			}
		case key.Matches(msg, s.keys.Remove):
			if task := s.tasks.Selected(); task != nil {
				return s, s.remove(task.ID)
			}
		}

	case RefreshMsg:
		return s, s.loadTasks

	case tasksLoadedMsg:
		s.err = msg.err
		if msg.err == nil {
			s.tasks.SetTasks(msg.tasks)
		}

	case actionDoneMsg:
		s.err = msg.err
	}

	return s, nil
}

func (s *DownloadsScreen) View() string {
	header := styles.TitleStyle.Render("⬇ Downloads")

	var errorMsg string
	if s.err != nil {
		errorMsg = styles.StatusError.Render(fmt.Sprintf("Error: %s", s.err)) + "\n\n"
	}

	return fmt.Sprintf("%s\n%s%s\n%s", header, errorMsg, s.tasks.View(), s.help.View(s.keys))
}

// Messages
type tasksLoadedMsg struct {
	tasks []data.DownloadTask
	err   error
}

type actionDoneMsg struct {
	err error
}

// Commands
func (s *DownloadsScreen) loadTasks() tea.Msg {
	tasks, err := s.controller.Tasks()
	return tasksLoadedMsg{tasks: tasks, err: err}
}

func (s *DownloadsScreen) cancel(taskID string) tea.Cmd {
	return func() tea.Msg {
		_, err := s.controller.Cancel(taskID)
		return actionDoneMsg{err: err}
	}
}

func (s *DownloadsScreen) retry(taskID string) tea.Cmd {
	return func() tea.Msg {
		_, err := s.controller.Retry(taskID)
		return actionDoneMsg{err: err}
	}
}

func (s *DownloadsScreen) remove(taskID string) tea.Cmd {
	return func() tea.Msg {
		return actionDoneMsg{err: s.controller.RemoveTask(taskID)}
	}
}
