package components

import (
	"fmt"
	"strings"

	"github.com/kerbaras/mangacache/pkg/app/styles"
	"github.com/kerbaras/mangacache/pkg/data"
)

// Section groups ledger tasks for display.
type Section int

const (
	SectionDownloading Section = iota
	SectionDownloaded
	SectionFailed
)

func (s Section) String() string {
	switch s {
	case SectionDownloading:
		return "Downloading"
	case SectionDownloaded:
		return "Downloaded"
	default:
		return "Failed"
	}
}

func SectionOf(status data.TaskStatus) Section {
	switch status {
	case data.StatusDownloaded:
		return SectionDownloaded
	case data.StatusFailed:
		return SectionFailed
	default:
		return SectionDownloading
	}
}

// TaskList shows the download ledger split into sections. Selection walks
// the tasks in section order.
type TaskList struct {
	Items         []data.DownloadTask
	SelectedIndex int
	Width         int
}

func NewTaskList(width int) *TaskList {
	return &TaskList{Width: width}
}

// SetTasks replaces the list, keeping ledger order within each section and
// the selection on the same task when it is still present.
func (l *TaskList) SetTasks(tasks []data.DownloadTask) {
	var selectedID string
	if sel := l.Selected(); sel != nil {
		selectedID = sel.ID
	}

	items := make([]data.DownloadTask, 0, len(tasks))
	for _, section := range []Section{SectionDownloading, SectionDownloaded, SectionFailed} {
		for _, t := range tasks {
			if SectionOf(t.Status) == section {
				items = append(items, t)
			}
		}
	}
	l.Items = items

	for i, t := range items {
		if t.ID == selectedID {
			l.SelectedIndex = i
			return
		}
	}
	if l.SelectedIndex >= len(items) {
		l.SelectedIndex = len(items) - 1
	}
	if l.SelectedIndex < 0 {
		l.SelectedIndex = 0
	}
}

func (l *TaskList) Next() {
	if len(l.Items) == 0 {
		return
	}
	l.SelectedIndex = (l.SelectedIndex + 1) % len(l.Items)
}

func (l *TaskList) Prev() {
	if len(l.Items) == 0 {
		return
	}
	l.SelectedIndex--
	if l.SelectedIndex < 0 {
		l.SelectedIndex = len(l.Items) - 1
	}
}

func (l *TaskList) Selected() *data.DownloadTask {
	if len(l.Items) == 0 || l.SelectedIndex >= len(l.Items) {
		return nil
	}
	return &l.Items[l.SelectedIndex]
}

// Count returns how many tasks fall in section.
func (l *TaskList) Count(section Section) int {
	n := 0
	for _, t := range l.Items {
		if SectionOf(t.Status) == section {
			n++
		}
	}
	return n
}

func (l *TaskList) View() string {
	if len(l.Items) == 0 {
		return styles.MutedStyle.Render("No downloads yet")
	}

	var b strings.Builder
	current := Section(-1)
	for i, task := range l.Items {
		if s := SectionOf(task.Status); s != current {
			if current != -1 {
				b.WriteString("\n")
			}
			current = s
			b.WriteString(styles.SectionStyle.Render(fmt.Sprintf("%s (%d)", s, l.Count(s))))
			b.WriteString("\n")
		}
		b.WriteString(RenderTask(task, l.Width, i == l.SelectedIndex))
		b.WriteString("\n")
	}
	return b.String()
}

// RenderTask draws one ledger task as a card.
func RenderTask(task data.DownloadTask, width int, selected bool) string {
	var b strings.Builder

	title := task.ChapterTitle
	if task.MangaTitle != "" {
		title = task.MangaTitle + " · " + title
	}
	b.WriteString(styles.TextStyle.Render(title))
	b.WriteString("\n")

	switch task.Status {
	case data.StatusDownloading, data.StatusIdle:
		b.WriteString(ProgressBar(task.Progress, width-12))
		b.WriteString(" ")
		b.WriteString(styles.StatusStyle(task.Status).Render(fmt.Sprintf("%3d%%", task.Progress)))
	case data.StatusDownloaded:
		b.WriteString(styles.StatusStyle(task.Status).Render("downloaded"))
	case data.StatusFailed:
		msg := "failed"
		if task.Error != "" {
			msg = "failed: " + task.Error
		}
		b.WriteString(styles.StatusStyle(task.Status).Render(msg))
	}

	card := styles.CardStyle
	if selected {
		card = styles.ActiveCardStyle
	}
	if width > 4 {
		card = card.Width(width - 4)
	}
	return card.Render(b.String())
}

// ProgressBar renders percent (0-100) as a bar width cells wide.
func ProgressBar(percent, width int) string {
	if width <= 0 {
		return ""
	}
	if percent < 0 {
		percent = 0
	}
	if percent > 100 {
		percent = 100
	}

	filled := percent * width / 100
	return styles.ProgressBarStyle.Render(strings.Repeat("█", filled)) +
		styles.ProgressEmptyStyle.Render(strings.Repeat("░", width-filled))
}
