package components

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/dustin/go-humanize"

	"github.com/kerbaras/mangacache/pkg/app/styles"
	"github.com/kerbaras/mangacache/pkg/data"
)

type ChapterListItem struct {
	Ref   data.ChapterRef
	Title string
	Pages int
	Size  int64
}

// ChapterList shows the chapters available offline.
type ChapterList struct {
	Items         []ChapterListItem
	SelectedIndex int
	Width         int
	Height        int
}

func NewChapterList() *ChapterList {
	return &ChapterList{
		Items:  []ChapterListItem{},
		Width:  80,
		Height: 20,
	}
}

func (m *ChapterList) SetItems(items []ChapterListItem) {
	m.Items = items
	if m.SelectedIndex >= len(items) && len(items) > 0 {
		m.SelectedIndex = len(items) - 1
	}
	if len(items) == 0 {
		m.SelectedIndex = 0
	}
}

func (m *ChapterList) Next() {
	if len(m.Items) == 0 {
		return
	}
	m.SelectedIndex++
	if m.SelectedIndex >= len(m.Items) {
		m.SelectedIndex = 0
	}
}

func (m *ChapterList) Prev() {
	if len(m.Items) == 0 {
		return
	}
	m.SelectedIndex--
	if m.SelectedIndex < 0 {
		m.SelectedIndex = len(m.Items) - 1
	}
}

func (m *ChapterList) Selected() *ChapterListItem {
	if len(m.Items) == 0 || m.SelectedIndex >= len(m.Items) {
		return nil
	}
	return &m.Items[m.SelectedIndex]
}

// TotalSize sums the size of every listed chapter.
func (m *ChapterList) TotalSize() int64 {
	var total int64
	for _, item := range m.Items {
		total += item.Size
	}
	return total
}

func (m *ChapterList) View() string {
	if len(m.Items) == 0 {
		emptyMsg := styles.MutedStyle.Render("No chapters available offline")
		return lipgloss.Place(m.Width, m.Height, lipgloss.Center, lipgloss.Center, emptyMsg)
	}

	var b strings.Builder
	for i, item := range m.Items {
		cardStyle := styles.CardStyle
		if i == m.SelectedIndex {
			cardStyle = styles.ActiveCardStyle
		}

		title := item.Title
		if title == "" {
			title = "Chapter " + item.Ref.ChapterID
		}
		info := styles.MutedStyle.Render(fmt.Sprintf("manga %s · chapter %s · %d pages · %s",
			item.Ref.MangaID, item.Ref.ChapterID, item.Pages, humanize.Bytes(uint64(item.Size))))

		content := lipgloss.JoinVertical(lipgloss.Left, styles.TextStyle.Render(title), info)
		if m.Width > 4 {
			cardStyle = cardStyle.Width(m.Width - 4)
		}
		b.WriteString(cardStyle.Render(content))
		b.WriteString("\n")
	}
	return b.String()
}
