package components

import (
	"strings"
	"testing"

	"github.com/kerbaras/mangacache/pkg/data"
)

func TestChapterListSetItems(t *testing.T) {
	list := NewChapterList()
	list.SetItems([]ChapterListItem{
		{Ref: data.ChapterRef{MangaID: "m1", ChapterID: "c1"}, Size: 600},
		{Ref: data.ChapterRef{MangaID: "m1", ChapterID: "c2"}, Size: 400},
		{Ref: data.ChapterRef{MangaID: "m2", ChapterID: "c1"}, Size: 1000},
	})
	list.SelectedIndex = 2

	list.SetItems(list.Items[:1])
	if list.SelectedIndex != 0 {
		t.Errorf("Expected SelectedIndex 0, got %d", list.SelectedIndex)
	}
	if list.TotalSize() != 600 {
		t.Errorf("Expected total size 600, got %d", list.TotalSize())
	}
}

func TestChapterListNavigation(t *testing.T) {
	list := NewChapterList()
	list.SetItems([]ChapterListItem{
		{Ref: data.ChapterRef{MangaID: "m1", ChapterID: "c1"}},
		{Ref: data.ChapterRef{MangaID: "m1", ChapterID: "c2"}},
	})

	list.Next()
	if sel := list.Selected(); sel == nil || sel.Ref.ChapterID != "c2" {
		t.Errorf("Expected c2 selected, got %+v", sel)
	}
	list.Next()
	if list.SelectedIndex != 0 {
		t.Errorf("Expected wrap to 0, got %d", list.SelectedIndex)
	}
	list.Prev()
	if list.SelectedIndex != 1 {
		t.Errorf("Expected wrap to 1, got %d", list.SelectedIndex)
	}
}

func TestChapterListView(t *testing.T) {
	list := NewChapterList()
	if !strings.Contains(list.View(), "No chapters available offline") {
		t.Error("Expected empty message")
	}

	list.SetItems([]ChapterListItem{
		{Ref: data.ChapterRef{MangaID: "m1", ChapterID: "c2"}, Title: "The Second", Pages: 3, Size: 600},
		{Ref: data.ChapterRef{MangaID: "m1", ChapterID: "c3"}, Pages: 1, Size: 2000},
	})
	view := list.View()
	for _, want := range []string{"The Second", "3 pages", "600 B", "Chapter c3", "2.0 kB"} {
		if !strings.Contains(view, want) {
			t.Errorf("Expected view to contain %q", want)
		}
	}
}
