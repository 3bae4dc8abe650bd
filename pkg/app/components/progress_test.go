package components

import (
	"strings"
	"testing"

	"github.com/kerbaras/mangacache/pkg/data"
)

func sampleTasks() []data.DownloadTask {
	return []data.DownloadTask{
		{ID: "t1", ChapterTitle: "Chapter 5", Status: data.StatusFailed, Error: "bad status: 500 Internal Server Error"},
		{ID: "t2", ChapterTitle: "Chapter 4", Status: data.StatusDownloaded, Progress: 100},
		{ID: "t3", ChapterTitle: "Chapter 3", MangaTitle: "Berserk", Status: data.StatusDownloading, Progress: 50},
		{ID: "t4", ChapterTitle: "Chapter 2", Status: data.StatusDownloaded, Progress: 100},
	}
}

func TestNewTaskList(t *testing.T) {
	list := NewTaskList(80)

	if list == nil {
		t.Fatal("Expected task list to be created")
	}
	if list.Width != 80 {
		t.Errorf("Expected width 80, got %d", list.Width)
	}
	if list.Selected() != nil {
		t.Error("Expected no selection on an empty list")
	}
}

func TestSetTasksGroupsBySection(t *testing.T) {
	list := NewTaskList(80)
	list.SetTasks(sampleTasks())

	var ids []string
	for _, task := range list.Items {
		ids = append(ids, task.ID)
	}
	if got := strings.Join(ids, ","); got != "t3,t2,t4,t1" {
		t.Errorf("Expected section order t3,t2,t4,t1, got %s", got)
	}

	if n := list.Count(SectionDownloaded); n != 2 {
		t.Errorf("Expected 2 downloaded tasks, got %d", n)
	}
	if n := list.Count(SectionFailed); n != 1 {
		t.Errorf("Expected 1 failed task, got %d", n)
	}
}

func TestSetTasksKeepsSelection(t *testing.T) {
	list := NewTaskList(80)
	list.SetTasks(sampleTasks())
	list.SelectedIndex = 3 // t1

	tasks := sampleTasks()
	tasks[2].Status = data.StatusDownloaded
	list.SetTasks(tasks)

	if sel := list.Selected(); sel == nil || sel.ID != "t1" {
		t.Errorf("Expected t1 to stay selected, got %+v", sel)
	}

	list.SetTasks(tasks[:1])
	if sel := list.Selected(); sel == nil || sel.ID != "t1" {
		t.Errorf("Expected t1 to stay selected, got %+v", sel)
	}

	list.SetTasks(nil)
	if list.SelectedIndex != 0 {
		t.Errorf("Expected SelectedIndex 0, got %d", list.SelectedIndex)
	}
}

func TestTaskListNavigation(t *testing.T) {
	list := NewTaskList(80)
	list.Next()
	list.Prev()

	list.SetTasks(sampleTasks())
	list.Prev()
	if list.SelectedIndex != 3 {
		t.Errorf("Expected Prev to wrap to 3, got %d", list.SelectedIndex)
	}
	list.Next()
	if list.SelectedIndex != 0 {
		t.Errorf("Expected Next to wrap to 0, got %d", list.SelectedIndex)
	}
}

func TestTaskListViewEmpty(t *testing.T) {
	list := NewTaskList(80)

	if !strings.Contains(list.View(), "No downloads yet") {
		t.Error("Expected empty message")
	}
}

func TestTaskListView(t *testing.T) {
	list := NewTaskList(80)
	list.SetTasks(sampleTasks())

	view := list.View()
	for _, want := range []string{"Downloading (1)", "Downloaded (2)", "Failed (1)", "Berserk · Chapter 3", " 50%", "bad status: 500"} {
		if !strings.Contains(view, want) {
			t.Errorf("Expected view to contain %q", want)
		}
	}
	if strings.Index(view, "Downloading (1)") > strings.Index(view, "Failed (1)") {
		t.Error("Expected the downloading section before the failed section")
	}
}

func TestProgressBar(t *testing.T) {
	tests := []struct {
		name    string
		percent int
		width   int
		filled  int
		empty   int
	}{
		{"half", 50, 10, 5, 5},
		{"empty", 0, 10, 0, 10},
		{"full", 100, 10, 10, 0},
		{"over", 150, 10, 10, 0},
		{"negative", -5, 10, 0, 10},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			bar := ProgressBar(tt.percent, tt.width)
			if got := strings.Count(bar, "█"); got != tt.filled {
				t.Errorf("Expected %d filled cells, got %d", tt.filled, got)
			}
			if got := strings.Count(bar, "░"); got != tt.empty {
				t.Errorf("Expected %d empty cells, got %d", tt.empty, got)
			}
		})
	}

	if ProgressBar(50, 0) != "" {
		t.Error("Expected no bar for zero width")
	}
}

func TestSectionOf(t *testing.T) {
	if SectionOf(data.StatusIdle) != SectionDownloading {
		t.Error("Expected idle tasks in the downloading section")
	}
	if SectionOf(data.StatusFailed).String() != "Failed" {
		t.Error("Expected failed section name")
	}
}
