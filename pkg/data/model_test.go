package data

import "testing"

func TestChapterDisplayTitle(t *testing.T) {
	tests := []struct {
		chapter Chapter
		want    string
	}{
		{Chapter{Title: "The Black Swordsman", Number: "1"}, "The Black Swordsman"},
		{Chapter{Number: "12"}, "Chapter 12"},
		{Chapter{}, "Chapter ?"},
	}

	for _, tt := range tests {
		if got := tt.chapter.DisplayTitle(); got != tt.want {
			t.Errorf("DisplayTitle() = %q, want %q", got, tt.want)
		}
	}
}

func TestTaskPatchApply(t *testing.T) {
	task := DownloadTask{
		ID:       "dl_1",
		Status:   StatusDownloading,
		Progress: 30,
	}

	ProgressPatch(50).Apply(&task)
	if task.Progress != 50 || task.Status != StatusDownloading {
		t.Errorf("Expected progress 50 while downloading, got %d %s", task.Progress, task.Status)
	}

	FailedPatch("boom").Apply(&task)
	if task.Status != StatusFailed {
		t.Errorf("Expected status failed, got %s", task.Status)
	}
	if task.Error != "boom" {
		t.Errorf("Expected error 'boom', got '%s'", task.Error)
	}
	if task.Progress != 50 {
		t.Errorf("Expected progress untouched at 50, got %d", task.Progress)
	}

	task = DownloadTask{Status: StatusDownloading}
	DownloadedPatch().Apply(&task)
	if task.Status != StatusDownloaded || task.Progress != 100 {
		t.Errorf("Expected downloaded at 100, got %s %d", task.Status, task.Progress)
	}
}

func TestTaskStatusTerminal(t *testing.T) {
	if StatusIdle.Terminal() || StatusDownloading.Terminal() {
		t.Error("Expected idle and downloading to be non-terminal")
	}
	if !StatusDownloaded.Terminal() || !StatusFailed.Terminal() {
		t.Error("Expected downloaded and failed to be terminal")
	}
}
