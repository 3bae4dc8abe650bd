package data

import "time"

// Chapter is the chapter shape shared with the reader. Its JSON encoding is
// the record persisted in the chapters partition; page URLs always point at
// the remote originals.
type Chapter struct {
	ID            string `json:"id"`
	MangaID       string `json:"mangaId"`
	Number        string `json:"number"`
	Title         string `json:"title"`
	Date          string `json:"date,omitempty"`
	PrevChapterID string `json:"prevChapterId,omitempty"`
	NextChapterID string `json:"nextChapterId,omitempty"`
	Pages         []Page `json:"pages"`
}

type Page struct {
	Index int    `json:"index"`
	URL   string `json:"url"`
	Alt   string `json:"alt,omitempty"`
}

// DisplayTitle falls back to the chapter number when the chapter has no title.
func (c *Chapter) DisplayTitle() string {
	if c.Title != "" {
		return c.Title
	}
	if c.Number != "" {
		return "Chapter " + c.Number
	}
	return "Chapter ?"
}

type TaskStatus string

const (
	StatusIdle        TaskStatus = "idle"
	StatusDownloading TaskStatus = "downloading"
	StatusDownloaded  TaskStatus = "downloaded"
	StatusFailed      TaskStatus = "failed"
)

// Terminal reports whether no further transition is expected.
func (s TaskStatus) Terminal() bool {
	return s == StatusDownloaded || s == StatusFailed
}

// DownloadTask is one entry of the download ledger.
type DownloadTask struct {
	ID           string     `json:"id"`
	MangaID      string     `json:"mangaId"`
	ChapterID    string     `json:"chapterId"`
	ChapterTitle string     `json:"chapterTitle"`
	MangaTitle   string     `json:"mangaTitle,omitempty"`
	Status       TaskStatus `json:"status"`
	Progress     int        `json:"progress"`
	CreatedAt    time.Time  `json:"created_at"`
	Error        string     `json:"error,omitempty"`
}

// TaskPatch carries the fields of a ledger merge-patch. Nil fields are left untouched.
type TaskPatch struct {
	Status   *TaskStatus
	Progress *int
	Error    *string
}

// Apply merges the patch into task.
func (p TaskPatch) Apply(task *DownloadTask) {
	if p.Status != nil {
		task.Status = *p.Status
	}
	if p.Progress != nil {
		task.Progress = *p.Progress
	}
	if p.Error != nil {
		task.Error = *p.Error
	}
}

func StatusPatch(status TaskStatus) TaskPatch {
	return TaskPatch{Status: &status}
}

func ProgressPatch(progress int) TaskPatch {
	return TaskPatch{Progress: &progress}
}

func FailedPatch(message string) TaskPatch {
	status := StatusFailed
	return TaskPatch{Status: &status, Error: &message}
}

func DownloadedPatch() TaskPatch {
	status := StatusDownloaded
	progress := 100
	return TaskPatch{Status: &status, Progress: &progress}
}

// ChapterRef identifies a cached chapter.
type ChapterRef struct {
	MangaID   string
	ChapterID string
}
