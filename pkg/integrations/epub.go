package integrations

import (
	"fmt"
	"html"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-shiori/go-epub"

	"github.com/kerbaras/mangacache/pkg/data"
)

type ExportOptions struct {
	OutputDir   string
	MaxWidth    int
	JPEGQuality int
	Grayscale   bool
}

// EPubBuilder writes cached chapters out as EPUB files.
type EPubBuilder struct {
	outputDir string
	images    *ImageProcessor
}

func NewEPubBuilder(opts ExportOptions) *EPubBuilder {
	outputDir := opts.OutputDir
	if outputDir == "" {
		outputDir = os.TempDir()
	}
	return &EPubBuilder{
		outputDir: outputDir,
		images: &ImageProcessor{
			MaxWidth:  opts.MaxWidth,
			Quality:   opts.JPEGQuality,
			Grayscale: opts.Grayscale,
		},
	}
}

// CreateEPub compiles one chapter into an EPub file and returns its path.
// pages holds the page bytes in reading order; nil entries are skipped.
func (p *EPubBuilder) CreateEPub(mangaTitle string, chapter *data.Chapter, pages [][]byte) (string, error) {
	if chapter == nil {
		return "", fmt.Errorf("chapter cannot be nil")
	}
	if err := os.MkdirAll(p.outputDir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create output directory: %w", err)
	}

	// go-epub reads images from disk.
	workDir, err := os.MkdirTemp("", "mangacache-epub-*")
	if err != nil {
		return "", fmt.Errorf("failed to create work directory: %w", err)
	}
	defer os.RemoveAll(workDir)

	title := chapterTitle(mangaTitle, chapter)
	e, err := epub.NewEpub(title)
	if err != nil {
		return "", fmt.Errorf("failed to create EPub: %w", err)
	}
	e.SetAuthor("Digiman")
	e.SetLang("en")
	if mangaTitle != "" {
		e.SetDescription(mangaTitle)
	}

	var body strings.Builder
	fmt.Fprintf(&body, "<h1>%s</h1>\n", html.EscapeString(chapter.DisplayTitle()))

	added := 0
	for i, raw := range pages {
		if raw == nil {
			continue
		}
		content, ext, err := p.images.Prepare(raw)
		if err != nil {
			return "", fmt.Errorf("failed to prepare page %d: %w", i+1, err)
		}

		name := fmt.Sprintf("page_%04d%s", i+1, ext)
		src := filepath.Join(workDir, name)
		if err := os.WriteFile(src, content, 0o644); err != nil {
			return "", fmt.Errorf("failed to stage page %d: %w", i+1, err)
		}
		internalPath, err := e.AddImage(src, name)
		if err != nil {
			return "", fmt.Errorf("failed to add image %s: %w", name, err)
		}

		fmt.Fprintf(&body,
			`<div class="page"><img src="%s" alt="Page %d" style="width:100%%;height:auto;"/></div>`+"\n",
			internalPath, i+1,
		)
		added++
	}
	if added == 0 {
		return "", fmt.Errorf("no pages to export")
	}

	if _, err := e.AddSection(body.String(), chapter.DisplayTitle(), "", ""); err != nil {
		return "", fmt.Errorf("failed to add section: %w", err)
	}

	outputPath := filepath.Join(p.outputDir, sanitizeFilename(title)+".epub")
	if err := e.Write(outputPath); err != nil {
		return "", fmt.Errorf("failed to write EPub: %w", err)
	}
	return outputPath, nil
}

func chapterTitle(mangaTitle string, chapter *data.Chapter) string {
	title := chapter.DisplayTitle()
	if chapter.Title != "" && chapter.Number != "" {
		title = fmt.Sprintf("Chapter %s: %s", chapter.Number, chapter.Title)
	}
	if mangaTitle != "" {
		title = mangaTitle + " - " + title
	}
	return title
}

// sanitizeFilename removes characters that are invalid in filenames
func sanitizeFilename(name string) string {
	invalid := []string{"/", "\\", ":", "*", "?", "\"", "<", ">", "|"}
	result := name
	for _, char := range invalid {
		result = strings.ReplaceAll(result, char, "_")
	}
	result = strings.TrimSpace(result)
	result = strings.Trim(result, ".")
	if result == "" {
		result = "chapter"
	}
	return result
}
