package sources

import (
	"context"

	"github.com/kerbaras/mangacache/pkg/data"
	"github.com/kerbaras/mangacache/pkg/utils"
)

// ErrNotFound is returned when the API has no such chapter.
var ErrNotFound = utils.ErrNotFound

// Source is the chapter metadata side of the API.
type Source interface {
	FetchChapter(ctx context.Context, chapterID string) (*data.Chapter, error)
	FetchPages(ctx context.Context, chapterID string) ([]data.Page, error)
}

// ImageFetcher retrieves raw page bytes by URL.
type ImageFetcher interface {
	FetchImage(ctx context.Context, url string) ([]byte, error)
}
