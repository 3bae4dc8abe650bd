package sources

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"sort"

	"github.com/kerbaras/mangacache/pkg/data"
	"github.com/kerbaras/mangacache/pkg/utils"
)

// ID is an identifier the API may send as a number, a string or null.
type ID string

func (id *ID) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	switch {
	case bytes.Equal(b, []byte("null")):
		*id = ""
		return nil
	case len(b) > 0 && b[0] == '"':
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*id = ID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return err
	}
	*id = ID(n.String())
	return nil
}

// Chapter is the API's chapter payload.
type Chapter struct {
	ID            ID     `json:"id"`
	MangaTitleID  ID     `json:"manga_title_id"`
	Title         string `json:"title"`
	Number        ID     `json:"chapter_number"`
	UploadDate    string `json:"upload_date"`
	PrevChapterID ID     `json:"prev_chapter_id"`
	NextChapterID ID     `json:"next_chapter_id"`
}

func (c *Chapter) ToChapter() *data.Chapter {
	return &data.Chapter{
		ID:            string(c.ID),
		MangaID:       string(c.MangaTitleID),
		Number:        string(c.Number),
		Title:         c.Title,
		Date:          c.UploadDate,
		PrevChapterID: string(c.PrevChapterID),
		NextChapterID: string(c.NextChapterID),
	}
}

// Page is the API's page payload. The reader endpoints use index/url while
// the model serializer exposes page_number/image_url; both are accepted.
type Page struct {
	Index      *int   `json:"index"`
	PageNumber *int   `json:"page_number"`
	URL        string `json:"url"`
	ImageURL   string `json:"image_url"`
	Alt        string `json:"alt"`
}

func (p *Page) ToPage() data.Page {
	page := data.Page{URL: p.URL, Alt: p.Alt}
	if page.URL == "" {
		page.URL = p.ImageURL
	}
	switch {
	case p.Index != nil:
		page.Index = *p.Index
	case p.PageNumber != nil:
		page.Index = *p.PageNumber
	}
	return page
}

// Digiman reads chapters and pages from the Digiman REST API.
type Digiman struct {
	api *utils.API
}

func NewDigiman(api *utils.API) *Digiman {
	return &Digiman{api: api}
}

func (d *Digiman) FetchChapter(ctx context.Context, chapterID string) (*data.Chapter, error) {
	var chapter Chapter
	if err := d.api.Get(ctx, fmt.Sprintf("chapters/%s/", url.PathEscape(chapterID)), nil, &chapter); err != nil {
		return nil, fmt.Errorf("failed to fetch chapter %s: %w", chapterID, err)
	}
	out := chapter.ToChapter()
	if out.ID == "" {
		out.ID = chapterID
	}
	return out, nil
}

// FetchPages returns the chapter's pages ordered by index. The endpoint may
// answer with a bare array or a paginated {"results": [...]} object.
func (d *Digiman) FetchPages(ctx context.Context, chapterID string) ([]data.Page, error) {
	params := url.Values{
		"chapter_id": {chapterID},
		"ordering":   {"page_number"},
	}
	var raw json.RawMessage
	if err := d.api.Get(ctx, "pages/", params, &raw); err != nil {
		return nil, fmt.Errorf("failed to fetch pages for chapter %s: %w", chapterID, err)
	}

	payload, err := decodePages(raw)
	if err != nil {
		return nil, fmt.Errorf("failed to decode pages for chapter %s: %w", chapterID, err)
	}

	pages := make([]data.Page, len(payload))
	for i := range payload {
		pages[i] = payload[i].ToPage()
	}
	sort.SliceStable(pages, func(i, j int) bool { return pages[i].Index < pages[j].Index })
	return pages, nil
}

func decodePages(raw json.RawMessage) ([]Page, error) {
	raw = bytes.TrimSpace(raw)
	var pages []Page
	if len(raw) > 0 && raw[0] == '[' {
		err := json.Unmarshal(raw, &pages)
		return pages, err
	}
	var paginated struct {
		Results []Page `json:"results"`
	}
	err := json.Unmarshal(raw, &paginated)
	return paginated.Results, err
}
