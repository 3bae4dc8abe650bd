package cmd

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/kerbaras/mangacache/pkg/data"
	"github.com/kerbaras/mangacache/pkg/services"
)

type readPage struct {
	data.Page
	Cached bool `json:"cached"`
	Size   int  `json:"size,omitempty"`
}

type readOutput struct {
	data.Chapter
	Pages   []readPage `json:"pages"`
	Offline bool       `json:"offline"`
}

var readCmd = &cobra.Command{
	Use:   "read <manga-id> <chapter-id>",
	Short: "Print a chapter as JSON",
	Long:  "Print the cached chapter record, falling back to the Digiman API when the chapter is not cached",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		offlineOnly, _ := cmd.Flags().GetBool("offline")

		cfg, _, controller, err := setup()
		if err != nil {
			return err
		}
		defer controller.Close()

		ctx := cmd.Context()
		mangaID, chapterID := args[0], args[1]

		var out readOutput
		if chapter, pages, ok := controller.Reader().LoadRaw(ctx, mangaID, chapterID); ok {
			out.Chapter = *chapter
			out.Offline = true
			for i, page := range chapter.Pages {
				out.Pages = append(out.Pages, readPage{Page: page, Cached: pages[i] != nil, Size: len(pages[i])})
			}
		} else {
			if offlineOnly {
				return fmt.Errorf("chapter %s is not cached", chapterID)
			}
			source := services.NewSourceFromConfig(cfg)
			chapter, err := source.FetchChapter(ctx, chapterID)
			if err != nil {
				return fmt.Errorf("failed to fetch chapter: %w", err)
			}
			pages, err := source.FetchPages(ctx, chapterID)
			if err != nil {
				return fmt.Errorf("failed to fetch pages: %w", err)
			}
			if chapter.MangaID == "" {
				chapter.MangaID = mangaID
			}
			out.Chapter = *chapter
			for _, page := range pages {
				out.Pages = append(out.Pages, readPage{Page: page})
			}
		}

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(out)
	},
}

func init() {
	readCmd.Flags().Bool("offline", false, "Fail instead of fetching from the API when not cached")
}
