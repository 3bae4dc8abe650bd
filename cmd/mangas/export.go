package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

var exportCmd = &cobra.Command{
	Use:   "export <manga-id> <chapter-id>",
	Short: "Export a cached chapter as EPUB",
	Long:  "Compile the page images of a cached chapter into an EPUB file",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		outputDir, _ := cmd.Flags().GetString("output")
		mangaTitle, _ := cmd.Flags().GetString("manga-title")

		cfg, _, controller, err := setup()
		if err != nil {
			return err
		}
		defer controller.Close()

		chapter, pages, ok := controller.Reader().LoadRaw(cmd.Context(), args[0], args[1])
		if !ok {
			return fmt.Errorf("chapter %s is not cached, download it first", args[1])
		}
		if mangaTitle == "" {
			mangaTitle = controller.MangaTitle(args[0])
		}

		fmt.Printf("📖 Exporting %s (%d pages)\n", chapter.DisplayTitle(), len(pages))
		path, err := newExporter(cfg, outputDir).CreateEPub(mangaTitle, chapter, pages)
		if err != nil {
			return fmt.Errorf("EPUB generation failed: %w", err)
		}

		fmt.Printf("✅ EPUB created: %s\n", path)
		return nil
	},
}

func init() {
	exportCmd.Flags().StringP("output", "o", "", "Output directory (overrides export.dir)")
	exportCmd.Flags().String("manga-title", "", "Manga title used in the book title")
}
