package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"

	"github.com/spf13/cobra"

	"github.com/kerbaras/mangacache/pkg/data"
	"github.com/kerbaras/mangacache/pkg/events"
	"github.com/kerbaras/mangacache/pkg/services"
)

var downloadCmd = &cobra.Command{
	Use:   "download <manga-id> <chapter-id>...",
	Short: "Download chapters for offline reading",
	Long:  "Download one or more chapters of a manga into the local cache",
	Args:  cobra.MinimumNArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		mangaTitle, _ := cmd.Flags().GetString("manga-title")
		chapterTitle, _ := cmd.Flags().GetString("title")

		_, _, controller, err := setup()
		if err != nil {
			return err
		}
		defer controller.Close()

		if controller.Degraded() {
			fmt.Println("⚠️  Cache store unavailable, downloads will not survive this run")
		}

		unsubscribe := controller.Bus().Subscribe(func(e events.Event) {
			if toast, ok := e.(events.Toast); ok {
				fmt.Printf("  %s %s\n", toastIcon(toast.Type), toast.Message)
			}
		})
		defer unsubscribe()

		mangaID := args[0]
		requests := make([]services.ChapterRequest, 0, len(args)-1)
		for _, chapterID := range args[1:] {
			req := services.ChapterRequest{ChapterID: chapterID}
			if len(args) == 2 {
				req.ChapterTitle = chapterTitle
			}
			requests = append(requests, req)
		}

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
		defer stop()

		fmt.Printf("📥 Downloading %d chapter(s) of manga %s\n", len(requests), mangaID)
		ids, err := controller.DownloadAll(ctx, mangaID, mangaTitle, requests)
		if err != nil {
			return fmt.Errorf("download interrupted: %w", err)
		}

		failed := 0
		for _, id := range ids {
			task, err := controller.Wait(ctx, id)
			if err != nil {
				return err
			}
			if task.Status == data.StatusFailed {
				failed++
			}
		}
		if failed > 0 {
			return fmt.Errorf("%d of %d chapter(s) failed to download", failed, len(ids))
		}

		fmt.Println("\n✅ Download complete!")
		return nil
	},
}

func toastIcon(t events.ToastType) string {
	switch t {
	case events.ToastSuccess:
		return "✓"
	case events.ToastError:
		return "✗"
	default:
		return "•"
	}
}

func init() {
	downloadCmd.Flags().String("manga-title", "", "Manga title shown in the download list")
	downloadCmd.Flags().String("title", "", "Chapter title (single chapter only)")
}
