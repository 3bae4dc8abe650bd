package cmd

import (
	"context"
	"fmt"

	"github.com/charmbracelet/bubbles/table"
	"github.com/charmbracelet/lipgloss"
	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/kerbaras/mangacache/pkg/services"
)

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List downloads and cached chapters",
	Long:  "Display the download ledger and the chapters available offline in formatted tables",
	RunE: func(cmd *cobra.Command, args []string) error {
		_, _, controller, err := setup()
		if err != nil {
			return err
		}
		defer controller.Close()

		if err := printDownloads(controller); err != nil {
			return err
		}
		printCache(cmd.Context(), controller)
		return nil
	},
}

func printDownloads(controller *services.MangaController) error {
	tasks, err := controller.Tasks()
	if err != nil {
		return fmt.Errorf("failed to read downloads: %w", err)
	}
	if len(tasks) == 0 {
		fmt.Println("⬇ No downloads. Use 'mangacache download' to cache chapters.")
		return nil
	}

	columns := []table.Column{
		{Title: "Task", Width: 36},
		{Title: "Chapter", Width: 30},
		{Title: "Status", Width: 12},
		{Title: "Progress", Width: 8},
		{Title: "Error", Width: 30},
	}

	rows := []table.Row{}
	for _, task := range tasks {
		title := task.ChapterTitle
		if task.MangaTitle != "" {
			title = task.MangaTitle + " · " + title
		}
		rows = append(rows, table.Row{
			task.ID,
			truncateString(title, 28),
			string(task.Status),
			fmt.Sprintf("%d%%", task.Progress),
			truncateString(task.Error, 28),
		})
	}

	fmt.Printf("\n⬇ Downloads (%d)\n\n", len(tasks))
	fmt.Println(renderTable(columns, rows))
	return nil
}

func printCache(ctx context.Context, controller *services.MangaController) {
	maintenance := controller.Maintenance()
	refs := maintenance.ListAll(ctx)
	if len(refs) == 0 {
		fmt.Println("\n📚 No chapters cached.")
		return
	}

	columns := []table.Column{
		{Title: "Manga", Width: 20},
		{Title: "Chapter", Width: 20},
		{Title: "Title", Width: 30},
		{Title: "Pages", Width: 6},
		{Title: "Size", Width: 10},
	}

	rows := []table.Row{}
	for _, ref := range refs {
		title, pages := "", ""
		if chapter, _, ok := controller.Reader().LoadRaw(ctx, ref.MangaID, ref.ChapterID); ok {
			title = chapter.DisplayTitle()
			pages = fmt.Sprintf("%d", len(chapter.Pages))
		}
		rows = append(rows, table.Row{
			truncateString(ref.MangaID, 18),
			truncateString(ref.ChapterID, 18),
			truncateString(title, 28),
			pages,
			humanize.Bytes(uint64(maintenance.SizeOf(ctx, ref.MangaID, ref.ChapterID))),
		})
	}

	fmt.Printf("\n📚 Offline library (%d chapters, %s)\n\n", len(refs), humanize.Bytes(uint64(maintenance.TotalSize(ctx))))
	fmt.Println(renderTable(columns, rows))
}

func renderTable(columns []table.Column, rows []table.Row) string {
	t := table.New(
		table.WithColumns(columns),
		table.WithRows(rows),
		table.WithFocused(false),
		table.WithHeight(len(rows)),
	)

	s := table.DefaultStyles()
	s.Header = s.Header.
		BorderStyle(lipgloss.NormalBorder()).
		BorderForeground(lipgloss.Color("240")).
		BorderBottom(true).
		Bold(true)
	s.Selected = s.Selected.
		Foreground(lipgloss.Color("229")).
		Background(lipgloss.Color("57")).
		Bold(false)
	t.SetStyles(s)

	return t.View()
}
