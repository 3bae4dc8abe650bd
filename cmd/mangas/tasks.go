package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

var removeCmd = &cobra.Command{
	Use:   "remove <manga-id> <chapter-id>",
	Short: "Remove a cached chapter",
	Long:  "Delete a chapter record and its page images from the local cache",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		_, _, controller, err := setup()
		if err != nil {
			return err
		}
		defer controller.Close()

		if !controller.Maintenance().Remove(cmd.Context(), args[0], args[1]) {
			return fmt.Errorf("failed to remove chapter %s", args[1])
		}
		fmt.Printf("🗑  Removed chapter %s of manga %s\n", args[1], args[0])
		return nil
	},
}

var cancelCmd = &cobra.Command{
	Use:   "cancel <task-id>",
	Short: "Cancel a running download",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		_, _, controller, err := setup()
		if err != nil {
			return err
		}
		defer controller.Close()

		cancelled, err := controller.Cancel(args[0])
		if err != nil {
			return err
		}
		if !cancelled {
			fmt.Printf("ℹ️  Task %s is not downloading\n", args[0])
			return nil
		}
		fmt.Printf("⏹  Cancelled %s\n", args[0])
		return nil
	},
}

var retryCmd = &cobra.Command{
	Use:   "retry <task-id>",
	Short: "Retry a failed download",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		_, _, controller, err := setup()
		if err != nil {
			return err
		}
		defer controller.Close()

		id, err := controller.Retry(args[0])
		if err != nil {
			return err
		}
		fmt.Printf("🔁 Retrying as %s\n", id)

		task, err := controller.Wait(cmd.Context(), id)
		if err != nil {
			return err
		}
		if task.Error != "" {
			return fmt.Errorf("download failed: %s", task.Error)
		}
		fmt.Printf("✅ %s downloaded\n", task.ChapterTitle)
		return nil
	},
}

var repairCmd = &cobra.Command{
	Use:   "repair",
	Short: "Reconcile the download ledger with the cache",
	Long:  "Fail interrupted downloads, flag downloads whose cached data is gone and prune orphaned page images",
	RunE: func(cmd *cobra.Command, args []string) error {
		_, _, controller, err := setup()
		if err != nil {
			return err
		}
		defer controller.Close()

		reconcile := controller.Reconcile
		if all, _ := cmd.Flags().GetBool("all"); all {
			reconcile = controller.ReconcileAll
		}
		report, err := reconcile(cmd.Context())
		if err != nil {
			return err
		}
		fmt.Printf("🔧 %d interrupted, %d missing, %d orphaned image(s) pruned\n",
			report.Interrupted, report.Missing, report.Orphans)
		if report.Skipped > 0 {
			fmt.Printf("ℹ️  %d download(s) may belong to another process; use --all if none is running\n", report.Skipped)
		}
		return nil
	},
}

func init() {
	repairCmd.Flags().Bool("all", false, "Also fail downloads started by other processes sharing the ledger")
}
