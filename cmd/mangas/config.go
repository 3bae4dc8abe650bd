package cmd

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/kerbaras/mangacache/pkg/config"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Print or write a sample configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		write, _ := cmd.Flags().GetBool("write")
		if !write {
			fmt.Print(config.Sample())
			return nil
		}

		path := configPath
		if path == "" {
			path = config.DefaultPath()
		}
		if _, err := os.Stat(path); err == nil {
			return fmt.Errorf("%s already exists", path)
		} else if !errors.Is(err, fs.ErrNotExist) {
			return err
		}
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return fmt.Errorf("failed to create config directory: %w", err)
		}
		if err := os.WriteFile(path, []byte(config.Sample()), 0o644); err != nil {
			return fmt.Errorf("failed to write config: %w", err)
		}
		fmt.Printf("📝 Wrote %s\n", path)
		return nil
	},
}

func init() {
	configCmd.Flags().Bool("write", false, "Write the sample to the config path instead of printing it")
}
