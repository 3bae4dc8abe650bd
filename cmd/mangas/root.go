package cmd

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/kerbaras/mangacache/pkg/app"
	"github.com/kerbaras/mangacache/pkg/config"
	"github.com/kerbaras/mangacache/pkg/integrations"
	"github.com/kerbaras/mangacache/pkg/logging"
	"github.com/kerbaras/mangacache/pkg/services"
)

var configPath string

var rootCmd = &cobra.Command{
	Use:   "mangacache",
	Short: "Offline chapter cache for Digiman",
	Long:  "Download Digiman chapters for offline reading and manage the local cache with a TUI and CLI",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}

		// The TUI owns the terminal, so logs go to a file next to the cache.
		logger, closeLog, err := fileLogger(cfg)
		if err != nil {
			return err
		}
		defer closeLog()

		controller, err := services.NewControllerFromConfig(cfg, logger)
		if err != nil {
			return err
		}
		defer controller.Close()

		a := app.NewApp(controller, newExporter(cfg, ""), logger)
		return a.Run()
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "config file (default $"+config.EnvPath+" or ~/.config/mangacache/config.toml)")

	rootCmd.AddCommand(downloadCmd)
	rootCmd.AddCommand(listCmd)
	rootCmd.AddCommand(removeCmd)
	rootCmd.AddCommand(cancelCmd)
	rootCmd.AddCommand(retryCmd)
	rootCmd.AddCommand(readCmd)
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(exportCmd)
	rootCmd.AddCommand(repairCmd)
	rootCmd.AddCommand(configCmd)
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	return cfg, nil
}

// setup loads the config and wires the controller with a stderr logger.
func setup() (*config.Config, *slog.Logger, *services.MangaController, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, nil, nil, err
	}
	logger, err := logging.NewFromConfig(cfg)
	if err != nil {
		return nil, nil, nil, err
	}
	controller, err := services.NewControllerFromConfig(cfg, logger)
	if err != nil {
		return nil, nil, nil, err
	}
	return cfg, logger, controller, nil
}

func fileLogger(cfg *config.Config) (*slog.Logger, func(), error) {
	path := filepath.Join(filepath.Dir(cfg.Storage.Path), "mangacache.log")
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, nil, fmt.Errorf("failed to create log directory: %w", err)
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open log file: %w", err)
	}
	logger, err := logging.New(logging.Options{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Output: f,
	})
	if err != nil {
		f.Close()
		return nil, nil, err
	}
	return logger, func() { f.Close() }, nil
}

func newExporter(cfg *config.Config, outputDir string) *integrations.EPubBuilder {
	if outputDir == "" {
		outputDir = cfg.Export.Dir
	}
	return integrations.NewEPubBuilder(integrations.ExportOptions{
		OutputDir:   outputDir,
		MaxWidth:    cfg.Export.MaxWidth,
		JPEGQuality: cfg.Export.JPEGQuality,
		Grayscale:   cfg.Export.Grayscale,
	})
}

func truncateString(s string, maxLen int) string {
	runes := []rune(s)
	if len(runes) <= maxLen {
		return s
	}
	if maxLen <= 3 {
		return string(runes[:maxLen])
	}
	return string(runes[:maxLen-3]) + "..."
}
