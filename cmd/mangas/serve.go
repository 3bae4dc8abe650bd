package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/kerbaras/mangacache/pkg/config"
	"github.com/kerbaras/mangacache/pkg/logging"
	"github.com/kerbaras/mangacache/pkg/server"
	"github.com/kerbaras/mangacache/pkg/services"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the cache over HTTP",
	Long:  "Serve cached chapters, page images and download control to readers running in another process",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		if bind, _ := cmd.Flags().GetString("bind"); bind != "" {
			cfg.Server.Bind = bind
		}
		if cfg.Server.Bind == "" {
			cfg.Server.Bind = config.Default().Server.Bind
		}

		logger, err := logging.NewFromConfig(cfg)
		if err != nil {
			return err
		}
		controller, err := services.NewControllerFromConfig(cfg, logger)
		if err != nil {
			return err
		}
		defer controller.Close()

		if report, err := controller.Reconcile(cmd.Context()); err != nil {
			logger.Warn("failed to reconcile downloads", "error", err)
		} else {
			logger.Info("reconciled downloads",
				"interrupted", report.Interrupted,
				"missing", report.Missing,
				"orphans", report.Orphans,
			)
		}

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		srv := server.New(controller, services.NewSourceFromConfig(cfg), logger,
			server.WithHandleTTL(time.Duration(cfg.Server.HandleTTLSeconds)*time.Second),
		)
		return srv.ListenAndServe(ctx, cfg.Server.Bind)
	},
}

func init() {
	serveCmd.Flags().String("bind", "", "Address to listen on (overrides server.bind)")
}
