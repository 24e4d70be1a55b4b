package cmd

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/recallhq/recall/api"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API server",
	Long: `Start the HTTP API server exposing the note lifecycle.

The listen address comes from serve_addr in the config file or the
RECALL_SERVE_ADDR environment variable.`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		return runServe(cmd.Context())
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

// runServe initializes the application and serves until interrupted.
func runServe(ctx context.Context) error {
	ctx, cancel := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	logger := newLogger()
	logger.Info("starting recall server", "version", AppVersion)

	a, cfg, err := setupApp(ctx, logger)
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := a.Close(); closeErr != nil {
			logger.Warn("shutdown error", "error", closeErr)
		}
	}()

	server := api.NewServer(a.DBPool, a.Service, logger)

	if err := server.Run(ctx, cfg.ServeAddr); err != nil {
		return fmt.Errorf("HTTP server: %w", err)
	}
	return nil
}
