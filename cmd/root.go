// Package cmd implements the recall command line interface.
package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/spf13/cobra"

	"github.com/recallhq/recall/internal/app"
	"github.com/recallhq/recall/internal/config"
	"github.com/recallhq/recall/internal/log"
)

var (
	flagVerbose  bool
	flagJSONLogs bool
)

var rootCmd = &cobra.Command{
	Use:   "recall",
	Short: "Recall - semantic notes you can search by meaning",
	Long: `Recall stores your notes as embedded chunks in PostgreSQL and lets you
search them by meaning instead of keywords.

Typical usage:

  recall ingest note.md --meta subject=go
  recall query "how do I cancel a context?"
  recall serve`,
	SilenceUsage: true,
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&flagVerbose, "verbose", "v", false, "enable debug logging")
	rootCmd.PersistentFlags().BoolVar(&flagJSONLogs, "json-logs", false, "write logs as JSON")
}

// newLogger builds the process logger from the persistent flags.
func newLogger() log.Logger {
	level := slog.LevelInfo
	if flagVerbose {
		level = slog.LevelDebug
	}
	return log.New(log.Config{Level: level, JSON: flagJSONLogs})
}

// setupApp loads the configuration and wires the application.
// The caller owns the returned App and must Close it.
func setupApp(ctx context.Context, logger log.Logger) (*app.App, *config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, fmt.Errorf("loading config: %w", err)
	}

	a, err := app.Setup(ctx, cfg, logger)
	if err != nil {
		return nil, nil, fmt.Errorf("initializing application: %w", err)
	}
	return a, cfg, nil
}

// parseKeyValues turns repeated key=value flags into a metadata map.
func parseKeyValues(pairs []string) (map[string]string, error) {
	if len(pairs) == 0 {
		return nil, nil
	}
	meta := make(map[string]string, len(pairs))
	for _, pair := range pairs {
		key, value, ok := strings.Cut(pair, "=")
		if !ok || key == "" {
			return nil, fmt.Errorf("invalid key=value pair %q", pair)
		}
		meta[key] = value
	}
	return meta, nil
}
