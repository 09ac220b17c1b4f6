package main

import (
	"context"
	"fmt"
	"log/slog"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
)

const (
	shutdownTimeout = 10 * time.Second
)

// serveCmd starts the monitor and its HTTP API.
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Check for updates and serve the status API",
	Long: `Start the extupdate server.

The server will:
  - Load configuration from the specified YAML file
  - Check every extension for updates, then keep checking on its interval
  - Serve statuses at /api/extensions and live changes at /api/sse
  - Accept update and acknowledge requests

The server runs until interrupted (Ctrl+C) or receives SIGTERM.

Example:
  extupdate serve -c config.yaml
  extupdate serve --config /etc/extupdate/config.yaml`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().StringP("config", "c", "", "path to config file (required)")
	_ = serveCmd.MarkFlagRequired("config")
}

func runServe(cmd *cobra.Command, args []string) error {
	logger := newLogger(slog.LevelInfo)

	configFile, _ := cmd.Flags().GetString("config")
	m, cfg, err := loadMonitor(configFile, logger)
	if err != nil {
		return err
	}

	logger.Info("config loaded",
		"extensions", len(cfg.Extensions),
		"updatable", cfg.Updatable(),
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	return runUntilDone(ctx, logger, m.Start)
}

// runUntilDone runs start until it returns, allowing shutdownTimeout for a
// graceful exit once ctx is cancelled.
func runUntilDone(ctx context.Context, logger *slog.Logger, start func(context.Context) error) error {
	errChan := make(chan error, 1)
	go func() {
		errChan <- start(ctx)
	}()

	select {
	case err := <-errChan:
		if err != nil {
			return fmt.Errorf("server error: %w", err)
		}
		logger.Info("shutdown complete")
		return nil

	case <-ctx.Done():
		select {
		case err := <-errChan:
			if err != nil {
				return fmt.Errorf("server error: %w", err)
			}
			logger.Info("shutdown complete")
			return nil
		case <-time.After(shutdownTimeout):
			logger.Warn("shutdown timed out",
				"timeout", shutdownTimeout.String(),
				"action", "forcing exit",
			)
			return nil
		}
	}
}
