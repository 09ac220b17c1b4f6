package main

import (
	"fmt"
	"log/slog"
	"net/http"
	"os"

	"github.com/jpalmerr/extupdate"
	"github.com/jpalmerr/extupdate/config"
)

// newLogger creates a JSON logger for CLI use.
func newLogger(level slog.Level) *slog.Logger {
	return slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	}))
}

// loadMonitor reads the config file and builds a Monitor from it.
func loadMonitor(configFile string, logger *slog.Logger) (*extupdate.Monitor, *config.Config, error) {
	cfg, err := config.Load(configFile)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load config: %w", err)
	}

	opts, err := config.BuildOptions(cfg)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to build extensions: %w", err)
	}
	opts = append(opts, extupdate.WithLogger(logger))

	if specs := config.InstallSpecs(cfg); len(specs) > 0 {
		opts = append(opts, extupdate.WithInstaller(newInstaller(specs, http.DefaultClient, logger)))
	}

	m, err := extupdate.New(opts...)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create monitor: %w", err)
	}
	return m, cfg, nil
}
