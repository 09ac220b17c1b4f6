package main

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jpalmerr/extupdate"
	"github.com/jpalmerr/extupdate/status"
)

func main() {
	// start mock release server (see mock_server.go)
	go StartMockReleaseServer(":9999")
	time.Sleep(100 * time.Millisecond)

	reviewer, err := extupdate.NewExtension("code-review", "1.0.0",
		extupdate.WithManifestURL("http://localhost:9999/releases/code-review"),
		extupdate.WithInterval(10*time.Second),
	)
	if err != nil {
		slog.Error("failed to create extension", "error", err)
		os.Exit(1)
	}

	linter, err := extupdate.NewExtension("linter", "1.0.0",
		extupdate.WithManifestURL("http://localhost:9999/releases/linter.txt"),
		extupdate.WithExtractor(extupdate.PlainTextExtractor),
	)
	if err != nil {
		slog.Error("failed to create extension", "error", err)
		os.Exit(1)
	}

	// linked from a local checkout, so there is nothing to update from
	local, _ := extupdate.NewExtension("local-snippets", "dev")

	var m *extupdate.Monitor
	m, err = extupdate.New(
		extupdate.WithExtensions(reviewer, linter, local),
		extupdate.WithCheckInterval(30*time.Second),
		extupdate.WithPort(8080),
		extupdate.WithInstaller(simulatedInstall),
		extupdate.WithChangeCallback(func(c extupdate.Change) {
			// install code-review updates as soon as they appear
			if c.Name == "code-review" && c.State == status.StateUpdateAvailable {
				go func() { _ = m.Update(context.Background(), c.Name) }()
			}
		}),
	)
	if err != nil {
		slog.Error("failed to create monitor", "error", err)
		os.Exit(1)
	}

	fmt.Println()
	fmt.Println("  extupdate demo")
	fmt.Println()
	fmt.Println("  Statuses:      curl localhost:8080/api/extensions")
	fmt.Println("  Live changes:  curl -N localhost:8080/api/sse")
	fmt.Println("  Update linter: curl -X POST localhost:8080/api/extensions/linter/update")
	fmt.Println()
	fmt.Println("  code-review updates itself; a new release appears every 20-60s.")
	fmt.Println("  Press Ctrl+C to stop")
	fmt.Println()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := m.Start(ctx); err != nil {
		slog.Error("extupdate error", "error", err)
		os.Exit(1)
	}
}

// simulatedInstall pretends to download an update, failing now and then.
func simulatedInstall(ctx context.Context, ext extupdate.Extension, version string) error {
	select {
	case <-time.After(time.Duration(1+rand.Intn(3)) * time.Second):
	case <-ctx.Done():
		return ctx.Err()
	}
	if rand.Intn(5) == 0 {
		return fmt.Errorf("download of %s %s interrupted", ext.Name(), version)
	}
	return nil
}
