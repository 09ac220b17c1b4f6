package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/exec"
	"strings"

	"github.com/inconshreveable/go-update"

	"github.com/jpalmerr/extupdate"
	"github.com/jpalmerr/extupdate/config"
)

// versionPlaceholder is replaced in install_url with the version being installed.
const versionPlaceholder = "{version}"

// newInstaller returns an Installer that applies each extension's
// configured install method.
func newInstaller(specs map[string]config.InstallSpec, client *http.Client, logger *slog.Logger) extupdate.Installer {
	return func(ctx context.Context, ext extupdate.Extension, version string) error {
		spec, ok := specs[ext.Name()]
		if !ok {
			return fmt.Errorf("no installer configured for %s", ext.Name())
		}
		if len(spec.Command) > 0 {
			return runInstallCommand(ctx, spec.Command, ext, version, logger)
		}
		return downloadInstall(ctx, client, spec, ext, version, logger)
	}
}

// runInstallCommand runs args with EXTUPDATE_EXTENSION,
// EXTUPDATE_INSTALLED_VERSION and EXTUPDATE_LATEST_VERSION in its
// environment. Its combined output is included in any error.
func runInstallCommand(ctx context.Context, args []string, ext extupdate.Extension, version string, logger *slog.Logger) error {
	cmd := exec.CommandContext(ctx, args[0], args[1:]...)
	cmd.Env = append(os.Environ(),
		"EXTUPDATE_EXTENSION="+ext.Name(),
		"EXTUPDATE_INSTALLED_VERSION="+ext.Version(),
		"EXTUPDATE_LATEST_VERSION="+version,
	)

	out, err := cmd.CombinedOutput()
	if err != nil {
		return fmt.Errorf("%s: %w: %s", args[0], err, strings.TrimSpace(string(out)))
	}

	logger.Debug("install command finished",
		"extension", ext.Name(),
		"command", strings.Join(args, " "),
	)
	return nil
}

// downloadInstall fetches spec.URL and swaps it in for the file at
// spec.Path. The previous file is restored if the swap fails.
func downloadInstall(ctx context.Context, client *http.Client, spec config.InstallSpec, ext extupdate.Extension, version string, logger *slog.Logger) error {
	if strings.Contains(spec.URL, versionPlaceholder) && version == "" {
		return errors.New("latest version is not known yet")
	}
	url := strings.ReplaceAll(spec.URL, versionPlaceholder, version)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("download %s: %w", url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("download %s: status %d", url, resp.StatusCode)
	}

	if err := update.Apply(resp.Body, update.Options{TargetPath: spec.Path}); err != nil {
		if rerr := update.RollbackError(err); rerr != nil {
			return fmt.Errorf("apply %s: %w (rollback failed: %v)", spec.Path, err, rerr)
		}
		return fmt.Errorf("apply %s: %w", spec.Path, err)
	}

	logger.Info("update downloaded",
		"extension", ext.Name(),
		"version", version,
		"path", spec.Path,
	)
	return nil
}
