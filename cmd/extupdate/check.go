package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

// errUpdatesAvailable is returned by check --exit-code when updates exist.
var errUpdatesAvailable = errors.New("updates available")

// checkCmd runs a single update check and prints the result.
var checkCmd = &cobra.Command{
	Use:   "check",
	Short: "Check every extension once and print the statuses",
	Long: `Check every configured extension once and print the resulting
statuses as JSON, keyed by extension name.

With --exit-code the command fails when any extension has an update
available, which is useful in scripts.

Example:
  extupdate check -c config.yaml
  extupdate check -c config.yaml --exit-code`,
	RunE:         runCheck,
	SilenceUsage: true,
}

func init() {
	rootCmd.AddCommand(checkCmd)

	checkCmd.Flags().StringP("config", "c", "", "path to config file (required)")
	checkCmd.Flags().Bool("exit-code", false, "fail when any update is available")
	_ = checkCmd.MarkFlagRequired("config")
}

func runCheck(cmd *cobra.Command, args []string) error {
	logger := newLogger(slog.LevelWarn)

	configFile, _ := cmd.Flags().GetString("config")
	exitCode, _ := cmd.Flags().GetBool("exit-code")

	// only the updates-available outcome is silent
	cmd.SilenceErrors = false

	m, _, err := loadMonitor(configFile, logger)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := m.CheckOnce(ctx); err != nil {
		return fmt.Errorf("check interrupted: %w", err)
	}

	snap := m.Snapshot()
	out, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode statuses: %w", err)
	}
	fmt.Fprintln(cmd.OutOrStdout(), string(out))

	if exitCode && countAvailable(snap) > 0 {
		cmd.SilenceErrors = true
		return errUpdatesAvailable
	}
	return nil
}
