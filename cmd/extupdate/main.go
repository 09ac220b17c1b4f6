// Package main is the entry point for the extupdate CLI.
//
// extupdate can be used either as a library (SDK) or as a standalone binary
// with YAML configuration. This CLI provides the standalone binary approach.
//
// Usage:
//
//	extupdate serve -c config.yaml    # Check for updates and serve the status API
//	extupdate check -c config.yaml    # Check once and print the statuses
//	extupdate watch -c config.yaml    # Live terminal view
//	extupdate validate -c config.yaml # Validate configuration
//	extupdate version                 # Show version info
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// Version information - set at build time via ldflags.
// Example: go build -ldflags "-X main.version=1.0.0"
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

// rootCmd is the base command when called without subcommands.
var rootCmd = &cobra.Command{
	Use:   "extupdate",
	Short: "Track update status for installed extensions",
	Long: `extupdate tracks the update lifecycle of installed extensions.

It checks each extension's release manifest, records whether an update is
available, runs configured install commands, and serves the statuses over
HTTP with Server-Sent Events for live updates.

Quick start:
  1. Create a config file (extupdate.yaml)
  2. Run: extupdate serve -c extupdate.yaml
  3. Open http://localhost:8080/api/extensions

Example config:
  port: 8080
  check_interval: 30m
  extensions:
    - name: code-review
      version: 1.4.2
      manifest_url: https://example.com/code-review/latest.json
      extractor: json:version`,
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		// Cobra already prints the error, just exit with code 1
		os.Exit(1)
	}
}

func main() {
	Execute()
}

// versionCmd prints version information.
var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Long:  `Print the version, commit hash, and build date of this extupdate binary.`,
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "extupdate %s\n", version)
		fmt.Fprintf(cmd.OutOrStdout(), "  commit: %s\n", commit)
		fmt.Fprintf(cmd.OutOrStdout(), "  built:  %s\n", date)
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
