package main

import (
	"fmt"

	"github.com/jpalmerr/extupdate/config"
	"github.com/spf13/cobra"
)

// validateCmd validates a config file without starting the server.
var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate a config file",
	Long: `Validate an extupdate configuration file without starting the server.

This command parses the YAML, expands environment variables, and validates
all fields. It's useful for CI/CD pipelines or pre-deployment checks.

Exit codes:
  0 - Config is valid
  1 - Config is invalid (error details printed to stderr)

Example:
  extupdate validate -c config.yaml`,
	RunE: runValidate,
}

func init() {
	rootCmd.AddCommand(validateCmd)

	validateCmd.Flags().StringP("config", "c", "", "path to config file (required)")
	_ = validateCmd.MarkFlagRequired("config")
}

func runValidate(cmd *cobra.Command, args []string) error {
	configFile, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(configFile)
	if err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	// building catches anything the SDK rejects that parsing let through
	if _, err := config.BuildExtensions(cfg); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	total := len(cfg.Extensions)
	updatable := cfg.Updatable()
	installable := len(config.InstallSpecs(cfg))

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Config is valid!\n")
	fmt.Fprintf(out, "  Port:           %d\n", cfg.Port)
	fmt.Fprintf(out, "  Check interval: %s\n", cfg.CheckInterval.Duration())
	fmt.Fprintf(out, "  Extensions:     %d updatable + %d not updatable = %d total\n",
		updatable, total-updatable, total)
	fmt.Fprintf(out, "  Installers:     %d\n", installable)

	return nil
}
