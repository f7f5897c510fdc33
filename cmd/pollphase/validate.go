package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/y1hao/pollphase/config"
)

// validateCmd validates a scenario file without running it.
var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate a scenario file",
	Long: `Validate a scenario file without running it.

This command parses the YAML, expands environment variables, and validates
all fields.

Exit codes:
  0 - Scenario is valid
  1 - Scenario is invalid (error details printed to stderr)

Example:
  pollphase validate -c scenario.yaml`,
	Args: cobra.NoArgs,
	RunE: runValidate,
}

func init() {
	rootCmd.AddCommand(validateCmd)
}

func runValidate(cmd *cobra.Command, args []string) error {
	configFile, _ := cmd.Flags().GetString("config")
	if configFile == "" {
		return fmt.Errorf("required flag \"config\" not set")
	}
	cfg, err := config.Load(configFile)
	if err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	added := 0
	for _, a := range cfg.Additions {
		added += len(a.Items)
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Config is valid!\n")
	fmt.Fprintf(out, "  Poll interval: %s\n", cfg.PollInterval.Duration())
	fmt.Fprintf(out, "  Grace period:  %s\n", cfg.GracePeriod.Duration())
	fmt.Fprintf(out, "  Items:         %d initial + %d added in %d steps\n",
		len(cfg.Items), added, len(cfg.Additions))
	fmt.Fprintf(out, "  Sink:          %s\n", cfg.Sink.Type)

	return nil
}
