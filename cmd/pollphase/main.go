// Package main is the entry point for the pollphase CLI.
//
// It replays a polling scenario against one of the two poller designs:
//
//	pollphase v1                 # LockedPoller, built-in demo scenario
//	pollphase v2 -c scenario.yaml
//	pollphase v2 --listen :9090  # also serve /api/ticks, /api/sse, /metrics
//	pollphase validate -c scenario.yaml
//
// Any other argument prints usage.
package main

import (
	"os"

	"github.com/spf13/cobra"
)

// Version information, set at build time via ldflags.
// Example: go build -ldflags "-X main.version=1.0.0"
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

var rootCmd = &cobra.Command{
	Use:   "pollphase",
	Short: "Demonstrate the locked and phased poller designs",
	Long: `pollphase runs a scenario against one of two background poller designs.

  v1  LockedPoller: shared item set and "more expected" flag behind mutexes
  v2  PhasedPoller: immutable phases, transitions cancel and replace the loop

The default scenario polls 1, 2, 3 every second, adds 4 after 3s, adds 5
after another 3s, then stops accepting items and completes once the 5s grace
period has elapsed.

Example scenario file:
  poll_interval: 1s
  grace_period: 5s
  items: ["1", "2", "3"]
  additions:
    - after: 3s
      items: ["4"]
  sink:
    type: console`,
	Version:       version + " (commit " + commit + ", built " + date + ")",
	Args:          cobra.ArbitraryArgs,
	SilenceUsage:  true,
	SilenceErrors: false,
	// unknown or missing design: print usage, exit 0
	RunE: func(cmd *cobra.Command, args []string) error {
		return cmd.Help()
	},
}

func init() {
	rootCmd.PersistentFlags().StringP("config", "c", "", "path to scenario file (defaults to the built-in demo)")
	rootCmd.PersistentFlags().String("listen", "", "HTTP address for /api/ticks, /api/sse and /metrics (overrides the scenario file)")
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		// cobra has already printed the error
		os.Exit(1)
	}
}

func main() {
	Execute()
}
