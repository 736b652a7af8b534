// Package main is the entry point for the sensorbridge CLI.
//
// sensorbridge can be run either as a library (SDK) or as a standalone
// binary with YAML configuration. This CLI provides the standalone binary
// approach.
//
// Usage:
//
//	sensorbridge serve -c config.yaml    # Start the bridge
//	sensorbridge validate -c config.yaml # Validate configuration
//	sensorbridge version                 # Show version info
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// Version information - set by GoReleaser at build time via ldflags.
// Example: go build -ldflags "-X main.version=1.0.0"
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

// rootCmd is the base command when called without subcommands.
// It just displays help - actual functionality is in subcommands.
var rootCmd = &cobra.Command{
	Use:   "sensorbridge",
	Short: "An MQTT gateway for low-power sensor fleets",
	Long: `sensorbridge polls a fleet of sensors on a fixed cycle and publishes
their readings and availability to an MQTT broker.

Each device is read with a per-poll deadline and a bounded retry budget.
Consecutive failures are tracked per device; once a device crosses the
offline threshold a retained offline message is published, and the first
successful read brings it back online.

Quick start:
  1. Create a config file (sensorbridge.yaml)
  2. Run: sensorbridge serve -c sensorbridge.yaml
  3. Watch topics under the configured prefix on your broker

Example config:
  mqtt:
    broker: tcp://localhost:1883
  poll_interval: 60s
  reader:
    base_url: http://localhost:9090
  devices:
    - name: balcony_flower
      address: C4:7C:8D:6A:1B:2C
      profile: miflora`,
	// No Run/RunE means this just shows help when called without subcommands
}

// Execute runs the root command.
// This is the main entry point called from main().
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
	Long:  `Print the version, commit hash, and build date of this sensorbridge binary.`,
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("sensorbridge %s\n", version)
		fmt.Printf("  commit: %s\n", commit)
		fmt.Printf("  built:  %s\n", date)
	},
}

func init() {
	// Register subcommands with root
	rootCmd.AddCommand(versionCmd)
}
