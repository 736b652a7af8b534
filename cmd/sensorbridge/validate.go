package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/jpalmerr/sensorbridge/config"
)

// validateCmd validates a config file without starting the bridge.
var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate a config file",
	Long: `Validate a sensorbridge configuration file without starting the bridge.

This command parses the YAML, expands environment variables, and validates
all fields. It's useful for CI/CD pipelines or pre-deployment checks.

Exit codes:
  0 - Config is valid
  1 - Config is invalid (error details printed to stderr)

Example:
  sensorbridge validate -c config.yaml
  sensorbridge validate --config /etc/sensorbridge/config.yaml`,
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

	byProfile := make(map[string]int)
	for _, d := range cfg.Devices {
		profile := d.Profile
		if profile == "" {
			profile = "miflora"
		}
		byProfile[profile]++
	}

	fmt.Printf("Config is valid!\n")
	fmt.Printf("  Broker:            %s\n", cfg.MQTT.Broker)
	fmt.Printf("  Topic prefix:      %s\n", cfg.MQTT.TopicPrefix)
	fmt.Printf("  Poll interval:     %s\n", cfg.PollInterval.Duration())
	fmt.Printf("  Offline threshold: %d\n", cfg.OfflineThreshold)
	fmt.Printf("  Devices:           %d (miflora: %d, thermometer: %d)\n",
		len(cfg.Devices), byProfile["miflora"], byProfile["thermometer"])

	return nil
}
