// Package config provides YAML configuration parsing for sensorbridge.
//
// This package enables running sensorbridge as a standalone binary with a
// configuration file, as an alternative to the programmatic SDK approach.
//
// Example configuration:
//
//	mqtt:
//	  broker: tcp://localhost:1883
//	  topic_prefix: sensorbridge
//
//	poll_interval: 60s
//	offline_threshold: 3
//
//	reader:
//	  base_url: http://localhost:9090
//
//	devices:
//	  - name: balcony_flower
//	    address: C4:7C:8D:6A:1B:2C
//	    profile: miflora
//	  - name: bedroom_thermo
//	    address: 58:2D:34:3B:44:55
//	    profile: thermometer
//	    timeout: 15s
package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"regexp"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// minPollInterval is the minimum allowed polling interval for production
// configs. This keeps battery-powered sensors from being polled to death.
const minPollInterval = 1 * time.Second

// Config is the root configuration structure for sensorbridge.
//
// It maps directly to the YAML configuration file structure.
// Use [Load] or [Parse] to create a Config from YAML.
type Config struct {
	// MQTT configures the broker connection and topic layout.
	MQTT MQTTConfig `yaml:"mqtt"`

	// PollInterval is the time between poll cycles.
	// Accepts duration strings like "60s", "5m". Defaults to 60s.
	PollInterval Duration `yaml:"poll_interval"`

	// DeviceTimeout is the default per-poll deadline for each device.
	// Defaults to 8s. Individual devices may override it.
	DeviceTimeout Duration `yaml:"device_timeout"`

	// OfflineThreshold is the number of consecutive failed polls after
	// which a device is marked offline. Defaults to 3.
	OfflineThreshold int `yaml:"offline_threshold"`

	// Retries is the default number of extra read attempts per poll.
	// Defaults to 2 (three attempts total). Devices may override it.
	Retries *int `yaml:"retries"`

	// MaxConcurrency is the number of devices polled in parallel within a
	// cycle. Defaults to 1 (sequential).
	MaxConcurrency int `yaml:"max_concurrency"`

	// LowBatteryThreshold is the battery percentage at or below which the
	// low-battery indicator switches on. Defaults to 10.
	LowBatteryThreshold *float64 `yaml:"low_battery_threshold"`

	// Server configures the local status API.
	Server ServerConfig `yaml:"server"`

	// Log configures logging output.
	Log LogConfig `yaml:"log"`

	// Discovery configures Home Assistant MQTT discovery.
	Discovery DiscoveryConfig `yaml:"discovery"`

	// Reader configures the HTTP sensor reader.
	Reader ReaderConfig `yaml:"reader"`

	// Devices lists the sensors to poll.
	Devices []DeviceConfig `yaml:"devices"`
}

// MQTTConfig defines the broker connection.
type MQTTConfig struct {
	// Broker is the broker URL, e.g. tcp://localhost:1883.
	// Supports environment variable substitution: ${VAR} or ${VAR:-default}
	Broker string `yaml:"broker"`

	// ClientID is the MQTT client identifier. Defaults to "sensorbridge".
	ClientID string `yaml:"client_id"`

	// Username for broker authentication. Supports env substitution.
	Username string `yaml:"username"`

	// Password for broker authentication. Supports env substitution.
	Password string `yaml:"password"`

	// TopicPrefix is the prefix for all published topics.
	// Defaults to "sensorbridge".
	TopicPrefix string `yaml:"topic_prefix"`

	// QoS is the quality-of-service level for published messages (0-2).
	QoS int `yaml:"qos"`
}

// ServerConfig defines the local status API server.
type ServerConfig struct {
	// Port is the HTTP port. Defaults to 8080. Set enabled: false to
	// turn the server off entirely.
	Port int `yaml:"port"`

	// Enabled controls whether the status API runs. Defaults to true.
	Enabled *bool `yaml:"enabled"`
}

// LogConfig defines logging output.
type LogConfig struct {
	// Level is the minimum log level: trace, debug, info, warn, error.
	// Defaults to info.
	Level string `yaml:"level"`

	// File is an optional path for rotated file output. When empty, logs
	// go to stderr only.
	File string `yaml:"file"`

	// MaxSizeMB is the size in megabytes at which the log file rotates.
	// Defaults to 50.
	MaxSizeMB int `yaml:"max_size_mb"`

	// MaxBackups is the number of rotated files to keep. Defaults to 3.
	MaxBackups int `yaml:"max_backups"`

	// MaxAgeDays is the maximum age of rotated files in days.
	// Defaults to 28.
	MaxAgeDays int `yaml:"max_age_days"`
}

// DiscoveryConfig defines Home Assistant MQTT discovery.
type DiscoveryConfig struct {
	// Enabled turns discovery config publishing on.
	Enabled bool `yaml:"enabled"`

	// Prefix is the discovery topic prefix. Defaults to "homeassistant".
	Prefix string `yaml:"prefix"`
}

// ReaderConfig defines the HTTP sensor reader endpoint.
type ReaderConfig struct {
	// BaseURL is the base URL of the sensor HTTP service.
	// Supports environment variable substitution.
	BaseURL string `yaml:"base_url"`

	// Timeout is the HTTP request timeout. Defaults to the device
	// timeout when unset.
	Timeout Duration `yaml:"timeout"`
}

// DeviceConfig defines a single sensor device.
type DeviceConfig struct {
	// Name is the device display name, also used in topic paths.
	Name string `yaml:"name"`

	// Address is the hardware address of the device, e.g. a BLE MAC.
	Address string `yaml:"address"`

	// Profile selects the parameter set: "miflora" or "thermometer".
	// Defaults to miflora.
	Profile string `yaml:"profile"`

	// Timeout overrides the global device timeout for this device.
	Timeout Duration `yaml:"timeout"`

	// Retries overrides the global retry count for this device.
	Retries *int `yaml:"retries"`
}

// Duration wraps time.Duration for YAML unmarshalling.
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler for Duration.
func (d *Duration) UnmarshalYAML(node *yaml.Node) error {
	var s string
	if err := node.Decode(&s); err != nil {
		return err
	}

	parsed, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", s, err)
	}

	*d = Duration(parsed)
	return nil
}

// Duration returns the underlying time.Duration value.
func (d Duration) Duration() time.Duration {
	return time.Duration(d)
}

// envVarPattern matches ${VAR} and ${VAR:-default} patterns.
// Group 1: variable name
// Group 2: the ":-default" part (if present, indicates a default was specified)
// Group 3: the default value (may be empty for ${VAR:-})
var envVarPattern = regexp.MustCompile(`\$\{([^}:]+)(:-([^}]*))?\}`)

// expandEnvVars replaces ${VAR} and ${VAR:-default} patterns with environment values.
func expandEnvVars(s string) (string, error) {
	var firstErr error

	result := envVarPattern.ReplaceAllStringFunc(s, func(match string) string {
		// already have an error, skip processing
		if firstErr != nil {
			return match
		}

		submatches := envVarPattern.FindStringSubmatch(match)
		if len(submatches) < 2 {
			return match
		}

		varName := submatches[1]
		// submatches[2] is ":-..." (non-empty if default syntax was used)
		// submatches[3] is the actual default value (may be empty for ${VAR:-})
		hasDefault := len(submatches) > 2 && submatches[2] != ""
		defaultVal := ""
		if hasDefault && len(submatches) > 3 {
			defaultVal = submatches[3]
		}

		value, exists := os.LookupEnv(varName)
		if !exists {
			if hasDefault {
				return defaultVal
			}
			firstErr = fmt.Errorf("environment variable %q is not set", varName)
			return match
		}
		return value
	})

	if firstErr != nil {
		return "", firstErr
	}
	return result, nil
}

// Load reads and parses a YAML configuration file.
//
// Environment variables in the file are expanded before parsing.
// Returns an error if the file cannot be read or parsed.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	return Parse(data)
}

// Parse parses YAML configuration data.
//
// Environment variables are expanded in broker, credentials, and reader
// URL values. Defaults are applied for the poll interval, thresholds,
// topic prefix, and server port.
func Parse(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	cfg.applyDefaults()

	if err := cfg.expandAndValidate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// applyDefaults fills in zero values before validation.
func (c *Config) applyDefaults() {
	if c.PollInterval == 0 {
		c.PollInterval = Duration(60 * time.Second)
	}
	if c.DeviceTimeout == 0 {
		c.DeviceTimeout = Duration(8 * time.Second)
	}
	if c.OfflineThreshold == 0 {
		c.OfflineThreshold = 3
	}
	if c.MaxConcurrency == 0 {
		c.MaxConcurrency = 1
	}
	if c.MQTT.ClientID == "" {
		c.MQTT.ClientID = "sensorbridge"
	}
	if c.MQTT.TopicPrefix == "" {
		c.MQTT.TopicPrefix = "sensorbridge"
	}
	if c.Server.Port == 0 {
		c.Server.Port = 8080
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Log.MaxSizeMB == 0 {
		c.Log.MaxSizeMB = 50
	}
	if c.Log.MaxBackups == 0 {
		c.Log.MaxBackups = 3
	}
	if c.Log.MaxAgeDays == 0 {
		c.Log.MaxAgeDays = 28
	}
	if c.Discovery.Prefix == "" {
		c.Discovery.Prefix = "homeassistant"
	}
}

// ServerEnabled reports whether the status API should run.
func (c *Config) ServerEnabled() bool {
	if c.Server.Enabled == nil {
		return true
	}
	return *c.Server.Enabled
}

// expandAndValidate expands environment variables and validates the config.
func (c *Config) expandAndValidate() error {
	if c.PollInterval.Duration() < minPollInterval {
		return fmt.Errorf("poll_interval must be at least %s, got %s", minPollInterval, c.PollInterval.Duration())
	}
	if c.DeviceTimeout.Duration() <= 0 {
		return fmt.Errorf("device_timeout must be positive, got %s", c.DeviceTimeout.Duration())
	}
	if c.OfflineThreshold < 1 {
		return fmt.Errorf("offline_threshold must be at least 1, got %d", c.OfflineThreshold)
	}
	if c.Retries != nil && *c.Retries < 0 {
		return fmt.Errorf("retries cannot be negative, got %d", *c.Retries)
	}
	if c.MaxConcurrency < 1 {
		return fmt.Errorf("max_concurrency must be at least 1, got %d", c.MaxConcurrency)
	}
	if c.LowBatteryThreshold != nil && (*c.LowBatteryThreshold < 0 || *c.LowBatteryThreshold > 100) {
		return fmt.Errorf("low_battery_threshold must be between 0 and 100, got %v", *c.LowBatteryThreshold)
	}
	if c.MQTT.QoS < 0 || c.MQTT.QoS > 2 {
		return fmt.Errorf("mqtt: qos must be 0, 1, or 2, got %d", c.MQTT.QoS)
	}
	if strings.HasSuffix(c.MQTT.TopicPrefix, "/") {
		return fmt.Errorf("mqtt: topic_prefix must not end with '/', got %q", c.MQTT.TopicPrefix)
	}

	if c.MQTT.Broker != "" {
		expanded, err := expandEnvVars(c.MQTT.Broker)
		if err != nil {
			return fmt.Errorf("mqtt: broker: %w", err)
		}
		c.MQTT.Broker = expanded

		parsedURL, err := url.Parse(c.MQTT.Broker)
		if err != nil {
			return fmt.Errorf("mqtt: invalid broker url: %w", err)
		}
		switch parsedURL.Scheme {
		case "tcp", "ssl", "ws", "wss":
		default:
			return fmt.Errorf("mqtt: broker scheme must be tcp, ssl, ws, or wss, got %q", parsedURL.Scheme)
		}
	}

	for _, field := range []struct {
		name  string
		value *string
	}{
		{"username", &c.MQTT.Username},
		{"password", &c.MQTT.Password},
	} {
		expanded, err := expandEnvVars(*field.value)
		if err != nil {
			return fmt.Errorf("mqtt: %s: %w", field.name, err)
		}
		*field.value = expanded
	}

	if c.Reader.BaseURL == "" {
		return errors.New("reader: base_url is required")
	}
	expanded, err := expandEnvVars(c.Reader.BaseURL)
	if err != nil {
		return fmt.Errorf("reader: base_url: %w", err)
	}
	c.Reader.BaseURL = expanded

	parsedURL, err := url.Parse(c.Reader.BaseURL)
	if err != nil {
		return fmt.Errorf("reader: invalid base_url: %w", err)
	}
	if parsedURL.Scheme != "http" && parsedURL.Scheme != "https" {
		return fmt.Errorf("reader: base_url scheme must be http or https, got %q", parsedURL.Scheme)
	}

	if len(c.Devices) == 0 {
		return errors.New("at least one device must be defined")
	}

	seen := make(map[string]struct{}, len(c.Devices))
	for i := range c.Devices {
		dev := &c.Devices[i]

		if dev.Name == "" {
			return fmt.Errorf("devices[%d]: name is required", i)
		}
		if _, dup := seen[dev.Name]; dup {
			return fmt.Errorf("devices[%d]: duplicate device name %q", i, dev.Name)
		}
		seen[dev.Name] = struct{}{}

		if dev.Address == "" {
			return fmt.Errorf("devices[%d] (%s): address is required", i, dev.Name)
		}

		if dev.Profile != "" && dev.Profile != "miflora" && dev.Profile != "thermometer" {
			return fmt.Errorf("devices[%d] (%s): profile must be miflora or thermometer, got %q",
				i, dev.Name, dev.Profile)
		}

		if dev.Timeout != 0 && dev.Timeout.Duration() <= 0 {
			return fmt.Errorf("devices[%d] (%s): timeout must be positive, got %s",
				i, dev.Name, dev.Timeout.Duration())
		}

		if dev.Retries != nil && *dev.Retries < 0 {
			return fmt.Errorf("devices[%d] (%s): retries cannot be negative, got %d",
				i, dev.Name, *dev.Retries)
		}
	}

	switch c.Log.Level {
	case "trace", "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("log: level must be trace, debug, info, warn, or error, got %q", c.Log.Level)
	}

	return nil
}
