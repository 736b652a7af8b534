package config

import (
	"fmt"

	"github.com/jpalmerr/sensorbridge"
)

// BuildDevices converts parsed device configuration into SDK Device objects.
func BuildDevices(cfg *Config) ([]sensorbridge.Device, error) {
	devices := make([]sensorbridge.Device, 0, len(cfg.Devices))

	for _, dc := range cfg.Devices {
		dev, err := buildDevice(dc)
		if err != nil {
			return nil, err
		}
		devices = append(devices, dev)
	}

	return devices, nil
}

// buildDevice converts a single DeviceConfig to an SDK Device.
func buildDevice(dc DeviceConfig) (sensorbridge.Device, error) {
	var opts []sensorbridge.DeviceOption

	if dc.Timeout != 0 {
		opts = append(opts, sensorbridge.WithDeviceTimeout(dc.Timeout.Duration()))
	}

	if dc.Retries != nil {
		opts = append(opts, sensorbridge.WithDeviceRetries(*dc.Retries))
	}

	profile, ok := sensorbridge.ProfileByName(dc.Profile)
	if !ok {
		// validation should catch this, but fail loudly rather than default
		return sensorbridge.Device{}, fmt.Errorf("device %q: unknown profile %q", dc.Name, dc.Profile)
	}
	opts = append(opts, sensorbridge.WithProfile(profile))

	return sensorbridge.NewDevice(dc.Name, dc.Address, opts...)
}

// BuildOptions converts parsed configuration into SDK bridge options.
//
// The reader, publisher, and logger are runtime constructs the caller
// wires separately; BuildOptions covers everything declared in YAML.
func BuildOptions(cfg *Config) ([]sensorbridge.Option, error) {
	devices, err := BuildDevices(cfg)
	if err != nil {
		return nil, err
	}

	opts := []sensorbridge.Option{
		sensorbridge.WithDevices(devices...),
		sensorbridge.WithPollInterval(cfg.PollInterval.Duration()),
		sensorbridge.WithDefaultDeviceTimeout(cfg.DeviceTimeout.Duration()),
		sensorbridge.WithOfflineThreshold(cfg.OfflineThreshold),
		sensorbridge.WithMaxConcurrency(cfg.MaxConcurrency),
		sensorbridge.WithTopicPrefix(cfg.MQTT.TopicPrefix),
	}

	if cfg.Retries != nil {
		opts = append(opts, sensorbridge.WithRetries(*cfg.Retries))
	}

	if cfg.LowBatteryThreshold != nil {
		opts = append(opts, sensorbridge.WithLowBatteryThreshold(*cfg.LowBatteryThreshold))
	}

	if cfg.Discovery.Enabled {
		opts = append(opts, sensorbridge.WithDiscovery(cfg.Discovery.Prefix))
	}

	if cfg.ServerEnabled() {
		opts = append(opts, sensorbridge.WithPort(cfg.Server.Port))
	} else {
		opts = append(opts, sensorbridge.WithPort(0))
	}

	return opts, nil
}
