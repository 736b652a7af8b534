package sensorbridge

import (
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"
)

// bridgeConfig holds mutable state during Bridge construction.
type bridgeConfig struct {
	devices             []Device
	reader              DeviceReader
	publisher           Publisher
	pollInterval        time.Duration
	deviceTimeout       time.Duration
	offlineThreshold    int
	retries             int
	maxConcurrency      int
	topicPrefix         string
	discoveryPrefix     string
	lowBatteryThreshold float64
	port                int
	logger              *zerolog.Logger
	eventCallbacks      []func(Event)
}

// Option is a function that configures a [Bridge] instance during
// construction.
//
// Option implements the functional options pattern, allowing optional
// configuration to be passed to [New] in a type-safe, extensible way.
// Options return an error if validation fails.
type Option func(*bridgeConfig) error

// WithDevice adds a single [Device] to the polling set.
//
// Can be called multiple times to add multiple devices. At least one
// device must be configured for [New] to succeed.
//
// Example:
//
//	br, err := sensorbridge.New(
//	    sensorbridge.WithDevice(dev1),
//	    sensorbridge.WithDevice(dev2),
//	    sensorbridge.WithReader(reader),
//	)
func WithDevice(d Device) Option {
	return func(cfg *bridgeConfig) error {
		cfg.devices = append(cfg.devices, d)
		return nil
	}
}

// WithDevices adds multiple [Device] values to the polling set.
//
// This is a convenience function for adding several devices at once.
// Equivalent to calling [WithDevice] multiple times.
func WithDevices(devices ...Device) Option {
	return func(cfg *bridgeConfig) error {
		cfg.devices = append(cfg.devices, devices...)
		return nil
	}
}

// WithReader sets the [DeviceReader] the bridge polls devices through.
// A reader is required for [New] to succeed.
func WithReader(r DeviceReader) Option {
	return func(cfg *bridgeConfig) error {
		if r == nil {
			return errors.New("reader cannot be nil")
		}
		cfg.reader = r
		return nil
	}
}

// WithPublisher sets the outbound [Publisher] sink.
//
// When no publisher is configured the bridge still polls, tracks
// availability, serves the status API, and invokes callbacks; it just
// publishes nothing. Useful for embedding the poller without a broker.
func WithPublisher(p Publisher) Option {
	return func(cfg *bridgeConfig) error {
		cfg.publisher = p
		return nil
	}
}

// WithPollInterval sets how often a new poll cycle starts.
//
// A cycle makes one pass over the whole device set. Defaults to 60
// seconds if not specified.
//
// Returns an error if the duration is zero or negative.
func WithPollInterval(d time.Duration) Option {
	return func(cfg *bridgeConfig) error {
		if d <= 0 {
			return errors.New("poll interval must be positive")
		}
		cfg.pollInterval = d
		return nil
	}
}

// WithDefaultDeviceTimeout sets the default per-device poll deadline for
// devices that do not carry their own via [WithDeviceTimeout]. Defaults to
// 8 seconds.
//
// Returns an error if the duration is zero or negative.
func WithDefaultDeviceTimeout(d time.Duration) Option {
	return func(cfg *bridgeConfig) error {
		if d <= 0 {
			return errors.New("device timeout must be positive")
		}
		cfg.deviceTimeout = d
		return nil
	}
}

// WithOfflineThreshold sets the failure streak at which a device is
// declared offline. Defaults to 3.
//
// Returns an error if the threshold is less than 1.
func WithOfflineThreshold(n int) Option {
	return func(cfg *bridgeConfig) error {
		if n < 1 {
			return errors.New("offline threshold must be at least 1")
		}
		cfg.offlineThreshold = n
		return nil
	}
}

// WithRetries sets the default transport-fault retry count for devices
// that do not carry their own via [WithDeviceRetries]. Each poll attempts
// the read up to retries+1 times. Defaults to 2.
//
// Returns an error if the count is negative.
func WithRetries(n int) Option {
	return func(cfg *bridgeConfig) error {
		if n < 0 {
			return errors.New("retries cannot be negative")
		}
		cfg.retries = n
		return nil
	}
}

// WithMaxConcurrency bounds how many devices are polled concurrently
// within one cycle. Defaults to 1 (sequential, the reference behavior).
// Devices share no state, so polling them in parallel only changes the
// interleaving of events across devices, never the per-device ordering.
//
// Returns an error if the limit is less than 1.
func WithMaxConcurrency(n int) Option {
	return func(cfg *bridgeConfig) error {
		if n < 1 {
			return errors.New("max concurrency must be at least 1")
		}
		cfg.maxConcurrency = n
		return nil
	}
}

// WithTopicPrefix sets the topic prefix all outbound messages are
// published under. Defaults to "sensorbridge".
//
// Returns an error if the prefix is empty or ends with '/'.
func WithTopicPrefix(prefix string) Option {
	return func(cfg *bridgeConfig) error {
		if prefix == "" {
			return errors.New("topic prefix cannot be empty")
		}
		if prefix[len(prefix)-1] == '/' {
			return errors.New("topic prefix must not end with '/'")
		}
		cfg.topicPrefix = prefix
		return nil
	}
}

// WithDiscovery enables publishing of retained discovery config messages
// under the given prefix (conventionally "homeassistant") when the bridge
// starts. Disabled by default.
//
// Returns an error if the prefix is empty.
func WithDiscovery(prefix string) Option {
	return func(cfg *bridgeConfig) error {
		if prefix == "" {
			return errors.New("discovery prefix cannot be empty")
		}
		cfg.discoveryPrefix = prefix
		return nil
	}
}

// WithLowBatteryThreshold sets the battery percentage at or below which
// the derived low-battery indicator reports "ON". Defaults to 10.
//
// Returns an error if the threshold is negative or above 100.
func WithLowBatteryThreshold(pct float64) Option {
	return func(cfg *bridgeConfig) error {
		if pct < 0 || pct > 100 {
			return errors.New("low battery threshold must be between 0 and 100")
		}
		cfg.lowBatteryThreshold = pct
		return nil
	}
}

// WithPort sets the TCP port for the status API server. Defaults to 8080.
// Pass 0 to disable the server entirely.
//
// Returns an error if the port is negative or above 65535.
func WithPort(port int) Option {
	return func(cfg *bridgeConfig) error {
		if port < 0 || port > 65535 {
			return errors.Errorf("port must be between 0 and 65535, got %d", port)
		}
		cfg.port = port
		return nil
	}
}

// WithLogger sets the logger for bridge events. Defaults to a disabled
// logger (no output).
func WithLogger(logger zerolog.Logger) Option {
	return func(cfg *bridgeConfig) error {
		cfg.logger = &logger
		return nil
	}
}

// WithEventCallback registers a callback invoked for every emitted
// [Event] (telemetry records and availability transitions), after the
// status store has been updated and the event published.
//
// Callbacks run on the polling goroutine; a slow callback delays the
// cycle. Panics in callbacks are recovered and logged, never propagated.
//
// Can be called multiple times to register multiple callbacks; they are
// invoked in registration order.
func WithEventCallback(cb func(Event)) Option {
	return func(cfg *bridgeConfig) error {
		if cb == nil {
			return errors.New("event callback cannot be nil")
		}
		cfg.eventCallbacks = append(cfg.eventCallbacks, cb)
		return nil
	}
}
