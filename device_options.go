package sensorbridge

import (
	"time"

	"github.com/pkg/errors"
)

// deviceConfig holds mutable state during device construction.
type deviceConfig struct {
	timeout time.Duration
	retries int
	profile Profile
}

// DeviceOption is a function that configures a [Device] during construction.
//
// DeviceOption implements the functional options pattern, allowing optional
// configuration to be passed to [NewDevice] in a type-safe, extensible way.
// Options return an error if validation fails.
//
// Built-in options: [WithDeviceTimeout], [WithDeviceRetries], [WithProfile].
type DeviceOption func(*deviceConfig) error

// WithDeviceTimeout sets the per-poll wall-clock deadline for this device.
//
// If a read does not complete within this duration, the in-flight attempt
// is abandoned and the poll is recorded as a timeout failure. Timeouts are
// never retried: the deadline wraps the whole retried read.
// Devices without their own timeout inherit the bridge-wide default
// configured via [WithDefaultDeviceTimeout] (8 seconds unless overridden).
//
// Example:
//
//	dev, err := sensorbridge.NewDevice("cellar", addr,
//	    sensorbridge.WithDeviceTimeout(15 * time.Second),
//	)
//
// Returns an error if the duration is zero or negative.
func WithDeviceTimeout(d time.Duration) DeviceOption {
	return func(cfg *deviceConfig) error {
		if d <= 0 {
			return errors.New("device timeout must be positive")
		}
		cfg.timeout = d
		return nil
	}
}

// WithDeviceRetries sets the transport-fault retry count for this device,
// overriding the bridge-wide default configured via [WithRetries].
//
// A read is attempted up to retries+1 times in total. Only transport
// faults (see [TransportError]) are retried, immediately and without
// backoff; any other failure propagates at once.
//
// Example:
//
//	dev, err := sensorbridge.NewDevice("garden", addr,
//	    sensorbridge.WithDeviceRetries(1),
//	)
//
// Returns an error if the count is negative.
func WithDeviceRetries(n int) DeviceOption {
	return func(cfg *deviceConfig) error {
		if n < 0 {
			return errors.New("device retries cannot be negative")
		}
		cfg.retries = n
		return nil
	}
}

// WithProfile sets the sensor [Profile] for this device.
//
// The profile names the parameters the device reports and drives the
// generated discovery metadata (units, device classes, low-battery
// indicator). Defaults to [ProfileMiFlora] if not specified.
//
// Example:
//
//	dev, err := sensorbridge.NewDevice("bedroom", addr,
//	    sensorbridge.WithProfile(sensorbridge.ProfileThermometer),
//	)
//
// Returns an error if the profile has no parameters.
func WithProfile(p Profile) DeviceOption {
	return func(cfg *deviceConfig) error {
		if len(p.Parameters) == 0 {
			return errors.New("profile must declare at least one parameter")
		}
		cfg.profile = p
		return nil
	}
}
