package sensorbridge

import (
	"strings"
	"time"

	"github.com/pkg/errors"
)

// deviceRetriesUnset marks a device that inherits the bridge-wide retry
// count. 0 is a valid per-device value (no retries), so the unset state
// needs its own marker.
const deviceRetriesUnset = -1

// Device represents a single sensor device to poll.
//
// Device is immutable after creation via [NewDevice]. All fields are
// private with getter methods, ensuring the device cannot be modified
// after construction. Mutable polling state (failure streak, availability)
// is owned by the poll scheduler, not by the Device itself.
//
// Devices are configured using the functional options pattern with
// [DeviceOption] functions such as [WithDeviceTimeout],
// [WithDeviceRetries], and [WithProfile].
type Device struct {
	name    string
	address string
	timeout time.Duration
	retries int
	profile Profile
}

// Name returns the device's display name.
// The name keys the device's telemetry topic and identifies it in logs.
func (d Device) Name() string {
	return d.name
}

// Address returns the device's unique transport address, e.g. a MAC.
func (d Device) Address() string {
	return d.address
}

// Timeout returns the device's per-poll wall-clock deadline, or 0 if the
// device inherits the bridge-wide default configured via
// [WithDefaultDeviceTimeout].
func (d Device) Timeout() time.Duration {
	return d.timeout
}

// Retries returns the device's transport-fault retry count, or -1 if the
// device inherits the bridge-wide default configured via [WithRetries].
func (d Device) Retries() int {
	return d.retries
}

// Profile returns the device's sensor profile.
// Defaults to [ProfileMiFlora] if not explicitly set via [WithProfile].
func (d Device) Profile() Profile {
	return d.profile
}

// NewDevice creates a [Device] with the given name, address, and options.
//
// The name parameter is a human-readable identifier used in topics and
// logs; it must not be empty or contain '/' or '+' (reserved topic
// characters). The address parameter is the device's unique transport
// address and must not be empty.
//
// Options are applied in order using the functional options pattern.
// See [WithDeviceTimeout], [WithDeviceRetries], and [WithProfile].
//
// Example:
//
//	dev, err := sensorbridge.NewDevice("garden", "C4:7C:8D:65:E6:20",
//	    sensorbridge.WithDeviceTimeout(10 * time.Second),
//	    sensorbridge.WithProfile(sensorbridge.ProfileMiFlora),
//	)
func NewDevice(name, address string, opts ...DeviceOption) (Device, error) {
	if name == "" {
		return Device{}, errors.New("device name cannot be empty")
	}
	if strings.ContainsAny(name, "/+#") {
		return Device{}, errors.Errorf("device name %q contains reserved topic characters", name)
	}
	if address == "" {
		return Device{}, errors.New("device address cannot be empty")
	}

	cfg := &deviceConfig{
		retries: deviceRetriesUnset,
		profile: ProfileMiFlora,
	}

	for _, opt := range opts {
		if err := opt(cfg); err != nil {
			return Device{}, err
		}
	}

	return Device{
		name:    name,
		address: address,
		timeout: cfg.timeout,
		retries: cfg.retries,
		profile: cfg.profile,
	}, nil
}
