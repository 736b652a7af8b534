package poll

import (
	"context"
	"time"
)

// Readings is a mapping of parameter name to sampled value.
//
// This is the poll-internal version of the public Readings type, avoiding
// a dependency on the root package.
type Readings map[string]float64

// DeviceInfo contains the configuration needed to poll a single device.
//
// This is the poll-internal representation of a device, decoupled from the
// main sensorbridge.Device type to avoid circular dependencies.
type DeviceInfo struct {
	// Name is the display name of the device.
	Name string

	// Address is the device's unique transport address.
	Address string

	// Timeout is the per-poll deadline. If 0, the scheduler's default
	// timeout is used.
	Timeout time.Duration

	// Retries is the transport-fault retry count. If negative, the
	// scheduler's default retry count is used.
	Retries int
}

// Reader reads current parameter values for a device.
//
// This is the poll-internal mirror of the public DeviceReader port.
type Reader interface {
	Read(ctx context.Context, dev DeviceInfo) (Readings, error)
}

// CacheClearer is implemented by readers that cache the last sample per
// device. The scheduler clears the cache before each poll so every cycle
// takes a fresh sample.
type CacheClearer interface {
	ClearCache(dev DeviceInfo)
}

// OutcomeKind tags the result of one guarded, retried device read.
type OutcomeKind int

const (
	// OutcomeSuccess means the read returned readings.
	OutcomeSuccess OutcomeKind = iota

	// OutcomeReadFailure means the read failed after the retry budget was
	// spent (or with a non-retryable error). Err holds the last failure.
	OutcomeReadFailure

	// OutcomeTimeout means the per-device deadline elapsed before the
	// read completed. The in-flight read was abandoned.
	OutcomeTimeout
)

// String returns a short label for logging.
func (k OutcomeKind) String() string {
	switch k {
	case OutcomeSuccess:
		return "success"
	case OutcomeReadFailure:
		return "read_failure"
	case OutcomeTimeout:
		return "timeout"
	default:
		return "unknown"
	}
}

// Outcome is the result contract between the deadline guard and the
// scheduler: a tagged success, read failure, or timeout.
type Outcome struct {
	// Kind tags the variant.
	Kind OutcomeKind

	// Readings holds the sampled values. Non-nil only for [OutcomeSuccess].
	Readings Readings

	// Err holds the failure detail. Nil for [OutcomeSuccess].
	Err error
}
