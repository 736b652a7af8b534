package sensorbridge

import (
	"fmt"

	"github.com/pkg/errors"

	"github.com/jpalmerr/sensorbridge/internal/poll"
)

// ErrDeviceTimeout is returned when a device's per-poll deadline elapses
// before the read completes. Timeouts are never retried: the deadline wraps
// the already-retried read, so an overrun means the retry budget was spent
// inside the window.
var ErrDeviceTimeout = poll.ErrTimeout

// TransportError reports a communication or protocol fault from a
// [DeviceReader]. It is the only failure class the retry policy retries.
//
// Reader implementations should wrap transport-level faults with
// [NewTransportError] (or return a TransportError directly) so the polling
// layer can classify them. Any other error is treated as a non-retryable
// failed poll.
type TransportError struct {
	// Op names the operation that failed, e.g. "connect" or "read".
	Op string

	// Err is the underlying fault.
	Err error
}

// Error implements the error interface.
func (e *TransportError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("transport: %s failed", e.Op)
	}
	return fmt.Sprintf("transport: %s: %v", e.Op, e.Err)
}

// Unwrap returns the underlying fault for use with errors.Is/As.
func (e *TransportError) Unwrap() error { return e.Err }

// NewTransportError wraps err as a retryable transport fault.
func NewTransportError(op string, err error) error {
	return &TransportError{Op: op, Err: err}
}

// IsTransportError reports whether err is (or wraps) a [TransportError].
func IsTransportError(err error) bool {
	var te *TransportError
	return errors.As(err, &te)
}

// IsDeviceTimeout reports whether err is (or wraps) [ErrDeviceTimeout].
func IsDeviceTimeout(err error) bool {
	return errors.Is(err, ErrDeviceTimeout)
}
