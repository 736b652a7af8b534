package sensorbridge

import (
	"testing"

	"github.com/pkg/errors"
)

func TestTransportError(t *testing.T) {
	underlying := errors.New("connection refused")
	err := NewTransportError("connect", underlying)

	if !IsTransportError(err) {
		t.Error("IsTransportError() = false for a fresh TransportError")
	}
	if !errors.Is(err, underlying) {
		t.Error("TransportError must unwrap to the underlying fault")
	}
	if err.Error() != "transport: connect: connection refused" {
		t.Errorf("Error() = %q", err.Error())
	}
}

func TestTransportError_Wrapped(t *testing.T) {
	err := errors.Wrap(NewTransportError("read", errors.New("EOF")), "polling garden")

	if !IsTransportError(err) {
		t.Error("IsTransportError() must see through wrapping")
	}
}

func TestIsTransportError_OtherErrors(t *testing.T) {
	if IsTransportError(errors.New("malformed payload")) {
		t.Error("plain errors must not classify as transport faults")
	}
	if IsTransportError(nil) {
		t.Error("nil must not classify as a transport fault")
	}
}

func TestIsDeviceTimeout(t *testing.T) {
	if !IsDeviceTimeout(ErrDeviceTimeout) {
		t.Error("IsDeviceTimeout(ErrDeviceTimeout) = false")
	}
	if !IsDeviceTimeout(errors.Wrap(ErrDeviceTimeout, "polling garden")) {
		t.Error("IsDeviceTimeout() must see through wrapping")
	}
	if IsDeviceTimeout(errors.New("something else")) {
		t.Error("unrelated errors must not classify as timeouts")
	}
}
