package sensorbridge

import "context"

// DeviceReader is the capability boundary for reading current values from
// a device. Implementations own the concrete transport (BLE, HTTP bridge,
// serial, ...); the polling layer only sees readings or an error.
//
// Read must be safely callable repeatedly and must tolerate abandoned
// calls: when a poll deadline elapses, the in-flight Read is abandoned
// from the caller's perspective and may keep running until its context is
// cancelled. Implementations must not corrupt shared state in that case.
//
// Transport and protocol faults should be wrapped with [NewTransportError]
// so the retry policy can classify them; any other error is treated as a
// non-retryable failed poll.
type DeviceReader interface {
	// Read returns the device's current parameter values, or fails.
	Read(ctx context.Context, dev Device) (Readings, error)
}

// CacheClearer is an optional interface a [DeviceReader] may implement.
//
// Readers that cache the last sample per device get their cache cleared
// before each poll so every cycle forces a fresh read rather than a stale
// cached value.
type CacheClearer interface {
	ClearCache(dev Device)
}

// ReadFunc adapts a function to the [DeviceReader] interface.
type ReadFunc func(ctx context.Context, dev Device) (Readings, error)

// Read calls f.
func (f ReadFunc) Read(ctx context.Context, dev Device) (Readings, error) {
	return f(ctx, dev)
}

// Publisher is the outbound message sink. Delivery and persistence are the
// sink's concern; the bridge only hands it fully formed topic/payload
// pairs. The bundled MQTT adapter implements this interface, and tests
// substitute in-memory fakes.
type Publisher interface {
	// Publish sends one message. Retained messages survive sink restarts
	// where the sink supports that (availability state is retained).
	Publish(ctx context.Context, topic string, payload []byte, retain bool) error
}
