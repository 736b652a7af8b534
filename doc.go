// Package sensorbridge provides a lightweight, embeddable gateway for
// polling fleets of low-power sensor devices and publishing their readings
// as normalized telemetry.
//
// SensorBridge is designed as an SDK-first library, allowing developers to
// programmatically configure and run a polling gateway as part of their
// applications. It follows functional programming principles with immutable
// types, explicit ports for external capabilities, and composable
// configuration via the functional options pattern.
//
// # Quick Start
//
// Create devices, wire a reader and a publisher, and start the bridge with
// graceful shutdown:
//
//	dev, _ := sensorbridge.NewDevice("garden", "C4:7C:8D:65:E6:20")
//	br, _ := sensorbridge.New(
//	    sensorbridge.WithDevice(dev),
//	    sensorbridge.WithReader(reader),
//	    sensorbridge.WithPublisher(publisher),
//	)
//
//	// Set up graceful shutdown on SIGINT/SIGTERM
//	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
//	defer stop()
//
//	br.Start(ctx) // blocks until context is cancelled
//
// # Configuration
//
// SensorBridge uses the functional options pattern for configuration:
//
//	br, err := sensorbridge.New(
//	    sensorbridge.WithDevices(dev1, dev2),
//	    sensorbridge.WithReader(reader),
//	    sensorbridge.WithPollInterval(60 * time.Second),
//	    sensorbridge.WithOfflineThreshold(3),
//	    sensorbridge.WithRetries(2),
//	)
//
// Devices can also be configured with options:
//
//	dev, err := sensorbridge.NewDevice("garden", "C4:7C:8D:65:E6:20",
//	    sensorbridge.WithDeviceTimeout(10 * time.Second),
//	    sensorbridge.WithDeviceRetries(1),
//	    sensorbridge.WithProfile(sensorbridge.ProfileMiFlora),
//	)
//
// # Polling Model
//
// Each poll cycle makes exactly one pass over the configured device set.
// Every device read is wrapped in a bounded immediate-retry policy for
// transport-level faults and a per-device wall-clock deadline. Consecutive
// failures accumulate into a failure streak; when the streak reaches the
// offline threshold the device is declared offline, and a single success
// brings it back online. Availability transitions are emitted at most once
// per transition, immediately adjacent to the telemetry record (if any)
// produced by the same poll attempt.
//
// # Architecture
//
// SensorBridge consists of several internal packages (under internal/):
//
//   - internal/poll: The poll cycle scheduler, retry policy, deadline
//     guard, and availability tracker
//   - internal/store: In-memory device status storage with pub/sub
//   - internal/server: HTTP status API with Server-Sent Events and
//     Prometheus metrics
//   - internal/mqtt: MQTT publishing, topic layout, and Home Assistant
//     discovery payloads
//
// The internal packages are not part of the public API and may change
// without notice. A bundled reader/httpjson adapter implements the
// [DeviceReader] port for sensors reachable through an HTTP/JSON bridge;
// other transports plug in by implementing [DeviceReader].
package sensorbridge
