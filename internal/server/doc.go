// Package server provides the HTTP status API for the SensorBridge
// gateway.
//
// This package is internal to SensorBridge and handles all HTTP concerns:
//
//   - REST API: JSON endpoint at "/api/devices" for the current device
//     status snapshot
//   - Server-Sent Events: Real-time status updates at "/api/events"
//   - Liveness: "/healthz" probe endpoint
//   - Metrics: Prometheus exposition at "/metrics"
//
// The server supports graceful shutdown via context cancellation, with a
// 5-second timeout for in-flight requests.
//
// Users of the sensorbridge library should not need to interact with this
// package directly. The server is started automatically by
// [sensorbridge.Bridge.Start] when a port is configured.
package server
