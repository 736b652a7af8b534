// Package poll implements the per-device polling state machine for
// SensorBridge.
//
// This package is internal to SensorBridge and performs one poll cycle at a
// time over a configured device set: each device read is wrapped in a
// bounded immediate-retry policy and a per-device wall-clock deadline, and
// the result is folded into a per-device availability tracker.
//
// The main components are:
//
//   - [WithRetry]: Bounded immediate retries on a caller-specified failure class
//   - [WithDeadline]: Per-call deadline producing a distinguished timeout [Outcome]
//   - [Tracker]: Per-device failure-streak and availability state machine
//   - [Scheduler]: One pass over the device set per invocation, emitting
//     telemetry and availability [Event] values in order
//
// Users of the sensorbridge library should not need to interact with this
// package directly. Configuration is done through the main sensorbridge
// package.
package poll
