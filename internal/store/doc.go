// Package store provides storage and pub/sub functionality for device
// statuses.
//
// This package is internal to SensorBridge and manages the in-memory
// storage of per-device polling state snapshots. It implements a
// publish-subscribe pattern for real-time updates to connected status API
// clients.
//
// The main components are:
//
//   - [Store]: Interface defining storage and subscription operations
//   - [MemoryStore]: In-memory implementation of Store with pub/sub
//   - [DeviceStatus]: Storage representation of a device's polling state
//
// The store is designed for concurrent access with proper synchronization.
// Subscribers receive updates via channels with non-blocking sends (slow
// subscribers will miss updates rather than block the gateway).
//
// Users of the sensorbridge library should not need to interact with this
// package directly. Storage is managed internally by the bridge.
package store
