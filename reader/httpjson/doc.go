// Package httpjson implements a DeviceReader backed by an HTTP service
// that exposes sensor readings as JSON.
//
// The reader issues GET requests to <base_url>/devices/<address> and
// expects a flat JSON object mapping parameter names to numeric values:
//
//	{"temperature": 21.5, "moisture": 40, "battery": 87}
//
// Readings are cached per device between reads and the cache is dropped
// when the polling layer clears it at the start of each cycle, so every
// cycle observes fresh data while retries within a cycle reuse a
// successful fetch.
package httpjson
