package store

import "time"

// DeviceStatus represents the current polling state of one device in
// storage.
//
// DeviceStatus is the storage representation of a device's state,
// optimized for JSON serialization (used by the status API and SSE). It is
// decoupled from the poll package's internal types to allow independent
// evolution.
type DeviceStatus struct {
	// Name is the device's display name.
	Name string `json:"name"`

	// Address is the device's transport address.
	Address string `json:"address"`

	// Availability is the last known liveness state
	// ("unknown", "online", or "offline").
	Availability string `json:"availability"`

	// FailureStreak counts consecutive failed polls since the last
	// success.
	FailureStreak int `json:"failure_streak"`

	// Readings holds the most recent successful sample, or nil if the
	// device has never answered.
	Readings map[string]float64 `json:"readings"`

	// CheckedAt is the timestamp of the last completed poll attempt.
	CheckedAt time.Time `json:"checked_at"`

	// Error contains the failure message of the last poll attempt.
	// nil indicates the last poll succeeded.
	Error *string `json:"error"`
}

// Store defines the interface for storing and subscribing to device
// status updates.
//
// Store implementations must be safe for concurrent access. The pub/sub
// mechanism allows real-time updates to be pushed to connected clients
// (e.g. via Server-Sent Events).
type Store interface {
	// Update stores a new device status and notifies all subscribers.
	// The status is keyed by Name, so subsequent updates replace
	// previous values.
	Update(status DeviceStatus)

	// Get returns the stored status for one device by name.
	// The second return value reports whether the device was found.
	Get(name string) (DeviceStatus, bool)

	// GetAll returns all currently stored device statuses.
	// The returned slice is a snapshot; modifications do not affect the
	// store.
	GetAll() []DeviceStatus

	// Subscribe returns a channel that receives status updates.
	// The returned channel has a buffer; slow consumers may miss updates.
	// Caller must call Unsubscribe when done to prevent resource leaks.
	Subscribe() <-chan DeviceStatus

	// Unsubscribe removes a subscription and closes the channel.
	// Safe to call with a channel that was already unsubscribed.
	Unsubscribe(ch <-chan DeviceStatus)
}
