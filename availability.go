package sensorbridge

import "time"

// Availability represents the known liveness state of a device.
//
// Availability is a string type that can hold one of three predefined
// values: [AvailabilityUnknown], [AvailabilityOnline], or
// [AvailabilityOffline]. Using a string type allows for easy JSON
// serialization and human-readable logging while maintaining type safety
// through the defined constants.
//
// Every device starts as [AvailabilityUnknown]. A successful poll moves it
// to [AvailabilityOnline]; once the failure streak reaches the offline
// threshold it moves to [AvailabilityOffline]. Transitions are emitted as
// [AvailabilityEvent] values at most once per actual state change.
type Availability string

const (
	// AvailabilityUnknown indicates the device has not completed a poll yet.
	AvailabilityUnknown Availability = "unknown"

	// AvailabilityOnline indicates the device answered its most recent poll.
	AvailabilityOnline Availability = "online"

	// AvailabilityOffline indicates the device failed at least
	// offline-threshold consecutive polls.
	AvailabilityOffline Availability = "offline"
)

// String returns the string representation of the availability state.
// This implements the fmt.Stringer interface.
func (a Availability) String() string {
	return string(a)
}

// Readings is a mapping of parameter name to numeric value taken from a
// device at one instant, e.g. {"temperature": 21.5, "battery": 87}.
type Readings map[string]float64

// Event is an output of a poll cycle: either a [TelemetryRecord] or an
// [AvailabilityEvent].
//
// Within one device's handling the telemetry record (if any) is emitted
// first, with the availability transition (if any) immediately adjacent.
type Event interface {
	// DeviceName returns the name of the device the event concerns.
	DeviceName() string

	isEvent()
}

// TelemetryRecord holds one device's normalized readings from a single
// successful poll. It is immutable once produced.
type TelemetryRecord struct {
	// Device is the display name of the polled device.
	Device string

	// Readings maps parameter names to their sampled values.
	Readings Readings

	// TakenAt is the timestamp when the sample completed.
	TakenAt time.Time
}

// DeviceName returns the name of the device the record belongs to.
func (r TelemetryRecord) DeviceName() string { return r.Device }

func (TelemetryRecord) isEvent() {}

// AvailabilityEvent records an actual online/offline transition for a
// device. It is emitted only when the state changes, never on every poll.
type AvailabilityEvent struct {
	// Device is the display name of the device that changed state.
	Device string

	// Status is the new availability state.
	Status Availability

	// At is the timestamp of the transition.
	At time.Time
}

// DeviceName returns the name of the device that changed state.
func (e AvailabilityEvent) DeviceName() string { return e.Device }

func (AvailabilityEvent) isEvent() {}
