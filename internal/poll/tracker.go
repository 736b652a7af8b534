package poll

import "sync"

// Availability is the poll-internal device liveness state.
type Availability string

const (
	// AvailabilityUnknown is every device's initial state.
	AvailabilityUnknown Availability = "unknown"

	// AvailabilityOnline means the device answered its most recent poll.
	AvailabilityOnline Availability = "online"

	// AvailabilityOffline means the failure streak reached the offline
	// threshold.
	AvailabilityOffline Availability = "offline"
)

// DeviceState is a snapshot of one device's tracked polling state.
type DeviceState struct {
	// FailureStreak is the count of consecutive failed polls since the
	// last success.
	FailureStreak int

	// Availability is the last known liveness state.
	Availability Availability
}

// Tracker turns per-device failure streaks into availability transitions.
//
// Each device carries a failure streak and a tri-state availability,
// initially [AvailabilityUnknown]. The streak resets to zero on any
// success; reaching the offline threshold flips the device offline exactly
// once per failure run. The streak is intentionally not reset when the
// offline transition fires, so it keeps growing until a success occurs and
// the transition cannot re-fire within the same run.
//
// Tracker is safe for concurrent use, but callers must not interleave
// records for the same device from multiple goroutines: the state machine
// assumes each device's poll results arrive in order.
type Tracker struct {
	threshold int

	mu     sync.Mutex
	states map[string]*DeviceState
}

// NewTracker creates a [Tracker] that declares a device offline once its
// failure streak reaches threshold.
func NewTracker(threshold int) *Tracker {
	return &Tracker{
		threshold: threshold,
		states:    make(map[string]*DeviceState),
	}
}

// stateLocked returns the device's state, creating it on first use.
// Caller must hold mu.
func (t *Tracker) stateLocked(device string) *DeviceState {
	st, ok := t.states[device]
	if !ok {
		st = &DeviceState{Availability: AvailabilityUnknown}
		t.states[device] = st
	}
	return st
}

// RecordSuccess folds a successful poll into the device's state.
//
// The failure streak always resets to zero. An online transition is
// reported when the device was not already known online, or when the
// streak had reached the offline threshold (the device was about to be,
// or already was, declared offline).
func (t *Tracker) RecordSuccess(device string) (Availability, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	st := t.stateLocked(device)
	transition := st.Availability != AvailabilityOnline || st.FailureStreak >= t.threshold
	st.FailureStreak = 0

	if !transition {
		return "", false
	}
	st.Availability = AvailabilityOnline
	return AvailabilityOnline, true
}

// RecordFailure folds a failed poll (of either kind) into the device's
// state.
//
// The failure streak increments unconditionally. An offline transition is
// reported only at the threshold crossing while the device is not already
// offline; past that point the streak keeps incrementing silently.
func (t *Tracker) RecordFailure(device string) (Availability, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	st := t.stateLocked(device)
	st.FailureStreak++

	if st.FailureStreak >= t.threshold && st.Availability != AvailabilityOffline {
		st.Availability = AvailabilityOffline
		return AvailabilityOffline, true
	}
	return "", false
}

// State returns a snapshot of the device's tracked state. Devices that
// have never completed a poll report a zero streak and
// [AvailabilityUnknown].
func (t *Tracker) State(device string) DeviceState {
	t.mu.Lock()
	defer t.mu.Unlock()

	if st, ok := t.states[device]; ok {
		return *st
	}
	return DeviceState{Availability: AvailabilityUnknown}
}

// Snapshot returns a copy of all tracked device states.
func (t *Tracker) Snapshot() map[string]DeviceState {
	t.mu.Lock()
	defer t.mu.Unlock()

	out := make(map[string]DeviceState, len(t.states))
	for name, st := range t.states {
		out[name] = *st
	}
	return out
}
