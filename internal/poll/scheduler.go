package poll

import (
	"context"
	"fmt"
	"runtime/debug"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
)

// EventKind tags a scheduler output event.
type EventKind int

const (
	// EventTelemetry carries one device's readings from a successful poll.
	EventTelemetry EventKind = iota

	// EventAvailability carries an online/offline transition.
	EventAvailability
)

// Event is one output of a poll cycle: a telemetry record or an
// availability transition. Within one device's handling the telemetry
// event (if any) comes first, with the availability event (if any)
// immediately adjacent.
type Event struct {
	// Kind tags the variant.
	Kind EventKind

	// Device is the display name of the device.
	Device string

	// Readings holds the sampled values. Set only for [EventTelemetry].
	Readings Readings

	// Status is the new availability state. Set only for [EventAvailability].
	Status Availability

	// At is the timestamp the event was produced.
	At time.Time
}

// Config carries the knobs for a [Scheduler].
type Config struct {
	// Devices is the set to poll, in stable iteration order.
	Devices []DeviceInfo

	// Reader is the device read capability.
	Reader Reader

	// OfflineThreshold is the failure streak at which a device is
	// declared offline.
	OfflineThreshold int

	// Retries is the default transport-fault retry count for devices
	// that do not carry their own.
	Retries int

	// Timeout is the default per-device deadline for devices that do not
	// carry their own.
	Timeout time.Duration

	// Retryable classifies which read errors the retry policy retries.
	Retryable func(error) bool

	// MaxConcurrency bounds concurrent device polls within one cycle.
	// Values below 2 poll sequentially (the reference behavior).
	MaxConcurrency int

	// Observer, if non-nil, is invoked once per completed poll attempt,
	// after the outcome has been folded into the tracker. Used for
	// instrumentation and status snapshots.
	Observer func(device string, outcome Outcome)

	// Logger receives per-failure log output.
	Logger zerolog.Logger
}

// Scheduler performs one pass over a configured device set per
// [Scheduler.PollOnce] invocation.
//
// For each device it clears any reader-side cache, executes the read under
// the retry policy and the per-device deadline, feeds the result to the
// availability [Tracker], and emits telemetry and availability events.
// A failed poll for one device never aborts or delays the rest of the
// cycle; failures are logged with device identity and failure kind.
//
// Cycles never overlap: a new cycle blocks until the previous one for the
// same scheduler finishes, so per-device state is never mutated
// concurrently.
type Scheduler struct {
	devices        []DeviceInfo
	reader         Reader
	retries        int
	timeout        time.Duration
	retryable      func(error) bool
	maxConcurrency int
	observer       func(device string, outcome Outcome)
	tracker        *Tracker
	logger         zerolog.Logger

	// held for the duration of one cycle
	cycleMu sync.Mutex
}

// NewScheduler creates a [Scheduler] from cfg.
func NewScheduler(cfg Config) *Scheduler {
	return &Scheduler{
		devices:        cfg.Devices,
		reader:         cfg.Reader,
		retries:        cfg.Retries,
		timeout:        cfg.Timeout,
		retryable:      cfg.Retryable,
		maxConcurrency: cfg.MaxConcurrency,
		observer:       cfg.Observer,
		tracker:        NewTracker(cfg.OfflineThreshold),
		logger:         cfg.Logger,
	}
}

// DeviceState returns the tracked state snapshot for one device.
func (s *Scheduler) DeviceState(device string) DeviceState {
	return s.tracker.State(device)
}

// States returns a snapshot of all tracked device states.
func (s *Scheduler) States() map[string]DeviceState {
	return s.tracker.Snapshot()
}

// PollOnce performs exactly one pass over the device set and returns a
// finite, non-restartable stream of events, closed when the pass ends.
//
// Devices are handled in configuration order. Cancelling ctx stops the
// cycle between devices without completing the remaining ones; a poll
// aborted mid-read by cancellation is not counted against the device.
func (s *Scheduler) PollOnce(ctx context.Context) <-chan Event {
	// worst case two events per device, so producers never block
	out := make(chan Event, 2*len(s.devices))

	go func() {
		s.cycleMu.Lock()
		defer s.cycleMu.Unlock()
		defer close(out)

		if s.maxConcurrency > 1 {
			s.pollConcurrent(ctx, out)
			return
		}

		for _, dev := range s.devices {
			if ctx.Err() != nil {
				return
			}
			for _, ev := range s.pollDevice(ctx, dev) {
				out <- ev
			}
		}
	}()

	return out
}

// pollConcurrent fans the device set out over a bounded worker pool.
// Each device is handled start to finish by a single worker, so per-device
// tracker mutation and event adjacency are preserved; only the interleaving
// across devices changes.
func (s *Scheduler) pollConcurrent(ctx context.Context, out chan<- Event) {
	jobs := make(chan DeviceInfo, len(s.devices))

	workers := s.maxConcurrency
	if workers > len(s.devices) {
		workers = len(s.devices)
	}

	var sendMu sync.Mutex
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for dev := range jobs {
				if ctx.Err() != nil {
					return
				}
				events := s.pollDevice(ctx, dev)

				// keep one device's events adjacent on the shared channel
				sendMu.Lock()
				for _, ev := range events {
					out <- ev
				}
				sendMu.Unlock()
			}
		}()
	}

	for _, dev := range s.devices {
		jobs <- dev
	}
	close(jobs)

	wg.Wait()
}

// pollDevice runs one guarded, retried read for a single device and folds
// the outcome into the tracker. It returns the events in emission order.
func (s *Scheduler) pollDevice(ctx context.Context, dev DeviceInfo) []Event {
	if cc, ok := s.reader.(CacheClearer); ok {
		cc.ClearCache(dev)
	}

	timeout := dev.Timeout
	if timeout <= 0 {
		timeout = s.timeout
	}
	retries := dev.Retries
	if retries < 0 {
		retries = s.retries
	}

	outcome := WithDeadline(ctx, timeout, func(opCtx context.Context) (Readings, error) {
		return WithRetry(opCtx, retries, s.retryable, func(attemptCtx context.Context) (Readings, error) {
			return s.safeRead(attemptCtx, dev)
		})
	})

	// shutdown mid-read; don't count the aborted attempt
	if ctx.Err() != nil {
		return nil
	}

	now := time.Now()
	var events []Event

	if outcome.Kind == OutcomeSuccess {
		events = append(events, Event{
			Kind:     EventTelemetry,
			Device:   dev.Name,
			Readings: outcome.Readings,
			At:       now,
		})
		if status, changed := s.tracker.RecordSuccess(dev.Name); changed {
			events = append(events, Event{
				Kind:   EventAvailability,
				Device: dev.Name,
				Status: status,
				At:     now,
			})
		}
	} else {
		s.logFailure(dev, outcome, timeout)

		if status, changed := s.tracker.RecordFailure(dev.Name); changed {
			events = append(events, Event{
				Kind:   EventAvailability,
				Device: dev.Name,
				Status: status,
				At:     now,
			})
		}
	}

	if s.observer != nil {
		s.observer(dev.Name, outcome)
	}

	return events
}

// safeRead calls the reader with panic recovery.
// If the reader panics, the full stack trace is logged with a correlation
// ID and the poll fails with a non-retryable error carrying the ID.
func (s *Scheduler) safeRead(ctx context.Context, dev DeviceInfo) (readings Readings, err error) {
	defer func() {
		if r := recover(); r != nil {
			correlationID := uuid.NewString()

			s.logger.Error().
				Str("correlation_id", correlationID).
				Str("device", dev.Name).
				Str("address", dev.Address).
				Str("panic", fmt.Sprintf("%v", r)).
				Bytes("stack", debug.Stack()).
				Msg("device reader panicked")

			readings = nil
			err = errors.Errorf("reader panic (correlation_id: %s)", correlationID)
		}
	}()
	return s.reader.Read(ctx, dev)
}

// logFailure reports a failed poll. Timeouts and transport faults are
// expected operational noise and log at warn; anything else is a reader
// contract violation and logs at error.
func (s *Scheduler) logFailure(dev DeviceInfo, outcome Outcome, timeout time.Duration) {
	switch {
	case outcome.Kind == OutcomeTimeout:
		s.logger.Warn().
			Str("device", dev.Name).
			Str("address", dev.Address).
			Dur("timeout", timeout).
			Msg("device poll timed out")

	case s.retryable != nil && s.retryable(outcome.Err):
		s.logger.Warn().
			Err(outcome.Err).
			Str("device", dev.Name).
			Str("address", dev.Address).
			Msg("device poll failed with transport error")

	default:
		s.logger.Error().
			Err(outcome.Err).
			Str("device", dev.Name).
			Str("address", dev.Address).
			Msg("device poll failed with unexpected error")
	}
}
