package poll

import (
	"context"
	"time"

	"github.com/pkg/errors"
)

// ErrTimeout is the failure recorded when a device's per-poll deadline
// elapses before the read completes.
var ErrTimeout = errors.New("device read timed out")

// WithDeadline starts op and races it against a timer of length d.
//
// If op finishes first, its result is classified into a success or read
// failure [Outcome]. If the timer fires first, WithDeadline returns an
// [OutcomeTimeout] immediately and abandons the in-flight call: op's
// context is cancelled so a cooperative reader can stop, but WithDeadline
// does not wait for it. An abandoned read that keeps running must not
// affect the caller, which is why the result channel is buffered and the
// goroutine never blocks on it.
//
// Timeouts deliberately carry their own outcome kind rather than being
// folded into op's failure class, so callers can tell "device unreachable
// within the window" apart from "transport reported an explicit error".
func WithDeadline(ctx context.Context, d time.Duration, op func(context.Context) (Readings, error)) Outcome {
	opCtx, cancel := context.WithTimeout(ctx, d)

	type result struct {
		readings Readings
		err      error
	}
	done := make(chan result, 1)

	go func() {
		defer cancel()
		readings, err := op(opCtx)
		done <- result{readings: readings, err: err}
	}()

	select {
	case res := <-done:
		if res.err == nil {
			return Outcome{Kind: OutcomeSuccess, Readings: res.readings}
		}
		return Outcome{Kind: OutcomeReadFailure, Err: res.err}

	case <-opCtx.Done():
		// The op goroutine may still be running; its eventual result is
		// discarded via the buffered channel.
		if err := ctx.Err(); err != nil {
			// parent cancelled, not a per-device timeout
			return Outcome{Kind: OutcomeTimeout, Err: err}
		}
		return Outcome{Kind: OutcomeTimeout, Err: ErrTimeout}
	}
}
