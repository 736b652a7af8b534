package poll

import "context"

// WithRetry invokes op up to retries+1 times in total, retrying only
// failures the retryable predicate matches. Retries are immediate, with no
// backoff between attempts: the cycle finishing fast matters more here
// than politeness to a device that already failed, and a sensor that
// dropped one connection attempt is typically reachable again right away.
//
// A failure the predicate does not match propagates immediately without
// consuming a retry. Exhausting the budget returns the last failure
// unchanged. A nil predicate retries nothing.
//
// Cancellation of ctx between attempts stops further retries; the last
// failure is returned.
func WithRetry(ctx context.Context, retries int, retryable func(error) bool, op func(context.Context) (Readings, error)) (Readings, error) {
	var lastErr error

	for attempt := 0; attempt <= retries; attempt++ {
		readings, err := op(ctx)
		if err == nil {
			return readings, nil
		}
		lastErr = err

		if retryable == nil || !retryable(err) {
			return nil, err
		}
		if ctx.Err() != nil {
			return nil, err
		}
	}

	return nil, lastErr
}
