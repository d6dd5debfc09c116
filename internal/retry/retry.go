// Package retry runs an operation under a data-driven backoff schedule:
// attempt limits and delays are values, not inline timers.
package retry

import (
	"context"
	"time"
)

// Do calls fn once, then once more per interval for errors that retriable
// reports as transient, sleeping the interval before each re-attempt.  The
// first non-transient error and the final transient error are returned as-is.
// Context cancellation aborts the wait and returns ctx.Err().
func Do(ctx context.Context, intervals []time.Duration, retriable func(error) bool, fn func(context.Context) error) error {
	err := fn(ctx)
	if err == nil || retriable == nil || !retriable(err) {
		return err
	}

	for _, delay := range intervals {
		if sleepErr := sleep(ctx, delay); sleepErr != nil {
			return sleepErr
		}
		err = fn(ctx)
		if err == nil || !retriable(err) {
			return err
		}
	}
	return err
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
