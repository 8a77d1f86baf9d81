package probe

import (
	"context"
	"fmt"
	"time"

	"github.com/ibraheemcisse/service-monitoring-script/internal/logger"
)

// Runner retries a boolean-style probe a bounded number of times with a fixed
// delay between failed attempts. A single flaky sample (a process momentarily
// unresponsive during a restart) should not produce an alert.
type Runner struct {
	MaxAttempts int
	Backoff     time.Duration

	// sleep is replaceable in tests.
	sleep func(ctx context.Context, d time.Duration) error
}

func NewRunner(maxAttempts int, backoff time.Duration) *Runner {
	if maxAttempts < 1 {
		maxAttempts = 1
	}
	return &Runner{
		MaxAttempts: maxAttempts,
		Backoff:     backoff,
		sleep:       sleepCtx,
	}
}

// Do runs fn until it succeeds or MaxAttempts is exhausted. It sleeps Backoff
// between failed attempts, never after the last one, and stops early when ctx
// is cancelled. The returned error is the last attempt's failure.
func (r *Runner) Do(ctx context.Context, label string, fn func(ctx context.Context) error) error {
	var lastErr error
	for attempt := 1; attempt <= r.MaxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}

		lastErr = fn(ctx)
		if lastErr == nil {
			return nil
		}
		logger.Debug("PROBE", "%s: attempt %d/%d failed: %v", label, attempt, r.MaxAttempts, lastErr)

		if attempt < r.MaxAttempts {
			logger.Debug("PROBE", "%s: waiting %s before retry", label, r.Backoff)
			if err := r.sleep(ctx, r.Backoff); err != nil {
				return err
			}
		}
	}
	return fmt.Errorf("%s failed after %d attempts: %w", label, r.MaxAttempts, lastErr)
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
