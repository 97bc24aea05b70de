package mirror

import (
	"context"
	"time"

	"github.com/harukit/echosync/pkg/adapter"
	"github.com/harukit/echosync/pkg/utils/logging"
	"github.com/m-mizutani/goerr/v2"
)

// retryPolicy is an explicit bounded-attempt loop over classified
// errors. Keeping it as plain data makes the schedule unit-testable
// without any network mocking.
type retryPolicy struct {
	maxAttempts int
	base        time.Duration
	max         time.Duration
}

// delay returns the pause before retry n (n starts at 1). A server
// rate-limit hint wins when it asks for a longer pause than the
// exponential schedule.
func (p retryPolicy) delay(n int, hint time.Duration) time.Duration {
	d := p.base
	for i := 1; i < n; i++ {
		d *= 2
		if d >= p.max {
			d = p.max
			break
		}
	}
	if hint > d {
		d = hint
	}
	return d
}

// run invokes fn until it succeeds, returns a non-retryable error, or
// the attempt budget is exhausted. Unauthorized and malformed errors
// are never retried; neither are local IO errors.
func (p retryPolicy) run(ctx context.Context, op string, fn func() error) error {
	var lastErr error
	for attempt := 1; attempt <= p.maxAttempts; attempt++ {
		if attempt > 1 {
			wait := p.delay(attempt-1, adapter.RetryAfterHint(lastErr))
			logging.From(ctx).Warn("retrying remote call",
				"op", op, "attempt", attempt, "wait", wait, "error", lastErr)

			select {
			case <-time.After(wait):
			case <-ctx.Done():
				return goerr.Wrap(ctx.Err(), "canceled while waiting to retry",
					goerr.T(adapter.TagTransient), goerr.V("op", op))
			}
		}

		lastErr = fn()
		if lastErr == nil {
			return nil
		}
		if !adapter.Retryable(lastErr) {
			return lastErr
		}
	}
	return lastErr
}
