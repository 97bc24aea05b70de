package mirror

import (
	"context"
	"testing"
	"time"

	"github.com/harukit/echosync/pkg/adapter"
	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/gt"
)

func TestBackoffDelaySchedule(t *testing.T) {
	p := retryPolicy{maxAttempts: 5, base: time.Second, max: 30 * time.Second}

	gt.Equal(t, p.delay(1, 0), 1*time.Second)
	gt.Equal(t, p.delay(2, 0), 2*time.Second)
	gt.Equal(t, p.delay(3, 0), 4*time.Second)
	gt.Equal(t, p.delay(4, 0), 8*time.Second)
	// Capped at max
	gt.Equal(t, p.delay(10, 0), 30*time.Second)
}

func TestBackoffHonorsServerHint(t *testing.T) {
	p := retryPolicy{maxAttempts: 5, base: time.Second, max: 30 * time.Second}

	// A longer server hint wins over the schedule
	gt.Equal(t, p.delay(1, 5*time.Second), 5*time.Second)
	// A shorter hint does not shorten the schedule
	gt.Equal(t, p.delay(4, 3*time.Second), 8*time.Second)
}

func TestRetryExhaustsBudget(t *testing.T) {
	p := retryPolicy{maxAttempts: 3, base: time.Millisecond, max: time.Millisecond}

	calls := 0
	err := p.run(context.Background(), "op", func() error {
		calls++
		return goerr.New("boom", goerr.T(adapter.TagTransient))
	})
	gt.Error(t, err)
	gt.True(t, adapter.IsTransient(err))
	gt.Equal(t, calls, 3)
}

func TestRetryStopsOnSuccess(t *testing.T) {
	p := retryPolicy{maxAttempts: 5, base: time.Millisecond, max: time.Millisecond}

	calls := 0
	err := p.run(context.Background(), "op", func() error {
		calls++
		if calls < 2 {
			return goerr.New("boom", goerr.T(adapter.TagTransient))
		}
		return nil
	})
	gt.NoError(t, err)
	gt.Equal(t, calls, 2)
}

func TestRetryNeverRetriesFatal(t *testing.T) {
	p := retryPolicy{maxAttempts: 5, base: time.Millisecond, max: time.Millisecond}

	for _, opt := range []goerr.Option{goerr.T(adapter.TagUnauthorized), goerr.T(adapter.TagMalformed)} {
		calls := 0
		err := p.run(context.Background(), "op", func() error {
			calls++
			return goerr.New("fatal", opt)
		})
		gt.Error(t, err)
		gt.Equal(t, calls, 1)
	}
}

func TestRetryCanceledWhileWaiting(t *testing.T) {
	p := retryPolicy{maxAttempts: 3, base: time.Minute, max: time.Minute}

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(10 * time.Millisecond)
		cancel()
	}()

	calls := 0
	err := p.run(ctx, "op", func() error {
		calls++
		return goerr.New("boom", goerr.T(adapter.TagTransient))
	})
	gt.Error(t, err)
	gt.Equal(t, calls, 1)
}
