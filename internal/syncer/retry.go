package syncer

import (
	"context"
	"time"

	"github.com/larksync/larksync/internal"
)

// RetryPolicy retries transient provider failures with exponential backoff.
// Rate-limit responses that carry a retry-after duration wait that long
// instead. Auth and validation failures are never retried.
type RetryPolicy struct {
	MaxAttempts int
	BaseDelay   time.Duration

	// sleep is swapped out in tests so retries do not take real time.
	sleep func(context.Context, time.Duration) error
}

func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts: 3,
		BaseDelay:   2 * time.Second,
	}
}

// Do runs fn, retrying up to MaxAttempts total attempts while the failure
// stays retryable. The last error is returned once attempts are exhausted.
func (p RetryPolicy) Do(ctx context.Context, fn func() error) error {
	attempts := p.MaxAttempts
	if attempts < 1 {
		attempts = 1
	}

	var err error
	for attempt := 0; attempt < attempts; attempt++ {
		if attempt > 0 {
			if serr := p.wait(ctx, p.delay(err, attempt)); serr != nil {
				return serr
			}
		}
		if err = fn(); err == nil || !internal.Retryable(err) {
			return err
		}
	}
	return err
}

func (p RetryPolicy) delay(err error, attempt int) time.Duration {
	if after := internal.RetryAfter(err); after > 0 {
		return after
	}
	return p.BaseDelay << (attempt - 1)
}

func (p RetryPolicy) wait(ctx context.Context, d time.Duration) error {
	if p.sleep != nil {
		return p.sleep(ctx, d)
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
