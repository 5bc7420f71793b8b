package gateway

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
)

const (
	// DefaultRetryAttempts is how many times a "still computing" statistic is requested.
	DefaultRetryAttempts = 5
	// DefaultRetryDelay is the constant wait between two attempts.
	DefaultRetryDelay = 8 * time.Second
)

// ErrUnavailable reports that a statistic could not be obtained. It is
// distinct from an empty result.
var ErrUnavailable = errors.New("statistic unavailable")

// errStillComputing marks an attempt that GitHub answered with 202 Accepted.
var errStillComputing = errors.New("statistic is still being computed")

// RetryPolicy retries an operation with a constant delay while it reports
// errStillComputing. Any other error stops the loop immediately.
type RetryPolicy struct {
	MaxAttempts int
	Delay       time.Duration
	// Timer is used to wait between attempts. nil means a real timer.
	Timer backoff.Timer
}

func (p RetryPolicy) attempts() int {
	if p.MaxAttempts < 1 {
		return 1
	}
	return p.MaxAttempts
}

// Do runs op until it succeeds, fails permanently or the attempt budget is
// spent. onRetry is called before each wait with the number of the attempt
// that just failed. Exhausting the budget yields an error wrapping ErrUnavailable.
func (p RetryPolicy) Do(ctx context.Context, op func(ctx context.Context) error, onRetry func(attempt int, wait time.Duration)) error {
	maxAttempts := p.attempts()
	b := backoff.WithContext(
		backoff.WithMaxRetries(backoff.NewConstantBackOff(p.Delay), uint64(maxAttempts-1)),
		ctx,
	)

	attempt := 0
	operation := func() error {
		attempt++
		err := op(ctx)
		if err == nil || errors.Is(err, errStillComputing) {
			return err
		}
		return backoff.Permanent(err)
	}
	notify := func(_ error, wait time.Duration) {
		if onRetry != nil {
			onRetry(attempt, wait)
		}
	}

	err := backoff.RetryNotifyWithTimer(operation, b, notify, p.Timer)
	if errors.Is(err, errStillComputing) {
		return fmt.Errorf("%w: still computing after %d attempts", ErrUnavailable, attempt)
	}
	return err
}
