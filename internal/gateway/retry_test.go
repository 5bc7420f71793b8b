package gateway

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// instantTimer fires as soon as it is started and records the requested waits.
type instantTimer struct {
	c     chan time.Time
	waits []time.Duration
}

func (t *instantTimer) Start(d time.Duration) {
	t.waits = append(t.waits, d)
	t.c = make(chan time.Time, 1)
	t.c <- time.Now()
}

func (t *instantTimer) Stop() {}

func (t *instantTimer) C() <-chan time.Time {
	return t.c
}

func TestRetryPolicy_Do(t *testing.T) {
	hardErr := errors.New("boom")

	testCases := []struct {
		name             string
		maxAttempts      int
		results          []error // one per attempt; the last one repeats
		expectedAttempts int
		expectedWaits    int
		expectUnavail    bool
		expectedErr      error
	}{
		{
			name:             "always still computing - stops after the attempt budget",
			maxAttempts:      5,
			results:          []error{errStillComputing},
			expectedAttempts: 5,
			expectedWaits:    4,
			expectUnavail:    true,
		},
		{
			name:             "ready on third attempt",
			maxAttempts:      5,
			results:          []error{errStillComputing, errStillComputing, nil},
			expectedAttempts: 3,
			expectedWaits:    2,
		},
		{
			name:             "hard failure is not retried",
			maxAttempts:      5,
			results:          []error{hardErr},
			expectedAttempts: 1,
			expectedWaits:    0,
			expectedErr:      hardErr,
		},
		{
			name:             "non-positive budget still makes one attempt",
			maxAttempts:      0,
			results:          []error{errStillComputing},
			expectedAttempts: 1,
			expectedWaits:    0,
			expectUnavail:    true,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			timer := &instantTimer{}
			policy := RetryPolicy{MaxAttempts: tc.maxAttempts, Delay: 8 * time.Second, Timer: timer}

			calls := 0
			var retried []int
			err := policy.Do(context.Background(), func(ctx context.Context) error {
				idx := min(calls, len(tc.results)-1)
				calls++
				return tc.results[idx]
			}, func(attempt int, wait time.Duration) {
				retried = append(retried, attempt)
				assert.Equal(t, 8*time.Second, wait)
			})

			assert.Equal(t, tc.expectedAttempts, calls)
			assert.Len(t, timer.waits, tc.expectedWaits)
			assert.Len(t, retried, tc.expectedWaits)
			switch {
			case tc.expectUnavail:
				require.Error(t, err)
				assert.ErrorIs(t, err, ErrUnavailable)
			case tc.expectedErr != nil:
				assert.ErrorIs(t, err, tc.expectedErr)
				assert.NotErrorIs(t, err, ErrUnavailable)
			default:
				assert.NoError(t, err)
			}
		})
	}
}

func TestRetryPolicy_DoStopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	policy := RetryPolicy{MaxAttempts: 5, Delay: time.Second, Timer: &instantTimer{}}

	calls := 0
	err := policy.Do(ctx, func(ctx context.Context) error {
		calls++
		cancel()
		return errStillComputing
	}, nil)

	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, calls)
}
