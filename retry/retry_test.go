package retry

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"

	"github.com/gaborage/go-fetchkit/testing/fixtures"
)

const (
	testDelay  = 250 * time.Millisecond
	testResult = "ok"
)

var errTransient = errors.New("transient failure")

func newClock() *fixtures.ManualClock {
	return fixtures.NewManualClock(time.Unix(0, 0))
}

// failingUntil returns an op that fails on the first k-1 calls and succeeds on call k.
func failingUntil(k int, calls *int) func(context.Context) (string, error) {
	return func(context.Context) (string, error) {
		*calls++
		if *calls < k {
			return "", fmt.Errorf("attempt %d: %w", *calls, errTransient)
		}
		return testResult, nil
	}
}

func TestNewDefaults(t *testing.T) {
	p := New()
	assert.Equal(t, DefaultMaxAttempts, p.MaxAttempts())
	assert.Equal(t, DefaultDelay, p.Delay())
	assert.Equal(t, 3, DefaultMaxAttempts)
	assert.Equal(t, time.Second, DefaultDelay)
}

func TestDoAlwaysFailingInvokesExactlyN(t *testing.T) {
	for _, n := range []int{1, 2, 3, 5} {
		t.Run(fmt.Sprintf("max_attempts_%d", n), func(t *testing.T) {
			clock := newClock()
			calls := 0
			_, err := Do(context.Background(), func(context.Context) (int, error) {
				calls++
				return 0, fmt.Errorf("failure %d", calls)
			}, WithMaxAttempts(n), WithDelay(testDelay), WithClock(clock))

			require.Error(t, err)
			assert.Equal(t, n, calls)
			assert.EqualError(t, err, fmt.Sprintf("failure %d", n))
			assert.Len(t, clock.Sleeps(), n-1)
		})
	}
}

func TestDoSucceedsOnAttemptK(t *testing.T) {
	const n = 4
	for k := 1; k <= n; k++ {
		t.Run(fmt.Sprintf("k_%d", k), func(t *testing.T) {
			clock := newClock()
			calls := 0
			got, err := Do(context.Background(), failingUntil(k, &calls),
				WithMaxAttempts(n), WithDelay(testDelay), WithClock(clock))

			require.NoError(t, err)
			assert.Equal(t, testResult, got)
			assert.Equal(t, k, calls)

			sleeps := clock.Sleeps()
			require.Len(t, sleeps, k-1)
			for _, d := range sleeps {
				assert.Equal(t, testDelay, d)
			}
		})
	}
}

func TestDoNoAttemptsPermitted(t *testing.T) {
	for _, n := range []int{0, -1} {
		t.Run(fmt.Sprintf("max_attempts_%d", n), func(t *testing.T) {
			invoked := false
			_, err := Do(context.Background(), func(context.Context) (string, error) {
				invoked = true
				return testResult, nil
			}, WithMaxAttempts(n), WithClock(newClock()))

			require.ErrorIs(t, err, ErrNoAttempts)
			assert.EqualError(t, err, "no attempts permitted")
			assert.False(t, invoked)
		})
	}
}

func TestLastErrorIsReturnedUnchanged(t *testing.T) {
	sentinel := errors.New("final")
	calls := 0
	_, err := Do(context.Background(), func(context.Context) (string, error) {
		calls++
		if calls == 3 {
			return "", sentinel
		}
		return "", errTransient
	}, WithClock(newClock()))

	assert.Same(t, sentinel, err)
}

func TestOnRetryHook(t *testing.T) {
	var seen []Attempt
	calls := 0
	_, err := Do(context.Background(), failingUntil(3, &calls),
		WithDelay(testDelay),
		WithClock(newClock()),
		WithOnRetry(func(a Attempt, d time.Duration) {
			assert.Equal(t, testDelay, d)
			seen = append(seen, a)
		}))

	require.NoError(t, err)
	require.Len(t, seen, 2)
	assert.Equal(t, 0, seen[0].Number)
	assert.Equal(t, 1, seen[1].Number)
	assert.ErrorIs(t, seen[1].Err, errTransient)
}

func TestPolicyDo(t *testing.T) {
	log := fixtures.NewRecordingLogger()
	p := New(WithMaxAttempts(2), WithDelay(testDelay), WithClock(newClock()), WithLogger(log))

	calls := 0
	err := p.Do(context.Background(), func(context.Context) error {
		calls++
		return errTransient
	})

	require.ErrorIs(t, err, errTransient)
	assert.Equal(t, 2, calls)
	assert.Len(t, log.EventsAt("warn"), 1)
	assert.Len(t, log.EventsAt("error"), 1)
}

func TestNegativeDelayIsZero(t *testing.T) {
	clock := newClock()
	calls := 0
	_, err := Do(context.Background(), failingUntil(2, &calls), WithDelay(-time.Second), WithClock(clock))

	require.NoError(t, err)
	assert.Equal(t, []time.Duration{0}, clock.Sleeps())
}

func TestContextIsPassedToAttempts(t *testing.T) {
	type key struct{}
	ctx := context.WithValue(context.Background(), key{}, "value")

	_, err := Do(ctx, func(ctx context.Context) (string, error) {
		assert.Equal(t, "value", ctx.Value(key{}))
		return testResult, nil
	})
	require.NoError(t, err)
}

func TestRetryMetricsRecorded(t *testing.T) {
	mr := fixtures.NewMetricReader(t)
	clock := newClock()

	calls := 0
	_, err := Do(context.Background(), failingUntil(2, &calls),
		WithClock(clock), WithMeterProvider(mr.Provider))
	require.NoError(t, err)

	_, err = Do(context.Background(), func(context.Context) (string, error) { return "", errTransient },
		WithMaxAttempts(2), WithClock(clock), WithMeterProvider(mr.Provider))
	require.Error(t, err)

	assert.Equal(t, int64(3), mr.Int64Sum(t, "retry.attempts", attribute.String("outcome", "failure")))
	assert.Equal(t, int64(1), mr.Int64Sum(t, "retry.attempts", attribute.String("outcome", "success")))
	assert.Equal(t, int64(1), mr.Int64Sum(t, "retry.exhausted"))
}
