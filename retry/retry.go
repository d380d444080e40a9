// Package retry runs an operation sequentially until it succeeds or the
// permitted attempts are used up, waiting a fixed delay between attempts.
//
// Attempts never overlap. The delay is constant: no exponential growth and no
// jitter. When every attempt fails the error of the final attempt is returned
// unchanged; earlier errors are only logged.
package retry

import (
	"context"
	"errors"
	"time"

	"go.opentelemetry.io/otel/metric"

	"github.com/gaborage/go-fetchkit/internal/tracking"
	"github.com/gaborage/go-fetchkit/logger"
)

const (
	// DefaultMaxAttempts is the number of attempts made when none is configured.
	DefaultMaxAttempts = 3
	// DefaultDelay is the pause between a failed attempt and the next one.
	DefaultDelay = time.Second
)

// ErrNoAttempts is returned without invoking the operation when the policy
// permits zero or fewer attempts.
var ErrNoAttempts = errors.New("no attempts permitted")

// Clock provides the wait between attempts.
type Clock interface {
	Sleep(d time.Duration)
}

type realClock struct{}

func (realClock) Sleep(d time.Duration) { time.Sleep(d) }

// Attempt describes one finished attempt. Number is 0-based; Err is nil on success.
type Attempt struct {
	Number int
	Err    error
}

// Policy is an immutable retry configuration that may be shared between goroutines.
type Policy struct {
	maxAttempts   int
	delay         time.Duration
	clock         Clock
	log           logger.Logger
	onRetry       func(Attempt, time.Duration)
	meterProvider metric.MeterProvider
	metrics       *tracking.RetryMetrics
}

// Option configures a Policy.
type Option func(*Policy)

// WithMaxAttempts sets how many times the operation may be invoked in total.
func WithMaxAttempts(n int) Option {
	return func(p *Policy) { p.maxAttempts = n }
}

// WithDelay sets the fixed wait between attempts. Negative values are treated as zero.
func WithDelay(d time.Duration) Option {
	return func(p *Policy) {
		if d < 0 {
			d = 0
		}
		p.delay = d
	}
}

// WithClock replaces the wall clock used for delays, mainly in tests.
func WithClock(c Clock) Option {
	return func(p *Policy) {
		if c != nil {
			p.clock = c
		}
	}
}

// WithLogger sets the logger for attempt and exhaustion events; nil keeps the no-op logger.
func WithLogger(l logger.Logger) Option {
	return func(p *Policy) {
		if l != nil {
			p.log = l
		}
	}
}

// WithOnRetry registers fn to be called after each failed attempt that will
// be followed by another one, before the delay starts.
func WithOnRetry(fn func(Attempt, time.Duration)) Option {
	return func(p *Policy) { p.onRetry = fn }
}

// WithMeterProvider records retry.attempts and retry.exhausted on mp instead
// of the global provider.
func WithMeterProvider(mp metric.MeterProvider) Option {
	return func(p *Policy) { p.meterProvider = mp }
}

// New builds a policy with DefaultMaxAttempts and DefaultDelay unless overridden.
func New(opts ...Option) *Policy {
	p := &Policy{
		maxAttempts: DefaultMaxAttempts,
		delay:       DefaultDelay,
		clock:       realClock{},
		log:         logger.Nop(),
	}
	for _, opt := range opts {
		opt(p)
	}
	p.metrics = tracking.NewRetryMetrics(p.meterProvider)
	return p
}

// MaxAttempts returns the configured total number of attempts.
func (p *Policy) MaxAttempts() int { return p.maxAttempts }

// Delay returns the fixed wait between attempts.
func (p *Policy) Delay() time.Duration { return p.delay }

// Do runs op under the policy.
func (p *Policy) Do(ctx context.Context, op func(ctx context.Context) error) error {
	_, err := Run(ctx, p, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, op(ctx)
	})
	return err
}

// Do runs op with a policy built from opts.
func Do[T any](ctx context.Context, op func(ctx context.Context) (T, error), opts ...Option) (T, error) {
	return Run(ctx, New(opts...), op)
}

// Run invokes op until it succeeds or p's attempts are exhausted. ctx is
// handed to every attempt but does not shorten the delay; an attempt that
// observes a cancelled ctx simply fails like any other.
func Run[T any](ctx context.Context, p *Policy, op func(ctx context.Context) (T, error)) (T, error) {
	var zero T
	if p == nil {
		p = New()
	}
	if p.maxAttempts <= 0 {
		p.log.Warn().Int("max_attempts", p.maxAttempts).Msg("Retry skipped: no attempts permitted")
		return zero, ErrNoAttempts
	}

	var lastErr error
	for attempt := 0; attempt < p.maxAttempts; attempt++ {
		result, err := op(ctx)
		p.metrics.RecordAttempt(ctx, err)
		if err == nil {
			if attempt > 0 {
				p.log.Debug().
					Int("attempt", attempt+1).
					Int("max_attempts", p.maxAttempts).
					Msg("Operation succeeded after retry")
			}
			return result, nil
		}
		lastErr = err

		if attempt == p.maxAttempts-1 {
			break
		}

		p.log.Warn().
			Err(err).
			Int("attempt", attempt+1).
			Int("max_attempts", p.maxAttempts).
			Dur("delay", p.delay).
			Msg("Attempt failed, retrying")

		if p.onRetry != nil {
			p.onRetry(Attempt{Number: attempt, Err: err}, p.delay)
		}
		p.clock.Sleep(p.delay)
	}

	p.metrics.RecordExhausted(ctx)
	p.log.Error().
		Err(lastErr).
		Int("max_attempts", p.maxAttempts).
		Msg("All attempts failed")
	return zero, lastErr
}
