package retry

import (
	"context"
	"errors"
	"math"
	"time"

	"batchflow/internal/config"
	"batchflow/internal/faults"
)

const (
	defaultMaxAttempts  = 3
	defaultInitialDelay = 2 * time.Second
	defaultMultiplier   = 2.0
)

// Attempt describes a failed attempt that is about to be retried.
type Attempt struct {
	Number int
	Delay  time.Duration
	Err    error
}

// Policy is an immutable retry configuration.
type Policy struct {
	MaxAttempts  int
	InitialDelay time.Duration
	Multiplier   float64

	sleeper  func(time.Duration)
	observer func(Attempt)
}

// Option customizes a Policy.
type Option func(*Policy)

// WithMaxAttempts overrides the total attempt count (defaults to 3).
func WithMaxAttempts(attempts int) Option {
	return func(p *Policy) {
		p.MaxAttempts = attempts
	}
}

// WithBackoff overrides the initial delay and multiplier.
func WithBackoff(initial time.Duration, multiplier float64) Option {
	return func(p *Policy) {
		p.InitialDelay = initial
		p.Multiplier = multiplier
	}
}

// WithSleeper overrides how retry sleeps are performed (useful for tests).
func WithSleeper(sleeper func(time.Duration)) Option {
	return func(p *Policy) {
		p.sleeper = sleeper
	}
}

// WithObserver registers a callback invoked before each retry wait.
func WithObserver(observer func(Attempt)) Option {
	return func(p *Policy) {
		p.observer = observer
	}
}

// New returns the default policy with opts applied.
func New(opts ...Option) Policy {
	p := Policy{
		MaxAttempts:  defaultMaxAttempts,
		InitialDelay: defaultInitialDelay,
		Multiplier:   defaultMultiplier,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(&p)
		}
	}
	return p
}

// FromConfig builds a policy from the [retry] config section.
func FromConfig(cfg *config.Config, opts ...Option) Policy {
	if cfg == nil {
		return New(opts...)
	}
	base := []Option{
		WithMaxAttempts(cfg.Retry.MaxAttempts),
		WithBackoff(cfg.InitialRetryDelay(), cfg.Retry.BackoffMultiplier),
	}
	return New(append(base, opts...)...)
}

// With returns a copy of p with opts applied.
func (p Policy) With(opts ...Option) Policy {
	for _, opt := range opts {
		if opt != nil {
			opt(&p)
		}
	}
	return p
}

// Attempts returns the effective attempt bound.
func (p Policy) Attempts() int {
	if p.MaxAttempts <= 0 {
		return 1
	}
	return p.MaxAttempts
}

// Delay returns the wait before attempt number attempt+1, where attempt is
// 1-based.
func (p Policy) Delay(attempt int) time.Duration {
	if attempt <= 0 || p.InitialDelay <= 0 {
		return 0
	}
	multiplier := p.Multiplier
	if multiplier < 1 {
		multiplier = 1
	}
	delay := float64(p.InitialDelay) * math.Pow(multiplier, float64(attempt-1))
	if delay > math.MaxInt64 {
		return time.Duration(math.MaxInt64)
	}
	return time.Duration(delay)
}

// Delays lists every wait the policy performs when all attempts fail.
func (p Policy) Delays() []time.Duration {
	attempts := p.Attempts()
	delays := make([]time.Duration, 0, attempts-1)
	for attempt := 1; attempt < attempts; attempt++ {
		delays = append(delays, p.Delay(attempt))
	}
	return delays
}

// Do runs op until it succeeds or the policy gives up. See Run.
func (p Policy) Do(ctx context.Context, op func(context.Context) error) error {
	_, err := p.Run(ctx, op)
	return err
}

// Run runs op until it succeeds or the policy gives up and reports how many
// attempts were made. The returned error is the last attempt's error, or the
// context error when the context ends during a wait.
func (p Policy) Run(ctx context.Context, op func(context.Context) error) (int, error) {
	if ctx == nil {
		return 0, errors.New("retry: nil context")
	}
	attempts := p.Attempts()
	for attempt := 1; ; attempt++ {
		if err := ctx.Err(); err != nil {
			return attempt - 1, err
		}
		err := op(ctx)
		if err == nil {
			return attempt, nil
		}
		if attempt >= attempts || !shouldRetry(ctx, err) {
			return attempt, err
		}
		delay := p.Delay(attempt)
		if p.observer != nil {
			p.observer(Attempt{Number: attempt, Delay: delay, Err: err})
		}
		if serr := p.sleep(ctx, delay); serr != nil {
			return attempt, serr
		}
	}
}

func shouldRetry(ctx context.Context, err error) bool {
	if ctx.Err() != nil {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	return faults.Retryable(err)
}

func (p Policy) sleep(ctx context.Context, delay time.Duration) error {
	if delay <= 0 {
		return ctx.Err()
	}
	if p.sleeper != nil {
		p.sleeper(delay)
		return ctx.Err()
	}
	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
