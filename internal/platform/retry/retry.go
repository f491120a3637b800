package retry

import (
	"context"
	"errors"
	"math/rand"
	"time"
)

const (
	defaultMaxAttempts  = 3
	defaultBaseDelay    = 50 * time.Millisecond
	defaultJitterFactor = 0.2
)

var (
	// ErrInvalidMaxAttempts is returned when max attempts are not positive.
	ErrInvalidMaxAttempts = errors.New("max attempts must be positive")

	// ErrNegativeBaseDelay is returned when the base delay is negative.
	ErrNegativeBaseDelay = errors.New("base delay must not be negative")

	// ErrInvalidJitterFactor is returned when the jitter factor is not between 0.0 and 1.0.
	ErrInvalidJitterFactor = errors.New("jitter factor must be between 0.0 and 1.0")

	// ErrNonPositiveTimeout is returned when an attempt timeout is zero or negative.
	ErrNonPositiveTimeout = errors.New("attempt timeout must be positive")
)

// Func is one attempt of a retried operation.
type Func func(ctx context.Context) error

type config struct {
	maxAttempts    int
	baseDelay      time.Duration
	jitterFactor   float64
	attemptTimeout time.Duration
	retryIf        func(error) bool
}

// Do runs fn until it succeeds, fails with a non-retryable error, or the
// attempt budget is spent. Delays grow as baseDelay * 2^(attempt-1) plus
// jitter. The parent context always wins: once it is done no further attempt
// is made and its error is returned.
//
// Default schedule: 3 attempts, 0 ms, 50 ms, 100 ms (with 20% jitter).
func Do(ctx context.Context, fn Func, options ...Option) error {
	cfg := &config{
		maxAttempts:  defaultMaxAttempts,
		baseDelay:    defaultBaseDelay,
		jitterFactor: defaultJitterFactor,
		retryIf:      defaultRetryIf,
	}
	for _, option := range options {
		if err := option(cfg); err != nil {
			return err
		}
	}

	var lastErr error
	for attempt := 0; attempt < cfg.maxAttempts; attempt++ {
		if attempt > 0 {
			delay := cfg.baseDelay * time.Duration(1<<(attempt-1))
			jitter := rand.Float64() * float64(delay) * cfg.jitterFactor //nolint:gosec // jitter does not need crypto randomness
			timer := time.NewTimer(delay + time.Duration(jitter))
			select {
			case <-timer.C:
			case <-ctx.Done():
				timer.Stop()
				return ctx.Err()
			}
		}

		lastErr = runAttempt(ctx, fn, cfg.attemptTimeout)
		if lastErr == nil {
			return nil
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if !cfg.retryIf(lastErr) {
			return lastErr
		}
	}
	return lastErr
}

func runAttempt(ctx context.Context, fn Func, timeout time.Duration) error {
	if timeout <= 0 {
		return fn(ctx)
	}
	attemptCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	return fn(attemptCtx)
}

// defaultRetryIf retries everything except cancellation.
func defaultRetryIf(err error) bool {
	return !errors.Is(err, context.Canceled)
}

// Option configures Do using the functional options pattern.
type Option func(*config) error

// WithMaxAttempts sets the total number of attempts, including the first one.
func WithMaxAttempts(attempts int) Option {
	return func(cfg *config) error {
		if attempts <= 0 {
			return ErrInvalidMaxAttempts
		}
		cfg.maxAttempts = attempts
		return nil
	}
}

// WithBaseDelay sets the delay before the first retry.
func WithBaseDelay(delay time.Duration) Option {
	return func(cfg *config) error {
		if delay < 0 {
			return ErrNegativeBaseDelay
		}
		cfg.baseDelay = delay
		return nil
	}
}

// WithJitterFactor sets jitter as a fraction of each delay, 0.0 to 1.0.
func WithJitterFactor(factor float64) Option {
	return func(cfg *config) error {
		if factor < 0.0 || factor > 1.0 {
			return ErrInvalidJitterFactor
		}
		cfg.jitterFactor = factor
		return nil
	}
}

// WithAttemptTimeout bounds every single attempt with its own deadline.
func WithAttemptTimeout(timeout time.Duration) Option {
	return func(cfg *config) error {
		if timeout <= 0 {
			return ErrNonPositiveTimeout
		}
		cfg.attemptTimeout = timeout
		return nil
	}
}

// WithRetryIf restricts retries to errors for which retryable returns true.
func WithRetryIf(retryable func(error) bool) Option {
	return func(cfg *config) error {
		if retryable != nil {
			cfg.retryIf = retryable
		}
		return nil
	}
}
