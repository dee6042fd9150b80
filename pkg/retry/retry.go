// Package retry runs an operation again with exponential backoff and jitter
// until it succeeds, fails permanently or runs out of attempts.
package retry

import (
	"context"
	"errors"
	"math"
	"math/rand/v2"
	"time"
)

// ═══════════════════════════════════════════════════════════════════════════
// ERROR MARKERS
// ═══════════════════════════════════════════════════════════════════════════

// RetryableError marks an error as worth another attempt.
type RetryableError struct {
	Err error
}

func (e *RetryableError) Error() string { return e.Err.Error() }
func (e *RetryableError) Unwrap() error { return e.Err }

// Retryable wraps err so the default policy retries it.
func Retryable(err error) error {
	if err == nil {
		return nil
	}
	return &RetryableError{Err: err}
}

func isRetryable(err error) bool {
	var re *RetryableError
	return errors.As(err, &re)
}

// PermanentError stops retrying regardless of policy.
type PermanentError struct {
	Err error
}

func (e *PermanentError) Error() string { return e.Err.Error() }
func (e *PermanentError) Unwrap() error { return e.Err }

// Permanent wraps err so that no further attempt is made.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &PermanentError{Err: err}
}

func isPermanent(err error) bool {
	var pe *PermanentError
	return errors.As(err, &pe)
}

// ═══════════════════════════════════════════════════════════════════════════
// CONFIGURATION
// ═══════════════════════════════════════════════════════════════════════════

// Config holds retry configuration.
type Config struct {
	// MaxAttempts counts the first attempt too.
	MaxAttempts int

	InitialDelay time.Duration
	MaxDelay     time.Duration
	Multiplier   float64

	// JitterFactor spreads each delay by ±factor.
	JitterFactor float64

	// RetryIf decides whether err deserves another attempt.
	// Nil retries only errors wrapped with Retryable.
	RetryIf func(error) bool

	// OnRetry runs before sleeping ahead of attempt+1.
	OnRetry func(attempt int, err error, delay time.Duration)
}

// DefaultConfig returns three attempts starting at 100ms.
func DefaultConfig() Config {
	return Config{
		MaxAttempts:  3,
		InitialDelay: 100 * time.Millisecond,
		MaxDelay:     30 * time.Second,
		Multiplier:   2.0,
		JitterFactor: 0.1,
	}
}

// Option configures a Retrier.
type Option func(*Config)

// WithMaxAttempts sets the maximum number of attempts.
func WithMaxAttempts(n int) Option {
	return func(c *Config) {
		if n > 0 {
			c.MaxAttempts = n
		}
	}
}

// WithInitialDelay sets the delay before the first retry.
func WithInitialDelay(d time.Duration) Option {
	return func(c *Config) {
		if d >= 0 {
			c.InitialDelay = d
		}
	}
}

// WithMaxDelay caps the delay between attempts.
func WithMaxDelay(d time.Duration) Option {
	return func(c *Config) {
		if d > 0 {
			c.MaxDelay = d
		}
	}
}

// WithMultiplier sets the backoff multiplier (>= 1).
func WithMultiplier(m float64) Option {
	return func(c *Config) {
		if m >= 1.0 {
			c.Multiplier = m
		}
	}
}

// WithJitter sets the jitter factor in [0, 1].
func WithJitter(j float64) Option {
	return func(c *Config) {
		if j >= 0 && j <= 1.0 {
			c.JitterFactor = j
		}
	}
}

// WithRetryIf replaces the retry policy.
func WithRetryIf(fn func(error) bool) Option {
	return func(c *Config) {
		c.RetryIf = fn
	}
}

// WithOnRetry sets a callback run before each retry.
func WithOnRetry(fn func(attempt int, err error, delay time.Duration)) Option {
	return func(c *Config) {
		c.OnRetry = fn
	}
}

// Always is a RetryIf policy that retries every non-permanent error.
func Always(error) bool { return true }

// ═══════════════════════════════════════════════════════════════════════════
// RETRIER
// ═══════════════════════════════════════════════════════════════════════════

// Retrier runs operations under one retry policy. It is safe for concurrent use.
type Retrier struct {
	config Config
}

// New creates a Retrier from DefaultConfig and opts.
func New(opts ...Option) *Retrier {
	config := DefaultConfig()
	for _, opt := range opts {
		opt(&config)
	}
	return &Retrier{config: config}
}

// Do runs op until it succeeds or the policy gives up. The returned error is
// the last one op produced, with Retryable/Permanent markers removed.
func (r *Retrier) Do(ctx context.Context, op func(ctx context.Context) error) error {
	var lastErr error

	for attempt := 1; attempt <= r.config.MaxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			if lastErr != nil {
				return unwrapMarker(lastErr)
			}
			return err
		}

		err := op(ctx)
		if err == nil {
			return nil
		}
		lastErr = err

		if isPermanent(err) || !r.shouldRetry(err) || attempt == r.config.MaxAttempts {
			return unwrapMarker(err)
		}

		delay := r.delay(attempt)
		if r.config.OnRetry != nil {
			r.config.OnRetry(attempt, err, delay)
		}

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return unwrapMarker(lastErr)
		case <-timer.C:
		}
	}

	return unwrapMarker(lastErr)
}

func (r *Retrier) shouldRetry(err error) bool {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	if r.config.RetryIf != nil {
		return r.config.RetryIf(err)
	}
	return isRetryable(err)
}

// delay returns initial * multiplier^(attempt-1), capped and jittered.
func (r *Retrier) delay(attempt int) time.Duration {
	d := float64(r.config.InitialDelay) * math.Pow(r.config.Multiplier, float64(attempt-1))
	if d > float64(r.config.MaxDelay) {
		d = float64(r.config.MaxDelay)
	}

	if r.config.JitterFactor > 0 {
		d += d * r.config.JitterFactor * (rand.Float64()*2 - 1)
	}

	if d < 0 {
		d = 0
	}
	return time.Duration(d)
}

func unwrapMarker(err error) error {
	var re *RetryableError
	if errors.As(err, &re) && err == error(re) {
		return re.Err
	}
	var pe *PermanentError
	if errors.As(err, &pe) && err == error(pe) {
		return pe.Err
	}
	return err
}

// DoWithData runs op under r and returns its value.
func DoWithData[T any](ctx context.Context, r *Retrier, op func(ctx context.Context) (T, error)) (T, error) {
	var result T
	err := r.Do(ctx, func(ctx context.Context) error {
		var opErr error
		result, opErr = op(ctx)
		return opErr
	})
	return result, err
}

// ═══════════════════════════════════════════════════════════════════════════
// PRESETS
// ═══════════════════════════════════════════════════════════════════════════

// StartupRetrier waits for a dependency (database, cache) that may still be
// starting: every failure is retried for roughly half a minute.
func StartupRetrier(onRetry func(attempt int, err error, delay time.Duration)) *Retrier {
	return New(
		WithMaxAttempts(8),
		WithInitialDelay(250*time.Millisecond),
		WithMaxDelay(8*time.Second),
		WithMultiplier(2.0),
		WithJitter(0.2),
		WithRetryIf(Always),
		WithOnRetry(onRetry),
	)
}

// ConflictRetrier repeats a write once, immediately, when retryIf recognises
// a constraint conflict.
func ConflictRetrier(retryIf func(error) bool) *Retrier {
	return New(
		WithMaxAttempts(2),
		WithInitialDelay(0),
		WithJitter(0),
		WithRetryIf(retryIf),
	)
}
