// Package circuitbreaker stops calling a failing dependency for a while and
// lets callers degrade instead of waiting on it.
package circuitbreaker

import (
	"context"
	"errors"
	"sync"
	"time"
)

// State of a circuit breaker.
type State int

const (
	// StateClosed lets every call through.
	StateClosed State = iota
	// StateOpen rejects calls until the cool-down elapses.
	StateOpen
	// StateHalfOpen lets a few probe calls through.
	StateHalfOpen
)

// String returns the state name used in logs and metrics.
func (s State) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateOpen:
		return "open"
	case StateHalfOpen:
		return "half-open"
	default:
		return "unknown"
	}
}

var (
	// ErrCircuitOpen is returned without calling fn while the circuit is open.
	ErrCircuitOpen = errors.New("circuit breaker is open")
	// ErrTooManyRequests is returned when all half-open probe slots are taken.
	ErrTooManyRequests = errors.New("too many requests in half-open state")
)

// IsRejected reports whether err came from the breaker rather than from fn.
func IsRejected(err error) bool {
	return errors.Is(err, ErrCircuitOpen) || errors.Is(err, ErrTooManyRequests)
}

// ═══════════════════════════════════════════════════════════════════════════
// CONFIGURATION
// ═══════════════════════════════════════════════════════════════════════════

// Config holds circuit breaker configuration.
type Config struct {
	Name string

	// FailureThreshold consecutive failures open the circuit.
	FailureThreshold int

	// SuccessThreshold consecutive half-open successes close it again.
	SuccessThreshold int

	// Cooldown is spent in the open state before probing.
	Cooldown time.Duration

	// MaxHalfOpenRequests bounds concurrent probes.
	MaxHalfOpenRequests int

	// OnStateChange is called with the breaker lock held; keep it short.
	OnStateChange func(name string, from, to State)

	// IsFailure filters which errors count. Nil counts every error except
	// context cancellation.
	IsFailure func(error) bool
}

// DefaultConfig returns 5 failures to open, 2 successes to close, 30s cool-down.
func DefaultConfig(name string) Config {
	return Config{
		Name:                name,
		FailureThreshold:    5,
		SuccessThreshold:    2,
		Cooldown:            30 * time.Second,
		MaxHalfOpenRequests: 1,
	}
}

// Option configures a CircuitBreaker.
type Option func(*Config)

// WithFailureThreshold sets the failure threshold.
func WithFailureThreshold(n int) Option {
	return func(c *Config) {
		if n > 0 {
			c.FailureThreshold = n
		}
	}
}

// WithSuccessThreshold sets the success threshold.
func WithSuccessThreshold(n int) Option {
	return func(c *Config) {
		if n > 0 {
			c.SuccessThreshold = n
		}
	}
}

// WithCooldown sets how long the circuit stays open.
func WithCooldown(d time.Duration) Option {
	return func(c *Config) {
		if d > 0 {
			c.Cooldown = d
		}
	}
}

// WithMaxHalfOpenRequests sets the number of concurrent probes.
func WithMaxHalfOpenRequests(n int) Option {
	return func(c *Config) {
		if n > 0 {
			c.MaxHalfOpenRequests = n
		}
	}
}

// WithOnStateChange sets the state change callback.
func WithOnStateChange(fn func(name string, from, to State)) Option {
	return func(c *Config) {
		c.OnStateChange = fn
	}
}

// WithIsFailure sets the failure filter.
func WithIsFailure(fn func(error) bool) Option {
	return func(c *Config) {
		c.IsFailure = fn
	}
}

// ═══════════════════════════════════════════════════════════════════════════
// BREAKER
// ═══════════════════════════════════════════════════════════════════════════

// Counts are cumulative since creation.
type Counts struct {
	Requests             int
	TotalSuccesses       int
	TotalFailures        int
	Rejected             int
	ConsecutiveSuccesses int
	ConsecutiveFailures  int
}

// CircuitBreaker is safe for concurrent use.
type CircuitBreaker struct {
	config Config
	now    func() time.Time

	mu       sync.Mutex
	state    State
	counts   Counts
	openedAt time.Time
	probes   int
}

// New creates a closed breaker.
func New(name string, opts ...Option) *CircuitBreaker {
	config := DefaultConfig(name)
	for _, opt := range opts {
		opt(&config)
	}

	return &CircuitBreaker{
		config: config,
		now:    time.Now,
		state:  StateClosed,
	}
}

// Execute calls fn when the circuit allows it and records the outcome.
func (cb *CircuitBreaker) Execute(ctx context.Context, fn func(context.Context) error) error {
	if err := cb.allow(); err != nil {
		return err
	}

	err := fn(ctx)
	cb.record(err)

	return err
}

func (cb *CircuitBreaker) allow() error {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	switch cb.state {
	case StateClosed:
		return nil

	case StateOpen:
		if cb.now().Sub(cb.openedAt) < cb.config.Cooldown {
			cb.counts.Rejected++
			return ErrCircuitOpen
		}
		cb.transition(StateHalfOpen)
		cb.probes = 1
		return nil

	default:
		if cb.probes < cb.config.MaxHalfOpenRequests {
			cb.probes++
			return nil
		}
		cb.counts.Rejected++
		return ErrTooManyRequests
	}
}

func (cb *CircuitBreaker) record(err error) {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	cb.counts.Requests++

	if !cb.isFailure(err) {
		cb.counts.TotalSuccesses++
		cb.counts.ConsecutiveSuccesses++
		cb.counts.ConsecutiveFailures = 0

		if cb.state == StateHalfOpen {
			if cb.probes > 0 {
				cb.probes--
			}
			if cb.counts.ConsecutiveSuccesses >= cb.config.SuccessThreshold {
				cb.transition(StateClosed)
			}
		}
		return
	}

	cb.counts.TotalFailures++
	cb.counts.ConsecutiveFailures++
	cb.counts.ConsecutiveSuccesses = 0

	switch cb.state {
	case StateClosed:
		if cb.counts.ConsecutiveFailures >= cb.config.FailureThreshold {
			cb.trip()
		}
	case StateHalfOpen:
		cb.trip()
	}
}

func (cb *CircuitBreaker) isFailure(err error) bool {
	if err == nil {
		return false
	}
	if cb.config.IsFailure != nil {
		return cb.config.IsFailure(err)
	}
	return !errors.Is(err, context.Canceled)
}

func (cb *CircuitBreaker) trip() {
	cb.openedAt = cb.now()
	cb.transition(StateOpen)
}

func (cb *CircuitBreaker) transition(to State) {
	if cb.state == to {
		return
	}

	from := cb.state
	cb.state = to
	cb.counts.ConsecutiveSuccesses = 0
	cb.counts.ConsecutiveFailures = 0
	cb.probes = 0

	if cb.config.OnStateChange != nil {
		cb.config.OnStateChange(cb.config.Name, from, to)
	}
}

// State returns the current state. An open breaker whose cool-down has
// elapsed still reports open until the next call probes it.
func (cb *CircuitBreaker) State() State {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.state
}

func (cb *CircuitBreaker) snapshot() Counts {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.counts
}

// ═══════════════════════════════════════════════════════════════════════════
// PRESETS
// ═══════════════════════════════════════════════════════════════════════════

// CacheBreaker guards the Redis cache. The cache is optional, so it trips
// early and probes again soon: a few slow misses cost less than piling up
// requests behind a dead cache. A caller that gave up (cancelled or past its
// own deadline) says nothing about Redis and is not counted.
func CacheBreaker(onStateChange func(name string, from, to State)) *CircuitBreaker {
	return New(
		"redis-cache",
		WithFailureThreshold(3),
		WithSuccessThreshold(1),
		WithCooldown(10*time.Second),
		WithMaxHalfOpenRequests(1),
		WithOnStateChange(onStateChange),
		WithIsFailure(func(err error) bool {
			return !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded)
		}),
	)
}
