package handlers

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"
)

// ══════════════════════════════════════════════════════════════════════════════
// HEALTH CHECK INTERFACES
// ══════════════════════════════════════════════════════════════════════════════

// HealthChecker reports the state of the gradebook's dependencies.
type HealthChecker interface {
	Check(ctx context.Context) HealthStatus
}

// HealthCheckFunc probes one dependency; a non-nil error marks it down.
type HealthCheckFunc func(ctx context.Context) error

// HealthStatus is the body of /health.
type HealthStatus struct {
	// Healthy is false when a required check failed.
	Healthy bool `json:"healthy"`

	// Ready mirrors Healthy; /ready answers 503 while it is false.
	Ready bool `json:"ready"`

	// Degraded is true when only optional checks failed.
	Degraded bool `json:"degraded,omitempty"`

	Message   string                 `json:"message,omitempty"`
	Checks    map[string]CheckResult `json:"checks,omitempty"`
	Uptime    string                 `json:"uptime,omitempty"`
	Timestamp time.Time              `json:"timestamp"`
	Version   string                 `json:"version,omitempty"`
}

// CheckResult is the outcome of one probe.
type CheckResult struct {
	Healthy  bool   `json:"healthy"`
	Optional bool   `json:"optional,omitempty"`
	Message  string `json:"message,omitempty"`
	Duration string `json:"duration,omitempty"`
}

// ══════════════════════════════════════════════════════════════════════════════
// COMPOSITE HEALTH CHECKER
// ══════════════════════════════════════════════════════════════════════════════

type namedCheck struct {
	fn       HealthCheckFunc
	optional bool
}

// CompositeHealthChecker runs named probes in parallel under one timeout.
type CompositeHealthChecker struct {
	mu        sync.RWMutex
	checks    map[string]namedCheck
	startTime time.Time
	version   string
	timeout   time.Duration
}

// NewCompositeHealthChecker returns a checker with a 3s probe timeout.
func NewCompositeHealthChecker(version string) *CompositeHealthChecker {
	return &CompositeHealthChecker{
		checks:    make(map[string]namedCheck),
		startTime: time.Now(),
		version:   version,
		timeout:   3 * time.Second,
	}
}

// SetTimeout bounds each probe.
func (c *CompositeHealthChecker) SetTimeout(timeout time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.timeout = timeout
}

// AddCheck adds a check whose failure makes the service unhealthy.
func (c *CompositeHealthChecker) AddCheck(name string, check HealthCheckFunc) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.checks[name] = namedCheck{fn: check}
}

// AddOptionalCheck adds a check whose failure only degrades the service.
func (c *CompositeHealthChecker) AddOptionalCheck(name string, check HealthCheckFunc) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.checks[name] = namedCheck{fn: check, optional: true}
}

// Check runs every probe and folds the results.
func (c *CompositeHealthChecker) Check(ctx context.Context) HealthStatus {
	c.mu.RLock()
	checks := make(map[string]namedCheck, len(c.checks))
	for name, check := range c.checks {
		checks[name] = check
	}
	timeout := c.timeout
	c.mu.RUnlock()

	status := HealthStatus{
		Healthy:   true,
		Ready:     true,
		Checks:    make(map[string]CheckResult, len(checks)),
		Uptime:    time.Since(c.startTime).Round(time.Second).String(),
		Timestamp: time.Now().UTC(),
		Version:   c.version,
	}

	if len(checks) == 0 {
		status.Message = "No health checks registered"
		return status
	}

	type outcome struct {
		name   string
		result CheckResult
	}

	var wg sync.WaitGroup
	results := make(chan outcome, len(checks))

	for name, check := range checks {
		wg.Add(1)
		go func(name string, check namedCheck) {
			defer wg.Done()

			checkCtx, cancel := context.WithTimeout(ctx, timeout)
			defer cancel()

			start := time.Now()
			err := check.fn(checkCtx)

			result := CheckResult{
				Healthy:  err == nil,
				Optional: check.optional,
				Message:  "OK",
				Duration: time.Since(start).Round(time.Millisecond).String(),
			}
			if err != nil {
				result.Message = err.Error()
			}

			results <- outcome{name, result}
		}(name, check)
	}

	wg.Wait()
	close(results)

	var failed []string
	for r := range results {
		status.Checks[r.name] = r.result
		if r.result.Healthy {
			continue
		}
		failed = append(failed, r.name)
		if r.result.Optional {
			status.Degraded = true
		} else {
			status.Healthy = false
			status.Ready = false
		}
	}
	sort.Strings(failed)

	switch {
	case len(failed) == 0:
		status.Message = "All checks passed"
	case status.Healthy:
		status.Message = "Degraded: " + strings.Join(failed, ", ")
	default:
		status.Message = "Some checks failed: " + strings.Join(failed, ", ")
	}

	return status
}

// ══════════════════════════════════════════════════════════════════════════════
// PREDEFINED HEALTH CHECKS
// ══════════════════════════════════════════════════════════════════════════════

// Pinger is anything that can verify its own connectivity.
type Pinger interface {
	Ping(ctx context.Context) error
}

// NewDatabaseCheck creates a storage health check function.
func NewDatabaseCheck(db Pinger) HealthCheckFunc {
	return func(ctx context.Context) error {
		return db.Ping(ctx)
	}
}

// NewCacheCheck creates a cache health check function.
func NewCacheCheck(cache Pinger) HealthCheckFunc {
	return func(ctx context.Context) error {
		return cache.Ping(ctx)
	}
}
