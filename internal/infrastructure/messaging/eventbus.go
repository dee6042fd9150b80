// Package messaging implements the in-process event bus that carries domain
// events from the command side to cache invalidation and other listeners.
package messaging

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/gradebook-hub/gradebook/internal/domain/shared"
)

// ErrEventBusClosed is returned when publishing or subscribing after Close.
var ErrEventBusClosed = errors.New("event bus is closed")

// ══════════════════════════════════════════════════════════════════════════════
// IN-MEMORY EVENT BUS
// ══════════════════════════════════════════════════════════════════════════════

// InMemoryEventBus dispatches events to handlers registered in this process.
// In sync mode Publish returns after every handler ran, so a write's cache
// invalidation is visible to the very next read.
type InMemoryEventBus struct {
	mu          sync.RWMutex
	handlers    map[shared.EventType][]shared.EventHandler
	allHandlers []shared.EventHandler
	asyncMode   bool
	workerPool  chan struct{}
	logger      *slog.Logger
	metrics     *EventBusMetrics
	closed      bool
	wg          sync.WaitGroup
}

// InMemoryEventBusConfig contains configuration for InMemoryEventBus.
type InMemoryEventBusConfig struct {
	// AsyncMode runs handlers on a bounded worker pool instead of inline.
	AsyncMode bool

	// WorkerPoolSize caps concurrent handlers in async mode.
	WorkerPoolSize int

	Logger *slog.Logger

	// Registerer receives the bus metrics. Nil disables metrics.
	Registerer prometheus.Registerer
}

// DefaultInMemoryEventBusConfig returns a synchronous bus without metrics.
func DefaultInMemoryEventBusConfig() InMemoryEventBusConfig {
	return InMemoryEventBusConfig{
		AsyncMode:      false,
		WorkerPoolSize: 8,
	}
}

// NewInMemoryEventBus creates a new in-memory event bus.
func NewInMemoryEventBus(config InMemoryEventBusConfig) *InMemoryEventBus {
	if config.Logger == nil {
		config.Logger = slog.Default()
	}
	if config.WorkerPoolSize <= 0 {
		config.WorkerPoolSize = 8
	}

	bus := &InMemoryEventBus{
		handlers:    make(map[shared.EventType][]shared.EventHandler),
		allHandlers: make([]shared.EventHandler, 0),
		asyncMode:   config.AsyncMode,
		workerPool:  make(chan struct{}, config.WorkerPoolSize),
		logger:      config.Logger.With("component", "eventbus"),
	}

	if config.Registerer != nil {
		bus.metrics = NewEventBusMetrics(config.Registerer)
	}

	return bus
}

// Subscribe registers a handler for a specific event type.
func (b *InMemoryEventBus) Subscribe(eventType shared.EventType, handler shared.EventHandler) error {
	if handler == nil {
		return errors.New("handler cannot be nil")
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return ErrEventBusClosed
	}

	b.handlers[eventType] = append(b.handlers[eventType], handler)
	b.logger.Debug("subscribed handler", "event_type", eventType)

	return nil
}

// SubscribeAll registers a handler for all events.
func (b *InMemoryEventBus) SubscribeAll(handler shared.EventHandler) error {
	if handler == nil {
		return errors.New("handler cannot be nil")
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return ErrEventBusClosed
	}

	b.allHandlers = append(b.allHandlers, handler)
	b.logger.Debug("subscribed global handler")

	return nil
}

// Publish sends an event to all subscribed handlers. Handler failures are
// logged and counted but never returned: the write that produced the event
// has already committed.
func (b *InMemoryEventBus) Publish(ctx context.Context, event shared.Event) error {
	if event == nil {
		return errors.New("event cannot be nil")
	}

	b.mu.RLock()
	if b.closed {
		b.mu.RUnlock()
		return ErrEventBusClosed
	}

	handlers := make([]shared.EventHandler, 0, len(b.handlers[event.EventType()])+len(b.allHandlers))
	handlers = append(handlers, b.handlers[event.EventType()]...)
	handlers = append(handlers, b.allHandlers...)
	if b.asyncMode {
		// Registered under the lock so Close cannot miss them.
		b.wg.Add(len(handlers))
	}
	b.mu.RUnlock()

	if b.metrics != nil {
		b.metrics.RecordPublish(event.EventType())
	}

	if len(handlers) == 0 {
		b.logger.Debug("no handlers for event", "event_type", event.EventType())
		return nil
	}

	if b.asyncMode {
		// Handlers outlive the request that published the event.
		detached := context.WithoutCancel(ctx)
		for _, handler := range handlers {
			b.executeAsync(detached, event, handler)
		}
		return nil
	}

	for _, handler := range handlers {
		if err := b.execute(ctx, event, handler); err != nil {
			b.logger.Error("handler error",
				"event_type", event.EventType(),
				"aggregate_id", event.AggregateID(),
				"error", err,
			)
		}
	}

	return nil
}

// executeAsync executes a handler asynchronously using the worker pool.
// The caller has already added it to the wait group.
func (b *InMemoryEventBus) executeAsync(ctx context.Context, event shared.Event, handler shared.EventHandler) {
	go func() {
		defer b.wg.Done()

		b.workerPool <- struct{}{}
		defer func() { <-b.workerPool }()

		if err := b.execute(ctx, event, handler); err != nil {
			b.logger.Error("async handler error",
				"event_type", event.EventType(),
				"aggregate_id", event.AggregateID(),
				"error", err,
			)
		}
	}()
}

// execute runs one handler, converting a panic into an error.
func (b *InMemoryEventBus) execute(ctx context.Context, event shared.Event, handler shared.EventHandler) (err error) {
	start := time.Now()

	defer func() {
		if r := recover(); r != nil {
			b.logger.Error("handler panic recovered",
				"event_type", event.EventType(),
				"panic", r,
				"stack", string(debug.Stack()),
			)
			err = fmt.Errorf("handler panic: %v", r)
		}
		if b.metrics != nil {
			b.metrics.RecordHandlerExecution(event.EventType(), time.Since(start), err == nil)
		}
	}()

	return handler(ctx, event)
}

// Close stops accepting events and waits for in-flight async handlers.
func (b *InMemoryEventBus) Close() error {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return nil
	}
	b.closed = true
	b.mu.Unlock()

	b.wg.Wait()

	b.logger.Info("event bus closed")
	return nil
}

// Compile-time interface check.
var _ shared.EventBus = (*InMemoryEventBus)(nil)

// ══════════════════════════════════════════════════════════════════════════════
// METRICS
// ══════════════════════════════════════════════════════════════════════════════

// EventBusMetrics exports event bus activity to Prometheus.
type EventBusMetrics struct {
	published       *prometheus.CounterVec
	handlerRuns     *prometheus.CounterVec
	handlerDuration *prometheus.HistogramVec
}

// NewEventBusMetrics registers the bus collectors on reg.
func NewEventBusMetrics(reg prometheus.Registerer) *EventBusMetrics {
	factory := promauto.With(reg)

	return &EventBusMetrics{
		published: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "gradebook",
				Subsystem: "eventbus",
				Name:      "events_published_total",
				Help:      "Total number of domain events published.",
			},
			[]string{"event_type"},
		),
		handlerRuns: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "gradebook",
				Subsystem: "eventbus",
				Name:      "handler_executions_total",
				Help:      "Total number of event handler executions by outcome.",
			},
			[]string{"event_type", "status"},
		),
		handlerDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "gradebook",
				Subsystem: "eventbus",
				Name:      "handler_duration_seconds",
				Help:      "Execution time of event handlers.",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"event_type"},
		),
	}
}

// RecordPublish counts a published event.
func (m *EventBusMetrics) RecordPublish(eventType shared.EventType) {
	m.published.WithLabelValues(string(eventType)).Inc()
}

// RecordHandlerExecution records one handler run.
func (m *EventBusMetrics) RecordHandlerExecution(eventType shared.EventType, duration time.Duration, success bool) {
	status := "success"
	if !success {
		status = "failure"
	}
	m.handlerRuns.WithLabelValues(string(eventType), status).Inc()
	m.handlerDuration.WithLabelValues(string(eventType)).Observe(duration.Seconds())
}
