// Package eventhandler reacts to domain events published by the command side.
package eventhandler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/gradebook-hub/gradebook/internal/domain/score"
	"github.com/gradebook-hub/gradebook/internal/domain/shared"
	"github.com/gradebook-hub/gradebook/internal/domain/student"
)

// ══════════════════════════════════════════════════════════════════════════════
// CACHE INVALIDATOR
// Drops every cached entry a write may have made stale:
//
//	student.created  -> department aggregate
//	student.deleted  -> student, its average, department aggregate, all top scorers
//	score.recorded   -> student average, subject top scorer, department aggregate
// ══════════════════════════════════════════════════════════════════════════════

// CacheInvalidator subscribes to the event bus and evicts stale cache entries.
type CacheInvalidator struct {
	students   student.Cache
	aggregates score.AggregateCache
	logger     *slog.Logger
}

// NewCacheInvalidator creates a new CacheInvalidator. Nil caches are no-ops.
func NewCacheInvalidator(students student.Cache, aggregates score.AggregateCache, logger *slog.Logger) *CacheInvalidator {
	if students == nil {
		students = student.NopCache{}
	}
	if aggregates == nil {
		aggregates = score.NopAggregateCache{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &CacheInvalidator{
		students:   students,
		aggregates: aggregates,
		logger:     logger.With("component", "cache_invalidator"),
	}
}

// Register subscribes the invalidator to every event type it handles.
func (c *CacheInvalidator) Register(bus shared.EventSubscriber) error {
	subscriptions := map[shared.EventType]shared.EventHandler{
		shared.EventStudentCreated: c.OnStudentCreated,
		shared.EventStudentDeleted: c.OnStudentDeleted,
		shared.EventScoreRecorded:  c.OnScoreRecorded,
	}
	for eventType, handler := range subscriptions {
		if err := bus.Subscribe(eventType, handler); err != nil {
			return fmt.Errorf("subscribe %s: %w", eventType, err)
		}
	}
	return nil
}

// OnStudentCreated handles student.created. A new student changes the
// student count of its department.
func (c *CacheInvalidator) OnStudentCreated(ctx context.Context, event shared.Event) error {
	e, ok := event.(shared.StudentCreatedEvent)
	if !ok {
		return unexpected(event)
	}

	err := c.aggregates.DeleteDepartmentAverage(ctx, e.Department)
	c.logResult(event, err)
	return err
}

// OnStudentDeleted handles student.deleted.
func (c *CacheInvalidator) OnStudentDeleted(ctx context.Context, event shared.Event) error {
	e, ok := event.(shared.StudentDeletedEvent)
	if !ok {
		return unexpected(event)
	}

	// The deleted scores' subjects are unknown here, hence the full sweep.
	err := errors.Join(
		c.students.Delete(ctx, e.StudentID),
		c.aggregates.DeleteStudentAverage(ctx, e.StudentID),
		c.aggregates.DeleteDepartmentAverage(ctx, e.Department),
		c.aggregates.DeleteAllTopScorers(ctx),
	)
	c.logResult(event, err)
	return err
}

// OnScoreRecorded handles score.recorded.
func (c *CacheInvalidator) OnScoreRecorded(ctx context.Context, event shared.Event) error {
	e, ok := event.(shared.ScoreRecordedEvent)
	if !ok {
		return unexpected(event)
	}

	err := errors.Join(
		c.aggregates.DeleteStudentAverage(ctx, e.StudentID),
		c.aggregates.DeleteTopScorer(ctx, e.Subject),
		c.aggregates.DeleteDepartmentAverage(ctx, e.Department),
	)
	c.logResult(event, err)
	return err
}

func (c *CacheInvalidator) logResult(event shared.Event, err error) {
	if err != nil {
		c.logger.Warn("cache invalidation incomplete",
			"event_type", event.EventType(),
			"aggregate_id", event.AggregateID(),
			"error", err,
		)
		return
	}
	c.logger.Debug("cache invalidated",
		"event_type", event.EventType(),
		"aggregate_id", event.AggregateID(),
	)
}

func unexpected(event shared.Event) error {
	return fmt.Errorf("unexpected event %T for %s", event, event.EventType())
}
