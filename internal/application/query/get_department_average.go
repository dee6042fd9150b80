package query

import (
	"context"
	"fmt"
	"strings"

	"go.opentelemetry.io/otel/attribute"

	"github.com/gradebook-hub/gradebook/internal/domain/score"
	"github.com/gradebook-hub/gradebook/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// GET DEPARTMENT AVERAGE QUERY
// Mean over every score of every student whose department matches
// case-insensitively, with the number of matching students and scores.
// ══════════════════════════════════════════════════════════════════════════════

// GetDepartmentAverageQuery names the department.
type GetDepartmentAverageQuery struct {
	Department string
}

// GetDepartmentAverageHandler answers GetDepartmentAverageQuery.
type GetDepartmentAverageHandler struct {
	scores score.Repository
	cache  score.AggregateCache
	clock  *WriteClock
	reads  flights
}

// NewGetDepartmentAverageHandler creates a new handler. cache and clock may be nil.
func NewGetDepartmentAverageHandler(scores score.Repository, cache score.AggregateCache, clock *WriteClock) *GetDepartmentAverageHandler {
	return &GetDepartmentAverageHandler{
		scores: scores,
		cache:  aggregateCacheOrNop(cache),
		clock:  clock,
		reads:  flights{clock: clock},
	}
}

// Handle returns the department aggregate or shared.ErrDepartmentNotFound
// when no matching student has a score. Department in the result is the
// trimmed argument, not the stored spelling.
func (h *GetDepartmentAverageHandler) Handle(ctx context.Context, q GetDepartmentAverageQuery) (avg *score.DepartmentAverage, err error) {
	ctx, span := tracer.Start(ctx, "GetDepartmentAverage")
	defer func() { endSpan(span, err) }()

	department := strings.TrimSpace(q.Department)
	span.SetAttributes(attribute.String("student.department", department))
	if department == "" {
		return nil, shared.ErrDepartmentNotFound
	}

	if cached, err := h.cache.GetDepartmentAverage(ctx, department); err == nil {
		span.SetAttributes(cacheHit(true))
		cached.Department = department
		return cached, nil
	}
	span.SetAttributes(cacheHit(false))

	v, err := h.reads.do(ctx, department, func(ctx context.Context) (any, error) {
		start := h.clock.Now()
		stats, err := h.scores.DepartmentStats(ctx, department)
		if err != nil {
			return nil, fmt.Errorf("department_average: %w", err)
		}
		if stats.ScoreCount == 0 {
			return nil, shared.ErrDepartmentNotFound
		}

		result := &score.DepartmentAverage{
			Department:   department,
			Average:      score.Round2(stats.Average),
			StudentCount: stats.StudentCount,
			ScoreCount:   stats.ScoreCount,
		}
		fill(ctx, h.clock, start,
			func(ctx context.Context) error { return h.cache.SetDepartmentAverage(ctx, department, result) },
			func(ctx context.Context) error { return h.cache.DeleteDepartmentAverage(ctx, department) },
		)
		return result, nil
	})
	if err != nil {
		return nil, err
	}

	result := *v.(*score.DepartmentAverage)
	result.Department = department
	return &result, nil
}
