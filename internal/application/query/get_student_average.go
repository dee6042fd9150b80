package query

import (
	"context"
	"fmt"
	"strconv"

	"go.opentelemetry.io/otel/attribute"

	"github.com/gradebook-hub/gradebook/internal/domain/score"
	"github.com/gradebook-hub/gradebook/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// GET STUDENT AVERAGE QUERY
// ══════════════════════════════════════════════════════════════════════════════

// GetStudentAverageQuery asks for the mean of one student's scores.
type GetStudentAverageQuery struct {
	StudentID int64
}

// Validate checks the query parameters.
func (q GetStudentAverageQuery) Validate() error {
	if q.StudentID <= 0 {
		return shared.ValidationError("score", "Average", "student_id", shared.ErrValueOutOfRange,
			"student id must be a positive integer")
	}
	return nil
}

// StudentAverageDTO is the rounded mean of a student's scores.
type StudentAverageDTO struct {
	StudentID int64   `json:"student_id"`
	Average   float64 `json:"average"`
}

// GetStudentAverageHandler answers GetStudentAverageQuery.
type GetStudentAverageHandler struct {
	scores score.Repository
	cache  score.AggregateCache
	clock  *WriteClock
	reads  flights
}

// NewGetStudentAverageHandler creates a new handler. cache and clock may be
// nil; without a clock concurrent misses are not collapsed.
func NewGetStudentAverageHandler(scores score.Repository, cache score.AggregateCache, clock *WriteClock) *GetStudentAverageHandler {
	return &GetStudentAverageHandler{
		scores: scores,
		cache:  aggregateCacheOrNop(cache),
		clock:  clock,
		reads:  flights{clock: clock},
	}
}

// Handle returns the average rounded to two decimals. It fails with
// shared.ErrStudentNotFound for an unknown student and shared.ErrNoScores
// for a student without scores.
func (h *GetStudentAverageHandler) Handle(ctx context.Context, q GetStudentAverageQuery) (dto *StudentAverageDTO, err error) {
	ctx, span := tracer.Start(ctx, "GetStudentAverage")
	span.SetAttributes(attribute.Int64("student.id", q.StudentID))
	defer func() { endSpan(span, err) }()

	if err := q.Validate(); err != nil {
		return nil, err
	}

	if avg, err := h.cache.GetStudentAverage(ctx, q.StudentID); err == nil {
		span.SetAttributes(cacheHit(true))
		return &StudentAverageDTO{StudentID: q.StudentID, Average: avg}, nil
	}
	span.SetAttributes(cacheHit(false))

	v, err := h.reads.do(ctx, strconv.FormatInt(q.StudentID, 10), func(ctx context.Context) (any, error) {
		start := h.clock.Now()
		stats, err := h.scores.StudentStats(ctx, q.StudentID)
		if err != nil {
			return nil, fmt.Errorf("student_average: %w", err)
		}
		if stats.ScoreCount == 0 {
			return nil, shared.ErrNoScores
		}

		avg := score.Round2(stats.Average)
		fill(ctx, h.clock, start,
			func(ctx context.Context) error { return h.cache.SetStudentAverage(ctx, q.StudentID, avg) },
			func(ctx context.Context) error { return h.cache.DeleteStudentAverage(ctx, q.StudentID) },
		)
		return avg, nil
	})
	if err != nil {
		return nil, err
	}

	return &StudentAverageDTO{StudentID: q.StudentID, Average: v.(float64)}, nil
}
