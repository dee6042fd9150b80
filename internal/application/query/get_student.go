package query

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel/attribute"

	"github.com/gradebook-hub/gradebook/internal/domain/shared"
	"github.com/gradebook-hub/gradebook/internal/domain/student"
)

// ══════════════════════════════════════════════════════════════════════════════
// GET STUDENT QUERY
// ══════════════════════════════════════════════════════════════════════════════

// GetStudentQuery identifies one student.
type GetStudentQuery struct {
	StudentID int64
}

// Validate checks the query parameters.
func (q GetStudentQuery) Validate() error {
	if q.StudentID <= 0 {
		return shared.ValidationError("student", "Get", "student_id", shared.ErrValueOutOfRange,
			"student id must be a positive integer")
	}
	return nil
}

// GetStudentHandler answers GetStudentQuery, reading through the student cache.
type GetStudentHandler struct {
	students student.Repository
	cache    student.Cache
	clock    *WriteClock
}

// NewGetStudentHandler creates a new handler. cache and clock may be nil.
func NewGetStudentHandler(students student.Repository, cache student.Cache, clock *WriteClock) *GetStudentHandler {
	return &GetStudentHandler{
		students: students,
		cache:    studentCacheOrNop(cache),
		clock:    clock,
	}
}

// Handle returns the student or shared.ErrStudentNotFound.
func (h *GetStudentHandler) Handle(ctx context.Context, q GetStudentQuery) (st *student.Student, err error) {
	ctx, span := tracer.Start(ctx, "GetStudent")
	span.SetAttributes(attribute.Int64("student.id", q.StudentID))
	defer func() { endSpan(span, err) }()

	if err := q.Validate(); err != nil {
		return nil, err
	}

	if cached, err := h.cache.Get(ctx, q.StudentID); err == nil {
		span.SetAttributes(cacheHit(true))
		return cached, nil
	}
	span.SetAttributes(cacheHit(false))

	start := h.clock.Now()
	st, err = h.students.GetByID(ctx, q.StudentID)
	if err != nil {
		return nil, fmt.Errorf("get_student: %w", err)
	}

	fill(ctx, h.clock, start,
		func(ctx context.Context) error { return h.cache.Set(ctx, st) },
		func(ctx context.Context) error { return h.cache.Delete(ctx, q.StudentID) },
	)
	return st, nil
}
