package query

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel/attribute"

	"github.com/gradebook-hub/gradebook/internal/domain/student"
)

// ══════════════════════════════════════════════════════════════════════════════
// LIST STUDENTS QUERY
// ══════════════════════════════════════════════════════════════════════════════

// ListStudentsQuery pages through students in id order.
type ListStudentsQuery struct {
	Skip  int
	Limit int
}

// ListStudentsHandler answers ListStudentsQuery.
type ListStudentsHandler struct {
	students student.Repository
}

// NewListStudentsHandler creates a new handler.
func NewListStudentsHandler(students student.Repository) *ListStudentsHandler {
	return &ListStudentsHandler{students: students}
}

// Handle validates the bounds and returns one page. An empty page is not an
// error.
func (h *ListStudentsHandler) Handle(ctx context.Context, q ListStudentsQuery) (list []*student.Student, err error) {
	ctx, span := tracer.Start(ctx, "ListStudents")
	span.SetAttributes(attribute.Int("list.skip", q.Skip), attribute.Int("list.limit", q.Limit))
	defer func() { endSpan(span, err) }()

	opts := student.ListOptions{Skip: q.Skip, Limit: q.Limit}
	if err := opts.Validate(); err != nil {
		return nil, err
	}

	list, err = h.students.List(ctx, opts)
	if err != nil {
		return nil, fmt.Errorf("list_students: %w", err)
	}
	return list, nil
}

// ══════════════════════════════════════════════════════════════════════════════
// SEARCH STUDENTS QUERY
// ══════════════════════════════════════════════════════════════════════════════

// SearchStudentsQuery finds students by a fragment of their name.
type SearchStudentsQuery struct {
	Name string
}

// SearchStudentsHandler answers SearchStudentsQuery.
type SearchStudentsHandler struct {
	students student.Repository
}

// NewSearchStudentsHandler creates a new handler.
func NewSearchStudentsHandler(students student.Repository) *SearchStudentsHandler {
	return &SearchStudentsHandler{students: students}
}

// Handle returns every student whose name contains the trimmed query,
// case-insensitively.
func (h *SearchStudentsHandler) Handle(ctx context.Context, q SearchStudentsQuery) (list []*student.Student, err error) {
	ctx, span := tracer.Start(ctx, "SearchStudents")
	defer func() { endSpan(span, err) }()

	name, err := student.NormalizeQuery(q.Name)
	if err != nil {
		return nil, err
	}

	list, err = h.students.Search(ctx, name)
	if err != nil {
		return nil, fmt.Errorf("search_students: %w", err)
	}
	span.SetAttributes(attribute.Int("search.results", len(list)))
	return list, nil
}
