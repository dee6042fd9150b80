package command

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel/attribute"

	"github.com/gradebook-hub/gradebook/internal/domain/shared"
	"github.com/gradebook-hub/gradebook/internal/domain/student"
)

// ══════════════════════════════════════════════════════════════════════════════
// CREATE STUDENT COMMAND
// ══════════════════════════════════════════════════════════════════════════════

// CreateStudentCommand contains the data needed to register a student.
type CreateStudentCommand struct {
	Name       string
	Department string

	// CorrelationID for tracing across services.
	CorrelationID string
}

// CreateStudentHandler handles the CreateStudentCommand.
type CreateStudentHandler struct {
	students       student.Repository
	eventPublisher shared.EventPublisher
}

// NewCreateStudentHandler creates a new CreateStudentHandler.
func NewCreateStudentHandler(students student.Repository, eventPublisher shared.EventPublisher) *CreateStudentHandler {
	return &CreateStudentHandler{
		students:       students,
		eventPublisher: publisherOrNop(eventPublisher),
	}
}

// Handle trims and validates the input, stores the student and returns it
// with its assigned id.
func (h *CreateStudentHandler) Handle(ctx context.Context, cmd CreateStudentCommand) (st *student.Student, err error) {
	ctx, span := tracer.Start(ctx, "CreateStudent")
	defer func() { endSpan(span, err) }()

	st, err = student.NewStudent(cmd.Name, cmd.Department)
	if err != nil {
		return nil, err
	}

	if err := h.students.Create(ctx, st); err != nil {
		return nil, fmt.Errorf("create_student: %w", err)
	}
	span.SetAttributes(attribute.Int64("student.id", st.ID))

	event := shared.NewStudentCreatedEvent(st.ID, st.Name, st.Department)
	event.BaseEvent = event.WithCorrelationID(cmd.CorrelationID)
	_ = h.eventPublisher.Publish(ctx, event)

	return st, nil
}
