package command

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel/attribute"

	"github.com/gradebook-hub/gradebook/internal/domain/shared"
	"github.com/gradebook-hub/gradebook/internal/domain/student"
)

// ══════════════════════════════════════════════════════════════════════════════
// DELETE STUDENT COMMAND
// Removes a student together with every score it owns.
// ══════════════════════════════════════════════════════════════════════════════

// DeleteStudentCommand identifies the student to delete.
type DeleteStudentCommand struct {
	StudentID     int64
	CorrelationID string
}

// Validate validates the command.
func (c DeleteStudentCommand) Validate() error {
	if c.StudentID <= 0 {
		return shared.ValidationError("student", "Delete", "student_id", shared.ErrValueOutOfRange,
			"student id must be a positive integer")
	}
	return nil
}

// DeleteStudentHandler handles the DeleteStudentCommand.
type DeleteStudentHandler struct {
	students       student.Repository
	eventPublisher shared.EventPublisher
}

// NewDeleteStudentHandler creates a new DeleteStudentHandler.
func NewDeleteStudentHandler(students student.Repository, eventPublisher shared.EventPublisher) *DeleteStudentHandler {
	return &DeleteStudentHandler{
		students:       students,
		eventPublisher: publisherOrNop(eventPublisher),
	}
}

// Handle deletes the student. The cascade to scores happens in the same
// storage statement.
func (h *DeleteStudentHandler) Handle(ctx context.Context, cmd DeleteStudentCommand) (err error) {
	ctx, span := tracer.Start(ctx, "DeleteStudent")
	span.SetAttributes(attribute.Int64("student.id", cmd.StudentID))
	defer func() { endSpan(span, err) }()

	if err := cmd.Validate(); err != nil {
		return err
	}

	// Loaded first so the event can name the department whose aggregate changed.
	st, err := h.students.GetByID(ctx, cmd.StudentID)
	if err != nil {
		return fmt.Errorf("delete_student: %w", err)
	}

	if err := h.students.Delete(ctx, cmd.StudentID); err != nil {
		return fmt.Errorf("delete_student: %w", err)
	}

	event := shared.NewStudentDeletedEvent(st.ID, st.Department)
	event.BaseEvent = event.WithCorrelationID(cmd.CorrelationID)
	_ = h.eventPublisher.Publish(ctx, event)

	return nil
}
