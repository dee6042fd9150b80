package command

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel/attribute"

	"github.com/gradebook-hub/gradebook/internal/domain/score"
	"github.com/gradebook-hub/gradebook/internal/domain/shared"
	"github.com/gradebook-hub/gradebook/internal/domain/student"
)

// ══════════════════════════════════════════════════════════════════════════════
// UPSERT SCORE COMMAND
// Records the latest value of a subject for a student. A subject that already
// exists for the student, compared case-insensitively, gets its value
// overwritten; otherwise a new score is inserted.
// ══════════════════════════════════════════════════════════════════════════════

// UpsertScoreCommand contains the score to record.
type UpsertScoreCommand struct {
	StudentID     int64
	Subject       string
	Value         float64
	CorrelationID string
}

// Validate validates the command.
func (c UpsertScoreCommand) Validate() error {
	if c.StudentID <= 0 {
		return shared.ValidationError("score", "Upsert", "student_id", shared.ErrValueOutOfRange,
			"student id must be a positive integer")
	}
	return nil
}

// UpsertScoreHandler handles the UpsertScoreCommand.
type UpsertScoreHandler struct {
	students       student.Repository
	scores         score.Repository
	eventPublisher shared.EventPublisher
}

// NewUpsertScoreHandler creates a new UpsertScoreHandler.
func NewUpsertScoreHandler(
	students student.Repository,
	scores score.Repository,
	eventPublisher shared.EventPublisher,
) *UpsertScoreHandler {
	return &UpsertScoreHandler{
		students:       students,
		scores:         scores,
		eventPublisher: publisherOrNop(eventPublisher),
	}
}

// Handle resolves the student, validates the score and upserts it.
// An unknown student is reported before any validation error.
func (h *UpsertScoreHandler) Handle(ctx context.Context, cmd UpsertScoreCommand) (result *score.UpsertResult, err error) {
	ctx, span := tracer.Start(ctx, "UpsertScore")
	span.SetAttributes(attribute.Int64("student.id", cmd.StudentID))
	defer func() { endSpan(span, err) }()

	if err := cmd.Validate(); err != nil {
		return nil, err
	}

	st, err := h.students.GetByID(ctx, cmd.StudentID)
	if err != nil {
		return nil, fmt.Errorf("upsert_score: %w", err)
	}

	candidate, err := score.NewScore(st.ID, cmd.Subject, cmd.Value)
	if err != nil {
		return nil, err
	}

	result, err = h.scores.Upsert(ctx, candidate)
	if err != nil {
		return nil, fmt.Errorf("upsert_score: %w", err)
	}
	span.SetAttributes(
		attribute.Int64("score.id", result.Score.ID),
		attribute.Bool("score.created", result.Created),
	)

	event := shared.NewScoreRecordedEvent(
		result.Score.ID,
		st.ID,
		result.Score.Subject,
		result.Score.Value,
		st.Department,
		result.Created,
	)
	event.BaseEvent = event.WithCorrelationID(cmd.CorrelationID)
	_ = h.eventPublisher.Publish(ctx, event)

	return result, nil
}
