package shared

import (
	"context"
	"strconv"
	"time"
)

// EventType represents the type of domain event.
type EventType string

// Domain event types. Each one is published after its write has committed.
const (
	EventStudentCreated EventType = "student.created"
	EventStudentDeleted EventType = "student.deleted"
	EventScoreRecorded  EventType = "score.recorded"
)

// Event is the base interface for all domain events.
type Event interface {
	// EventType returns the type of the event.
	EventType() EventType

	// OccurredAt returns when the event occurred.
	OccurredAt() time.Time

	// AggregateID returns the ID of the aggregate that produced this event.
	AggregateID() string

	// Payload returns the event data as a map for serialization.
	Payload() map[string]interface{}
}

// BaseEvent provides common event functionality.
type BaseEvent struct {
	Type          EventType `json:"type"`
	Timestamp     time.Time `json:"timestamp"`
	AggregateId   string    `json:"aggregate_id"`
	CorrelationID string    `json:"correlation_id,omitempty"`
}

// EventType implements Event interface.
func (e BaseEvent) EventType() EventType {
	return e.Type
}

// OccurredAt implements Event interface.
func (e BaseEvent) OccurredAt() time.Time {
	return e.Timestamp
}

// AggregateID implements Event interface.
func (e BaseEvent) AggregateID() string {
	return e.AggregateId
}

// NewBaseEvent creates a new base event keyed by a numeric aggregate id.
func NewBaseEvent(eventType EventType, aggregateID int64) BaseEvent {
	return BaseEvent{
		Type:        eventType,
		Timestamp:   time.Now().UTC(),
		AggregateId: strconv.FormatInt(aggregateID, 10),
	}
}

// WithCorrelationID sets the correlation ID, usually the HTTP request id.
func (e BaseEvent) WithCorrelationID(id string) BaseEvent {
	e.CorrelationID = id
	return e
}

// ═══════════════════════════════════════════════════════════════════════════
// STUDENT EVENTS
// ═══════════════════════════════════════════════════════════════════════════

// StudentCreatedEvent is emitted when a student has been stored.
type StudentCreatedEvent struct {
	BaseEvent
	StudentID  int64  `json:"student_id"`
	Name       string `json:"name"`
	Department string `json:"department"`
}

// Payload implements Event interface.
func (e StudentCreatedEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"student_id": e.StudentID,
		"name":       e.Name,
		"department": e.Department,
	}
}

// NewStudentCreatedEvent creates a new StudentCreatedEvent.
func NewStudentCreatedEvent(studentID int64, name, department string) StudentCreatedEvent {
	return StudentCreatedEvent{
		BaseEvent:  NewBaseEvent(EventStudentCreated, studentID),
		StudentID:  studentID,
		Name:       name,
		Department: department,
	}
}

// StudentDeletedEvent is emitted after a student and its scores were removed.
type StudentDeletedEvent struct {
	BaseEvent
	StudentID  int64  `json:"student_id"`
	Department string `json:"department"`
}

// Payload implements Event interface.
func (e StudentDeletedEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"student_id": e.StudentID,
		"department": e.Department,
	}
}

// NewStudentDeletedEvent creates a new StudentDeletedEvent.
func NewStudentDeletedEvent(studentID int64, department string) StudentDeletedEvent {
	return StudentDeletedEvent{
		BaseEvent:  NewBaseEvent(EventStudentDeleted, studentID),
		StudentID:  studentID,
		Department: department,
	}
}

// ═══════════════════════════════════════════════════════════════════════════
// SCORE EVENTS
// ═══════════════════════════════════════════════════════════════════════════

// ScoreRecordedEvent is emitted for every successful upsert.
type ScoreRecordedEvent struct {
	BaseEvent
	ScoreID    int64   `json:"score_id"`
	StudentID  int64   `json:"student_id"`
	Subject    string  `json:"subject"`
	Value      float64 `json:"score"`
	Department string  `json:"department"`
	Created    bool    `json:"created"`
}

// Payload implements Event interface.
func (e ScoreRecordedEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"score_id":   e.ScoreID,
		"student_id": e.StudentID,
		"subject":    e.Subject,
		"score":      e.Value,
		"department": e.Department,
		"created":    e.Created,
	}
}

// NewScoreRecordedEvent creates a new ScoreRecordedEvent. The aggregate is the
// student, since a score never outlives it.
func NewScoreRecordedEvent(scoreID, studentID int64, subject string, value float64, department string, created bool) ScoreRecordedEvent {
	return ScoreRecordedEvent{
		BaseEvent:  NewBaseEvent(EventScoreRecorded, studentID),
		ScoreID:    scoreID,
		StudentID:  studentID,
		Subject:    subject,
		Value:      value,
		Department: department,
		Created:    created,
	}
}

// ═══════════════════════════════════════════════════════════════════════════
// EVENT BUS CONTRACTS
// ═══════════════════════════════════════════════════════════════════════════

// EventHandler processes a single domain event.
type EventHandler func(ctx context.Context, event Event) error

// EventPublisher publishes domain events.
type EventPublisher interface {
	Publish(ctx context.Context, event Event) error
}

// EventSubscriber registers handlers for domain events.
type EventSubscriber interface {
	// Subscribe registers a handler for one event type.
	Subscribe(eventType EventType, handler EventHandler) error

	// SubscribeAll registers a handler that receives every event.
	SubscribeAll(handler EventHandler) error
}

// EventBus combines publishing and subscribing.
type EventBus interface {
	EventPublisher
	EventSubscriber
	Close() error
}
