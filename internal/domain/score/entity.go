// Package score contains the Score entity and the aggregate views computed
// over scores: a student's average, the top scorer of a subject and the
// average of a department.
package score

import (
	"fmt"
	"math"
	"strings"
	"unicode/utf8"

	"github.com/gradebook-hub/gradebook/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// CONSTRAINTS
// ══════════════════════════════════════════════════════════════════════════════

const (
	// MinValue and MaxValue bound a score, inclusive.
	MinValue = 0.0
	MaxValue = 100.0

	// MaxSubjectLength is the longest accepted subject, in characters.
	MaxSubjectLength = 100
)

// ══════════════════════════════════════════════════════════════════════════════
// MAIN ENTITY: SCORE
// ══════════════════════════════════════════════════════════════════════════════

// Score is the latest value of one subject for one student.
// Within a student, subjects are unique under case-insensitive comparison.
// Subject keeps the casing of the write that created the row.
type Score struct {
	ID        int64   `json:"id"`
	StudentID int64   `json:"student_id"`
	Subject   string  `json:"subject"`
	Value     float64 `json:"score"`
}

// NewScore validates the input of an upsert and returns an unsaved score.
func NewScore(studentID int64, subject string, value float64) (*Score, error) {
	if err := ValidateValue(value); err != nil {
		return nil, err
	}

	subject = strings.TrimSpace(subject)
	if subject == "" {
		return nil, shared.ValidationError("score", "Upsert", "subject", shared.ErrEmptyValue,
			"subject must not be empty")
	}
	if utf8.RuneCountInString(subject) > MaxSubjectLength {
		return nil, shared.ValidationError("score", "Upsert", "subject", shared.ErrTooLong,
			fmt.Sprintf("subject must be at most %d characters", MaxSubjectLength))
	}

	return &Score{
		StudentID: studentID,
		Subject:   subject,
		Value:     value,
	}, nil
}

// ValidateValue checks that v is a finite number within [MinValue, MaxValue].
func ValidateValue(v float64) error {
	if math.IsNaN(v) || math.IsInf(v, 0) || v < MinValue || v > MaxValue {
		return shared.ValidationError("score", "Upsert", "score", shared.ErrValueOutOfRange,
			"score must be between 0 and 100")
	}
	return nil
}

// SameSubject reports whether two subjects name the same thing. Comparison is
// on trimmed, case-folded text.
func SameSubject(a, b string) bool {
	return strings.EqualFold(strings.TrimSpace(a), strings.TrimSpace(b))
}

// ══════════════════════════════════════════════════════════════════════════════
// AGGREGATES
// ══════════════════════════════════════════════════════════════════════════════

// UpsertResult is the stored score after an upsert.
type UpsertResult struct {
	Score   *Score
	Created bool
}

// StudentStats is the raw aggregate over one student's scores.
type StudentStats struct {
	ScoreCount int
	Average    float64
}

// DepartmentStats is the raw aggregate over every score of every student in a
// department. Average is meaningless when ScoreCount is zero.
type DepartmentStats struct {
	StudentCount int
	ScoreCount   int
	Average      float64
}

// DepartmentAverage is the public result of a department average query.
type DepartmentAverage struct {
	Department   string  `json:"department"`
	Average      float64 `json:"average"`
	StudentCount int     `json:"student_count"`
	ScoreCount   int     `json:"score_count"`
}

// Round2 rounds v to two decimal places, halves away from zero.
func Round2(v float64) float64 {
	return math.Round(v*100) / 100
}
