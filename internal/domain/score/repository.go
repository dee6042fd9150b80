package score

import (
	"context"

	"github.com/gradebook-hub/gradebook/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// REPOSITORY INTERFACE
// ══════════════════════════════════════════════════════════════════════════════

// Repository defines storage operations for scores. Every aggregate is
// answered by a single statement, so it observes one consistent snapshot.
type Repository interface {
	// Upsert stores s for its student. Inside one write transaction it locks
	// the student, looks for a score whose subject matches case-insensitively
	// and either overwrites only its value or inserts a new row.
	// Returns shared.ErrStudentNotFound when the student does not exist.
	Upsert(ctx context.Context, s *Score) (*UpsertResult, error)

	// ListByStudent returns the student's scores ordered by id.
	ListByStudent(ctx context.Context, studentID int64) ([]*Score, error)

	// StudentStats returns count and mean of the student's scores.
	// Returns shared.ErrStudentNotFound when the student does not exist.
	StudentStats(ctx context.Context, studentID int64) (*StudentStats, error)

	// TopScorer returns the highest score for subject across all students,
	// the lowest id winning ties. Returns shared.ErrSubjectNotFound when
	// nothing matches.
	TopScorer(ctx context.Context, subject string) (*Score, error)

	// DepartmentStats aggregates every score of students whose department
	// matches case-insensitively.
	DepartmentStats(ctx context.Context, department string) (*DepartmentStats, error)
}

// ══════════════════════════════════════════════════════════════════════════════
// CACHE INTERFACE
// ══════════════════════════════════════════════════════════════════════════════

// AggregateCache caches the rounded results of the three aggregate queries.
// Getters return shared.ErrCacheMiss for an absent entry. Subject and
// department keys are compared case-insensitively.
type AggregateCache interface {
	GetStudentAverage(ctx context.Context, studentID int64) (float64, error)
	SetStudentAverage(ctx context.Context, studentID int64, avg float64) error
	DeleteStudentAverage(ctx context.Context, studentID int64) error

	GetTopScorer(ctx context.Context, subject string) (*Score, error)
	SetTopScorer(ctx context.Context, subject string, s *Score) error
	DeleteTopScorer(ctx context.Context, subject string) error
	DeleteAllTopScorers(ctx context.Context) error

	GetDepartmentAverage(ctx context.Context, department string) (*DepartmentAverage, error)
	SetDepartmentAverage(ctx context.Context, department string, d *DepartmentAverage) error
	DeleteDepartmentAverage(ctx context.Context, department string) error
}

// NopAggregateCache is used when no cache is configured.
type NopAggregateCache struct{}

func (NopAggregateCache) GetStudentAverage(context.Context, int64) (float64, error) {
	return 0, shared.ErrCacheMiss
}
func (NopAggregateCache) SetStudentAverage(context.Context, int64, float64) error {
	return nil
}
func (NopAggregateCache) DeleteStudentAverage(context.Context, int64) error {
	return nil
}

func (NopAggregateCache) GetTopScorer(context.Context, string) (*Score, error) {
	return nil, shared.ErrCacheMiss
}
func (NopAggregateCache) SetTopScorer(context.Context, string, *Score) error {
	return nil
}
func (NopAggregateCache) DeleteTopScorer(context.Context, string) error {
	return nil
}
func (NopAggregateCache) DeleteAllTopScorers(context.Context) error {
	return nil
}

func (NopAggregateCache) GetDepartmentAverage(context.Context, string) (*DepartmentAverage, error) {
	return nil, shared.ErrCacheMiss
}
func (NopAggregateCache) SetDepartmentAverage(context.Context, string, *DepartmentAverage) error {
	return nil
}
func (NopAggregateCache) DeleteDepartmentAverage(context.Context, string) error {
	return nil
}
