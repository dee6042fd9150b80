package redis

import (
	"context"
	"strings"

	"github.com/gradebook-hub/gradebook/internal/domain/score"
)

var _ score.AggregateCache = (*AggregateCache)(nil)

// AggregateCache caches the three score aggregates. Subjects and departments
// are trimmed and folded in keys, so "Math" and " math " share an entry.
type AggregateCache struct {
	cache *Cache
	fold  func(string) string
}

// NewAggregateCache creates a new AggregateCache. fold must be the case
// mapping the storage backend matches with; nil means Unicode case folding.
func NewAggregateCache(cache *Cache, fold func(string) string) *AggregateCache {
	if fold == nil {
		fold = Fold
	}
	return &AggregateCache{cache: cache, fold: fold}
}

// TopScorerKey returns the key of a subject's cached top score.
func (a *AggregateCache) TopScorerKey(subject string) string {
	return prefixTopScorer + a.fold(strings.TrimSpace(subject))
}

// DepartmentKey returns the key of a department's cached aggregate.
func (a *AggregateCache) DepartmentKey(department string) string {
	return prefixDepartment + a.fold(strings.TrimSpace(department))
}

// ─────────────────────────────────────────────────────────────────────────────
// Student average
// ─────────────────────────────────────────────────────────────────────────────

// GetStudentAverage returns the cached rounded average or ErrCacheMiss.
func (a *AggregateCache) GetStudentAverage(ctx context.Context, studentID int64) (float64, error) {
	var avg float64
	if err := a.cache.Get(ctx, StudentAverageKey(studentID), &avg); err != nil {
		return 0, err
	}
	return avg, nil
}

// SetStudentAverage caches a student's rounded average.
func (a *AggregateCache) SetStudentAverage(ctx context.Context, studentID int64, avg float64) error {
	return a.cache.Set(ctx, StudentAverageKey(studentID), avg)
}

// DeleteStudentAverage drops a student's cached average.
func (a *AggregateCache) DeleteStudentAverage(ctx context.Context, studentID int64) error {
	return a.cache.Delete(ctx, StudentAverageKey(studentID))
}

// ─────────────────────────────────────────────────────────────────────────────
// Top scorer
// ─────────────────────────────────────────────────────────────────────────────

// GetTopScorer returns the cached top score of subject or ErrCacheMiss.
func (a *AggregateCache) GetTopScorer(ctx context.Context, subject string) (*score.Score, error) {
	var s score.Score
	if err := a.cache.Get(ctx, a.TopScorerKey(subject), &s); err != nil {
		return nil, err
	}
	return &s, nil
}

// SetTopScorer caches the top score of subject.
func (a *AggregateCache) SetTopScorer(ctx context.Context, subject string, s *score.Score) error {
	return a.cache.Set(ctx, a.TopScorerKey(subject), s)
}

// DeleteTopScorer drops the cached top score of subject.
func (a *AggregateCache) DeleteTopScorer(ctx context.Context, subject string) error {
	return a.cache.Delete(ctx, a.TopScorerKey(subject))
}

// DeleteAllTopScorers drops every cached top score. Used when a student is
// deleted, since its subjects are no longer known.
func (a *AggregateCache) DeleteAllTopScorers(ctx context.Context) error {
	return a.cache.DeleteByPattern(ctx, prefixTopScorer+"*")
}

// ─────────────────────────────────────────────────────────────────────────────
// Department average
// ─────────────────────────────────────────────────────────────────────────────

// GetDepartmentAverage returns the cached aggregate or ErrCacheMiss.
func (a *AggregateCache) GetDepartmentAverage(ctx context.Context, department string) (*score.DepartmentAverage, error) {
	var d score.DepartmentAverage
	if err := a.cache.Get(ctx, a.DepartmentKey(department), &d); err != nil {
		return nil, err
	}
	return &d, nil
}

// SetDepartmentAverage caches a department aggregate.
func (a *AggregateCache) SetDepartmentAverage(ctx context.Context, department string, d *score.DepartmentAverage) error {
	return a.cache.Set(ctx, a.DepartmentKey(department), d)
}

// DeleteDepartmentAverage drops a department's cached aggregate.
func (a *AggregateCache) DeleteDepartmentAverage(ctx context.Context, department string) error {
	return a.cache.Delete(ctx, a.DepartmentKey(department))
}
