package redis

import (
	"context"

	"github.com/gradebook-hub/gradebook/internal/domain/student"
)

var _ student.Cache = (*StudentCache)(nil)

// StudentCache caches students by id.
type StudentCache struct {
	cache *Cache
}

// NewStudentCache creates a new StudentCache.
func NewStudentCache(cache *Cache) *StudentCache {
	return &StudentCache{cache: cache}
}

// Get returns the cached student or ErrCacheMiss.
func (s *StudentCache) Get(ctx context.Context, id int64) (*student.Student, error) {
	var st student.Student
	if err := s.cache.Get(ctx, StudentKey(id), &st); err != nil {
		return nil, err
	}
	return &st, nil
}

// Set caches a stored student.
func (s *StudentCache) Set(ctx context.Context, st *student.Student) error {
	if st == nil {
		return nil
	}
	return s.cache.Set(ctx, StudentKey(st.ID), st)
}

// Delete drops a student from the cache.
func (s *StudentCache) Delete(ctx context.Context, id int64) error {
	return s.cache.Delete(ctx, StudentKey(id))
}

// InvalidateAll drops every cached student.
func (s *StudentCache) InvalidateAll(ctx context.Context) error {
	return s.cache.DeleteByPattern(ctx, prefixStudent+"*")
}
