package student

import (
	"context"

	"github.com/gradebook-hub/gradebook/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// REPOSITORY INTERFACE
// Implementations live in infrastructure/persistence (postgres, sqlite).
// ══════════════════════════════════════════════════════════════════════════════

// Repository defines storage operations for students.
type Repository interface {
	// Create stores a new student and sets its ID.
	Create(ctx context.Context, student *Student) error

	// GetByID returns a student by id.
	// Returns shared.ErrStudentNotFound if there is no such student.
	GetByID(ctx context.Context, id int64) (*Student, error)

	// List returns students ordered by id, offset and bounded by opts.
	List(ctx context.Context, opts ListOptions) ([]*Student, error)

	// Search returns every student whose name contains query,
	// case-insensitively, ordered by id. Wildcard characters are literal.
	Search(ctx context.Context, query string) ([]*Student, error)

	// Delete removes the student together with all of its scores in one
	// atomic statement. Returns shared.ErrStudentNotFound if nothing was deleted.
	Delete(ctx context.Context, id int64) error

	// Exists reports whether a student with the given id is stored.
	Exists(ctx context.Context, id int64) (bool, error)

	// Count returns the total number of students.
	Count(ctx context.Context) (int, error)
}

// ══════════════════════════════════════════════════════════════════════════════
// CACHE INTERFACE
// ══════════════════════════════════════════════════════════════════════════════

// Cache is a read-through cache of single students. Get returns
// shared.ErrCacheMiss for an absent entry.
type Cache interface {
	Get(ctx context.Context, id int64) (*Student, error)
	Set(ctx context.Context, student *Student) error
	Delete(ctx context.Context, id int64) error
}

// NopCache is used when no cache is configured.
type NopCache struct{}

func (NopCache) Get(context.Context, int64) (*Student, error) { return nil, shared.ErrCacheMiss }
func (NopCache) Set(context.Context, *Student) error          { return nil }
func (NopCache) Delete(context.Context, int64) error          { return nil }
