// Package student contains the Student aggregate: a named person belonging to
// a department, owner of zero or more scores.
package student

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/gradebook-hub/gradebook/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// CONSTRAINTS
// ══════════════════════════════════════════════════════════════════════════════

const (
	// MaxNameLength is the longest accepted name, in characters.
	MaxNameLength = 100

	// MaxDepartmentLength is the longest accepted department, in characters.
	MaxDepartmentLength = 100

	// MaxListLimit bounds a single page of List.
	MaxListLimit = 1000

	// DefaultListLimit is used by transports when the caller omits a limit.
	DefaultListLimit = 100
)

// ══════════════════════════════════════════════════════════════════════════════
// MAIN ENTITY: STUDENT
// ══════════════════════════════════════════════════════════════════════════════

// Student is a tracked student. ID is assigned by storage and never changes.
type Student struct {
	ID         int64  `json:"id"`
	Name       string `json:"name"`
	Department string `json:"department"`
}

// NewStudent validates and normalizes the input of a create call.
// The returned student has no ID until it is stored.
func NewStudent(name, department string) (*Student, error) {
	name, err := NormalizeText("Create", "name", name, MaxNameLength)
	if err != nil {
		return nil, err
	}

	department, err = NormalizeText("Create", "department", department, MaxDepartmentLength)
	if err != nil {
		return nil, err
	}

	return &Student{
		Name:       name,
		Department: department,
	}, nil
}

// NormalizeText trims s and checks that it is non-empty and at most max
// characters long.
func NormalizeText(op, field, s string, max int) (string, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return "", shared.ValidationError("student", op, field, shared.ErrEmptyValue,
			field+" must not be empty")
	}
	if utf8.RuneCountInString(s) > max {
		return "", shared.ValidationError("student", op, field, shared.ErrTooLong,
			fmt.Sprintf("%s must be at most %d characters", field, max))
	}
	return s, nil
}

// ══════════════════════════════════════════════════════════════════════════════
// QUERY INPUT
// ══════════════════════════════════════════════════════════════════════════════

// ListOptions holds offset pagination parameters.
type ListOptions struct {
	// Skip is the number of students to skip, in id order.
	Skip int

	// Limit is the maximum number of students returned.
	Limit int
}

// Validate checks the pagination bounds.
func (o ListOptions) Validate() error {
	if o.Skip < 0 {
		return shared.ValidationError("student", "List", "skip", shared.ErrValueOutOfRange,
			"skip must be greater than or equal to 0")
	}
	if o.Limit < 1 || o.Limit > MaxListLimit {
		return shared.ValidationError("student", "List", "limit", shared.ErrValueOutOfRange,
			"limit must be between 1 and 1000")
	}
	return nil
}

// NormalizeQuery trims a search query and rejects an empty one.
func NormalizeQuery(q string) (string, error) {
	q = strings.TrimSpace(q)
	if q == "" {
		return "", shared.ValidationError("student", "Search", "name", shared.ErrEmptyValue,
			"search query must not be empty")
	}
	return q, nil
}
