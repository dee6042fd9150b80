// Package shared contains the error kinds and event plumbing used by every
// gradebook domain package. It has no dependencies outside the standard library.
package shared

import (
	"errors"
	"fmt"
)

// Base error kinds. Concrete errors carry one of these as their Kind so that
// callers can classify with errors.Is without knowing the concrete value.
var (
	ErrNotFound        = errors.New("entity not found")
	ErrValidation      = errors.New("validation error")
	ErrEmptyValue      = errors.New("value cannot be empty")
	ErrValueOutOfRange = errors.New("value out of range")
	ErrTooLong         = errors.New("value too long")
)

// DomainError represents a domain-specific error with context.
type DomainError struct {
	Domain  string // "student", "score"
	Op      string // operation that failed, e.g. "Create", "Upsert"
	Kind    error  // base kind for errors.Is
	Field   string // offending input field for validation errors
	Message string // human-readable message, safe to show to API clients
	Err     error  // underlying error (optional)
}

// Error implements the error interface.
func (e *DomainError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s.%s: %s: %v", e.Domain, e.Op, e.Message, e.Err)
	}
	return fmt.Sprintf("%s.%s: %s", e.Domain, e.Op, e.Message)
}

// Unwrap returns the underlying error, falling back to the kind.
func (e *DomainError) Unwrap() error {
	if e.Err != nil {
		return e.Err
	}
	return e.Kind
}

// Is matches either the kind or the wrapped error. Two DomainErrors are equal
// when domain, op and message match, so sentinel values survive wrapping.
func (e *DomainError) Is(target error) bool {
	if t, ok := target.(*DomainError); ok {
		return e.Domain == t.Domain && e.Op == t.Op && e.Message == t.Message
	}
	if e.Kind != nil && errors.Is(e.Kind, target) {
		return true
	}
	if e.Err != nil && errors.Is(e.Err, target) {
		return true
	}
	return false
}

// NewDomainError creates a new domain error.
func NewDomainError(domain, op string, kind error, message string) *DomainError {
	return &DomainError{
		Domain:  domain,
		Op:      op,
		Kind:    kind,
		Message: message,
	}
}

// ═══════════════════════════════════════════════════════════════════════════
// VALIDATION
// ═══════════════════════════════════════════════════════════════════════════

// ValidationError is a failed field constraint. The field name is kept so the
// HTTP layer can report which input was rejected.
func ValidationError(domain, op, field string, kind error, message string) *DomainError {
	return &DomainError{
		Domain:  domain,
		Op:      op,
		Kind:    kind,
		Field:   field,
		Message: message,
	}
}

// ═══════════════════════════════════════════════════════════════════════════
// GRADEBOOK ERRORS
// ═══════════════════════════════════════════════════════════════════════════

// ErrCacheMiss is returned by caches for an absent entry.
var ErrCacheMiss = errors.New("cache: key not found")

// Student errors
var (
	ErrStudentNotFound = NewDomainError("student", "Find", ErrNotFound, "student not found")
)

// Score errors
var (
	ErrNoScores           = NewDomainError("score", "Average", ErrNotFound, "no scores found for student")
	ErrSubjectNotFound    = NewDomainError("score", "TopScorer", ErrNotFound, "no scores for subject")
	ErrDepartmentNotFound = NewDomainError("score", "DepartmentAverage", ErrNotFound, "no scores for department")
)

// IsNotFound checks if the error is a "not found" error.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// IsValidation checks if the error is a validation error.
func IsValidation(err error) bool {
	return errors.Is(err, ErrValidation) ||
		errors.Is(err, ErrEmptyValue) ||
		errors.Is(err, ErrValueOutOfRange) ||
		errors.Is(err, ErrTooLong)
}

// FieldOf returns the offending field of a validation error, if any.
func FieldOf(err error) string {
	var de *DomainError
	if errors.As(err, &de) {
		return de.Field
	}
	return ""
}

// MessageOf returns the client-safe message of a domain error, or "" when err
// is not a domain error.
func MessageOf(err error) string {
	var de *DomainError
	if errors.As(err, &de) {
		return de.Message
	}
	return ""
}
