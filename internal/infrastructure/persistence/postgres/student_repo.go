package postgres

import (
	"context"
	"fmt"

	"github.com/gradebook-hub/gradebook/internal/domain/shared"
	"github.com/gradebook-hub/gradebook/internal/domain/student"

	"github.com/jackc/pgx/v5"
)

// ══════════════════════════════════════════════════════════════════════════════
// STUDENT REPOSITORY IMPLEMENTATION
// ══════════════════════════════════════════════════════════════════════════════

// StudentRepository implements student.Repository for PostgreSQL.
type StudentRepository struct {
	conn *Connection
}

// NewStudentRepository creates a new StudentRepository.
func NewStudentRepository(conn *Connection) *StudentRepository {
	return &StudentRepository{conn: conn}
}

// Create inserts the student and sets its generated ID.
func (r *StudentRepository) Create(ctx context.Context, s *student.Student) error {
	err := r.conn.QueryRow(ctx,
		`INSERT INTO students (name, department) VALUES ($1, $2) RETURNING id`,
		s.Name, s.Department,
	).Scan(&s.ID)
	if err != nil {
		return fmt.Errorf("failed to create student: %w", err)
	}

	return nil
}

// GetByID returns a student by ID.
func (r *StudentRepository) GetByID(ctx context.Context, id int64) (*student.Student, error) {
	row := r.conn.QueryRow(ctx,
		`SELECT id, name, department FROM students WHERE id = $1`, id)

	var s student.Student
	if err := row.Scan(&s.ID, &s.Name, &s.Department); err != nil {
		if IsNoRows(err) {
			return nil, shared.ErrStudentNotFound
		}
		return nil, fmt.Errorf("failed to get student: %w", err)
	}

	return &s, nil
}

// List returns a page of students in id order.
func (r *StudentRepository) List(ctx context.Context, opts student.ListOptions) ([]*student.Student, error) {
	rows, err := r.conn.Query(ctx,
		`SELECT id, name, department FROM students ORDER BY id OFFSET $1 LIMIT $2`,
		opts.Skip, opts.Limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list students: %w", err)
	}

	return scanStudents(rows)
}

// Search matches name case-insensitively. strpos treats the query as plain
// text, so % and _ need no escaping.
func (r *StudentRepository) Search(ctx context.Context, query string) ([]*student.Student, error) {
	rows, err := r.conn.Query(ctx, `
		SELECT id, name, department
		FROM students
		WHERE strpos(LOWER(name), LOWER($1)) > 0
		ORDER BY id
	`, query)
	if err != nil {
		return nil, fmt.Errorf("failed to search students: %w", err)
	}

	return scanStudents(rows)
}

// Delete removes the student; its scores go with it through ON DELETE CASCADE.
func (r *StudentRepository) Delete(ctx context.Context, id int64) error {
	tag, err := r.conn.Exec(ctx, `DELETE FROM students WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete student: %w", err)
	}

	if tag.RowsAffected() == 0 {
		return shared.ErrStudentNotFound
	}

	return nil
}

// Exists reports whether the student is stored.
func (r *StudentRepository) Exists(ctx context.Context, id int64) (bool, error) {
	var exists bool
	err := r.conn.QueryRow(ctx,
		`SELECT EXISTS(SELECT 1 FROM students WHERE id = $1)`, id).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check student existence: %w", err)
	}

	return exists, nil
}

// Count returns the number of students.
func (r *StudentRepository) Count(ctx context.Context) (int, error) {
	var n int
	if err := r.conn.QueryRow(ctx, `SELECT COUNT(*) FROM students`).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count students: %w", err)
	}

	return n, nil
}

// ─────────────────────────────────────────────────────────────────────────────
// Helper Methods
// ─────────────────────────────────────────────────────────────────────────────

func scanStudents(rows pgx.Rows) ([]*student.Student, error) {
	defer rows.Close()

	students := make([]*student.Student, 0)
	for rows.Next() {
		var s student.Student
		if err := rows.Scan(&s.ID, &s.Name, &s.Department); err != nil {
			return nil, fmt.Errorf("failed to scan student: %w", err)
		}
		students = append(students, &s)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate students: %w", err)
	}

	return students, nil
}
