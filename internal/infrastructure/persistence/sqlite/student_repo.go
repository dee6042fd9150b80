package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/gradebook-hub/gradebook/internal/domain/shared"
	"github.com/gradebook-hub/gradebook/internal/domain/student"
)

// StudentRepository implements student.Repository for SQLite.
type StudentRepository struct {
	conn *Connection
}

// NewStudentRepository creates a new StudentRepository.
func NewStudentRepository(conn *Connection) *StudentRepository {
	return &StudentRepository{conn: conn}
}

// Create inserts the student and sets its generated ID.
func (r *StudentRepository) Create(ctx context.Context, s *student.Student) error {
	res, err := r.conn.db.ExecContext(ctx,
		`INSERT INTO students (name, department) VALUES (?, ?)`, s.Name, s.Department)
	if err != nil {
		return fmt.Errorf("failed to create student: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to read student id: %w", err)
	}
	s.ID = id

	return nil
}

// GetByID returns a student by ID.
func (r *StudentRepository) GetByID(ctx context.Context, id int64) (*student.Student, error) {
	var s student.Student
	err := r.conn.db.QueryRowContext(ctx,
		`SELECT id, name, department FROM students WHERE id = ?`, id,
	).Scan(&s.ID, &s.Name, &s.Department)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, shared.ErrStudentNotFound
		}
		return nil, fmt.Errorf("failed to get student: %w", err)
	}

	return &s, nil
}

// List returns a page of students in id order.
func (r *StudentRepository) List(ctx context.Context, opts student.ListOptions) ([]*student.Student, error) {
	rows, err := r.conn.db.QueryContext(ctx,
		`SELECT id, name, department FROM students ORDER BY id LIMIT ? OFFSET ?`,
		opts.Limit, opts.Skip)
	if err != nil {
		return nil, fmt.Errorf("failed to list students: %w", err)
	}

	return scanStudents(rows)
}

// Search matches name case-insensitively. instr treats the query as plain
// text, so % and _ need no escaping.
func (r *StudentRepository) Search(ctx context.Context, query string) ([]*student.Student, error) {
	rows, err := r.conn.db.QueryContext(ctx, `
		SELECT id, name, department
		FROM students
		WHERE instr(casefold(name), casefold(?)) > 0
		ORDER BY id
	`, query)
	if err != nil {
		return nil, fmt.Errorf("failed to search students: %w", err)
	}

	return scanStudents(rows)
}

// Delete removes the student; foreign_keys(1) makes the cascade to scores
// part of the same statement.
func (r *StudentRepository) Delete(ctx context.Context, id int64) error {
	res, err := r.conn.db.ExecContext(ctx, `DELETE FROM students WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete student: %w", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to delete student: %w", err)
	}
	if n == 0 {
		return shared.ErrStudentNotFound
	}

	return nil
}

// Exists reports whether the student is stored.
func (r *StudentRepository) Exists(ctx context.Context, id int64) (bool, error) {
	var exists bool
	err := r.conn.db.QueryRowContext(ctx,
		`SELECT EXISTS(SELECT 1 FROM students WHERE id = ?)`, id).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check student existence: %w", err)
	}

	return exists, nil
}

// Count returns the number of students.
func (r *StudentRepository) Count(ctx context.Context) (int, error) {
	var n int
	if err := r.conn.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM students`).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count students: %w", err)
	}

	return n, nil
}

func scanStudents(rows *sql.Rows) ([]*student.Student, error) {
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
