package sqlite

import (
	"context"
	"database/sql"
	"fmt"
)

// CreateSchema creates all tables and indexes.
// Safe to call multiple times - uses IF NOT EXISTS.
func CreateSchema(ctx context.Context, db *sql.DB) error {
	if _, err := db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("failed to create schema: %w", err)
	}

	return nil
}

const schema = `
-- Students
CREATE TABLE IF NOT EXISTS students (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    name TEXT NOT NULL CHECK (length(name) BETWEEN 1 AND 100),
    department TEXT NOT NULL CHECK (length(department) BETWEEN 1 AND 100)
);

CREATE INDEX IF NOT EXISTS idx_students_department_fold ON students (casefold(department));

-- Scores: latest value per (student, subject)
CREATE TABLE IF NOT EXISTS scores (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    student_id INTEGER NOT NULL REFERENCES students(id) ON DELETE CASCADE,
    subject TEXT NOT NULL CHECK (length(subject) BETWEEN 1 AND 100),
    score REAL NOT NULL CHECK (score >= 0 AND score <= 100)
);

CREATE INDEX IF NOT EXISTS idx_scores_student_id ON scores (student_id);
CREATE INDEX IF NOT EXISTS idx_scores_subject_fold ON scores (casefold(subject), score DESC, id);
CREATE UNIQUE INDEX IF NOT EXISTS uq_scores_student_subject ON scores (student_id, casefold(subject));
`
