package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/gradebook-hub/gradebook/internal/domain/score"
	"github.com/gradebook-hub/gradebook/internal/domain/shared"
)

// ScoreRepository implements score.Repository for SQLite.
type ScoreRepository struct {
	conn *Connection
}

// NewScoreRepository creates a new ScoreRepository.
func NewScoreRepository(conn *Connection) *ScoreRepository {
	return &ScoreRepository{conn: conn}
}

// Upsert creates or overwrites the student's score for s.Subject.
// The transaction begins IMMEDIATE, holding the database write lock from
// the existence check to the commit.
func (r *ScoreRepository) Upsert(ctx context.Context, s *score.Score) (*score.UpsertResult, error) {
	var result *score.UpsertResult

	err := r.conn.WithTx(ctx, func(tx *sql.Tx) error {
		res, err := upsertScore(ctx, tx, s)
		if err != nil {
			return err
		}
		result = res
		return nil
	})
	if err != nil {
		return nil, err
	}

	return result, nil
}

func upsertScore(ctx context.Context, q querier, s *score.Score) (*score.UpsertResult, error) {
	var exists bool
	if err := q.QueryRowContext(ctx,
		`SELECT EXISTS(SELECT 1 FROM students WHERE id = ?)`, s.StudentID).Scan(&exists); err != nil {
		return nil, fmt.Errorf("failed to check student: %w", err)
	}
	if !exists {
		return nil, shared.ErrStudentNotFound
	}

	var existing score.Score
	err := q.QueryRowContext(ctx, `
		SELECT id, student_id, subject, score
		FROM scores
		WHERE student_id = ? AND casefold(subject) = casefold(?)
		ORDER BY id
		LIMIT 1
	`, s.StudentID, s.Subject).Scan(&existing.ID, &existing.StudentID, &existing.Subject, &existing.Value)

	switch {
	case err == nil:
		if _, err := q.ExecContext(ctx, `UPDATE scores SET score = ? WHERE id = ?`, s.Value, existing.ID); err != nil {
			return nil, fmt.Errorf("failed to update score: %w", err)
		}
		existing.Value = s.Value
		return &score.UpsertResult{Score: &existing, Created: false}, nil

	case errors.Is(err, sql.ErrNoRows):
		res, err := q.ExecContext(ctx,
			`INSERT INTO scores (student_id, subject, score) VALUES (?, ?, ?)`,
			s.StudentID, s.Subject, s.Value)
		if err != nil {
			return nil, fmt.Errorf("failed to insert score: %w", err)
		}
		id, err := res.LastInsertId()
		if err != nil {
			return nil, fmt.Errorf("failed to read score id: %w", err)
		}

		created := *s
		created.ID = id
		return &score.UpsertResult{Score: &created, Created: true}, nil

	default:
		return nil, fmt.Errorf("failed to find score: %w", err)
	}
}

// ListByStudent returns the student's scores ordered by id.
func (r *ScoreRepository) ListByStudent(ctx context.Context, studentID int64) ([]*score.Score, error) {
	rows, err := r.conn.db.QueryContext(ctx, `
		SELECT id, student_id, subject, score
		FROM scores
		WHERE student_id = ?
		ORDER BY id
	`, studentID)
	if err != nil {
		return nil, fmt.Errorf("failed to list scores: %w", err)
	}
	defer rows.Close()

	scores := make([]*score.Score, 0)
	for rows.Next() {
		var s score.Score
		if err := rows.Scan(&s.ID, &s.StudentID, &s.Subject, &s.Value); err != nil {
			return nil, fmt.Errorf("failed to scan score: %w", err)
		}
		scores = append(scores, &s)
	}

	return scores, rows.Err()
}

// StudentStats returns count and mean of one student's scores.
func (r *ScoreRepository) StudentStats(ctx context.Context, studentID int64) (*score.StudentStats, error) {
	var stats score.StudentStats
	err := r.conn.db.QueryRowContext(ctx, `
		SELECT COUNT(sc.id), COALESCE(AVG(sc.score), 0.0)
		FROM students st
		LEFT JOIN scores sc ON sc.student_id = st.id
		WHERE st.id = ?
		GROUP BY st.id
	`, studentID).Scan(&stats.ScoreCount, &stats.Average)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, shared.ErrStudentNotFound
		}
		return nil, fmt.Errorf("failed to compute student average: %w", err)
	}

	return &stats, nil
}

// TopScorer returns the best score for subject; ties go to the lowest id.
func (r *ScoreRepository) TopScorer(ctx context.Context, subject string) (*score.Score, error) {
	var s score.Score
	err := r.conn.db.QueryRowContext(ctx, `
		SELECT id, student_id, subject, score
		FROM scores
		WHERE casefold(subject) = casefold(?)
		ORDER BY score DESC, id ASC
		LIMIT 1
	`, subject).Scan(&s.ID, &s.StudentID, &s.Subject, &s.Value)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, shared.ErrSubjectNotFound
		}
		return nil, fmt.Errorf("failed to find top scorer: %w", err)
	}

	return &s, nil
}

// DepartmentStats aggregates scores over all students of a department.
func (r *ScoreRepository) DepartmentStats(ctx context.Context, department string) (*score.DepartmentStats, error) {
	var stats score.DepartmentStats
	err := r.conn.db.QueryRowContext(ctx, `
		SELECT COUNT(DISTINCT st.id), COUNT(sc.id), COALESCE(AVG(sc.score), 0.0)
		FROM students st
		LEFT JOIN scores sc ON sc.student_id = st.id
		WHERE casefold(st.department) = casefold(?)
	`, department).Scan(&stats.StudentCount, &stats.ScoreCount, &stats.Average)
	if err != nil {
		return nil, fmt.Errorf("failed to compute department average: %w", err)
	}

	return &stats, nil
}
