package postgres

import (
	"context"
	"fmt"

	"github.com/gradebook-hub/gradebook/internal/domain/score"
	"github.com/gradebook-hub/gradebook/internal/domain/shared"
	"github.com/gradebook-hub/gradebook/pkg/retry"

	"github.com/jackc/pgx/v5"
)

// ══════════════════════════════════════════════════════════════════════════════
// SCORE REPOSITORY IMPLEMENTATION
// ══════════════════════════════════════════════════════════════════════════════

// ScoreRepository implements score.Repository for PostgreSQL.
type ScoreRepository struct {
	conn      *Connection
	conflicts *retry.Retrier
}

// NewScoreRepository creates a new ScoreRepository.
func NewScoreRepository(conn *Connection) *ScoreRepository {
	return &ScoreRepository{
		conn:      conn,
		conflicts: retry.ConflictRetrier(IsUniqueViolation),
	}
}

// Upsert creates or overwrites the student's score for s.Subject.
//
// The student row is locked FOR UPDATE, which serializes upserts per student
// under read committed. A writer outside this path can still race us into the
// unique (student_id, LOWER(subject)) index; that attempt is repeated once and
// then finds the row.
func (r *ScoreRepository) Upsert(ctx context.Context, s *score.Score) (*score.UpsertResult, error) {
	return retry.DoWithData(ctx, r.conflicts, func(ctx context.Context) (*score.UpsertResult, error) {
		var result *score.UpsertResult
		err := r.conn.WithTx(ctx, DefaultTxOptions(), func(tx pgx.Tx) error {
			res, err := upsertScore(ctx, tx, s)
			if err != nil {
				return err
			}
			result = res
			return nil
		})
		return result, err
	})
}

func upsertScore(ctx context.Context, q Querier, s *score.Score) (*score.UpsertResult, error) {
	var lockedID int64
	err := q.QueryRow(ctx, `SELECT id FROM students WHERE id = $1 FOR UPDATE`, s.StudentID).Scan(&lockedID)
	if err != nil {
		if IsNoRows(err) {
			return nil, shared.ErrStudentNotFound
		}
		return nil, fmt.Errorf("failed to lock student: %w", err)
	}

	var existing score.Score
	err = q.QueryRow(ctx, `
		SELECT id, student_id, subject, score
		FROM scores
		WHERE student_id = $1 AND LOWER(subject) = LOWER($2)
		ORDER BY id
		LIMIT 1
	`, s.StudentID, s.Subject).Scan(&existing.ID, &existing.StudentID, &existing.Subject, &existing.Value)

	switch {
	case err == nil:
		if _, err := q.Exec(ctx, `UPDATE scores SET score = $1 WHERE id = $2`, s.Value, existing.ID); err != nil {
			return nil, fmt.Errorf("failed to update score: %w", err)
		}
		existing.Value = s.Value
		return &score.UpsertResult{Score: &existing, Created: false}, nil

	case IsNoRows(err):
		created := *s
		err := q.QueryRow(ctx,
			`INSERT INTO scores (student_id, subject, score) VALUES ($1, $2, $3) RETURNING id`,
			s.StudentID, s.Subject, s.Value,
		).Scan(&created.ID)
		if err != nil {
			if IsForeignKeyViolation(err) {
				return nil, shared.ErrStudentNotFound
			}
			return nil, fmt.Errorf("failed to insert score: %w", err)
		}
		return &score.UpsertResult{Score: &created, Created: true}, nil

	default:
		return nil, fmt.Errorf("failed to find score: %w", err)
	}
}

// ListByStudent returns the student's scores ordered by id.
func (r *ScoreRepository) ListByStudent(ctx context.Context, studentID int64) ([]*score.Score, error) {
	rows, err := r.conn.Query(ctx, `
		SELECT id, student_id, subject, score
		FROM scores
		WHERE student_id = $1
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

// ─────────────────────────────────────────────────────────────────────────────
// Aggregates
// ─────────────────────────────────────────────────────────────────────────────

// StudentStats returns count and mean of one student's scores. The LEFT JOIN
// yields a row exactly when the student exists.
func (r *ScoreRepository) StudentStats(ctx context.Context, studentID int64) (*score.StudentStats, error) {
	var stats score.StudentStats
	err := r.conn.QueryRow(ctx, `
		SELECT COUNT(sc.id), COALESCE(AVG(sc.score), 0)
		FROM students st
		LEFT JOIN scores sc ON sc.student_id = st.id
		WHERE st.id = $1
		GROUP BY st.id
	`, studentID).Scan(&stats.ScoreCount, &stats.Average)
	if err != nil {
		if IsNoRows(err) {
			return nil, shared.ErrStudentNotFound
		}
		return nil, fmt.Errorf("failed to compute student average: %w", err)
	}

	return &stats, nil
}

// TopScorer returns the best score for subject; ties go to the lowest id.
func (r *ScoreRepository) TopScorer(ctx context.Context, subject string) (*score.Score, error) {
	var s score.Score
	err := r.conn.QueryRow(ctx, `
		SELECT id, student_id, subject, score
		FROM scores
		WHERE LOWER(subject) = LOWER($1)
		ORDER BY score DESC, id ASC
		LIMIT 1
	`, subject).Scan(&s.ID, &s.StudentID, &s.Subject, &s.Value)
	if err != nil {
		if IsNoRows(err) {
			return nil, shared.ErrSubjectNotFound
		}
		return nil, fmt.Errorf("failed to find top scorer: %w", err)
	}

	return &s, nil
}

// DepartmentStats aggregates scores over all students of a department.
func (r *ScoreRepository) DepartmentStats(ctx context.Context, department string) (*score.DepartmentStats, error) {
	var stats score.DepartmentStats
	err := r.conn.QueryRow(ctx, `
		SELECT COUNT(DISTINCT st.id), COUNT(sc.id), COALESCE(AVG(sc.score), 0)
		FROM students st
		LEFT JOIN scores sc ON sc.student_id = st.id
		WHERE LOWER(st.department) = LOWER($1)
	`, department).Scan(&stats.StudentCount, &stats.ScoreCount, &stats.Average)
	if err != nil {
		return nil, fmt.Errorf("failed to compute department average: %w", err)
	}

	return &stats, nil
}
