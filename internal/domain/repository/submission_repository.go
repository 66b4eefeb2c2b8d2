package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"code_duel/internal/common"
	"code_duel/internal/domain/model"
)

const submissionColumns = `id, match_id, user_id, problem_id, code, language, penalty_points, is_late,
	submitted_at, evaluated_at, score, passed_tests, total_tests, runtime_ms, memory_kb, test_results, error`

type pgSubmissionRepository struct {
	db *sql.DB
}

func NewPgSubmissionRepository(db *sql.DB) SubmissionRepository {
	return &pgSubmissionRepository{db: db}
}

func scanSubmission(row rowScanner) (*model.Submission, error) {
	s := &model.Submission{}
	var results []byte
	err := row.Scan(
		&s.ID, &s.MatchID, &s.UserID, &s.ProblemID, &s.Code, &s.Language, &s.PenaltyPoints, &s.IsLate,
		&s.SubmittedAt, &s.EvaluatedAt, &s.Score, &s.PassedTests, &s.TotalTests, &s.RuntimeMs, &s.MemoryKb, &results, &s.Error,
	)
	if err != nil {
		return nil, err
	}
	if len(results) > 0 {
		if err := json.Unmarshal(results, &s.TestResults); err != nil {
			return nil, fmt.Errorf("decode test_results: %w", err)
		}
	}
	return s, nil
}

func (r *pgSubmissionRepository) CreateSubmission(ctx context.Context, sub *model.Submission) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("pgSubmissionRepository.CreateSubmission begin: %w", err)
	}
	defer tx.Rollback()

	// Serialize concurrent submits of one player so the prior count is exact.
	if _, err := tx.ExecContext(ctx, `SELECT pg_advisory_xact_lock(hashtext($1::text || ':' || $2::text))`, sub.MatchID, sub.UserID); err != nil {
		return fmt.Errorf("pgSubmissionRepository.CreateSubmission lock: %w", err)
	}

	var prior int
	if err := tx.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM submissions WHERE match_id = $1 AND user_id = $2`, sub.MatchID, sub.UserID,
	).Scan(&prior); err != nil {
		return fmt.Errorf("pgSubmissionRepository.CreateSubmission count: %w", err)
	}
	sub.PenaltyPoints = model.PenaltyForPrior(prior)

	query := `INSERT INTO submissions (id, match_id, user_id, problem_id, code, language, penalty_points, is_late, submitted_at)
	          VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`
	if _, err := tx.ExecContext(ctx, query,
		sub.ID, sub.MatchID, sub.UserID, sub.ProblemID, sub.Code, sub.Language, sub.PenaltyPoints, sub.IsLate, sub.SubmittedAt,
	); err != nil {
		return fmt.Errorf("pgSubmissionRepository.CreateSubmission insert: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("pgSubmissionRepository.CreateSubmission commit: %w", err)
	}
	return nil
}

func (r *pgSubmissionRepository) GetSubmissionByID(ctx context.Context, id string) (*model.Submission, error) {
	s, err := scanSubmission(r.db.QueryRowContext(ctx, `SELECT `+submissionColumns+` FROM submissions WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("submission %s: %w", id, common.ErrNotFound)
		}
		return nil, fmt.Errorf("pgSubmissionRepository.GetSubmissionByID: %w", err)
	}
	return s, nil
}

func (r *pgSubmissionRepository) ListSubmissionsByMatch(ctx context.Context, matchID string) ([]model.Submission, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+submissionColumns+` FROM submissions WHERE match_id = $1 ORDER BY submitted_at, id`, matchID)
	if err != nil {
		return nil, fmt.Errorf("pgSubmissionRepository.ListSubmissionsByMatch: %w", err)
	}
	defer rows.Close()

	var subs []model.Submission
	for rows.Next() {
		s, err := scanSubmission(rows)
		if err != nil {
			return nil, fmt.Errorf("pgSubmissionRepository.ListSubmissionsByMatch scan: %w", err)
		}
		subs = append(subs, *s)
	}
	return subs, rows.Err()
}

func (r *pgSubmissionRepository) FirstSubmittedAt(ctx context.Context, matchID, userID string) (time.Time, error) {
	var first sql.NullTime
	err := r.db.QueryRowContext(ctx,
		`SELECT MIN(submitted_at) FROM submissions WHERE match_id = $1 AND user_id = $2`, matchID, userID,
	).Scan(&first)
	if err != nil {
		return time.Time{}, fmt.Errorf("pgSubmissionRepository.FirstSubmittedAt: %w", err)
	}
	if !first.Valid {
		return time.Time{}, fmt.Errorf("no submissions by %s in match %s: %w", userID, matchID, common.ErrNotFound)
	}
	return first.Time, nil
}

func (r *pgSubmissionRepository) RecordEvaluation(ctx context.Context, submissionID string, eval *model.Evaluation) (bool, error) {
	results, err := json.Marshal(eval.TestResults)
	if err != nil {
		return false, fmt.Errorf("encode test_results: %w", err)
	}

	query := `UPDATE submissions SET evaluated_at = $2, score = $3, passed_tests = $4, total_tests = $5,
	                 runtime_ms = $6, memory_kb = $7, test_results = $8, error = $9
	          WHERE id = $1 AND evaluated_at IS NULL`
	res, err := r.db.ExecContext(ctx, query,
		submissionID, eval.EvaluatedAt, eval.Score, eval.PassedTests, eval.TotalTests,
		eval.RuntimeMs, eval.MemoryKb, results, eval.Error,
	)
	if err != nil {
		return false, fmt.Errorf("pgSubmissionRepository.RecordEvaluation: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("pgSubmissionRepository.RecordEvaluation rows: %w", err)
	}
	return n == 1, nil
}

func (r *pgSubmissionRepository) EvaluatedUserIDs(ctx context.Context, matchID string) ([]string, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT DISTINCT user_id FROM submissions WHERE match_id = $1 AND evaluated_at IS NOT NULL`, matchID)
	if err != nil {
		return nil, fmt.Errorf("pgSubmissionRepository.EvaluatedUserIDs: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("pgSubmissionRepository.EvaluatedUserIDs scan: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}
