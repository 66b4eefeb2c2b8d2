package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"code_duel/internal/common"
	"code_duel/internal/domain/model"

	"github.com/google/uuid"
)

type pgProblemRepository struct {
	db *sql.DB
}

func NewPgProblemRepository(db *sql.DB) ProblemRepository {
	return &pgProblemRepository{db: db}
}

func (r *pgProblemRepository) ListActiveProblemIDs(ctx context.Context, difficulty model.Difficulty) ([]string, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id FROM problems WHERE is_active AND difficulty = $1 ORDER BY id`, difficulty)
	if err != nil {
		return nil, fmt.Errorf("pgProblemRepository.ListActiveProblemIDs: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("pgProblemRepository.ListActiveProblemIDs scan: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func (r *pgProblemRepository) FindProblemByID(ctx context.Context, id string) (*model.Problem, error) {
	query := `
        SELECT id, title, slug, description, difficulty, is_active, time_limit, memory_limit,
               starter_code, editorial_solution, created_at, updated_at
        FROM problems
        WHERE id = $1`

	problem := &model.Problem{}
	var starter []byte
	err := r.db.QueryRowContext(ctx, query, id).Scan(
		&problem.ID, &problem.Title, &problem.Slug, &problem.Description, &problem.Difficulty, &problem.IsActive,
		&problem.TimeLimit, &problem.MemoryLimit, &starter, &problem.EditorialSolution,
		&problem.CreatedAt, &problem.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("problem %s: %w", id, common.ErrNotFound)
		}
		return nil, fmt.Errorf("pgProblemRepository.FindProblemByID: %w", err)
	}
	if len(starter) > 0 {
		if err := json.Unmarshal(starter, &problem.StarterCode); err != nil {
			return nil, fmt.Errorf("decode starter_code: %w", err)
		}
	}
	return problem, nil
}

func (r *pgProblemRepository) GetTestCasesByProblemID(ctx context.Context, problemID string) ([]model.TestCase, error) {
	query := `SELECT id, problem_id, input, expected_output, is_hidden, order_index
	          FROM test_cases WHERE problem_id = $1 ORDER BY order_index, id`
	rows, err := r.db.QueryContext(ctx, query, problemID)
	if err != nil {
		return nil, fmt.Errorf("pgProblemRepository.GetTestCasesByProblemID: %w", err)
	}
	defer rows.Close()

	var testCases []model.TestCase
	for rows.Next() {
		var tc model.TestCase
		if err := rows.Scan(&tc.ID, &tc.ProblemID, &tc.Input, &tc.ExpectedOutput, &tc.IsHidden, &tc.OrderIndex); err != nil {
			return nil, fmt.Errorf("pgProblemRepository.GetTestCasesByProblemID scan: %w", err)
		}
		testCases = append(testCases, tc)
	}
	return testCases, rows.Err()
}

func (r *pgProblemRepository) UpsertProblem(ctx context.Context, p *model.Problem) error {
	starter, err := json.Marshal(p.StarterCode)
	if err != nil {
		return fmt.Errorf("encode starter_code: %w", err)
	}
	if p.ID == "" {
		p.ID = uuid.NewString()
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("pgProblemRepository.UpsertProblem begin: %w", err)
	}
	defer tx.Rollback()

	query := `INSERT INTO problems (id, title, slug, description, difficulty, is_active, time_limit, memory_limit, starter_code, editorial_solution)
	          VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	          ON CONFLICT (slug) DO UPDATE SET
	              title = EXCLUDED.title, description = EXCLUDED.description, difficulty = EXCLUDED.difficulty,
	              is_active = EXCLUDED.is_active, time_limit = EXCLUDED.time_limit, memory_limit = EXCLUDED.memory_limit,
	              starter_code = EXCLUDED.starter_code, editorial_solution = EXCLUDED.editorial_solution,
	              updated_at = CURRENT_TIMESTAMP
	          RETURNING id`
	if err := tx.QueryRowContext(ctx, query,
		p.ID, p.Title, p.Slug, p.Description, p.Difficulty, p.IsActive, p.TimeLimit, p.MemoryLimit, starter, p.EditorialSolution,
	).Scan(&p.ID); err != nil {
		return fmt.Errorf("pgProblemRepository.UpsertProblem: %w", err)
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM test_cases WHERE problem_id = $1`, p.ID); err != nil {
		return fmt.Errorf("pgProblemRepository.UpsertProblem clear test cases: %w", err)
	}
	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO test_cases (id, problem_id, input, expected_output, is_hidden, order_index) VALUES ($1, $2, $3, $4, $5, $6)`)
	if err != nil {
		return fmt.Errorf("pgProblemRepository.UpsertProblem prepare: %w", err)
	}
	defer stmt.Close()
	for i := range p.TestCases {
		tc := &p.TestCases[i]
		if tc.ID == "" {
			tc.ID = uuid.NewString()
		}
		tc.ProblemID = p.ID
		if _, err := stmt.ExecContext(ctx, tc.ID, tc.ProblemID, tc.Input, tc.ExpectedOutput, tc.IsHidden, tc.OrderIndex); err != nil {
			return fmt.Errorf("pgProblemRepository.UpsertProblem test case %d: %w", i, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("pgProblemRepository.UpsertProblem commit: %w", err)
	}
	return nil
}
