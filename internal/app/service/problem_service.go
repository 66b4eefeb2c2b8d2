package service

import (
	"context"
	"fmt"
	"strings"

	"code_duel/internal/common"
	"code_duel/internal/domain/model"
	"code_duel/internal/domain/repository"
	"code_duel/internal/platform/logger"

	"github.com/gosimple/slug"
	"go.uber.org/zap"
)

type ProblemService struct {
	problemRepo repository.ProblemRepository
}

func NewProblemService(problemRepo repository.ProblemRepository) *ProblemService {
	return &ProblemService{problemRepo: problemRepo}
}

// ImportProblemRequest is one problem in an import file.
type ImportProblemRequest struct {
	Title             string            `yaml:"title" json:"title"`
	Slug              string            `yaml:"slug,omitempty" json:"slug,omitempty"`
	Description       string            `yaml:"description" json:"description"`
	Difficulty        model.Difficulty  `yaml:"difficulty" json:"difficulty"`
	Active            *bool             `yaml:"active,omitempty" json:"active,omitempty"`
	TimeLimit         float64           `yaml:"time_limit" json:"time_limit"`     // seconds
	MemoryLimit       int               `yaml:"memory_limit" json:"memory_limit"` // MB
	StarterCode       map[string]string `yaml:"starter_code,omitempty" json:"starter_code,omitempty"`
	EditorialSolution string            `yaml:"editorial_solution,omitempty" json:"editorial_solution,omitempty"`
	TestCases         []ImportTestCase  `yaml:"test_cases" json:"test_cases"`
}

type ImportTestCase struct {
	Input          string `yaml:"input" json:"input"`
	ExpectedOutput string `yaml:"expected_output" json:"expected_output"`
	Hidden         bool   `yaml:"hidden" json:"hidden"`
}

// ImportProblem creates or replaces a problem keyed by its slug.
func (s *ProblemService) ImportProblem(ctx context.Context, req ImportProblemRequest) (*model.Problem, error) {
	if strings.TrimSpace(req.Title) == "" {
		return nil, common.Errorf("problem title is required: %w", common.ErrBadRequest)
	}
	if !req.Difficulty.Valid() {
		return nil, common.Errorf("problem %q has invalid difficulty %q: %w", req.Title, req.Difficulty, common.ErrBadRequest)
	}
	if len(req.TestCases) == 0 {
		return nil, common.Errorf("problem %q has no test cases: %w", req.Title, common.ErrBadRequest)
	}
	for lang := range req.StarterCode {
		if !model.SupportedLanguage(lang) {
			return nil, common.Errorf("problem %q has starter code for unsupported language %q: %w", req.Title, lang, common.ErrBadRequest)
		}
	}

	p := &model.Problem{
		Title:       req.Title,
		Slug:        req.Slug,
		Description: req.Description,
		Difficulty:  req.Difficulty,
		IsActive:    req.Active == nil || *req.Active,
		TimeLimit:   req.TimeLimit,
		MemoryLimit: req.MemoryLimit,
		StarterCode: req.StarterCode,
	}
	if p.Slug == "" {
		p.Slug = slug.Make(req.Title)
	}
	if p.TimeLimit <= 0 {
		p.TimeLimit = 2
	}
	if p.MemoryLimit <= 0 {
		p.MemoryLimit = 256
	}
	if req.EditorialSolution != "" {
		editorial := req.EditorialSolution
		p.EditorialSolution = &editorial
	}
	for i, tc := range req.TestCases {
		p.TestCases = append(p.TestCases, model.TestCase{
			Input:          tc.Input,
			ExpectedOutput: tc.ExpectedOutput,
			IsHidden:       tc.Hidden,
			OrderIndex:     i,
		})
	}

	if err := s.problemRepo.UpsertProblem(ctx, p); err != nil {
		return nil, fmt.Errorf("upsert problem %s: %w", p.Slug, err)
	}
	logger.L().Info("problem_imported",
		zap.String("problem_id", p.ID),
		zap.String("slug", p.Slug),
		zap.Int("test_cases", len(p.TestCases)),
	)
	return p, nil
}
