// Package judge runs a submission against a problem's test cases on the
// external judge and normalizes the verdicts.
package judge

import (
	"context"
	"errors"
	"fmt"
	"time"

	"code_duel/internal/common"
	"code_duel/internal/domain/model"
	"code_duel/internal/domain/repository"
	"code_duel/internal/platform/judge0"
	"code_duel/internal/platform/logger"

	"go.uber.org/zap"
)

// Judge is the submit/poll contract of the execution sandbox.
type Judge interface {
	SubmitBatch(ctx context.Context, subs []judge0.Submission) ([]string, error)
	GetBatch(ctx context.Context, tokens []string) ([]judge0.Result, error)
}

type Options struct {
	PollInterval time.Duration
	Timeout      time.Duration
}

type Dispatcher struct {
	judge    Judge
	problems repository.ProblemRepository
	opts     Options
}

func NewDispatcher(j Judge, problems repository.ProblemRepository, opts Options) *Dispatcher {
	if opts.PollInterval <= 0 {
		opts.PollInterval = time.Second
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 2 * time.Minute
	}
	return &Dispatcher{judge: j, problems: problems, opts: opts}
}

// Outcome is the aggregated verdict for one submission.
type Outcome struct {
	PassedTests  int
	TotalTests   int
	AvgRuntimeMs float64
	AvgMemoryKb  float64
	Results      []model.TestResult
}

var statusByID = map[int]model.TestStatus{
	3: model.TestAccepted,
	4: model.TestWrongAnswer,
	5: model.TestTimeLimitExceeded,
	6: model.TestCompilationError,
	7: model.TestRuntimeError,
	8: model.TestMemoryLimitExceeded,
}

// MapStatus normalizes a judge status id.
func MapStatus(id int) model.TestStatus {
	if s, ok := statusByID[id]; ok {
		return s
	}
	return model.TestUnknown
}

// Evaluate judges sub against every test case of problem. Any failure of the
// batch as a whole is returned as common.ErrJudgeExecution or
// common.ErrJudgeTimeout; there is no partial outcome.
func (d *Dispatcher) Evaluate(ctx context.Context, sub *model.Submission, problem *model.Problem) (*Outcome, error) {
	languageID, ok := model.LanguageID(sub.Language)
	if !ok {
		return nil, fmt.Errorf("unsupported language %q: %w", sub.Language, common.ErrJudgeExecution)
	}

	testCases, err := d.problems.GetTestCasesByProblemID(ctx, problem.ID)
	if err != nil {
		return nil, fmt.Errorf("load test cases for %s: %w", problem.ID, err)
	}
	if len(testCases) == 0 {
		logger.L().Warn("judge_no_test_cases", zap.String("problem_id", problem.ID), zap.String("submission_id", sub.ID))
		return nil, fmt.Errorf("no test cases for problem %s: %w", problem.ID, common.ErrJudgeExecution)
	}

	batch := make([]judge0.Submission, len(testCases))
	for i, tc := range testCases {
		batch[i] = judge0.Submission{
			SourceCode:     sub.Code,
			LanguageID:     languageID,
			Stdin:          tc.Input,
			ExpectedOutput: tc.ExpectedOutput,
			CPUTimeLimit:   problem.TimeLimit,
			MemoryLimit:    problem.MemoryLimitKb(),
		}
	}

	tokens, err := d.judge.SubmitBatch(ctx, batch)
	if err != nil {
		return nil, fmt.Errorf("submit batch: %v: %w", err, common.ErrJudgeExecution)
	}
	logger.L().Debug("judge_batch_submitted", zap.String("submission_id", sub.ID), zap.Int("tests", len(tokens)))

	results, err := d.poll(ctx, tokens)
	if err != nil {
		return nil, err
	}
	return aggregate(testCases, results), nil
}

func (d *Dispatcher) poll(ctx context.Context, tokens []string) ([]judge0.Result, error) {
	pollCtx, cancel := context.WithTimeout(ctx, d.opts.Timeout)
	defer cancel()

	ticker := time.NewTicker(d.opts.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-pollCtx.Done():
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			return nil, fmt.Errorf("after %s: %w", d.opts.Timeout, common.ErrJudgeTimeout)
		case <-ticker.C:
		}

		results, err := d.judge.GetBatch(pollCtx, tokens)
		if err != nil {
			if errors.Is(pollCtx.Err(), context.DeadlineExceeded) && ctx.Err() == nil {
				return nil, fmt.Errorf("after %s: %w", d.opts.Timeout, common.ErrJudgeTimeout)
			}
			return nil, fmt.Errorf("poll batch: %v: %w", err, common.ErrJudgeExecution)
		}
		if allDone(results) {
			return results, nil
		}
	}
}

func allDone(results []judge0.Result) bool {
	for _, r := range results {
		if !r.Done() {
			return false
		}
	}
	return true
}

func aggregate(testCases []model.TestCase, results []judge0.Result) *Outcome {
	out := &Outcome{TotalTests: len(testCases), Results: make([]model.TestResult, len(testCases))}
	var runtime, memory float64
	for i, tc := range testCases {
		r := results[i]
		tr := model.TestResult{
			TestCaseID: tc.ID,
			Status:     MapStatus(r.Status.ID),
			RuntimeMs:  r.RuntimeMs(),
			MemoryKb:   r.MemoryKb(),
			Stdout:     r.Stdout,
			Stderr:     r.Stderr,
			Message:    r.Message,
			IsHidden:   tc.IsHidden,
		}
		if tr.Message == nil {
			tr.Message = r.CompileOutput
		}
		if tr.Status == model.TestAccepted {
			out.PassedTests++
		}
		runtime += tr.RuntimeMs
		memory += tr.MemoryKb
		out.Results[i] = tr
	}
	n := float64(len(testCases))
	out.AvgRuntimeMs = runtime / n
	out.AvgMemoryKb = memory / n
	return out
}
