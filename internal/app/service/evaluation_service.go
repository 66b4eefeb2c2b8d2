package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"code_duel/internal/app/judge"
	"code_duel/internal/app/scoring"
	"code_duel/internal/common"
	"code_duel/internal/domain/model"
	"code_duel/internal/domain/repository"
	"code_duel/internal/platform/logger"
	"code_duel/internal/platform/notify"

	"go.uber.org/zap"
)

// Judge evaluates a submission against its problem's test cases.
type Judge interface {
	Evaluate(ctx context.Context, sub *model.Submission, problem *model.Problem) (*judge.Outcome, error)
}

type EvaluationService struct {
	store      *repository.Store
	judge      Judge
	completion *CompletionService
	notifier   notify.Notifier
	policy     scoring.Policy
	now        Clock
}

func NewEvaluationService(
	store *repository.Store,
	j Judge,
	completion *CompletionService,
	notifier notify.Notifier,
	policy scoring.Policy,
	clock Clock,
) *EvaluationService {
	return &EvaluationService{
		store:      store,
		judge:      j,
		completion: completion,
		notifier:   notifier,
		policy:     policy,
		now:        orNow(clock),
	}
}

// Evaluate judges and scores one submission, then runs completion. For a
// submission that is already evaluated only completion runs again, so a retry
// after a failed score write still concludes the match. Judge failures and
// missing match data are recorded as a zero score. A returned
// common.ErrNotFound always means the submission itself does not exist.
func (s *EvaluationService) Evaluate(ctx context.Context, submissionID string) error {
	sub, err := s.store.Submissions.GetSubmissionByID(ctx, submissionID)
	if err != nil {
		return err
	}
	match, err := s.store.Matches.GetMatchByID(ctx, sub.MatchID)
	if err != nil {
		if errors.Is(err, common.ErrNotFound) {
			return s.recordWithoutMatch(ctx, sub, failedEvaluation(err, s.now()))
		}
		return err
	}
	if sub.Evaluated() {
		return s.complete(ctx, sub, match)
	}
	room, err := s.store.Rooms.GetRoomByID(ctx, match.RoomID)
	if err != nil {
		if errors.Is(err, common.ErrNotFound) {
			return s.record(ctx, sub, match, failedEvaluation(err, s.now()))
		}
		return err
	}
	problem, err := s.store.Problems.FindProblemByID(ctx, sub.ProblemID)
	if err != nil {
		if errors.Is(err, common.ErrNotFound) {
			return s.record(ctx, sub, match, failedEvaluation(err, s.now()))
		}
		return err
	}

	outcome, err := s.judge.Evaluate(ctx, sub, problem)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if !errors.Is(err, common.ErrJudgeExecution) && !errors.Is(err, common.ErrJudgeTimeout) {
			return err
		}
		return s.record(ctx, sub, match, failedEvaluation(err, s.now()))
	}

	first, err := s.store.Submissions.FirstSubmittedAt(ctx, match.ID, sub.UserID)
	if err != nil {
		return fmt.Errorf("first submission time: %w", err)
	}
	breakdown := scoring.Compute(scoring.Input{
		PassedTests:   outcome.PassedTests,
		TotalTests:    outcome.TotalTests,
		AvgRuntimeMs:  outcome.AvgRuntimeMs,
		AvgMemoryKb:   outcome.AvgMemoryKb,
		ElapsedMs:     float64(first.Sub(match.StartedAt).Milliseconds()),
		TimeLimitMs:   float64(room.TimeLimitDuration().Milliseconds()),
		PenaltyPoints: sub.PenaltyPoints,
		IsLate:        sub.IsLate,
	}, s.policy)
	logger.L().Debug("submission_scored",
		zap.String("submission_id", sub.ID),
		zap.Float64("correctness", breakdown.Correctness),
		zap.Float64("efficiency", breakdown.Efficiency),
		zap.Float64("speed", breakdown.Speed),
		zap.Int("score", breakdown.Score),
	)

	return s.record(ctx, sub, match, &model.Evaluation{
		Score:       breakdown.Score,
		PassedTests: outcome.PassedTests,
		TotalTests:  outcome.TotalTests,
		RuntimeMs:   outcome.AvgRuntimeMs,
		MemoryKb:    outcome.AvgMemoryKb,
		TestResults: outcome.Results,
		EvaluatedAt: s.now(),
	})
}

// Fail terminates a submission with a zero score when it cannot be judged at
// all. An already evaluated submission keeps its result.
func (s *EvaluationService) Fail(ctx context.Context, submissionID string, cause error) error {
	sub, err := s.store.Submissions.GetSubmissionByID(ctx, submissionID)
	if err != nil {
		return err
	}
	match, err := s.store.Matches.GetMatchByID(ctx, sub.MatchID)
	if err != nil {
		if errors.Is(err, common.ErrNotFound) {
			return s.recordWithoutMatch(ctx, sub, failedEvaluation(cause, s.now()))
		}
		return err
	}
	if sub.Evaluated() {
		return s.complete(ctx, sub, match)
	}
	return s.record(ctx, sub, match, failedEvaluation(cause, s.now()))
}

// complete reruns completion for an evaluated submission. Score writes and
// the room close are both safe to repeat.
func (s *EvaluationService) complete(ctx context.Context, sub *model.Submission, match *model.Match) error {
	score := 0
	if sub.Score != nil {
		score = *sub.Score
	}
	return s.completion.OnEvaluated(ctx, match, sub.UserID, score)
}

// recordWithoutMatch closes out a submission whose match is gone; there is
// no score slot or room left to update.
func (s *EvaluationService) recordWithoutMatch(ctx context.Context, sub *model.Submission, eval *model.Evaluation) error {
	if _, err := s.store.Submissions.RecordEvaluation(ctx, sub.ID, eval); err != nil {
		return fmt.Errorf("record evaluation: %w", err)
	}
	logger.L().Warn("submission_evaluation_failed",
		zap.String("submission_id", sub.ID),
		zap.String("match_id", sub.MatchID),
		zap.String("reason", *eval.Error),
	)
	return nil
}

func failedEvaluation(cause error, at time.Time) *model.Evaluation {
	return model.FailedEvaluation(fmt.Sprintf("%s: %v", common.KindOf(cause), cause), at)
}

func (s *EvaluationService) record(ctx context.Context, sub *model.Submission, match *model.Match, eval *model.Evaluation) error {
	ok, err := s.store.Submissions.RecordEvaluation(ctx, sub.ID, eval)
	if err != nil {
		return fmt.Errorf("record evaluation: %w", err)
	}
	if !ok {
		logger.L().Info("evaluation_already_recorded", zap.String("submission_id", sub.ID))
		return nil
	}

	fields := []zap.Field{
		zap.String("submission_id", sub.ID),
		zap.String("match_id", match.ID),
		zap.String("user_id", sub.UserID),
		zap.Int("score", eval.Score),
		zap.Int("passed", eval.PassedTests),
		zap.Int("total", eval.TotalTests),
	}
	if eval.Error != nil {
		logger.L().Warn("submission_evaluation_failed", append(fields, zap.String("reason", *eval.Error))...)
	} else {
		logger.L().Info("submission_evaluated", fields...)
	}
	publish(ctx, s.notifier, model.NewMatchEvent(model.EventSubmissionEvaluated, match.ID, sub.UserID, map[string]any{
		"submission_id": sub.ID,
		"score":         eval.Score,
		"passed_tests":  eval.PassedTests,
		"total_tests":   eval.TotalTests,
		"error":         eval.Error,
	}))

	return s.completion.OnEvaluated(ctx, match, sub.UserID, eval.Score)
}
