package service

import (
	"context"
	"fmt"

	"code_duel/internal/common"
	"code_duel/internal/domain/model"
	"code_duel/internal/domain/repository"
	"code_duel/internal/platform/logger"
	"code_duel/internal/platform/notify"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

const submissionAcceptedMessage = "Submission received and being evaluated"

type SubmissionService struct {
	store     *repository.Store
	queue     Enqueuer
	evaluator *EvaluationService
	notifier  notify.Notifier
	now       Clock
}

func NewSubmissionService(
	store *repository.Store,
	queue Enqueuer,
	evaluator *EvaluationService,
	notifier notify.Notifier,
	clock Clock,
) *SubmissionService {
	return &SubmissionService{
		store:     store,
		queue:     queue,
		evaluator: evaluator,
		notifier:  notifier,
		now:       orNow(clock),
	}
}

type SubmitRequest struct {
	Code     string `json:"code" validate:"required,max=65536"`
	Language string `json:"language" validate:"required"`
}

type SubmitResult struct {
	SubmissionID string `json:"submission_id"`
	IsLate       bool   `json:"is_late"`
	Penalty      int    `json:"penalty"`
	Message      string `json:"message"`
}

// Submit records a pending submission and hands it to the judge workers. It
// returns before evaluation; a failure to enqueue is resolved as a failed
// evaluation rather than an error to the caller.
func (s *SubmissionService) Submit(ctx context.Context, matchID, userID string, req SubmitRequest) (*SubmitResult, error) {
	match, err := s.store.Matches.GetMatchByID(ctx, matchID)
	if err != nil {
		return nil, err
	}
	if !match.HasPlayer(userID) {
		return nil, common.Errorf("not a player in match %s: %w", matchID, common.ErrUnauthorized)
	}
	if !model.SupportedLanguage(req.Language) {
		return nil, common.Errorf("unsupported language %q: %w", req.Language, common.ErrBadRequest)
	}
	room, err := s.store.Rooms.GetRoomByID(ctx, match.RoomID)
	if err != nil {
		return nil, err
	}
	if room.Status == model.RoomStatusCompleted {
		return nil, common.Errorf("match is over: %w", common.ErrInvalidRoomState)
	}

	now := s.now()
	started := match.StartedAt
	if room.StartedAt != nil {
		started = *room.StartedAt
	}

	sub := &model.Submission{
		ID:          uuid.NewString(),
		MatchID:     match.ID,
		UserID:      userID,
		ProblemID:   match.ProblemID,
		Code:        req.Code,
		Language:    req.Language,
		IsLate:      now.Sub(started) > room.TimeLimitDuration(),
		SubmittedAt: now,
	}
	if err := s.store.Submissions.CreateSubmission(ctx, sub); err != nil {
		return nil, fmt.Errorf("create submission: %w", err)
	}
	logger.L().Info("submission_created",
		zap.String("submission_id", sub.ID),
		zap.String("match_id", match.ID),
		zap.String("user_id", userID),
		zap.Bool("late", sub.IsLate),
		zap.Int("penalty", sub.PenaltyPoints),
	)
	publish(ctx, s.notifier, model.NewMatchEvent(model.EventSubmissionCreated, match.ID, userID, map[string]any{
		"submission_id": sub.ID,
		"is_late":       sub.IsLate,
		"penalty":       sub.PenaltyPoints,
	}))

	if err := s.queue.Enqueue(ctx, sub.ID); err != nil {
		logger.L().Error("submission_enqueue_failed", zap.String("submission_id", sub.ID), zap.Error(err))
		if ferr := s.evaluator.Fail(ctx, sub.ID, fmt.Errorf("could not dispatch to judge: %v: %w", err, common.ErrJudgeExecution)); ferr != nil {
			logger.L().Error("submission_fail_record_failed", zap.String("submission_id", sub.ID), zap.Error(ferr))
		}
	}

	return &SubmitResult{
		SubmissionID: sub.ID,
		IsLate:       sub.IsLate,
		Penalty:      sub.PenaltyPoints,
		Message:      submissionAcceptedMessage,
	}, nil
}

// GetSubmission returns a submission to its author, or to the opponent once
// the room is completed.
func (s *SubmissionService) GetSubmission(ctx context.Context, submissionID, userID string) (*model.Submission, error) {
	sub, err := s.store.Submissions.GetSubmissionByID(ctx, submissionID)
	if err != nil {
		return nil, err
	}
	if sub.UserID == userID {
		return sub, nil
	}
	match, err := s.store.Matches.GetMatchByID(ctx, sub.MatchID)
	if err != nil {
		return nil, err
	}
	if !match.HasPlayer(userID) {
		return nil, common.Errorf("not a player in match %s: %w", sub.MatchID, common.ErrUnauthorized)
	}
	room, err := s.store.Rooms.GetRoomByID(ctx, match.RoomID)
	if err != nil {
		return nil, err
	}
	if room.Status != model.RoomStatusCompleted {
		return nil, common.Errorf("opponent submissions are hidden until the match ends: %w", common.ErrUnauthorized)
	}
	return sub, nil
}

func (s *SubmissionService) ListMatchSubmissions(ctx context.Context, matchID, userID string) ([]model.Submission, error) {
	match, err := s.store.Matches.GetMatchByID(ctx, matchID)
	if err != nil {
		return nil, err
	}
	if !match.HasPlayer(userID) {
		return nil, common.Errorf("not a player in match %s: %w", matchID, common.ErrUnauthorized)
	}
	room, err := s.store.Rooms.GetRoomByID(ctx, match.RoomID)
	if err != nil {
		return nil, err
	}
	subs, err := s.store.Submissions.ListSubmissionsByMatch(ctx, matchID)
	if err != nil {
		return nil, err
	}
	if room.Status != model.RoomStatusCompleted {
		subs = redactOpponent(subs, userID)
	}
	return subs, nil
}
