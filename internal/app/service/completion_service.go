package service

import (
	"context"
	"fmt"

	"code_duel/internal/domain/model"
	"code_duel/internal/domain/repository"
	"code_duel/internal/platform/logger"
	"code_duel/internal/platform/notify"

	"go.uber.org/zap"
)

// CompletionService records player scores and closes a room once both
// players have an evaluated submission.
type CompletionService struct {
	store    *repository.Store
	notifier notify.Notifier
	now      Clock
}

func NewCompletionService(store *repository.Store, notifier notify.Notifier, clock Clock) *CompletionService {
	return &CompletionService{store: store, notifier: notifier, now: orNow(clock)}
}

// OnEvaluated must run after the submission's evaluation is stored. Whichever
// caller observes both players evaluated attempts the close; the conditional
// update lets exactly one of them succeed.
func (s *CompletionService) OnEvaluated(ctx context.Context, match *model.Match, userID string, score int) error {
	slot := match.PlayerSlot(userID)
	if slot == 0 {
		return fmt.Errorf("user %s is not in match %s", userID, match.ID)
	}
	if err := s.store.Matches.SetPlayerScore(ctx, match.ID, slot, score); err != nil {
		return fmt.Errorf("set player score: %w", err)
	}
	publish(ctx, s.notifier, model.NewMatchEvent(model.EventMatchScoreUpdated, match.ID, userID, map[string]int{
		"slot":  slot,
		"score": score,
	}))

	evaluated, err := s.store.Submissions.EvaluatedUserIDs(ctx, match.ID)
	if err != nil {
		return fmt.Errorf("evaluated players: %w", err)
	}
	if !bothEvaluated(match, evaluated) {
		return nil
	}

	closed, err := s.store.Rooms.CompleteRoom(ctx, match.RoomID, s.now())
	if err != nil {
		return fmt.Errorf("complete room: %w", err)
	}
	if !closed {
		return nil
	}

	logger.L().Info("room_completed", zap.String("room_id", match.RoomID), zap.String("match_id", match.ID))
	room, err := s.store.Rooms.GetRoomByID(ctx, match.RoomID)
	if err != nil {
		logger.L().Warn("room_reload_failed", zap.String("room_id", match.RoomID), zap.Error(err))
		return nil
	}
	publish(ctx, s.notifier, model.NewRoomEvent(model.EventRoomCompleted, room))
	return nil
}

func bothEvaluated(match *model.Match, userIDs []string) bool {
	var p1, p2 bool
	for _, id := range userIDs {
		switch id {
		case match.Player1ID:
			p1 = true
		case match.Player2ID:
			p2 = true
		}
	}
	return p1 && p2
}
