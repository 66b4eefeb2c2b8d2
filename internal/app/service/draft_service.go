package service

import (
	"context"

	"code_duel/internal/common"
	"code_duel/internal/domain/model"
	"code_duel/internal/domain/repository"
)

type DraftService struct {
	store  *repository.Store
	drafts repository.DraftRepository
	now    Clock
}

func NewDraftService(store *repository.Store, drafts repository.DraftRepository, clock Clock) *DraftService {
	return &DraftService{store: store, drafts: drafts, now: orNow(clock)}
}

type SaveDraftRequest struct {
	Code     string `json:"code" validate:"max=65536"`
	Language string `json:"language" validate:"required"`
}

func (s *DraftService) participant(ctx context.Context, matchID, userID string) (*model.Match, error) {
	match, err := s.store.Matches.GetMatchByID(ctx, matchID)
	if err != nil {
		return nil, err
	}
	if !match.HasPlayer(userID) {
		return nil, common.Errorf("not a player in match %s: %w", matchID, common.ErrUnauthorized)
	}
	return match, nil
}

// SaveDraft stores the caller's editor content while the match is running.
func (s *DraftService) SaveDraft(ctx context.Context, matchID, userID string, req SaveDraftRequest) (*model.Draft, error) {
	match, err := s.participant(ctx, matchID, userID)
	if err != nil {
		return nil, err
	}
	room, err := s.store.Rooms.GetRoomByID(ctx, match.RoomID)
	if err != nil {
		return nil, err
	}
	if room.Status != model.RoomStatusActive {
		return nil, common.Errorf("room is %s: %w", room.Status, common.ErrInvalidRoomState)
	}

	d := &model.Draft{MatchID: matchID, UserID: userID, Code: req.Code, Language: req.Language, SavedAt: s.now()}
	if err := s.drafts.SaveDraft(ctx, d); err != nil {
		return nil, err
	}
	return d, nil
}

func (s *DraftService) GetDraft(ctx context.Context, matchID, userID string) (*model.Draft, error) {
	if _, err := s.participant(ctx, matchID, userID); err != nil {
		return nil, err
	}
	return s.drafts.GetDraft(ctx, matchID, userID)
}
