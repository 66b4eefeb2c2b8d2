package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"code_duel/internal/common"
	"code_duel/internal/domain/model"
	"code_duel/internal/domain/repository"
	"code_duel/internal/platform/logger"
	"code_duel/internal/platform/notify"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

const quickplayCandidates = 5

type MatchmakingOptions struct {
	RoomCodeAttempts int
	ClaimAttempts    int
	Clock            Clock
}

type MatchmakingService struct {
	rooms    repository.RoomRepository
	notifier notify.Notifier
	opts     MatchmakingOptions
	now      Clock
}

func NewMatchmakingService(rooms repository.RoomRepository, notifier notify.Notifier, opts MatchmakingOptions) *MatchmakingService {
	if opts.RoomCodeAttempts <= 0 {
		opts.RoomCodeAttempts = 5
	}
	if opts.ClaimAttempts <= 0 {
		opts.ClaimAttempts = 3
	}
	return &MatchmakingService{rooms: rooms, notifier: notifier, opts: opts, now: orNow(opts.Clock)}
}

type CreateRoomRequest struct {
	Mode       model.RoomMode   `json:"mode" validate:"omitempty,oneof=quickplay custom"`
	Difficulty model.Difficulty `json:"difficulty" validate:"omitempty,oneof=easy medium hard"`
	TimeLimit  int              `json:"time_limit" validate:"omitempty,min=60,max=14400"` // seconds
}

type QuickplayRequest struct {
	Difficulty model.Difficulty `json:"difficulty" validate:"omitempty,oneof=easy medium hard"`
}

type JoinByCodeRequest struct {
	RoomCode string `json:"room_code" validate:"required,len=6,alphanum"`
}

// RoomResult tells the caller whether they were paired into an existing room.
type RoomResult struct {
	Room   *model.Room `json:"room"`
	Joined bool        `json:"joined"`
}

func (req *CreateRoomRequest) applyDefaults() {
	if req.Mode == "" {
		req.Mode = model.ModeQuickplay
	}
	if req.Difficulty == "" {
		req.Difficulty = model.DifficultyEasy
	}
	if req.TimeLimit <= 0 {
		req.TimeLimit = model.DefaultTimeLimitSeconds
	}
}

// CreateRoom opens a room for userID. Quick-play creations first try to pair
// with someone already waiting at the same difficulty.
func (s *MatchmakingService) CreateRoom(ctx context.Context, userID string, req CreateRoomRequest) (*RoomResult, error) {
	req.applyDefaults()
	if !req.Mode.Valid() || !req.Difficulty.Valid() {
		return nil, common.Errorf("invalid mode or difficulty: %w", common.ErrBadRequest)
	}
	if req.Mode == model.ModeQuickplay {
		return s.joinOrCreateQuickplay(ctx, userID, req)
	}
	room, err := s.openRoom(ctx, userID, req)
	if err != nil {
		return nil, err
	}
	return &RoomResult{Room: room}, nil
}

// JoinQuickplay pairs userID with a waiting quick-play room, or opens a new one.
// Losing a race for a room is never an error.
func (s *MatchmakingService) JoinQuickplay(ctx context.Context, userID string, req QuickplayRequest) (*RoomResult, error) {
	create := CreateRoomRequest{Mode: model.ModeQuickplay, Difficulty: req.Difficulty}
	create.applyDefaults()
	if !create.Difficulty.Valid() {
		return nil, common.Errorf("invalid difficulty %q: %w", req.Difficulty, common.ErrBadRequest)
	}
	return s.joinOrCreateQuickplay(ctx, userID, create)
}

func (s *MatchmakingService) joinOrCreateQuickplay(ctx context.Context, userID string, req CreateRoomRequest) (*RoomResult, error) {
	for attempt := 1; attempt <= s.opts.ClaimAttempts; attempt++ {
		candidates, err := s.rooms.FindWaitingQuickplayRooms(ctx, req.Difficulty, userID, quickplayCandidates)
		if err != nil {
			return nil, fmt.Errorf("find quickplay rooms: %w", err)
		}
		if len(candidates) == 0 {
			break
		}
		for _, c := range candidates {
			room, err := s.rooms.ClaimRoom(ctx, c.ID, userID, s.now())
			if errors.Is(err, common.ErrInvalidRoomState) {
				continue
			}
			if err != nil {
				return nil, fmt.Errorf("claim room %s: %w", c.ID, err)
			}
			logger.L().Info("quickplay_joined",
				zap.String("room_id", room.ID),
				zap.String("user_id", userID),
				zap.Int("attempt", attempt),
			)
			publish(ctx, s.notifier, model.NewRoomEvent(model.EventRoomLocked, room))
			return &RoomResult{Room: room, Joined: true}, nil
		}
		logger.L().Debug("quickplay_claim_lost", zap.String("user_id", userID), zap.Int("attempt", attempt))
	}

	room, err := s.openRoom(ctx, userID, req)
	if err != nil {
		return nil, err
	}
	return &RoomResult{Room: room}, nil
}

func (s *MatchmakingService) openRoom(ctx context.Context, userID string, req CreateRoomRequest) (*model.Room, error) {
	for attempt := 0; attempt < s.opts.RoomCodeAttempts; attempt++ {
		code, err := model.GenerateRoomCode()
		if err != nil {
			return nil, fmt.Errorf("generate room code: %w", err)
		}
		room := &model.Room{
			ID:         uuid.NewString(),
			RoomCode:   code,
			CreatedBy:  userID,
			Player1ID:  userID,
			Mode:       req.Mode,
			Difficulty: req.Difficulty,
			TimeLimit:  req.TimeLimit,
			Status:     model.RoomStatusWaiting,
			CreatedAt:  s.now(),
		}
		err = s.rooms.CreateRoom(ctx, room)
		if errors.Is(err, common.ErrConflict) {
			logger.L().Debug("room_code_collision", zap.String("code", code))
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("create room: %w", err)
		}
		logger.L().Info("room_created",
			zap.String("room_id", room.ID),
			zap.String("user_id", userID),
			zap.String("mode", string(room.Mode)),
			zap.String("difficulty", string(room.Difficulty)),
		)
		publish(ctx, s.notifier, model.NewRoomEvent(model.EventRoomCreated, room))
		return room, nil
	}
	return nil, fmt.Errorf("after %d attempts: %w", s.opts.RoomCodeAttempts, common.ErrRoomCodeExhausted)
}

// JoinRoom claims the second seat of a specific room.
func (s *MatchmakingService) JoinRoom(ctx context.Context, roomID, userID string) (*model.Room, error) {
	room, err := s.rooms.GetRoomByID(ctx, roomID)
	if err != nil {
		return nil, err
	}
	return s.claim(ctx, room, userID)
}

func (s *MatchmakingService) JoinRoomByCode(ctx context.Context, userID string, req JoinByCodeRequest) (*model.Room, error) {
	room, err := s.rooms.GetRoomByCode(ctx, strings.ToUpper(strings.TrimSpace(req.RoomCode)))
	if err != nil {
		return nil, err
	}
	return s.claim(ctx, room, userID)
}

func (s *MatchmakingService) claim(ctx context.Context, room *model.Room, userID string) (*model.Room, error) {
	// A retried join by the seated second player is answered with the room.
	if room.Player2ID != nil && *room.Player2ID == userID {
		return room, nil
	}
	if room.Player1ID == userID {
		return nil, common.Errorf("cannot join your own room: %w", common.ErrInvalidRoomState)
	}
	if room.Status != model.RoomStatusWaiting {
		return nil, common.Errorf("room is %s: %w", room.Status, common.ErrInvalidRoomState)
	}

	claimed, err := s.rooms.ClaimRoom(ctx, room.ID, userID, s.now())
	if err != nil {
		return nil, err
	}
	logger.L().Info("room_joined", zap.String("room_id", claimed.ID), zap.String("user_id", userID))
	publish(ctx, s.notifier, model.NewRoomEvent(model.EventRoomLocked, claimed))
	return claimed, nil
}

// GetRoom returns any room by id; room ids are shared as invitations.
func (s *MatchmakingService) GetRoom(ctx context.Context, roomID string) (*model.Room, error) {
	return s.rooms.GetRoomByID(ctx, roomID)
}

// Rematch opens a new custom room with the settings of a finished one so the
// previous opponent can join it directly.
func (s *MatchmakingService) Rematch(ctx context.Context, roomID, userID string) (*model.Room, error) {
	prev, err := s.rooms.GetRoomByID(ctx, roomID)
	if err != nil {
		return nil, err
	}
	if !prev.HasPlayer(userID) {
		return nil, common.Errorf("not a player in room %s: %w", roomID, common.ErrUnauthorized)
	}
	if prev.Status != model.RoomStatusCompleted {
		return nil, common.Errorf("room is %s: %w", prev.Status, common.ErrInvalidRoomState)
	}
	return s.openRoom(ctx, userID, CreateRoomRequest{
		Mode:       model.ModeCustom,
		Difficulty: prev.Difficulty,
		TimeLimit:  prev.TimeLimit,
	})
}
