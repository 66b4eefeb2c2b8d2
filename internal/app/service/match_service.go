package service

import (
	"context"
	"fmt"
	"math/rand"
	"time"

	"code_duel/internal/common"
	"code_duel/internal/domain/model"
	"code_duel/internal/domain/repository"
	"code_duel/internal/platform/logger"
	"code_duel/internal/platform/notify"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

type MatchService struct {
	store    *repository.Store
	notifier notify.Notifier
	now      Clock
	pick     func(n int) int
}

func NewMatchService(store *repository.Store, notifier notify.Notifier, clock Clock) *MatchService {
	return &MatchService{store: store, notifier: notifier, now: orNow(clock), pick: rand.Intn}
}

type StartMatchResult struct {
	Match     *model.Match   `json:"match"`
	Room      *model.Room    `json:"room"`
	Problem   *model.Problem `json:"problem"`
	StartTime time.Time      `json:"start_time"`
	TimeLimit int            `json:"time_limit"`
}

// StartMatch creates the match for a locked room and starts its clock. Calls
// for a room that is already active return the existing match.
func (s *MatchService) StartMatch(ctx context.Context, roomID, userID string) (*StartMatchResult, error) {
	room, err := s.store.Rooms.GetRoomByID(ctx, roomID)
	if err != nil {
		return nil, err
	}
	if !room.HasPlayer(userID) {
		return nil, common.Errorf("not a player in room %s: %w", roomID, common.ErrUnauthorized)
	}

	switch room.Status {
	case model.RoomStatusActive:
		match, err := s.store.Matches.GetMatchByRoomID(ctx, roomID)
		if err != nil {
			return nil, fmt.Errorf("active room %s without match: %w", roomID, err)
		}
		return s.result(ctx, match, room)
	case model.RoomStatusWaiting:
		if !room.IsFull() {
			return nil, common.Errorf("room is waiting for an opponent: %w", common.ErrInvalidRoomState)
		}
		if _, err := s.store.Rooms.LockRoom(ctx, roomID, s.now()); err != nil {
			return nil, fmt.Errorf("lock room: %w", err)
		}
	case model.RoomStatusLocked:
	default:
		return nil, common.Errorf("room is %s: %w", room.Status, common.ErrInvalidRoomState)
	}

	ids, err := s.store.Problems.ListActiveProblemIDs(ctx, room.Difficulty)
	if err != nil {
		return nil, fmt.Errorf("list problems: %w", err)
	}
	if len(ids) == 0 {
		return nil, common.Errorf("difficulty %s: %w", room.Difficulty, common.ErrNoProblemsAvailable)
	}

	match, room, created, err := s.store.Matches.StartMatch(ctx, &model.Match{
		ID:        uuid.NewString(),
		RoomID:    room.ID,
		ProblemID: ids[s.pick(len(ids))],
		Player1ID: room.Player1ID,
		Player2ID: *room.Player2ID,
		StartedAt: s.now(),
	})
	if err != nil {
		return nil, err
	}
	if created {
		logger.L().Info("match_started",
			zap.String("match_id", match.ID),
			zap.String("room_id", room.ID),
			zap.String("problem_id", match.ProblemID),
		)
		publish(ctx, s.notifier, model.NewRoomEvent(model.EventRoomActive, room))
	}
	return s.result(ctx, match, room)
}

func (s *MatchService) result(ctx context.Context, match *model.Match, room *model.Room) (*StartMatchResult, error) {
	problem, err := s.store.Problems.FindProblemByID(ctx, match.ProblemID)
	if err != nil {
		return nil, fmt.Errorf("load problem %s: %w", match.ProblemID, err)
	}
	return &StartMatchResult{
		Match:     match,
		Room:      room,
		Problem:   problem.Public(),
		StartTime: match.StartedAt,
		TimeLimit: room.TimeLimit,
	}, nil
}

// MatchView is what a participant sees of a match, live or finished.
type MatchView struct {
	Match       *model.Match       `json:"match"`
	Room        *model.Room        `json:"room"`
	Problem     *model.Problem     `json:"problem"`
	Submissions []model.Submission `json:"submissions"`
	Deadline    time.Time          `json:"deadline"`
	Completed   bool               `json:"completed"`
}

// GetMatchView hides the editorial and the opponent's code until the room is completed.
func (s *MatchService) GetMatchView(ctx context.Context, matchID, userID string) (*MatchView, error) {
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
	problem, err := s.store.Problems.FindProblemByID(ctx, match.ProblemID)
	if err != nil {
		return nil, err
	}
	subs, err := s.store.Submissions.ListSubmissionsByMatch(ctx, matchID)
	if err != nil {
		return nil, err
	}

	completed := room.Status == model.RoomStatusCompleted
	if !completed {
		problem = problem.Public()
		subs = redactOpponent(subs, userID)
	}
	return &MatchView{
		Match:       match,
		Room:        room,
		Problem:     problem,
		Submissions: subs,
		Deadline:    match.StartedAt.Add(room.TimeLimitDuration()),
		Completed:   completed,
	}, nil
}

func redactOpponent(subs []model.Submission, userID string) []model.Submission {
	out := make([]model.Submission, len(subs))
	for i, sub := range subs {
		if sub.UserID != userID {
			sub.Code = ""
			sub.TestResults = nil
		}
		out[i] = sub
	}
	return out
}
