package repository

import (
	"context"
	"database/sql"
	"time"

	"code_duel/internal/domain/model"
)

type RoomRepository interface {
	// CreateRoom returns common.ErrConflict when the room code is already taken.
	CreateRoom(ctx context.Context, room *model.Room) error
	GetRoomByID(ctx context.Context, id string) (*model.Room, error)
	GetRoomByCode(ctx context.Context, code string) (*model.Room, error)
	// FindWaitingQuickplayRooms lists joinable quick-play rooms, oldest first.
	FindWaitingQuickplayRooms(ctx context.Context, difficulty model.Difficulty, excludeUserID string, limit int) ([]model.Room, error)
	// ClaimRoom seats userID as player2 and locks the room in one conditional
	// write. It returns common.ErrInvalidRoomState when the room is no longer
	// claimable by userID.
	ClaimRoom(ctx context.Context, roomID, userID string, at time.Time) (*model.Room, error)
	// LockRoom promotes a waiting room that already has both players.
	LockRoom(ctx context.Context, roomID string, at time.Time) (bool, error)
	// CompleteRoom moves an active room to completed. Only one caller ever sees true.
	CompleteRoom(ctx context.Context, roomID string, at time.Time) (bool, error)
}

type MatchRepository interface {
	// StartMatch inserts m and activates its locked room atomically. When a
	// match already exists for the room it is returned with created=false.
	StartMatch(ctx context.Context, m *model.Match) (match *model.Match, room *model.Room, created bool, err error)
	GetMatchByID(ctx context.Context, id string) (*model.Match, error)
	GetMatchByRoomID(ctx context.Context, roomID string) (*model.Match, error)
	SetPlayerScore(ctx context.Context, matchID string, slot int, score int) error
}

type SubmissionRepository interface {
	// CreateSubmission assigns PenaltyPoints from the caller's prior
	// submission count under a per (match, user) lock, then inserts.
	CreateSubmission(ctx context.Context, sub *model.Submission) error
	GetSubmissionByID(ctx context.Context, id string) (*model.Submission, error)
	ListSubmissionsByMatch(ctx context.Context, matchID string) ([]model.Submission, error)
	FirstSubmittedAt(ctx context.Context, matchID, userID string) (time.Time, error)
	// RecordEvaluation writes evaluation fields once. false means another
	// evaluator already finished this submission.
	RecordEvaluation(ctx context.Context, submissionID string, eval *model.Evaluation) (bool, error)
	EvaluatedUserIDs(ctx context.Context, matchID string) ([]string, error)
}

type ProblemRepository interface {
	ListActiveProblemIDs(ctx context.Context, difficulty model.Difficulty) ([]string, error)
	FindProblemByID(ctx context.Context, id string) (*model.Problem, error)
	GetTestCasesByProblemID(ctx context.Context, problemID string) ([]model.TestCase, error)
	// UpsertProblem creates or replaces a problem (matched by slug) together
	// with its test cases.
	UpsertProblem(ctx context.Context, p *model.Problem) error
}

// Store groups the repositories a process runs against.
type Store struct {
	Rooms       RoomRepository
	Matches     MatchRepository
	Submissions SubmissionRepository
	Problems    ProblemRepository
}

func NewPgStore(db *sql.DB) *Store {
	return &Store{
		Rooms:       NewPgRoomRepository(db),
		Matches:     NewPgMatchRepository(db),
		Submissions: NewPgSubmissionRepository(db),
		Problems:    NewPgProblemRepository(db),
	}
}

func NewMemoryStore() *Store {
	m := NewMemory()
	return &Store{Rooms: m, Matches: m, Submissions: m, Problems: m}
}

type rowScanner interface {
	Scan(dest ...any) error
}
