package repository

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"code_duel/internal/common"
	"code_duel/internal/domain/model"

	"github.com/google/uuid"
)

// Memory is an in-process store used for development and tests. A single
// mutex guards every table, so each conditional write is atomic the same way
// the SQL statements are.
type Memory struct {
	mu sync.RWMutex

	rooms       map[string]*model.Room
	roomsByCode map[string]string
	matches     map[string]*model.Match
	matchByRoom map[string]string
	submissions map[string]*model.Submission
	subsByMatch map[string][]string
	problems    map[string]*model.Problem
	problemSlug map[string]string
}

func NewMemory() *Memory {
	return &Memory{
		rooms:       make(map[string]*model.Room),
		roomsByCode: make(map[string]string),
		matches:     make(map[string]*model.Match),
		matchByRoom: make(map[string]string),
		submissions: make(map[string]*model.Submission),
		subsByMatch: make(map[string][]string),
		problems:    make(map[string]*model.Problem),
		problemSlug: make(map[string]string),
	}
}

// Rooms

func (m *Memory) CreateRoom(ctx context.Context, room *model.Room) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, taken := m.roomsByCode[room.RoomCode]; taken {
		return fmt.Errorf("room code %s already in use: %w", room.RoomCode, common.ErrConflict)
	}
	if _, exists := m.rooms[room.ID]; exists {
		return fmt.Errorf("room %s already exists: %w", room.ID, common.ErrConflict)
	}
	cp := *room
	m.rooms[room.ID] = &cp
	m.roomsByCode[room.RoomCode] = room.ID
	return nil
}

func (m *Memory) GetRoomByID(ctx context.Context, id string) (*model.Room, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	room, ok := m.rooms[id]
	if !ok {
		return nil, fmt.Errorf("room %s: %w", id, common.ErrNotFound)
	}
	cp := *room
	return &cp, nil
}

func (m *Memory) GetRoomByCode(ctx context.Context, code string) (*model.Room, error) {
	m.mu.RLock()
	id, ok := m.roomsByCode[code]
	m.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("room code %s: %w", code, common.ErrNotFound)
	}
	return m.GetRoomByID(ctx, id)
}

func (m *Memory) FindWaitingQuickplayRooms(ctx context.Context, difficulty model.Difficulty, excludeUserID string, limit int) ([]model.Room, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []model.Room
	for _, r := range m.rooms {
		if r.Status == model.RoomStatusWaiting && r.Mode == model.ModeQuickplay && r.Difficulty == difficulty &&
			r.Player2ID == nil && r.Player1ID != excludeUserID {
			out = append(out, *r)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *Memory) ClaimRoom(ctx context.Context, roomID, userID string, at time.Time) (*model.Room, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	r, ok := m.rooms[roomID]
	if !ok || r.Status != model.RoomStatusWaiting || r.Player2ID != nil || r.Player1ID == userID {
		return nil, fmt.Errorf("room %s cannot be joined: %w", roomID, common.ErrInvalidRoomState)
	}
	p2 := userID
	lockedAt := at
	r.Player2ID = &p2
	r.Status = model.RoomStatusLocked
	r.LockedAt = &lockedAt
	cp := *r
	return &cp, nil
}

func (m *Memory) LockRoom(ctx context.Context, roomID string, at time.Time) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	r, ok := m.rooms[roomID]
	if !ok || r.Status != model.RoomStatusWaiting || r.Player2ID == nil {
		return false, nil
	}
	r.Status = model.RoomStatusLocked
	if r.LockedAt == nil {
		lockedAt := at
		r.LockedAt = &lockedAt
	}
	return true, nil
}

func (m *Memory) CompleteRoom(ctx context.Context, roomID string, at time.Time) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	r, ok := m.rooms[roomID]
	if !ok || r.Status != model.RoomStatusActive {
		return false, nil
	}
	ended := at
	r.Status = model.RoomStatusCompleted
	r.EndedAt = &ended
	return true, nil
}

// Matches

func (m *Memory) StartMatch(ctx context.Context, match *model.Match) (*model.Match, *model.Room, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	r, ok := m.rooms[match.RoomID]
	if !ok {
		return nil, nil, false, fmt.Errorf("room %s: %w", match.RoomID, common.ErrNotFound)
	}
	if id, exists := m.matchByRoom[match.RoomID]; exists {
		mc, rc := *m.matches[id], *r
		return &mc, &rc, false, nil
	}
	if r.Status != model.RoomStatusLocked {
		return nil, nil, false, fmt.Errorf("room %s is not locked: %w", match.RoomID, common.ErrInvalidRoomState)
	}

	stored := *match
	m.matches[stored.ID] = &stored
	m.matchByRoom[stored.RoomID] = stored.ID

	started := match.StartedAt
	r.Status = model.RoomStatusActive
	r.StartedAt = &started

	mc, rc := stored, *r
	return &mc, &rc, true, nil
}

func (m *Memory) GetMatchByID(ctx context.Context, id string) (*model.Match, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	match, ok := m.matches[id]
	if !ok {
		return nil, fmt.Errorf("match %s: %w", id, common.ErrNotFound)
	}
	cp := *match
	return &cp, nil
}

func (m *Memory) GetMatchByRoomID(ctx context.Context, roomID string) (*model.Match, error) {
	m.mu.RLock()
	id, ok := m.matchByRoom[roomID]
	m.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("match for room %s: %w", roomID, common.ErrNotFound)
	}
	return m.GetMatchByID(ctx, id)
}

func (m *Memory) SetPlayerScore(ctx context.Context, matchID string, slot int, score int) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	match, ok := m.matches[matchID]
	if !ok {
		return fmt.Errorf("match %s: %w", matchID, common.ErrNotFound)
	}
	s := score
	switch slot {
	case 1:
		match.Player1Score = &s
	case 2:
		match.Player2Score = &s
	default:
		return fmt.Errorf("invalid player slot %d: %w", slot, common.ErrBadRequest)
	}
	return nil
}

// Submissions

func (m *Memory) CreateSubmission(ctx context.Context, sub *model.Submission) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.matches[sub.MatchID]; !ok {
		return fmt.Errorf("match %s: %w", sub.MatchID, common.ErrNotFound)
	}
	prior := 0
	for _, id := range m.subsByMatch[sub.MatchID] {
		if m.submissions[id].UserID == sub.UserID {
			prior++
		}
	}
	sub.PenaltyPoints = model.PenaltyForPrior(prior)

	cp := *sub
	m.submissions[sub.ID] = &cp
	m.subsByMatch[sub.MatchID] = append(m.subsByMatch[sub.MatchID], sub.ID)
	return nil
}

func (m *Memory) GetSubmissionByID(ctx context.Context, id string) (*model.Submission, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.submissions[id]
	if !ok {
		return nil, fmt.Errorf("submission %s: %w", id, common.ErrNotFound)
	}
	cp := *s
	return &cp, nil
}

func (m *Memory) ListSubmissionsByMatch(ctx context.Context, matchID string) ([]model.Submission, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	ids := m.subsByMatch[matchID]
	out := make([]model.Submission, 0, len(ids))
	for _, id := range ids {
		out = append(out, *m.submissions[id])
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].SubmittedAt.Before(out[j].SubmittedAt) })
	return out, nil
}

func (m *Memory) FirstSubmittedAt(ctx context.Context, matchID, userID string) (time.Time, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var first time.Time
	for _, id := range m.subsByMatch[matchID] {
		s := m.submissions[id]
		if s.UserID == userID && (first.IsZero() || s.SubmittedAt.Before(first)) {
			first = s.SubmittedAt
		}
	}
	if first.IsZero() {
		return time.Time{}, fmt.Errorf("no submissions by %s in match %s: %w", userID, matchID, common.ErrNotFound)
	}
	return first, nil
}

func (m *Memory) RecordEvaluation(ctx context.Context, submissionID string, eval *model.Evaluation) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	s, ok := m.submissions[submissionID]
	if !ok {
		return false, fmt.Errorf("submission %s: %w", submissionID, common.ErrNotFound)
	}
	if s.EvaluatedAt != nil {
		return false, nil
	}
	at, score := eval.EvaluatedAt, eval.Score
	s.EvaluatedAt = &at
	s.Score = &score
	s.PassedTests = eval.PassedTests
	s.TotalTests = eval.TotalTests
	s.RuntimeMs = eval.RuntimeMs
	s.MemoryKb = eval.MemoryKb
	s.TestResults = append([]model.TestResult(nil), eval.TestResults...)
	s.Error = eval.Error
	return true, nil
}

func (m *Memory) EvaluatedUserIDs(ctx context.Context, matchID string) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	seen := make(map[string]bool)
	var ids []string
	for _, id := range m.subsByMatch[matchID] {
		s := m.submissions[id]
		if s.EvaluatedAt != nil && !seen[s.UserID] {
			seen[s.UserID] = true
			ids = append(ids, s.UserID)
		}
	}
	return ids, nil
}

// Problems

func (m *Memory) ListActiveProblemIDs(ctx context.Context, difficulty model.Difficulty) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var ids []string
	for id, p := range m.problems {
		if p.IsActive && p.Difficulty == difficulty {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	return ids, nil
}

func (m *Memory) FindProblemByID(ctx context.Context, id string) (*model.Problem, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	p, ok := m.problems[id]
	if !ok {
		return nil, fmt.Errorf("problem %s: %w", id, common.ErrNotFound)
	}
	cp := *p
	cp.TestCases = nil
	return &cp, nil
}

func (m *Memory) GetTestCasesByProblemID(ctx context.Context, problemID string) ([]model.TestCase, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	p, ok := m.problems[problemID]
	if !ok {
		return nil, nil
	}
	out := append([]model.TestCase(nil), p.TestCases...)
	sort.SliceStable(out, func(i, j int) bool { return out[i].OrderIndex < out[j].OrderIndex })
	return out, nil
}

func (m *Memory) UpsertProblem(ctx context.Context, p *model.Problem) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if id, ok := m.problemSlug[p.Slug]; ok && p.Slug != "" {
		p.ID = id
	}
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	now := time.Now()
	if existing, ok := m.problems[p.ID]; ok {
		p.CreatedAt = existing.CreatedAt
	} else if p.CreatedAt.IsZero() {
		p.CreatedAt = now
	}
	p.UpdatedAt = now
	for i := range p.TestCases {
		if p.TestCases[i].ID == "" {
			p.TestCases[i].ID = uuid.NewString()
		}
		p.TestCases[i].ProblemID = p.ID
	}

	cp := *p
	cp.TestCases = append([]model.TestCase(nil), p.TestCases...)
	m.problems[p.ID] = &cp
	if p.Slug != "" {
		m.problemSlug[p.Slug] = p.ID
	}
	return nil
}
