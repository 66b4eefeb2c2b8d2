package service

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"code_duel/internal/app/judge"
	"code_duel/internal/app/scoring"
	"code_duel/internal/common"
	"code_duel/internal/domain/model"
	"code_duel/internal/domain/repository"
)

type recorder struct {
	mu     sync.Mutex
	events []model.Event
}

func (r *recorder) Publish(ctx context.Context, ev model.Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
	return nil
}

func (r *recorder) count(t model.EventType) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, ev := range r.events {
		if ev.Type == t {
			n++
		}
	}
	return n
}

type fakeQueue struct {
	mu  sync.Mutex
	ids []string
	err error
}

func (q *fakeQueue) Enqueue(ctx context.Context, id string) error {
	if q.err != nil {
		return q.err
	}
	q.mu.Lock()
	defer q.mu.Unlock()
	q.ids = append(q.ids, id)
	return nil
}

type fakeJudge struct {
	outcome *judge.Outcome
	err     error
}

func (f *fakeJudge) Evaluate(ctx context.Context, sub *model.Submission, problem *model.Problem) (*judge.Outcome, error) {
	if f.err != nil {
		return nil, f.err
	}
	out := *f.outcome
	return &out, nil
}

// clock is a settable time source.
type clock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

type harness struct {
	store       *repository.Store
	events      *recorder
	queue       *fakeQueue
	judge       *fakeJudge
	clock       *clock
	matchmaking *MatchmakingService
	matches     *MatchService
	submissions *SubmissionService
	evaluations *EvaluationService
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	h := &harness{
		store:  repository.NewMemoryStore(),
		events: &recorder{},
		queue:  &fakeQueue{},
		judge:  &fakeJudge{outcome: &judge.Outcome{
			PassedTests: 8, TotalTests: 10, AvgRuntimeMs: 50, AvgMemoryKb: 5120,
		}},
		clock: &clock{now: time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)},
	}
	h.matchmaking = NewMatchmakingService(h.store.Rooms, h.events, MatchmakingOptions{Clock: h.clock.Now})
	h.matches = NewMatchService(h.store, h.events, h.clock.Now)
	completion := NewCompletionService(h.store, h.events, h.clock.Now)
	h.evaluations = NewEvaluationService(h.store, h.judge, completion, h.events, scoring.Policy{}, h.clock.Now)
	h.submissions = NewSubmissionService(h.store, h.queue, h.evaluations, h.events, h.clock.Now)

	problems := NewProblemService(h.store.Problems)
	_, err := problems.ImportProblem(context.Background(), ImportProblemRequest{
		Title:             "Two Sum",
		Difficulty:        model.DifficultyEasy,
		EditorialSolution: "use a hash map",
		TestCases:         []ImportTestCase{{Input: "1 2", ExpectedOutput: "3"}},
	})
	if err != nil {
		t.Fatalf("import: %v", err)
	}
	return h
}

// activeMatch pairs alice and bob in a custom room and starts the match.
func (h *harness) activeMatch(t *testing.T) *StartMatchResult {
	t.Helper()
	ctx := context.Background()
	created, err := h.matchmaking.CreateRoom(ctx, "alice", CreateRoomRequest{Mode: model.ModeCustom})
	if err != nil {
		t.Fatal(err)
	}
	if _, err := h.matchmaking.JoinRoom(ctx, created.Room.ID, "bob"); err != nil {
		t.Fatal(err)
	}
	res, err := h.matches.StartMatch(ctx, created.Room.ID, "alice")
	if err != nil {
		t.Fatal(err)
	}
	return res
}

func TestCreateRoomDefaults(t *testing.T) {
	h := newHarness(t)
	res, err := h.matchmaking.CreateRoom(context.Background(), "alice", CreateRoomRequest{})
	if err != nil {
		t.Fatal(err)
	}
	r := res.Room
	if res.Joined || r.Status != model.RoomStatusWaiting || r.Mode != model.ModeQuickplay ||
		r.Difficulty != model.DifficultyEasy || r.TimeLimit != 900 || r.Player1ID != "alice" || len(r.RoomCode) != 6 {
		t.Fatalf("unexpected room %+v", r)
	}
}

func TestCreateQuickplayRoomJoinsWaitingOne(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	first, _ := h.matchmaking.CreateRoom(ctx, "alice", CreateRoomRequest{})
	second, err := h.matchmaking.CreateRoom(ctx, "bob", CreateRoomRequest{})
	if err != nil {
		t.Fatal(err)
	}
	if !second.Joined || second.Room.ID != first.Room.ID || second.Room.Status != model.RoomStatusLocked {
		t.Fatalf("bob should join alice's room, got %+v", second)
	}
}

func TestConcurrentQuickplayJoin(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	waiting, _ := h.matchmaking.JoinQuickplay(ctx, "alice", QuickplayRequest{Difficulty: model.DifficultyMedium})

	var wg sync.WaitGroup
	results := make([]*RoomResult, 2)
	for i, user := range []string{"bob", "carol"} {
		wg.Add(1)
		go func(i int, u string) {
			defer wg.Done()
			res, err := h.matchmaking.JoinQuickplay(ctx, u, QuickplayRequest{Difficulty: model.DifficultyMedium})
			if err != nil {
				t.Errorf("JoinQuickplay(%s): %v", u, err)
				return
			}
			results[i] = res
		}(i, user)
	}
	wg.Wait()

	joined, fresh := 0, 0
	for _, res := range results {
		switch {
		case res.Joined && res.Room.ID == waiting.Room.ID:
			joined++
		case !res.Joined && res.Room.Status == model.RoomStatusWaiting:
			fresh++
		}
	}
	if joined != 1 || fresh != 1 {
		t.Fatalf("joined=%d fresh=%d, want 1/1", joined, fresh)
	}
}

func TestQuickplayIgnoresOtherDifficulty(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.matchmaking.JoinQuickplay(ctx, "alice", QuickplayRequest{Difficulty: model.DifficultyHard})
	res, _ := h.matchmaking.JoinQuickplay(ctx, "bob", QuickplayRequest{Difficulty: model.DifficultyEasy})
	if res.Joined {
		t.Fatal("must not pair across difficulties")
	}
}

func TestJoinRoomErrors(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	res, _ := h.matchmaking.CreateRoom(ctx, "alice", CreateRoomRequest{Mode: model.ModeCustom})

	if _, err := h.matchmaking.JoinRoom(ctx, res.Room.ID, "alice"); !errors.Is(err, common.ErrInvalidRoomState) {
		t.Fatalf("own room: %v", err)
	}
	if _, err := h.matchmaking.JoinRoom(ctx, "missing", "bob"); !errors.Is(err, common.ErrNotFound) {
		t.Fatalf("missing room: %v", err)
	}
	if _, err := h.matchmaking.JoinRoomByCode(ctx, "bob", JoinByCodeRequest{RoomCode: res.Room.RoomCode}); err != nil {
		t.Fatalf("join by code: %v", err)
	}
	if room, err := h.matchmaking.JoinRoom(ctx, res.Room.ID, "bob"); err != nil || room.Status != model.RoomStatusLocked {
		t.Fatalf("retried join should be idempotent: %v", err)
	}
	if _, err := h.matchmaking.JoinRoom(ctx, res.Room.ID, "carol"); !errors.Is(err, common.ErrInvalidRoomState) {
		t.Fatalf("full room: %v", err)
	}
}

type conflictRooms struct{ repository.RoomRepository }

func (conflictRooms) CreateRoom(ctx context.Context, room *model.Room) error { return common.ErrConflict }

func TestRoomCodeExhausted(t *testing.T) {
	svc := NewMatchmakingService(conflictRooms{repository.NewMemory()}, nil, MatchmakingOptions{RoomCodeAttempts: 3})
	_, err := svc.CreateRoom(context.Background(), "alice", CreateRoomRequest{Mode: model.ModeCustom})
	if !errors.Is(err, common.ErrRoomCodeExhausted) {
		t.Fatalf("expected RoomCodeExhausted, got %v", err)
	}
}

func TestStartMatch(t *testing.T) {
	h := newHarness(t)
	res := h.activeMatch(t)
	if res.Room.Status != model.RoomStatusActive || res.Room.StartedAt == nil {
		t.Fatalf("room = %+v", res.Room)
	}
	if res.Problem.EditorialSolution != nil {
		t.Fatal("editorial must be stripped")
	}
	if res.TimeLimit != 900 || !res.StartTime.Equal(res.Match.StartedAt) {
		t.Fatalf("start_time/time_limit = %v/%d", res.StartTime, res.TimeLimit)
	}
	if res.Match.Player1ID != "alice" || res.Match.Player2ID != "bob" {
		t.Fatalf("players = %s/%s", res.Match.Player1ID, res.Match.Player2ID)
	}

	again, err := h.matches.StartMatch(context.Background(), res.Room.ID, "bob")
	if err != nil || again.Match.ID != res.Match.ID {
		t.Fatalf("retry should return existing match: %v", err)
	}
	if h.events.count(model.EventRoomActive) != 1 {
		t.Fatal("room.active must be published once")
	}
}

func TestStartMatchConcurrent(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	created, _ := h.matchmaking.CreateRoom(ctx, "alice", CreateRoomRequest{Mode: model.ModeCustom})
	h.matchmaking.JoinRoom(ctx, created.Room.ID, "bob")

	var wg sync.WaitGroup
	ids := make([]string, 6)
	for i := range ids {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			user := "alice"
			if i%2 == 1 {
				user = "bob"
			}
			res, err := h.matches.StartMatch(ctx, created.Room.ID, user)
			if err != nil {
				t.Errorf("StartMatch: %v", err)
				return
			}
			ids[i] = res.Match.ID
		}(i)
	}
	wg.Wait()
	for _, id := range ids {
		if id != ids[0] {
			t.Fatalf("different matches: %v", ids)
		}
	}
}

func TestStartMatchErrors(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	created, _ := h.matchmaking.CreateRoom(ctx, "alice", CreateRoomRequest{Mode: model.ModeCustom, Difficulty: model.DifficultyHard})

	if _, err := h.matches.StartMatch(ctx, created.Room.ID, "alice"); !errors.Is(err, common.ErrInvalidRoomState) {
		t.Fatalf("waiting room: %v", err)
	}
	h.matchmaking.JoinRoom(ctx, created.Room.ID, "bob")
	if _, err := h.matches.StartMatch(ctx, created.Room.ID, "mallory"); !errors.Is(err, common.ErrUnauthorized) {
		t.Fatalf("outsider: %v", err)
	}
	if _, err := h.matches.StartMatch(ctx, created.Room.ID, "alice"); !errors.Is(err, common.ErrNoProblemsAvailable) {
		t.Fatalf("no hard problems: %v", err)
	}
	room, _ := h.store.Rooms.GetRoomByID(ctx, created.Room.ID)
	if room.Status != model.RoomStatusLocked {
		t.Fatalf("failed start must leave room locked, got %s", room.Status)
	}
}

func TestSubmitPenaltiesAndLateness(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	res := h.activeMatch(t)

	req := SubmitRequest{Code: "print(3)", Language: "python"}
	var penalties []int
	for i := 0; i < 3; i++ {
		out, err := h.submissions.Submit(ctx, res.Match.ID, "alice", req)
		if err != nil {
			t.Fatal(err)
		}
		if out.IsLate || out.Message != "Submission received and being evaluated" {
			t.Fatalf("unexpected result %+v", out)
		}
		penalties = append(penalties, out.Penalty)
	}
	if penalties[0] != 0 || penalties[1] != 2 || penalties[2] != 4 {
		t.Fatalf("penalties = %v", penalties)
	}
	if len(h.queue.ids) != 3 {
		t.Fatalf("queued %d submissions", len(h.queue.ids))
	}

	h.clock.Advance(901 * time.Second)
	late, err := h.submissions.Submit(ctx, res.Match.ID, "bob", req)
	if err != nil || !late.IsLate {
		t.Fatalf("expected late submission: %+v %v", late, err)
	}
	if err := h.evaluations.Evaluate(ctx, late.SubmissionID); err != nil {
		t.Fatal(err)
	}
	sub, _ := h.store.Submissions.GetSubmissionByID(ctx, late.SubmissionID)
	if sub.Score == nil || *sub.Score != 0 {
		t.Fatalf("late submission score = %v", sub.Score)
	}
}

func TestSubmitRejections(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	res := h.activeMatch(t)

	if _, err := h.submissions.Submit(ctx, "nope", "alice", SubmitRequest{Code: "x", Language: "python"}); !errors.Is(err, common.ErrNotFound) {
		t.Fatalf("unknown match: %v", err)
	}
	if _, err := h.submissions.Submit(ctx, res.Match.ID, "mallory", SubmitRequest{Code: "x", Language: "python"}); !errors.Is(err, common.ErrUnauthorized) {
		t.Fatalf("outsider: %v", err)
	}
	if _, err := h.submissions.Submit(ctx, res.Match.ID, "alice", SubmitRequest{Code: "x", Language: "cobol"}); !errors.Is(err, common.ErrBadRequest) {
		t.Fatalf("language: %v", err)
	}
}

func TestScoreMatchesReferenceExample(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	res := h.activeMatch(t)

	h.submissions.Submit(ctx, res.Match.ID, "alice", SubmitRequest{Code: "x", Language: "python"})
	h.clock.Advance(60 * time.Second)
	second, _ := h.submissions.Submit(ctx, res.Match.ID, "alice", SubmitRequest{Code: "x", Language: "python"})

	if err := h.evaluations.Evaluate(ctx, second.SubmissionID); err != nil {
		t.Fatal(err)
	}
	sub, _ := h.store.Submissions.GetSubmissionByID(ctx, second.SubmissionID)
	// First submission at 0s gives the full speed bonus: 56 + 19.5 + 10 - 2.
	if sub.Score == nil || *sub.Score != 84 {
		t.Fatalf("score = %v, want 84", sub.Score)
	}
	match, _ := h.store.Matches.GetMatchByID(ctx, res.Match.ID)
	if match.Player1Score == nil || *match.Player1Score != 84 || match.Player2Score != nil {
		t.Fatalf("match scores = %v/%v", match.Player1Score, match.Player2Score)
	}
}

func TestJudgeFailureScoresZero(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	res := h.activeMatch(t)
	h.judge.err = common.Errorf("poll: %w", common.ErrJudgeTimeout)

	out, _ := h.submissions.Submit(ctx, res.Match.ID, "alice", SubmitRequest{Code: "x", Language: "cpp"})
	if err := h.evaluations.Evaluate(ctx, out.SubmissionID); err != nil {
		t.Fatalf("judge failure must not surface: %v", err)
	}
	sub, _ := h.store.Submissions.GetSubmissionByID(ctx, out.SubmissionID)
	if sub.Score == nil || *sub.Score != 0 || sub.Error == nil || len(sub.TestResults) != 1 || sub.TestResults[0].Error == "" {
		t.Fatalf("unexpected failed submission %+v", sub)
	}
}

func TestEnqueueFailureRecordsFailedEvaluation(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	res := h.activeMatch(t)
	h.queue.err = errors.New("redis down")

	out, err := h.submissions.Submit(ctx, res.Match.ID, "alice", SubmitRequest{Code: "x", Language: "python"})
	if err != nil {
		t.Fatalf("submit must succeed: %v", err)
	}
	sub, _ := h.store.Submissions.GetSubmissionByID(ctx, out.SubmissionID)
	if !sub.Evaluated() || sub.Error == nil || *sub.Score != 0 {
		t.Fatalf("expected terminal failed submission, got %+v", sub)
	}
}

func TestCompletionExactlyOnce(t *testing.T) {
	orders := map[string][]string{
		"alice first": {"alice", "bob"},
		"bob first":   {"bob", "alice"},
	}
	for name, order := range orders {
		t.Run(name, func(t *testing.T) {
			h := newHarness(t)
			ctx := context.Background()
			res := h.activeMatch(t)

			for i, user := range order {
				out, _ := h.submissions.Submit(ctx, res.Match.ID, user, SubmitRequest{Code: "x", Language: "python"})
				if err := h.evaluations.Evaluate(ctx, out.SubmissionID); err != nil {
					t.Fatal(err)
				}
				room, _ := h.store.Rooms.GetRoomByID(ctx, res.Room.ID)
				if i == 0 && room.Status != model.RoomStatusActive {
					t.Fatalf("room closed after one player")
				}
				if i == 1 && (room.Status != model.RoomStatusCompleted || room.EndedAt == nil) {
					t.Fatalf("room not completed: %+v", room)
				}
			}
			if n := h.events.count(model.EventRoomCompleted); n != 1 {
				t.Fatalf("room.completed published %d times", n)
			}
		})
	}
}

func TestCompletionConcurrent(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	res := h.activeMatch(t)

	var ids []string
	for _, user := range []string{"alice", "bob", "alice", "bob"} {
		out, _ := h.submissions.Submit(ctx, res.Match.ID, user, SubmitRequest{Code: "x", Language: "python"})
		ids = append(ids, out.SubmissionID)
	}

	var wg sync.WaitGroup
	for _, id := range ids {
		for j := 0; j < 2; j++ {
			wg.Add(1)
			go func(id string) {
				defer wg.Done()
				if err := h.evaluations.Evaluate(ctx, id); err != nil {
					t.Errorf("Evaluate: %v", err)
				}
			}(id)
		}
	}
	wg.Wait()

	if n := h.events.count(model.EventRoomCompleted); n != 1 {
		t.Fatalf("room.completed published %d times", n)
	}
	if n := h.events.count(model.EventSubmissionEvaluated); n != len(ids) {
		t.Fatalf("each submission must be evaluated once, got %d", n)
	}
	room, _ := h.store.Rooms.GetRoomByID(ctx, res.Room.ID)
	if room.Status != model.RoomStatusCompleted {
		t.Fatalf("room = %s", room.Status)
	}
	if _, err := h.submissions.Submit(ctx, res.Match.ID, "alice", SubmitRequest{Code: "x", Language: "python"}); !errors.Is(err, common.ErrInvalidRoomState) {
		t.Fatalf("submit after completion: %v", err)
	}
}

func TestMatchViewRevealsAfterCompletion(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	res := h.activeMatch(t)

	a, _ := h.submissions.Submit(ctx, res.Match.ID, "alice", SubmitRequest{Code: "alice-code", Language: "python"})
	b, _ := h.submissions.Submit(ctx, res.Match.ID, "bob", SubmitRequest{Code: "bob-code", Language: "python"})

	view, err := h.matches.GetMatchView(ctx, res.Match.ID, "alice")
	if err != nil {
		t.Fatal(err)
	}
	if view.Problem.EditorialSolution != nil {
		t.Fatal("editorial leaked during match")
	}
	for _, s := range view.Submissions {
		if s.UserID == "bob" && s.Code != "" {
			t.Fatal("opponent code leaked during match")
		}
	}
	if _, err := h.submissions.GetSubmission(ctx, b.SubmissionID, "alice"); !errors.Is(err, common.ErrUnauthorized) {
		t.Fatalf("opponent submission during match: %v", err)
	}
	if _, err := h.matches.GetMatchView(ctx, res.Match.ID, "mallory"); !errors.Is(err, common.ErrUnauthorized) {
		t.Fatalf("outsider view: %v", err)
	}

	h.evaluations.Evaluate(ctx, a.SubmissionID)
	h.evaluations.Evaluate(ctx, b.SubmissionID)

	view, _ = h.matches.GetMatchView(ctx, res.Match.ID, "alice")
	if !view.Completed || view.Problem.EditorialSolution == nil {
		t.Fatalf("editorial should be revealed after completion: %+v", view.Problem)
	}
	if got, err := h.submissions.GetSubmission(ctx, b.SubmissionID, "alice"); err != nil || got.Code != "bob-code" {
		t.Fatalf("opponent submission after completion: %v", err)
	}
}

func TestRematch(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	res := h.activeMatch(t)

	if _, err := h.matchmaking.Rematch(ctx, res.Room.ID, "alice"); !errors.Is(err, common.ErrInvalidRoomState) {
		t.Fatalf("rematch of active room: %v", err)
	}
	for _, user := range []string{"alice", "bob"} {
		out, _ := h.submissions.Submit(ctx, res.Match.ID, user, SubmitRequest{Code: "x", Language: "python"})
		h.evaluations.Evaluate(ctx, out.SubmissionID)
	}
	room, err := h.matchmaking.Rematch(ctx, res.Room.ID, "bob")
	if err != nil {
		t.Fatal(err)
	}
	if room.ID == res.Room.ID || room.Player1ID != "bob" || room.Status != model.RoomStatusWaiting ||
		room.Difficulty != res.Room.Difficulty || room.TimeLimit != res.Room.TimeLimit {
		t.Fatalf("unexpected rematch room %+v", room)
	}
	if _, err := h.matchmaking.Rematch(ctx, res.Room.ID, "mallory"); !errors.Is(err, common.ErrUnauthorized) {
		t.Fatalf("outsider rematch: %v", err)
	}
}

// flakyScores fails the next SetPlayerScore call once.
type flakyScores struct {
	repository.MatchRepository
	failNext atomic.Bool
}

func (f *flakyScores) SetPlayerScore(ctx context.Context, matchID string, slot int, score int) error {
	if f.failNext.CompareAndSwap(true, false) {
		return errors.New("transient db error")
	}
	return f.MatchRepository.SetPlayerScore(ctx, matchID, slot, score)
}

func TestRetryAfterScoreWriteFailureCompletesMatch(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	res := h.activeMatch(t)
	flaky := &flakyScores{MatchRepository: h.store.Matches}
	h.store.Matches = flaky

	a, _ := h.submissions.Submit(ctx, res.Match.ID, "alice", SubmitRequest{Code: "x", Language: "python"})
	b, _ := h.submissions.Submit(ctx, res.Match.ID, "bob", SubmitRequest{Code: "y", Language: "python"})
	if err := h.evaluations.Evaluate(ctx, a.SubmissionID); err != nil {
		t.Fatal(err)
	}

	flaky.failNext.Store(true)
	if err := h.evaluations.Evaluate(ctx, b.SubmissionID); err == nil {
		t.Fatal("score write failure should surface so the job is retried")
	}
	if err := h.evaluations.Evaluate(ctx, b.SubmissionID); err != nil {
		t.Fatalf("retry: %v", err)
	}

	room, _ := h.store.Rooms.GetRoomByID(ctx, res.Room.ID)
	if room.Status != model.RoomStatusCompleted || room.EndedAt == nil {
		t.Fatalf("room should be completed after retry, got %s", room.Status)
	}
	match, _ := h.store.Matches.GetMatchByID(ctx, res.Match.ID)
	sub, _ := h.store.Submissions.GetSubmissionByID(ctx, b.SubmissionID)
	if match.Player2Score == nil || *match.Player2Score != *sub.Score {
		t.Fatalf("player2 score = %v, want %d", match.Player2Score, *sub.Score)
	}
	if n := h.events.count(model.EventRoomCompleted); n != 1 {
		t.Fatalf("room.completed published %d times", n)
	}

	// Failing an evaluated submission keeps its result.
	before := *sub.Score
	if err := h.evaluations.Fail(ctx, b.SubmissionID, common.ErrJudgeExecution); err != nil {
		t.Fatal(err)
	}
	sub, _ = h.store.Submissions.GetSubmissionByID(ctx, b.SubmissionID)
	if *sub.Score != before || sub.Error != nil {
		t.Fatalf("evaluated submission changed by Fail: %+v", sub)
	}
}

// missingProblems behaves as if every problem had been deleted.
type missingProblems struct {
	repository.ProblemRepository
}

func (missingProblems) FindProblemByID(ctx context.Context, id string) (*model.Problem, error) {
	return nil, common.Errorf("problem %s: %w", id, common.ErrNotFound)
}

func TestMissingProblemTerminatesSubmissions(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	res := h.activeMatch(t)
	a, _ := h.submissions.Submit(ctx, res.Match.ID, "alice", SubmitRequest{Code: "x", Language: "python"})
	b, _ := h.submissions.Submit(ctx, res.Match.ID, "bob", SubmitRequest{Code: "y", Language: "python"})
	h.store.Problems = missingProblems{h.store.Problems}

	for _, id := range []string{a.SubmissionID, b.SubmissionID} {
		if err := h.evaluations.Evaluate(ctx, id); err != nil {
			t.Fatalf("missing problem must be recorded, not returned: %v", err)
		}
		sub, _ := h.store.Submissions.GetSubmissionByID(ctx, id)
		if !sub.Evaluated() || sub.Error == nil || *sub.Score != 0 {
			t.Fatalf("expected terminal failed submission, got %+v", sub)
		}
	}
	room, _ := h.store.Rooms.GetRoomByID(ctx, res.Room.ID)
	if room.Status != model.RoomStatusCompleted {
		t.Fatalf("room status = %s", room.Status)
	}

	if err := h.evaluations.Evaluate(ctx, "no-such-submission"); !errors.Is(err, common.ErrNotFound) {
		t.Fatalf("unknown submission should be NotFound, got %v", err)
	}
}
