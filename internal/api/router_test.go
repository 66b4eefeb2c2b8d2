package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"code_duel/internal/app/judge"
	"code_duel/internal/app/scoring"
	"code_duel/internal/app/service"
	"code_duel/internal/common"
	"code_duel/internal/common/security"
	"code_duel/internal/domain/model"
	"code_duel/internal/domain/repository"
	"code_duel/internal/platform/notify"
	"code_duel/internal/platform/queue"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

type stubJudge struct{}

func (stubJudge) Evaluate(ctx context.Context, sub *model.Submission, p *model.Problem) (*judge.Outcome, error) {
	return &judge.Outcome{PassedTests: 1, TotalTests: 1}, nil
}

func newTestServer(t *testing.T) (*httptest.Server, *queue.JudgeQueue) {
	t.Helper()
	security.InitJWT([]byte("test-secret"))

	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	store := repository.NewMemoryStore()
	bus := notify.NewRedisNotifier(rdb, "")
	q := queue.NewJudgeQueue(rdb, "judge")

	completion := service.NewCompletionService(store, bus, nil)
	evaluations := service.NewEvaluationService(store, stubJudge{}, completion, bus, scoring.Policy{}, nil)
	svcs := Services{
		Matchmaking: service.NewMatchmakingService(store.Rooms, bus, service.MatchmakingOptions{}),
		Matches:     service.NewMatchService(store, bus, nil),
		Submissions: service.NewSubmissionService(store, q, evaluations, bus, nil),
		Drafts:      service.NewDraftService(store, repository.NewRedisDraftRepository(rdb, time.Hour), nil),
	}

	_, err := service.NewProblemService(store.Problems).ImportProblem(context.Background(), service.ImportProblemRequest{
		Title:      "Echo",
		Difficulty: model.DifficultyEasy,
		TestCases:  []service.ImportTestCase{{Input: "1", ExpectedOutput: "1"}},
	})
	if err != nil {
		t.Fatal(err)
	}

	srv := httptest.NewServer(NewRouter(svcs))
	t.Cleanup(srv.Close)
	return srv, q
}

func call(t *testing.T, srv *httptest.Server, method, path, user string, body any, out any) int {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		json.NewEncoder(&buf).Encode(body)
	}
	req, _ := http.NewRequest(method, srv.URL+path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if user != "" {
		token, err := security.GenerateToken(user, time.Hour)
		if err != nil {
			t.Fatal(err)
		}
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if out != nil {
		json.NewDecoder(resp.Body).Decode(out)
	}
	return resp.StatusCode
}

func TestMatchFlow(t *testing.T) {
	srv, q := newTestServer(t)

	var created service.RoomResult
	if code := call(t, srv, http.MethodPost, "/api/v1/rooms", "alice", map[string]any{"mode": "custom"}, &created); code != http.StatusCreated {
		t.Fatalf("create room status %d", code)
	}

	var joined model.Room
	if code := call(t, srv, http.MethodPost, "/api/v1/rooms/join", "bob", map[string]string{"room_code": created.Room.RoomCode}, &joined); code != http.StatusOK {
		t.Fatalf("join by code status %d", code)
	}
	if joined.Status != model.RoomStatusLocked {
		t.Fatalf("joined room status %s", joined.Status)
	}

	var started service.StartMatchResult
	if code := call(t, srv, http.MethodPost, "/api/v1/rooms/"+created.Room.ID+"/start", "bob", nil, &started); code != http.StatusOK {
		t.Fatalf("start status %d", code)
	}
	if started.TimeLimit != 900 || started.Problem == nil || started.Problem.EditorialSolution != nil {
		t.Fatalf("unexpected start payload %+v", started)
	}

	matchPath := "/api/v1/matches/" + started.Match.ID
	var submitted service.SubmitResult
	if code := call(t, srv, http.MethodPost, matchPath+"/submissions", "alice",
		map[string]string{"code": "print(1)", "language": "python"}, &submitted); code != http.StatusAccepted {
		t.Fatalf("submit status %d", code)
	}
	if submitted.Message != "Submission received and being evaluated" || submitted.Penalty != 0 {
		t.Fatalf("unexpected submit payload %+v", submitted)
	}
	if n, _ := q.Len(context.Background()); n != 1 {
		t.Fatalf("queue len %d", n)
	}

	var view service.MatchView
	if code := call(t, srv, http.MethodGet, matchPath, "alice", nil, &view); code != http.StatusOK || len(view.Submissions) != 1 {
		t.Fatalf("match view status %d, %+v", code, view)
	}

	if code := call(t, srv, http.MethodPut, matchPath+"/draft", "bob", map[string]string{"code": "wip", "language": "cpp"}, nil); code != http.StatusOK {
		t.Fatalf("save draft status %d", code)
	}
	var draft model.Draft
	if code := call(t, srv, http.MethodGet, matchPath+"/draft", "bob", nil, &draft); code != http.StatusOK || draft.Code != "wip" {
		t.Fatalf("get draft status %d, %+v", code, draft)
	}
}

func TestErrorResponses(t *testing.T) {
	srv, _ := newTestServer(t)

	var errResp common.ErrorResponse
	if code := call(t, srv, http.MethodPost, "/api/v1/rooms", "", nil, &errResp); code != http.StatusUnauthorized || errResp.Error != common.KindUnauthorized {
		t.Fatalf("missing token: %d %+v", code, errResp)
	}

	errResp = common.ErrorResponse{}
	if code := call(t, srv, http.MethodPost, "/api/v1/rooms", "alice", map[string]any{"difficulty": "impossible"}, &errResp); code != http.StatusBadRequest || errResp.Error != common.KindBadRequest {
		t.Fatalf("bad difficulty: %d %+v", code, errResp)
	}

	var created service.RoomResult
	call(t, srv, http.MethodPost, "/api/v1/rooms", "alice", map[string]any{"mode": "custom"}, &created)

	errResp = common.ErrorResponse{}
	if code := call(t, srv, http.MethodPost, "/api/v1/rooms/"+created.Room.ID+"/join", "alice", nil, &errResp); code != http.StatusConflict || errResp.Error != common.KindInvalidRoomState {
		t.Fatalf("join own room: %d %+v", code, errResp)
	}

	errResp = common.ErrorResponse{}
	if code := call(t, srv, http.MethodPost, "/api/v1/rooms/"+created.Room.ID+"/start", "mallory", nil, &errResp); code != http.StatusForbidden || errResp.Error != common.KindUnauthorized {
		t.Fatalf("outsider start: %d %+v", code, errResp)
	}

	errResp = common.ErrorResponse{}
	if code := call(t, srv, http.MethodGet, "/api/v1/rooms/does-not-exist", "alice", nil, &errResp); code != http.StatusNotFound || errResp.Error != common.KindNotFound {
		t.Fatalf("missing room: %d %+v", code, errResp)
	}
}

func TestCORSPreflight(t *testing.T) {
	security.InitJWT([]byte("test-secret"))
	h := NewRouter(Services{}, "http://localhost:5173")

	req := httptest.NewRequest(http.MethodOptions, "/api/v1/rooms", nil)
	req.Header.Set("Origin", "http://localhost:5173")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if got := rec.Header().Get("Access-Control-Allow-Origin"); got != "http://localhost:5173" {
		t.Fatalf("allow origin = %q", got)
	}

	req = httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set("Origin", "http://evil.example.com")
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if got := rec.Header().Get("Access-Control-Allow-Origin"); got != "" {
		t.Fatalf("unexpected allow origin %q for unlisted origin", got)
	}
	if rec.Code != http.StatusOK {
		t.Fatalf("health status %d", rec.Code)
	}
}
