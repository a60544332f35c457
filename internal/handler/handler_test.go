package handler

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stemsi/exstem-quiz/internal/config"
	"github.com/stemsi/exstem-quiz/internal/middleware"
	"github.com/stemsi/exstem-quiz/internal/model"
	"github.com/stemsi/exstem-quiz/internal/repository"
	"github.com/stemsi/exstem-quiz/internal/response"
	"github.com/stemsi/exstem-quiz/internal/service"
	"github.com/stemsi/exstem-quiz/internal/validator"
)

func init() {
	gin.SetMode(gin.TestMode)
	validator.Setup()
}

// ─── Fakes ──────────────────────────────────────────────────────────

type memQuizzes map[string]*model.Quiz

func (m memQuizzes) GetQuiz(_ context.Context, track model.Track, id string) (*model.Quiz, error) {
	q, ok := m[string(track)+"/"+id]
	if !ok {
		return nil, model.ErrQuizNotFound
	}
	return q, nil
}

type memAttempts struct {
	mu      sync.Mutex
	records map[string]*model.AttemptRecord
}

func attemptKey(track model.Track, quizID, userID string) string {
	return string(track) + "/" + quizID + "/" + userID
}

func (m *memAttempts) FindAttempt(_ context.Context, track model.Track, quizID, userID string) (*model.AttemptRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, ok := m.records[attemptKey(track, quizID, userID)]
	if !ok {
		return nil, model.ErrAttemptNotFound
	}
	return rec, nil
}

func (m *memAttempts) CreateAttempt(_ context.Context, rec *model.AttemptRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := attemptKey(rec.Track, rec.QuizID, rec.UserID)
	if _, ok := m.records[key]; ok {
		return model.ErrDuplicateAttempt
	}
	m.records[key] = rec
	return nil
}

func (m *memAttempts) Stats(_ context.Context, track model.Track, quizID string) (repository.AttemptStats, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var s repository.AttemptStats
	for _, r := range m.records {
		if r.Track == track && r.QuizID == quizID {
			s.Total++
			if r.Disqualified {
				s.Disqualified++
			}
		}
	}
	return s, nil
}

type memDirectory map[string]model.Candidate

func (d memDirectory) GetByUserID(_ context.Context, userID string) (*model.Candidate, error) {
	c, ok := d[userID]
	if !ok {
		return nil, model.ErrCandidateNotFound
	}
	return &c, nil
}

// ─── Fixture ────────────────────────────────────────────────────────

type fixture struct {
	srv      *httptest.Server
	auth     *service.AuthService
	attempts *memAttempts
	rdb      *redis.Client
}

func sampleQuiz() *model.Quiz {
	return &model.Quiz{
		ID:       "quiz-1",
		Track:    model.TrackFree,
		Name:     "Go Basics",
		Language: "go",
		Questions: []model.Question{
			{ID: "q1", Text: "Zero value of int?", Options: map[string]string{"a": "0", "b": "nil"}, CorrectAnswer: "a"},
		},
	}
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("run miniredis: %v", err)
	}
	t.Cleanup(mr.Close)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { rdb.Close() })

	f := &fixture{
		auth:     service.NewAuthService(&config.Config{JWTSecret: "test-secret", JWTExpiry: time.Hour}),
		attempts: &memAttempts{records: make(map[string]*model.AttemptRecord)},
		rdb:      rdb,
	}

	quiz := sampleQuiz()
	quizzes := memQuizzes{"free/quiz-1": quiz}
	dir := memDirectory{"u-1": {UserID: "u-1", Email: "ada@example.com", DisplayName: "Ada", RollNumber: "R-17"}}
	sessions := service.NewSessionService(quizzes, f.attempts, service.NewIdentityService(dir), nil, 0, zerolog.Nop())

	quizHandler := NewQuizHandler(sessions, zerolog.Nop())
	wsHandler := NewWSHandler(sessions, zerolog.Nop(), nil)
	monitorHandler := NewMonitorHandler(rdb, sessions, zerolog.Nop())
	healthHandler := NewHealthHandler(map[string]func(context.Context) error{
		"redis": func(ctx context.Context) error { return rdb.Ping(ctx).Err() },
	})

	r := gin.New()
	r.GET("/health", healthHandler.Health)
	r.GET("/api/v1/quizzes/:track/:quiz_id/attempt", middleware.RequireCandidateJWT(f.auth), quizHandler.GetAttempt)
	r.GET("/api/v1/quizzes/:track/:quiz_id/certificate", middleware.RequireCandidateJWT(f.auth), quizHandler.GetCertificate)
	r.GET("/api/v1/admin/quizzes/:track/:quiz_id/monitor", middleware.RequireAdminJWT(f.auth), monitorHandler.MonitorQuizSSE)
	r.GET("/ws/v1/quizzes/:track/:quiz_id/session", middleware.RequireCandidateWSAuth(f.auth), wsHandler.SessionStream)

	f.srv = httptest.NewServer(r)
	t.Cleanup(f.srv.Close)
	return f
}

func (f *fixture) token(t *testing.T, userID string, tt service.TokenType) string {
	t.Helper()
	tok, err := f.auth.GenerateToken(userID, tt)
	if err != nil {
		t.Fatalf("token: %v", err)
	}
	return tok
}

func (f *fixture) get(t *testing.T, path, token string) (*http.Response, response.Response) {
	t.Helper()
	req, _ := http.NewRequest(http.MethodGet, f.srv.URL+path, nil)
	req.Header.Set("Authorization", "Bearer "+token)
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("get %s: %v", path, err)
	}
	defer resp.Body.Close()

	var body response.Response
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("decode %s: %v", path, err)
	}
	return resp, body
}

func (f *fixture) dial(t *testing.T, track, quizID, token string) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(f.srv.URL, "http") + "/ws/v1/quizzes/" + track + "/" + quizID + "/session?token=" + token
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

// frame is the union of every server event.
type frame struct {
	Event          string                `json:"event"`
	State          model.SessionSnapshot `json:"state"`
	Notification   model.Notification    `json:"notification"`
	Error          string                `json:"error"`
	Code           string                `json:"code"`
	Suppress       bool                  `json:"suppress"`
	ClearClipboard bool                  `json:"clear_clipboard"`
	Violation      model.ViolationKind   `json:"violation"`
}

func readUntil(t *testing.T, conn *websocket.Conn, match func(frame) bool) frame {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	for {
		var fr frame
		if err := conn.ReadJSON(&fr); err != nil {
			t.Fatalf("read: %v", err)
		}
		if match(fr) {
			return fr
		}
	}
}

func isState(phase model.Phase) func(frame) bool {
	return func(fr frame) bool { return fr.Event == "state" && fr.State.Phase == phase }
}

func isError(fr frame) bool { return fr.Event == "error" }

func send(t *testing.T, conn *websocket.Conn, msg interface{}) {
	t.Helper()
	if err := conn.WriteJSON(msg); err != nil {
		t.Fatalf("write: %v", err)
	}
}

// ─── WebSocket session ──────────────────────────────────────────────

func TestSessionStreamCompletesQuiz(t *testing.T) {
	f := newFixture(t)
	conn := f.dial(t, "free", "quiz-1", f.token(t, "u-1", service.TokenTypeCandidate))

	readUntil(t, conn, isState(model.PhaseInstructions))

	send(t, conn, map[string]string{"action": "start"})
	st := readUntil(t, conn, isState(model.PhaseInProgress))
	if st.State.CurrentQuestion == nil || st.State.CurrentQuestion.Text != "Zero value of int?" {
		t.Fatalf("expected first question in state, got %+v", st.State.CurrentQuestion)
	}

	send(t, conn, map[string]interface{}{"action": "answer", "index": 0, "choice": "a"})
	readUntil(t, conn, func(fr frame) bool { return fr.Event == "state" && fr.State.SelectedAnswers[0] == "a" })

	send(t, conn, map[string]string{"action": "submit"})
	done := readUntil(t, conn, isState(model.PhaseCompleted))
	if done.State.Score == nil || done.State.Score.Correct != 1 || done.State.Score.Total != 1 {
		t.Fatalf("unexpected score %+v", done.State.Score)
	}

	rec, err := f.attempts.FindAttempt(context.Background(), model.TrackFree, "quiz-1", "u-1")
	if err != nil {
		t.Fatalf("find attempt: %v", err)
	}
	if rec.Score != 1 || rec.Trigger != model.TriggerManual {
		t.Fatalf("unexpected record %+v", rec)
	}

	resp, body := f.get(t, "/api/v1/quizzes/free/quiz-1/certificate", f.token(t, "u-1", service.TokenTypeCandidate))
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected certificate, got %d %+v", resp.StatusCode, body.Error)
	}
}

func TestSessionStreamSignalsAndErrors(t *testing.T) {
	f := newFixture(t)
	conn := f.dial(t, "free", "quiz-1", f.token(t, "u-1", service.TokenTypeCandidate))
	readUntil(t, conn, isState(model.PhaseInstructions))

	send(t, conn, map[string]string{"action": "next"})
	if fr := readUntil(t, conn, isError); fr.Code != string(response.ErrActionNotAllowed) {
		t.Fatalf("expected ACTION_NOT_ALLOWED, got %+v", fr)
	}

	send(t, conn, map[string]string{"action": "start"})
	readUntil(t, conn, isState(model.PhaseInProgress))

	send(t, conn, map[string]interface{}{"action": "signal", "kind": "key_down", "key": "F5"})
	d := readUntil(t, conn, func(fr frame) bool { return fr.Event == "decision" })
	if !d.Suppress || d.Violation != model.ViolationBlockedKey {
		t.Fatalf("unexpected decision %+v", d)
	}
	n := readUntil(t, conn, func(fr frame) bool { return fr.Event == "notification" && fr.Notification.Kind == model.NotifyViolationWarning })
	if n.Notification.Count != 1 {
		t.Fatalf("expected first strike, got %+v", n.Notification)
	}

	send(t, conn, map[string]interface{}{"action": "signal", "kind": "shake"})
	if fr := readUntil(t, conn, isError); fr.Code != string(response.ErrInvalidPayload) {
		t.Fatalf("expected INVALID_PAYLOAD, got %+v", fr)
	}

	send(t, conn, map[string]interface{}{"action": "answer", "choice": "a"})
	if fr := readUntil(t, conn, isError); fr.Code != string(response.ErrInvalidPayload) {
		t.Fatalf("expected INVALID_PAYLOAD for missing index, got %+v", fr)
	}

	send(t, conn, map[string]interface{}{"action": "answer", "index": 0, "choice": "z"})
	if fr := readUntil(t, conn, isError); fr.Code != string(response.ErrInvalidAnswer) {
		t.Fatalf("expected INVALID_ANSWER, got %+v", fr)
	}

	send(t, conn, map[string]string{"action": "dance"})
	if fr := readUntil(t, conn, isError); fr.Code != string(response.ErrUnknownAction) {
		t.Fatalf("expected UNKNOWN_ACTION, got %+v", fr)
	}

	send(t, conn, map[string]string{"action": "ping"})
	readUntil(t, conn, func(fr frame) bool { return fr.Event == "pong" })
}

func TestSessionStreamUnloadSubmits(t *testing.T) {
	f := newFixture(t)
	conn := f.dial(t, "free", "quiz-1", f.token(t, "u-1", service.TokenTypeCandidate))
	readUntil(t, conn, isState(model.PhaseInstructions))

	send(t, conn, map[string]string{"action": "start"})
	readUntil(t, conn, isState(model.PhaseInProgress))
	send(t, conn, map[string]string{"action": "unload"})

	deadline := time.Now().Add(2 * time.Second)
	for {
		rec, err := f.attempts.FindAttempt(context.Background(), model.TrackFree, "quiz-1", "u-1")
		if err == nil {
			if rec.Trigger != model.TriggerUnload || rec.Score != 0 {
				t.Fatalf("unexpected record %+v", rec)
			}
			return
		}
		if time.Now().After(deadline) {
			t.Fatalf("unload did not submit: %v", err)
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func TestSessionStreamSecondTabRefused(t *testing.T) {
	f := newFixture(t)
	token := f.token(t, "u-1", service.TokenTypeCandidate)

	first := f.dial(t, "free", "quiz-1", token)
	readUntil(t, first, isState(model.PhaseInstructions))

	second := f.dial(t, "free", "quiz-1", token)
	if fr := readUntil(t, second, isError); fr.Code != string(response.ErrSessionOpen) {
		t.Fatalf("expected SESSION_ALREADY_OPEN, got %+v", fr)
	}
}

func TestSessionStreamUnknownQuizLoadsWithError(t *testing.T) {
	f := newFixture(t)
	conn := f.dial(t, "weekly", "missing", f.token(t, "u-1", service.TokenTypeCandidate))

	st := readUntil(t, conn, isState(model.PhaseLoadError))
	if st.State.Error == "" {
		t.Fatalf("expected load error message")
	}
}

// ─── REST ───────────────────────────────────────────────────────────

func TestQuizHandlerAttempt(t *testing.T) {
	f := newFixture(t)
	token := f.token(t, "u-1", service.TokenTypeCandidate)

	resp, body := f.get(t, "/api/v1/quizzes/free/quiz-1/attempt", token)
	if resp.StatusCode != http.StatusNotFound || body.Error.Code != response.ErrAttemptNotFound {
		t.Fatalf("expected 404 ATTEMPT_NOT_FOUND, got %d %+v", resp.StatusCode, body.Error)
	}

	resp, body = f.get(t, "/api/v1/quizzes/daily/quiz-1/attempt", token)
	if resp.StatusCode != http.StatusBadRequest || body.Error.Code != response.ErrInvalidTrack {
		t.Fatalf("expected 400 INVALID_TRACK, got %d %+v", resp.StatusCode, body.Error)
	}

	reason := "Disqualified for switching tabs or windows during the exam"
	f.attempts.CreateAttempt(context.Background(), &model.AttemptRecord{
		Track: model.TrackFree, QuizID: "quiz-1", UserID: "u-1",
		TotalQuestions: 1, Disqualified: true, Reason: &reason,
	})

	resp, body = f.get(t, "/api/v1/quizzes/free/quiz-1/attempt", token)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	data, _ := body.Data.(map[string]interface{})
	if data["disqualified"] != true {
		t.Fatalf("unexpected attempt %+v", body.Data)
	}

	resp, body = f.get(t, "/api/v1/quizzes/free/quiz-1/certificate", token)
	if resp.StatusCode != http.StatusForbidden || body.Error.Code != response.ErrCertificateRefused {
		t.Fatalf("expected 403 CERTIFICATE_UNAVAILABLE, got %d %+v", resp.StatusCode, body.Error)
	}
}

func TestHealth(t *testing.T) {
	f := newFixture(t)
	resp, err := http.Get(f.srv.URL + "/health")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
}

// ─── Monitor SSE ────────────────────────────────────────────────────

func TestMonitorStreamsSnapshotThenEvents(t *testing.T) {
	f := newFixture(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	req, _ := http.NewRequestWithContext(ctx, http.MethodGet,
		f.srv.URL+"/api/v1/admin/quizzes/free/quiz-1/monitor?token="+f.token(t, "admin-1", service.TokenTypeAdmin), nil)
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	defer resp.Body.Close()
	if ct := resp.Header.Get("Content-Type"); !strings.HasPrefix(ct, "text/event-stream") {
		t.Fatalf("unexpected content type %q", ct)
	}

	lines := make(chan string, 16)
	go func() {
		sc := bufio.NewScanner(resp.Body)
		for sc.Scan() {
			if data, ok := strings.CutPrefix(sc.Text(), "data:"); ok {
				lines <- data
			}
		}
		close(lines)
	}()

	next := func() string {
		select {
		case l, ok := <-lines:
			if !ok {
				t.Fatalf("stream ended")
			}
			return l
		case <-time.After(2 * time.Second):
			t.Fatalf("no event")
		}
		return ""
	}

	if first := next(); !strings.Contains(first, `"snapshot"`) || !strings.Contains(first, `"Go Basics"`) {
		t.Fatalf("expected snapshot first, got %s", first)
	}

	payload := `{"kind":"session_started","quiz_id":"quiz-1"}`
	if err := f.rdb.Publish(context.Background(), config.CacheKey.QuizMonitorChannel("free", "quiz-1"), payload).Err(); err != nil {
		t.Fatalf("publish: %v", err)
	}
	if got := next(); got != payload {
		t.Fatalf("expected forwarded payload, got %s", got)
	}
}

func TestMonitorUnknownQuiz(t *testing.T) {
	f := newFixture(t)
	resp, body := f.get(t, "/api/v1/admin/quizzes/free/nope/monitor", f.token(t, "admin-1", service.TokenTypeAdmin))
	if resp.StatusCode != http.StatusNotFound || body.Error.Code != response.ErrQuizNotFound {
		t.Fatalf("expected 404 QUIZ_NOT_FOUND, got %d %+v", resp.StatusCode, body.Error)
	}
}

func TestClassify(t *testing.T) {
	if status, code := classify(errors.New("boom")); status != http.StatusInternalServerError || code != response.ErrInternal {
		t.Fatalf("unexpected fallback %d %s", status, code)
	}
	if _, code := classify(service.ErrSessionAlreadyOpen); code != response.ErrSessionOpen {
		t.Fatalf("unexpected code %s", code)
	}
}
