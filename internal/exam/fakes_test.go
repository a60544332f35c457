package exam

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stemsi/exstem-quiz/internal/model"
)

// ─── Clock ──────────────────────────────────────────────────────────

type fakeClock struct {
	mu      sync.Mutex
	now     time.Time
	tickers []*fakeTicker
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func (c *fakeClock) NewTicker(time.Duration) Ticker {
	t := &fakeTicker{clock: c, ch: make(chan time.Time), stopped: make(chan struct{})}
	c.mu.Lock()
	c.tickers = append(c.tickers, t)
	c.mu.Unlock()
	return t
}

func (c *fakeClock) lastTicker(t *testing.T) *fakeTicker {
	t.Helper()
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.tickers) == 0 {
		t.Fatalf("no ticker created")
	}
	return c.tickers[len(c.tickers)-1]
}

type fakeTicker struct {
	clock   *fakeClock
	ch      chan time.Time
	once    sync.Once
	stopped chan struct{}
}

func (t *fakeTicker) C() <-chan time.Time { return t.ch }

func (t *fakeTicker) Stop() { t.once.Do(func() { close(t.stopped) }) }

// Tick advances the clock one second and hands the tick to the timer
// goroutine. It returns false once the ticker has been stopped.
func (t *fakeTicker) Tick() bool {
	t.clock.Advance(time.Second)
	select {
	case t.ch <- t.clock.Now():
		return true
	case <-t.stopped:
		return false
	}
}

// TickN delivers up to n ticks and returns how many were accepted.
func (t *fakeTicker) TickN(n int) int {
	for i := 0; i < n; i++ {
		if !t.Tick() {
			return i
		}
	}
	return n
}

// ─── Stores ─────────────────────────────────────────────────────────

type memQuizzes struct {
	quizzes map[string]*model.Quiz
	err     error
}

func newMemQuizzes(quizzes ...*model.Quiz) *memQuizzes {
	m := &memQuizzes{quizzes: make(map[string]*model.Quiz)}
	for _, q := range quizzes {
		m.quizzes[string(q.Track)+"/"+q.ID] = q
	}
	return m
}

func (m *memQuizzes) GetQuiz(_ context.Context, track model.Track, quizID string) (*model.Quiz, error) {
	if m.err != nil {
		return nil, m.err
	}
	q, ok := m.quizzes[string(track)+"/"+quizID]
	if !ok {
		return nil, model.ErrQuizNotFound
	}
	return q, nil
}

type memAttempts struct {
	mu       sync.Mutex
	records  map[string]*model.AttemptRecord
	creates  int
	failNext int
	findErr  error
	// gate, when set, holds CreateAttempt until it is closed.
	gate    chan struct{}
	entered chan struct{}
}

func newMemAttempts() *memAttempts {
	return &memAttempts{records: make(map[string]*model.AttemptRecord)}
}

func attemptKey(track model.Track, quizID, userID string) string {
	return string(track) + "/" + quizID + "/" + userID
}

func (m *memAttempts) FindAttempt(_ context.Context, track model.Track, quizID, userID string) (*model.AttemptRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.findErr != nil {
		return nil, m.findErr
	}
	rec, ok := m.records[attemptKey(track, quizID, userID)]
	if !ok {
		return nil, model.ErrAttemptNotFound
	}
	return rec, nil
}

func (m *memAttempts) CreateAttempt(_ context.Context, rec *model.AttemptRecord) error {
	m.mu.Lock()
	gate, entered := m.gate, m.entered
	m.entered = nil
	m.mu.Unlock()

	if entered != nil {
		close(entered)
	}
	if gate != nil {
		<-gate
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.creates++
	if m.failNext > 0 {
		m.failNext--
		return errors.New("connection reset by peer")
	}
	key := attemptKey(rec.Track, rec.QuizID, rec.UserID)
	if _, ok := m.records[key]; ok {
		return model.ErrDuplicateAttempt
	}
	m.records[key] = rec
	return nil
}

func (m *memAttempts) put(rec *model.AttemptRecord) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.records[attemptKey(rec.Track, rec.QuizID, rec.UserID)] = rec
}

func (m *memAttempts) stored() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.records)
}

func (m *memAttempts) createCalls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.creates
}

// ─── Notifier ───────────────────────────────────────────────────────

type recorder struct {
	mu    sync.Mutex
	items []model.Notification
}

func (r *recorder) Notify(n model.Notification) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.items = append(r.items, n)
}

func (r *recorder) count(kind model.NotificationKind) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, it := range r.items {
		if it.Kind == kind {
			n++
		}
	}
	return n
}

func (r *recorder) all(kind model.NotificationKind) []model.Notification {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []model.Notification
	for _, it := range r.items {
		if it.Kind == kind {
			out = append(out, it)
		}
	}
	return out
}

// ─── Fixtures ───────────────────────────────────────────────────────

func intPtr(v int) *int { return &v }

func sampleQuiz(track model.Track, minutes *int) *model.Quiz {
	opts := map[string]string{"a": "A", "b": "B", "c": "C", "d": "D"}
	return &model.Quiz{
		ID:               "quiz-1",
		Track:            track,
		Name:             "Go Basics",
		Language:         "go",
		TimeLimitMinutes: minutes,
		Questions: []model.Question{
			{ID: "q1", Text: "First?", Options: opts, CorrectAnswer: "b"},
			{ID: "q2", Text: "Second?", Options: opts, CorrectAnswer: "a"},
			{ID: "q3", Text: "Third?", Options: opts, CorrectAnswer: "c"},
		},
	}
}

func sampleCandidate() model.Candidate {
	return model.Candidate{UserID: "u-1", Email: "ada@example.com", DisplayName: "Ada", RollNumber: "R-17"}
}

type harness struct {
	ctrl     *Controller
	clock    *fakeClock
	quizzes  *memQuizzes
	attempts *memAttempts
	events   *recorder
}

func newHarness(t *testing.T, quiz *model.Quiz) *harness {
	t.Helper()
	h := &harness{
		clock:    newFakeClock(),
		quizzes:  newMemQuizzes(quiz),
		attempts: newMemAttempts(),
		events:   &recorder{},
	}
	h.ctrl = NewController(Deps{
		Quizzes:  h.quizzes,
		Attempts: h.attempts,
		Identity: IdentityFunc(func(context.Context) (model.Candidate, error) { return sampleCandidate(), nil }),
		Notifier: h.events,
		Clock:    h.clock,
		Log:      zerolog.Nop(),
	}, quiz.Track, quiz.ID)
	return h
}

func (h *harness) loadAndStart(t *testing.T) {
	t.Helper()
	if err := h.ctrl.Load(context.Background()); err != nil {
		t.Fatalf("load: %v", err)
	}
	if err := h.ctrl.Start(context.Background()); err != nil {
		t.Fatalf("start: %v", err)
	}
}

// reconnect opens a fresh session for the same candidate on the same store.
func (h *harness) reconnect(t *testing.T) *Controller {
	t.Helper()
	quiz := h.ctrl.quiz
	ctrl := NewController(Deps{
		Quizzes:  h.quizzes,
		Attempts: h.attempts,
		Identity: IdentityFunc(func(context.Context) (model.Candidate, error) { return sampleCandidate(), nil }),
		Clock:    h.clock,
		Log:      zerolog.Nop(),
	}, quiz.Track, quiz.ID)
	if err := ctrl.Load(context.Background()); err != nil {
		t.Fatalf("reload: %v", err)
	}
	return ctrl
}

func waitDone(t *testing.T, c *Controller) {
	t.Helper()
	select {
	case <-c.Done():
	case <-time.After(2 * time.Second):
		t.Fatalf("session did not finish, phase=%s", c.Phase())
	}
}

func waitPhase(t *testing.T, c *Controller, want model.Phase) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if c.Phase() == want {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("expected phase %s, got %s", want, c.Phase())
}
