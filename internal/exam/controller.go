package exam

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/stemsi/exstem-quiz/internal/model"
)

// Deps are the collaborators of a session.
type Deps struct {
	Quizzes  QuizSource
	Attempts AttemptStore
	Identity IdentityProvider
	Notifier Notifier
	Clock    Clock
	Log      zerolog.Logger
	// Profile resolves the security profile of a loaded quiz. Defaults to
	// the quiz's own profile or its track default.
	Profile func(*model.Quiz) model.SecurityProfile
}

// Controller runs one candidate's attempt at one quiz:
//
//	loading -> instructions -> in_progress -> submitting -> completed | disqualified
//	loading -> already_attempted | load_error
//	submitting -> submit_failed -> submitting (retry)
//
// Manual submit, timer expiry, disqualification and unload all race for the
// single transition into submitting. The first one wins; the rest are dropped.
type Controller struct {
	track  model.Track
	quizID string
	deps   Deps
	log    zerolog.Logger

	timer   *Timer
	monitor *Monitor
	gateway *Gateway

	// Serialises dispatch batches so notifications keep their order.
	notifyMu sync.Mutex

	mu         sync.Mutex
	phase      model.Phase
	loading    bool
	baseCtx    context.Context
	quiz       *model.Quiz
	profile    model.SecurityProfile
	candidate  model.Candidate
	index      int
	answers    map[int]string
	remaining  *int
	violations int
	submitted  bool
	startedAt  time.Time
	score      *model.Score
	reason     string
	persisted  bool
	record     *model.AttemptRecord
	prior      *model.AttemptRecord
	draft      *model.AttemptDraft
	lastErr    error
	outbox     []model.Notification
	done       chan struct{}
}

// NewController returns a session in the loading phase. Call Load next.
func NewController(deps Deps, track model.Track, quizID string) *Controller {
	if deps.Clock == nil {
		deps.Clock = SystemClock
	}
	if deps.Notifier == nil {
		deps.Notifier = nopNotifier{}
	}
	if deps.Profile == nil {
		deps.Profile = (*model.Quiz).ResolveSecurityProfile
	}

	return &Controller{
		track:   track,
		quizID:  quizID,
		deps:    deps,
		log:     deps.Log.With().Str("component", "exam_session").Str("track", string(track)).Str("quiz_id", quizID).Logger(),
		timer:   NewTimer(deps.Clock),
		monitor: NewMonitor(deps.Clock),
		gateway: NewGateway(deps.Attempts, deps.Clock),
		phase:   model.PhaseLoading,
		baseCtx: context.Background(),
		answers: make(map[int]string),
		done:    make(chan struct{}),
	}
}

// ─── Lifecycle ──────────────────────────────────────────────────────

// Load resolves the candidate, the quiz and any prior attempt, then moves to
// instructions, already_attempted or load_error.
func (c *Controller) Load(ctx context.Context) error {
	c.mu.Lock()
	if c.phase != model.PhaseLoading || c.loading {
		c.mu.Unlock()
		return ErrInvalidTransition
	}
	c.loading = true
	c.mu.Unlock()

	cand, quiz, prior, err := c.load(ctx)

	c.mu.Lock()
	c.loading = false
	if c.phase != model.PhaseLoading {
		c.mu.Unlock()
		return ErrInvalidTransition
	}

	c.candidate = cand
	c.quiz = quiz
	switch {
	case err != nil:
		c.lastErr = err
		c.setPhaseLocked(model.PhaseLoadError)
		c.emitLocked(model.Notification{Kind: model.NotifyLoadFailed, Message: Describe(err)})
		c.log.Warn().Err(err).Msg("Session failed to load")
	case prior != nil:
		c.prior = prior
		c.setPhaseLocked(model.PhaseAlreadyAttempted)
		c.emitLocked(model.Notification{Kind: model.NotifyAlreadyAttempted, Message: priorMessage(prior)})
	default:
		c.profile = c.deps.Profile(quiz)
		c.setPhaseLocked(model.PhaseInstructions)
	}
	out := c.takeOutboxLocked()
	c.mu.Unlock()

	c.dispatch(out)
	return err
}

func (c *Controller) load(ctx context.Context) (model.Candidate, *model.Quiz, *model.AttemptRecord, error) {
	if c.quizID == "" {
		return model.Candidate{}, nil, nil, ErrQuizNotFound
	}
	if c.deps.Identity == nil {
		return model.Candidate{}, nil, nil, ErrIdentityUnresolved
	}

	cand, err := c.deps.Identity.Candidate(ctx)
	if err != nil {
		return model.Candidate{}, nil, nil, fmt.Errorf("%w: %w", ErrIdentityUnresolved, err)
	}
	if cand.UserID == "" {
		return model.Candidate{}, nil, nil, ErrIdentityUnresolved
	}

	quiz, err := c.deps.Quizzes.GetQuiz(ctx, c.track, c.quizID)
	if errors.Is(err, model.ErrQuizNotFound) {
		return cand, nil, nil, fmt.Errorf("%w: %s/%s", ErrQuizNotFound, c.track, c.quizID)
	}
	if err != nil {
		return cand, nil, nil, fmt.Errorf("%w: %w", ErrFetchFailed, err)
	}
	if quiz.OpensAfter(c.deps.Clock.Now()) {
		return cand, quiz, nil, ErrQuizNotOpen
	}

	prior, err := c.gateway.CheckExistingAttempt(ctx, c.track, c.quizID, cand.UserID)
	if err != nil {
		return cand, quiz, nil, err
	}
	return cand, quiz, prior, nil
}

// Start leaves the instructions screen: the monitor is armed and, for timed
// quizzes, the countdown begins. Submissions triggered later by the timer or
// the monitor run on a context detached from ctx's cancellation.
func (c *Controller) Start(ctx context.Context) error {
	c.mu.Lock()
	if c.phase != model.PhaseInstructions {
		c.mu.Unlock()
		return ErrInvalidTransition
	}

	events, err := c.monitor.Arm(c.profile)
	if err != nil {
		c.mu.Unlock()
		return err
	}

	c.baseCtx = context.WithoutCancel(ctx)
	c.startedAt = c.deps.Clock.Now()
	c.index = 0
	c.setPhaseLocked(model.PhaseInProgress)
	c.emitLocked(model.Notification{Kind: model.NotifySessionStarted, Message: "Exam started"})

	if secs := c.quiz.TimeLimitSeconds(); secs > 0 {
		c.remaining = &secs
		if err := c.timer.Start(secs, c.onTick, c.onExpire); err != nil {
			c.log.Error().Err(err).Msg("Timer failed to start")
		}
	}
	out := c.takeOutboxLocked()
	c.mu.Unlock()

	go c.watch(events)

	c.dispatch(out)
	c.log.Info().Str("user_id", c.candidate.UserID).Msg("Exam started")
	return nil
}

// SelectAnswer records choiceKey for the question at index. Last write wins.
func (c *Controller) SelectAnswer(index int, choiceKey string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.phase != model.PhaseInProgress {
		return ErrInvalidTransition
	}
	if index < 0 || index >= len(c.quiz.Questions) {
		return ErrQuestionOutOfRange
	}
	if !c.quiz.Questions[index].HasOption(choiceKey) {
		return ErrInvalidChoice
	}
	c.answers[index] = choiceKey
	return nil
}

// NextQuestion advances to the next question, or submits on the last one.
func (c *Controller) NextQuestion(ctx context.Context) error {
	c.mu.Lock()
	if c.phase != model.PhaseInProgress {
		c.mu.Unlock()
		return ErrInvalidTransition
	}
	if c.index < len(c.quiz.Questions)-1 {
		c.index++
		c.mu.Unlock()
		return nil
	}
	c.mu.Unlock()

	return c.Submit(ctx)
}

// Submit is the candidate's manual submit from the last question.
func (c *Controller) Submit(ctx context.Context) error {
	c.mu.Lock()
	if c.phase == model.PhaseInProgress && c.index < len(c.quiz.Questions)-1 {
		c.mu.Unlock()
		return ErrNotOnLastQuestion
	}
	draft, err := c.beginSubmitLocked(model.TriggerManual, "")
	out := c.takeOutboxLocked()
	c.mu.Unlock()

	c.dispatch(out)
	if err != nil {
		return err
	}
	return c.submit(ctx, draft)
}

// RetrySubmit resends the draft of a failed submission.
func (c *Controller) RetrySubmit(ctx context.Context) error {
	c.mu.Lock()
	if c.phase != model.PhaseSubmitFailed || c.draft == nil {
		c.mu.Unlock()
		return ErrInvalidTransition
	}
	draft := c.draft
	c.setPhaseLocked(model.PhaseSubmitting)
	out := c.takeOutboxLocked()
	c.mu.Unlock()

	c.dispatch(out)
	return c.submit(ctx, draft)
}

// Observe feeds a page signal to the monitor and returns what the client
// must suppress. Outside in_progress nothing is suppressed.
func (c *Controller) Observe(sig Signal) Decision {
	d := c.monitor.Observe(sig)
	if d.Violation == "" {
		return d
	}

	// The strike must be on the session before Observe returns, so a submit
	// racing the escalation stream still records it.
	c.mu.Lock()
	if n := c.monitor.Strikes(); c.phase == model.PhaseInProgress && n > c.violations {
		c.violations = n
	}
	c.mu.Unlock()
	return d
}

// Unload handles the page going away. An attempt in progress is submitted
// best effort, and a write that failed earlier is tried once more; in every
// case the timer and monitor are torn down.
func (c *Controller) Unload(ctx context.Context) error {
	c.mu.Lock()
	switch {
	case c.phase == model.PhaseInProgress:
		draft, err := c.beginSubmitLocked(model.TriggerUnload, "")
		out := c.takeOutboxLocked()
		c.mu.Unlock()

		c.dispatch(out)
		if err != nil {
			return err
		}
		return c.submit(ctx, draft)

	case c.draft != nil && c.phase == model.PhaseSubmitFailed:
		draft := c.draft
		c.setPhaseLocked(model.PhaseSubmitting)
		out := c.takeOutboxLocked()
		c.mu.Unlock()

		c.dispatch(out)
		c.log.Info().Str("user_id", draft.Candidate.UserID).Msg("Retrying failed submission on unload")
		return c.submit(ctx, draft)

	case c.draft != nil && c.phase == model.PhaseDisqualified && !c.persisted:
		// Taken while in flight so a concurrent unload does not write twice.
		draft := c.draft
		c.draft = nil
		c.mu.Unlock()

		c.log.Info().Str("user_id", draft.Candidate.UserID).Msg("Retrying disqualification write on unload")
		return c.submit(ctx, draft)

	default:
		c.timer.Cancel()
		c.monitor.Disarm()
		c.mu.Unlock()
		return nil
	}
}

// Close ends the session for the connection that owns it: it unloads, then
// makes sure the timer and monitor are stopped whatever the outcome.
func (c *Controller) Close(ctx context.Context) error {
	err := c.Unload(ctx)

	c.mu.Lock()
	c.timer.Cancel()
	c.monitor.Disarm()
	c.mu.Unlock()
	return err
}

// ─── Reads ──────────────────────────────────────────────────────────

// Done is closed when the session reaches a terminal phase.
func (c *Controller) Done() <-chan struct{} {
	return c.done
}

// Phase returns the current phase.
func (c *Controller) Phase() model.Phase {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.phase
}

// Record returns the written attempt, if any.
func (c *Controller) Record() *model.AttemptRecord {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.record
}

// Snapshot returns a consistent copy of the session state.
func (c *Controller) Snapshot() model.SessionSnapshot {
	c.mu.Lock()
	defer c.mu.Unlock()

	s := model.SessionSnapshot{
		Phase:                c.phase,
		Track:                c.track,
		QuizID:               c.quizID,
		CurrentQuestionIndex: c.index,
		SelectedAnswers:      make(map[int]string, len(c.answers)),
		ViolationCount:       c.violations,
		HasSubmitted:         c.submitted,
		Reason:               c.reason,
		Persisted:            c.persisted,
		PriorAttempt:         c.prior,
	}
	for k, v := range c.answers {
		s.SelectedAnswers[k] = v
	}
	if c.quiz != nil {
		sum := c.quiz.Summary()
		s.Quiz = &sum
	}
	if c.phase == model.PhaseInstructions || c.phase == model.PhaseInProgress {
		p := c.profile
		s.Security = &p
	}
	if c.phase == model.PhaseInProgress && c.index < len(c.quiz.Questions) {
		v := c.quiz.Questions[c.index].View(c.index)
		s.CurrentQuestion = &v
	}
	if c.remaining != nil {
		r := *c.remaining
		s.RemainingSeconds = &r
	}
	if c.score != nil {
		sc := *c.score
		s.Score = &sc
	}
	if c.prior != nil && c.prior.Disqualified && c.prior.Reason != nil {
		s.Reason = *c.prior.Reason
	}
	if c.lastErr != nil {
		s.Error = Describe(c.lastErr)
	}
	return s
}

// ─── Triggers from the timer and the monitor ────────────────────────

func (c *Controller) onTick(remaining int) {
	c.mu.Lock()
	if c.phase != model.PhaseInProgress {
		c.mu.Unlock()
		return
	}
	r := remaining
	c.remaining = &r
	c.emitLocked(model.Notification{
		Kind:      model.NotifyTick,
		Message:   formatRemaining(remaining),
		Remaining: &r,
	})
	out := c.takeOutboxLocked()
	c.mu.Unlock()

	c.dispatch(out)
}

func (c *Controller) onExpire() {
	c.mu.Lock()
	draft, err := c.beginSubmitLocked(model.TriggerTimerExpired, "")
	ctx := c.baseCtx
	out := c.takeOutboxLocked()
	c.mu.Unlock()

	c.dispatch(out)
	if err != nil {
		c.log.Debug().Err(err).Msg("Timer expiry ignored")
		return
	}
	c.log.Info().Str("user_id", draft.Candidate.UserID).Msg("Time is up, submitting")
	_ = c.submit(ctx, draft)
}

func (c *Controller) watch(events <-chan Escalation) {
	for esc := range events {
		c.handleEscalation(esc)
	}
}

func (c *Controller) handleEscalation(esc Escalation) {
	c.mu.Lock()
	if c.phase != model.PhaseInProgress {
		c.mu.Unlock()
		return
	}
	if esc.Count > c.violations {
		c.violations = esc.Count
	}

	if esc.Level == LevelWarn {
		c.emitLocked(model.Notification{
			Kind:      model.NotifyViolationWarning,
			Message:   esc.Message,
			Violation: esc.Kind,
			Count:     esc.Count,
		})
		out := c.takeOutboxLocked()
		c.mu.Unlock()
		c.dispatch(out)
		return
	}

	draft, err := c.beginSubmitLocked(model.TriggerDisqualified, esc.Message)
	if err == nil {
		c.emitLocked(model.Notification{
			Kind:      model.NotifyDisqualified,
			Message:   esc.Message,
			Violation: esc.Kind,
			Count:     esc.Count,
		})
	}
	ctx := c.baseCtx
	out := c.takeOutboxLocked()
	c.mu.Unlock()

	c.dispatch(out)
	if err != nil {
		return
	}
	c.log.Warn().Str("user_id", draft.Candidate.UserID).Str("violation", string(esc.Kind)).Msg("Candidate disqualified")
	_ = c.submit(ctx, draft)
}

// ─── Submission ─────────────────────────────────────────────────────

// beginSubmitLocked is the single guarded transition into submitting. The
// score is computed from the answers as they are at this instant.
func (c *Controller) beginSubmitLocked(trigger model.SubmitTrigger, reason string) (*model.AttemptDraft, error) {
	if c.submitted {
		return nil, ErrAlreadySubmitted
	}
	if c.phase != model.PhaseInProgress {
		return nil, ErrInvalidTransition
	}
	c.submitted = true

	c.timer.Cancel()
	c.monitor.Disarm()

	score := Score(c.quiz.Questions, c.answers)
	c.score = &score

	answers := make(map[int]string, len(c.answers))
	for k, v := range c.answers {
		answers[k] = v
	}

	taken := int(c.deps.Clock.Now().Sub(c.startedAt) / time.Second)
	if limit := c.quiz.TimeLimitSeconds(); limit > 0 && taken > limit {
		taken = limit
	}
	if taken < 0 {
		taken = 0
	}

	draft := &model.AttemptDraft{
		Track:            c.track,
		QuizID:           c.quizID,
		Candidate:        c.candidate,
		Score:            score,
		Answers:          answers,
		TimeTakenSeconds: &taken,
		ViolationCount:   c.violations,
		Trigger:          trigger,
	}
	if trigger == model.TriggerDisqualified {
		draft.Disqualified = true
		draft.Reason = reason
		c.reason = reason
	}
	c.draft = draft

	c.setPhaseLocked(model.PhaseSubmitting)
	return draft, nil
}

func (c *Controller) submit(ctx context.Context, draft *model.AttemptDraft) error {
	rec, err := c.gateway.Submit(ctx, *draft)

	c.mu.Lock()
	c.finishSubmitLocked(draft, rec, err)
	out := c.takeOutboxLocked()
	c.mu.Unlock()

	c.dispatch(out)
	return err
}

func (c *Controller) finishSubmitLocked(draft *model.AttemptDraft, rec *model.AttemptRecord, err error) {
	switch {
	case err == nil:
		c.record = rec
		c.persisted = true
		c.lastErr = nil
		c.draft = nil
		if draft.Disqualified {
			c.setPhaseLocked(model.PhaseDisqualified)
			return
		}
		c.setPhaseLocked(model.PhaseCompleted)
		sc := draft.Score
		c.emitLocked(model.Notification{
			Kind:    model.NotifySubmitted,
			Message: fmt.Sprintf("Submitted: %d of %d correct", sc.Correct, sc.Total),
			Score:   &sc,
		})

	case errors.Is(err, ErrAlreadyAttempted):
		if rec == nil {
			c.log.Warn().Err(err).Msg("Stored attempt could not be read after a conflict")
		}
		c.prior = rec
		c.draft = nil
		c.lastErr = err
		c.setPhaseLocked(model.PhaseAlreadyAttempted)
		c.emitLocked(model.Notification{Kind: model.NotifyAlreadyAttempted, Message: priorMessage(rec)})

	case draft.Disqualified:
		// Disqualification stands locally even when it cannot be recorded.
		// The draft is kept so unload can try the write again.
		c.lastErr = err
		c.persisted = false
		c.draft = draft
		c.log.Error().Err(err).Msg("Disqualification could not be recorded")
		c.emitLocked(model.Notification{Kind: model.NotifySubmissionFailed, Message: "Your disqualification could not be recorded"})
		c.setPhaseLocked(model.PhaseDisqualified)

	default:
		c.lastErr = err
		c.log.Error().Err(err).Str("trigger", string(draft.Trigger)).Msg("Submission failed")
		c.setPhaseLocked(model.PhaseSubmitFailed)
		c.emitLocked(model.Notification{Kind: model.NotifySubmissionFailed, Message: "Submission failed, please retry"})
	}
}

// ─── Notifications ──────────────────────────────────────────────────

func (c *Controller) setPhaseLocked(p model.Phase) {
	if c.phase == p {
		return
	}
	c.phase = p
	c.emitLocked(model.Notification{Kind: model.NotifyPhaseChanged, Message: string(p)})
	if p.Terminal() {
		select {
		case <-c.done:
		default:
			close(c.done)
		}
	}
}

func (c *Controller) emitLocked(n model.Notification) {
	n.Track = c.track
	n.QuizID = c.quizID
	n.UserID = c.candidate.UserID
	n.Name = c.candidate.DisplayName
	n.Phase = c.phase
	n.At = c.deps.Clock.Now()
	c.outbox = append(c.outbox, n)
}

func (c *Controller) takeOutboxLocked() []model.Notification {
	out := c.outbox
	c.outbox = nil
	return out
}

func (c *Controller) dispatch(out []model.Notification) {
	if len(out) == 0 {
		return
	}
	c.notifyMu.Lock()
	defer c.notifyMu.Unlock()
	for _, n := range out {
		c.deps.Notifier.Notify(n)
	}
}

// Describe maps a session error to a message fit for the candidate.
func Describe(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrQuizNotFound):
		return "Quiz not found"
	case errors.Is(err, ErrIdentityUnresolved):
		return "Your identity could not be verified"
	case errors.Is(err, ErrQuizNotOpen):
		return "This quiz is not open yet"
	case errors.Is(err, ErrFetchFailed):
		return "Quiz data could not be loaded, please try again"
	case errors.Is(err, ErrAlreadyAttempted):
		return "You have already attempted this quiz"
	case errors.Is(err, ErrSubmissionFailed):
		return "Your answers could not be submitted"
	default:
		return err.Error()
	}
}

func priorMessage(rec *model.AttemptRecord) string {
	if rec != nil && rec.Disqualified && rec.Reason != nil {
		return "You have already attempted this quiz and were disqualified: " + *rec.Reason
	}
	return "You have already attempted this quiz"
}

func formatRemaining(seconds int) string {
	return fmt.Sprintf("%02d:%02d", seconds/60, seconds%60)
}
