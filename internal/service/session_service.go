package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/rs/zerolog"
	"github.com/stemsi/exstem-quiz/internal/exam"
	"github.com/stemsi/exstem-quiz/internal/model"
	"github.com/stemsi/exstem-quiz/internal/notify"
	"github.com/stemsi/exstem-quiz/internal/repository"
)

// ErrSessionAlreadyOpen is returned when the candidate already has a live
// session for the quiz on this server.
var ErrSessionAlreadyOpen = errors.New("a session for this quiz is already open")

// AttemptStore is the attempt persistence the sessions and reports need.
type AttemptStore interface {
	exam.AttemptStore
	Stats(ctx context.Context, track model.Track, quizID string) (repository.AttemptStats, error)
}

// SessionService owns the live exam sessions of this process.
type SessionService struct {
	quizzes   exam.QuizSource
	attempts  AttemptStore
	identity  *IdentityService
	notifier  exam.Notifier
	clock     exam.Clock
	threshold int
	log       zerolog.Logger

	mu   sync.Mutex
	live map[string]*exam.Controller
}

// NewSessionService creates a new SessionService. notifier receives every
// session's notifications in addition to the per-connection sink; threshold
// replaces the default strike threshold of profiles that do not set one.
func NewSessionService(
	quizzes exam.QuizSource,
	attempts AttemptStore,
	identity *IdentityService,
	notifier exam.Notifier,
	threshold int,
	log zerolog.Logger,
) *SessionService {
	return &SessionService{
		quizzes:   quizzes,
		attempts:  attempts,
		identity:  identity,
		notifier:  notifier,
		clock:     exam.SystemClock,
		threshold: threshold,
		log:       log.With().Str("component", "session_service").Logger(),
		live:      make(map[string]*exam.Controller),
	}
}

func sessionKey(track model.Track, quizID, userID string) string {
	return fmt.Sprintf("%s/%s/%s", track, quizID, userID)
}

// Open creates and loads a session. A load failure is not an error here: the
// session is returned in load_error and its snapshot carries the reason.
func (s *SessionService) Open(ctx context.Context, track model.Track, quizID, userID string, sink exam.Notifier) (*exam.Controller, error) {
	key := sessionKey(track, quizID, userID)

	s.mu.Lock()
	if existing, ok := s.live[key]; ok && !isDone(existing) {
		s.mu.Unlock()
		return nil, ErrSessionAlreadyOpen
	}
	ctrl := exam.NewController(exam.Deps{
		Quizzes:  s.quizzes,
		Attempts: s.attempts,
		Identity: s.identity.Provider(userID),
		Notifier: notify.Fanout{s.notifier, sink},
		Clock:    s.clock,
		Log:      s.log,
		Profile:  s.profile,
	}, track, quizID)
	s.live[key] = ctrl
	s.mu.Unlock()

	if err := ctrl.Load(ctx); err != nil {
		s.log.Warn().Err(err).
			Str("track", string(track)).
			Str("quiz_id", quizID).
			Str("user_id", userID).
			Msg("Session opened in load_error")
	}
	return ctrl, nil
}

// Close ends the session and forgets it.
func (s *SessionService) Close(ctx context.Context, track model.Track, quizID, userID string, ctrl *exam.Controller) {
	if err := ctrl.Close(ctx); err != nil && !errors.Is(err, exam.ErrAlreadySubmitted) {
		s.log.Warn().Err(err).Str("quiz_id", quizID).Str("user_id", userID).Msg("Unload submission failed")
	}

	key := sessionKey(track, quizID, userID)
	s.mu.Lock()
	if s.live[key] == ctrl {
		delete(s.live, key)
	}
	s.mu.Unlock()
}

// LiveSessions counts sessions of the quiz currently held by this process.
func (s *SessionService) LiveSessions(track model.Track, quizID string) int {
	prefix := sessionKey(track, quizID, "")

	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for k, c := range s.live {
		if strings.HasPrefix(k, prefix) && !isDone(c) {
			n++
		}
	}
	return n
}

// Attempt returns the candidate's recorded attempt, or model.ErrAttemptNotFound.
func (s *SessionService) Attempt(ctx context.Context, track model.Track, quizID, userID string) (*model.AttemptRecord, error) {
	return s.attempts.FindAttempt(ctx, track, quizID, userID)
}

// Certificate builds the certificate data of a completed attempt.
func (s *SessionService) Certificate(ctx context.Context, track model.Track, quizID, userID string) (*model.CertificateData, error) {
	quiz, err := s.quizzes.GetQuiz(ctx, track, quizID)
	if err != nil {
		return nil, err
	}
	rec, err := s.attempts.FindAttempt(ctx, track, quizID, userID)
	if err != nil {
		return nil, err
	}
	cand, err := s.identity.Resolve(ctx, userID)
	if err != nil {
		return nil, err
	}
	cert, err := exam.BuildCertificate(cand, quiz, rec)
	if err != nil {
		return nil, err
	}
	return &cert, nil
}

// MonitorSnapshot summarises a quiz for the admin monitor.
func (s *SessionService) MonitorSnapshot(ctx context.Context, track model.Track, quizID string) (*model.MonitorSnapshot, error) {
	quiz, err := s.quizzes.GetQuiz(ctx, track, quizID)
	if err != nil {
		return nil, err
	}
	stats, err := s.attempts.Stats(ctx, track, quizID)
	if err != nil {
		return nil, fmt.Errorf("attempt stats: %w", err)
	}
	return &model.MonitorSnapshot{
		Quiz:              quiz.Summary(),
		TotalAttempts:     stats.Total,
		TotalDisqualified: stats.Disqualified,
		AverageScore:      stats.AverageScore,
		LiveSessions:      s.LiveSessions(track, quizID),
	}, nil
}

func (s *SessionService) profile(q *model.Quiz) model.SecurityProfile {
	p := q.ResolveSecurityProfile()
	if s.threshold > 0 && (q.SecurityProfile == nil || q.SecurityProfile.StrikeThreshold <= 0) {
		p.StrikeThreshold = s.threshold
	}
	return p
}

func isDone(c *exam.Controller) bool {
	select {
	case <-c.Done():
		return true
	default:
		return false
	}
}
