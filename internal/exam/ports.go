package exam

import (
	"context"

	"github.com/stemsi/exstem-quiz/internal/model"
)

// QuizSource loads quiz definitions. It returns model.ErrQuizNotFound for an
// unknown id.
type QuizSource interface {
	GetQuiz(ctx context.Context, track model.Track, quizID string) (*model.Quiz, error)
}

// AttemptStore reads and writes attempt records.
//
// FindAttempt returns model.ErrAttemptNotFound when none exists.
// CreateAttempt returns model.ErrDuplicateAttempt when a record for the same
// (track, quiz, user) is already stored.
type AttemptStore interface {
	FindAttempt(ctx context.Context, track model.Track, quizID, userID string) (*model.AttemptRecord, error)
	CreateAttempt(ctx context.Context, rec *model.AttemptRecord) error
}

// IdentityProvider resolves the candidate taking the quiz. It may block
// until the identity is known.
type IdentityProvider interface {
	Candidate(ctx context.Context) (model.Candidate, error)
}

// IdentityFunc adapts a function to IdentityProvider.
type IdentityFunc func(ctx context.Context) (model.Candidate, error)

func (f IdentityFunc) Candidate(ctx context.Context) (model.Candidate, error) { return f(ctx) }

// Notifier receives session notifications. Implementations must not block
// for long; they are called outside the session lock but on the caller's
// goroutine.
type Notifier interface {
	Notify(n model.Notification)
}

// NotifierFunc adapts a function to Notifier.
type NotifierFunc func(n model.Notification)

func (f NotifierFunc) Notify(n model.Notification) { f(n) }

type nopNotifier struct{}

func (nopNotifier) Notify(model.Notification) {}
