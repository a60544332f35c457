package exam

import (
	"errors"

	"github.com/stemsi/exstem-quiz/internal/model"
)

// Session errors.
var (
	ErrQuizNotFound       = model.ErrQuizNotFound
	ErrIdentityUnresolved = errors.New("candidate identity could not be resolved")
	ErrAlreadyAttempted   = errors.New("quiz already attempted")
	ErrSubmissionFailed   = errors.New("attempt submission failed")
	ErrFetchFailed        = errors.New("quiz data could not be fetched")
	ErrQuizNotOpen        = errors.New("quiz is not open yet")

	ErrInvalidTransition  = errors.New("action not allowed in current phase")
	ErrNotOnLastQuestion  = errors.New("manual submit is only allowed on the last question")
	ErrQuestionOutOfRange = errors.New("question index out of range")
	ErrInvalidChoice      = errors.New("choice is not an option of the question")
	ErrAlreadySubmitted   = errors.New("attempt already submitted")
	ErrSubmissionInFlight = errors.New("submission already in progress")

	ErrTimerStarted    = errors.New("timer already started")
	ErrInvalidDuration = errors.New("timer duration must be positive")
	ErrMonitorArmed    = errors.New("monitor already armed")

	ErrCertificateUnavailable = errors.New("no certificate for a disqualified attempt")
)
