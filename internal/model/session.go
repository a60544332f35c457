package model

// Phase is the lifecycle state of an exam session.
type Phase string

const (
	PhaseLoading          Phase = "loading"
	PhaseInstructions     Phase = "instructions"
	PhaseInProgress       Phase = "in_progress"
	PhaseSubmitting       Phase = "submitting"
	PhaseSubmitFailed     Phase = "submit_failed"
	PhaseCompleted        Phase = "completed"
	PhaseDisqualified     Phase = "disqualified"
	PhaseAlreadyAttempted Phase = "already_attempted"
	PhaseLoadError        Phase = "load_error"
)

// Terminal reports whether no further transition can leave the phase.
func (p Phase) Terminal() bool {
	switch p {
	case PhaseCompleted, PhaseDisqualified, PhaseAlreadyAttempted, PhaseLoadError:
		return true
	}
	return false
}

// SessionSnapshot is a consistent read of a session's state.
type SessionSnapshot struct {
	Phase                Phase            `json:"phase"`
	Track                Track            `json:"track"`
	QuizID               string           `json:"quiz_id"`
	Quiz                 *QuizSummary     `json:"quiz,omitempty"`
	Security             *SecurityProfile `json:"security,omitempty"`
	CurrentQuestionIndex int              `json:"current_question_index"`
	CurrentQuestion      *QuestionView    `json:"current_question,omitempty"`
	SelectedAnswers      map[int]string   `json:"selected_answers"`
	RemainingSeconds     *int             `json:"remaining_seconds,omitempty"`
	ViolationCount       int              `json:"violation_count"`
	HasSubmitted         bool             `json:"has_submitted"`
	Score                *Score           `json:"score,omitempty"`
	Reason               string           `json:"reason,omitempty"`
	Persisted            bool             `json:"persisted"`
	PriorAttempt         *AttemptRecord   `json:"prior_attempt,omitempty"`
	Error                string           `json:"error,omitempty"`
}
