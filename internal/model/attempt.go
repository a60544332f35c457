package model

import (
	"time"

	"github.com/google/uuid"
)

// SubmitTrigger records what ended an attempt.
type SubmitTrigger string

const (
	TriggerManual       SubmitTrigger = "manual"
	TriggerTimerExpired SubmitTrigger = "timer_expired"
	TriggerDisqualified SubmitTrigger = "disqualified"
	TriggerUnload       SubmitTrigger = "unload"
)

// AttemptRecord is the persisted result of a candidate's single attempt at a
// quiz. At most one exists per (track, quiz, user).
type AttemptRecord struct {
	ID               uuid.UUID      `json:"id"`
	Track            Track          `json:"track"`
	QuizID           string         `json:"quiz_id"`
	UserID           string         `json:"user_id"`
	Email            string         `json:"email"`
	Name             string         `json:"name"`
	RollNumber       string         `json:"roll_number,omitempty"`
	Score            int            `json:"score"`
	TotalQuestions   int            `json:"total_questions"`
	Answers          map[int]string `json:"answers"`
	TimeTakenSeconds *int           `json:"time_taken_seconds,omitempty"`
	Disqualified     bool           `json:"disqualified"`
	Reason           *string        `json:"reason,omitempty"`
	ViolationCount   int            `json:"violation_count"`
	Trigger          SubmitTrigger  `json:"trigger"`
	SubmittedAt      time.Time      `json:"submitted_at"`
}

// AttemptDraft is an attempt that has been scored but not yet written.
type AttemptDraft struct {
	Track            Track
	QuizID           string
	Candidate        Candidate
	Score            Score
	Answers          map[int]string
	TimeTakenSeconds *int
	Disqualified     bool
	Reason           string
	ViolationCount   int
	Trigger          SubmitTrigger
}

// Record turns the draft into the record that will be written.
func (d AttemptDraft) Record() *AttemptRecord {
	rec := &AttemptRecord{
		ID:               uuid.New(),
		Track:            d.Track,
		QuizID:           d.QuizID,
		UserID:           d.Candidate.UserID,
		Email:            d.Candidate.Email,
		Name:             d.Candidate.DisplayName,
		RollNumber:       d.Candidate.RollNumber,
		Score:            d.Score.Correct,
		TotalQuestions:   d.Score.Total,
		Answers:          copyAnswers(d.Answers),
		TimeTakenSeconds: d.TimeTakenSeconds,
		Disqualified:     d.Disqualified,
		ViolationCount:   d.ViolationCount,
		Trigger:          d.Trigger,
	}
	if d.Disqualified {
		reason := d.Reason
		rec.Reason = &reason
	}
	return rec
}

// Score is the result of grading an answer set.
type Score struct {
	Correct int `json:"correct"`
	Total   int `json:"total"`
}

func copyAnswers(in map[int]string) map[int]string {
	out := make(map[int]string, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}
