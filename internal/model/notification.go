package model

import "time"

// NotificationKind enumerates the events an exam session emits.
type NotificationKind string

const (
	NotifyPhaseChanged     NotificationKind = "phase_changed"
	NotifyTick             NotificationKind = "tick"
	NotifyViolationWarning NotificationKind = "violation_warning"
	NotifyDisqualified     NotificationKind = "disqualified"
	NotifySubmitted        NotificationKind = "submitted"
	NotifySubmissionFailed NotificationKind = "submission_failed"
	NotifyAlreadyAttempted NotificationKind = "already_attempted"
	NotifyLoadFailed       NotificationKind = "load_failed"
	NotifySessionStarted   NotificationKind = "session_started"
)

// Notification is a structured {kind, message} event with routing fields.
type Notification struct {
	Kind      NotificationKind `json:"kind"`
	Message   string           `json:"message"`
	Track     Track            `json:"track"`
	QuizID    string           `json:"quiz_id"`
	UserID    string           `json:"user_id,omitempty"`
	Name      string           `json:"name,omitempty"`
	Phase     Phase            `json:"phase,omitempty"`
	Violation ViolationKind    `json:"violation,omitempty"`
	Count     int              `json:"count,omitempty"`
	Remaining *int             `json:"remaining,omitempty"`
	Score     *Score           `json:"score,omitempty"`
	At        time.Time        `json:"at"`
}

// ViolationEvent is a violation queued for persistence.
type ViolationEvent struct {
	Track          Track            `json:"track"`
	QuizID         string           `json:"quiz_id"`
	UserID         string           `json:"user_id"`
	Kind           ViolationKind    `json:"kind"`
	Level          NotificationKind `json:"level"`
	ViolationCount int              `json:"violation_count"`
	Message        string           `json:"message"`
	RecordedAt     int64            `json:"recorded_at"`
}
