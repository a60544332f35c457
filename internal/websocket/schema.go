package websocket

import (
	"github.com/stemsi/exstem-quiz/internal/exam"
	"github.com/stemsi/exstem-quiz/internal/model"
)

// ─── Actions (Client → Server) ──────────────────────────────────────

type Action string

const (
	ActionStart       Action = "start"
	ActionAnswer      Action = "answer"
	ActionNext        Action = "next"
	ActionSubmit      Action = "submit"
	ActionRetrySubmit Action = "retry_submit"
	ActionSignal      Action = "signal"
	ActionUnload      Action = "unload"
	ActionPing        Action = "ping"
	ActionState       Action = "state"
)

// RequestEnvelope is used to peek at the action before full parsing.
type RequestEnvelope struct {
	Action Action `json:"action"`
}

// AnswerRequest selects a choice for a question.
type AnswerRequest struct {
	Action Action `json:"action"`
	Index  *int   `json:"index" binding:"required,min=0"`
	Choice string `json:"choice" binding:"required,max=16"`
}

// SignalRequest reports a page event to the proctoring monitor.
type SignalRequest struct {
	Action Action `json:"action"`
	exam.Signal
}

// ─── Events (Server → Client) ───────────────────────────────────────

type Event string

const (
	EventState        Event = "state"
	EventDecision     Event = "decision"
	EventNotification Event = "notification"
	EventError        Event = "error"
	EventPong         Event = "pong"
)

// StateResponse carries a full session snapshot.
type StateResponse struct {
	Event Event                 `json:"event"`
	State model.SessionSnapshot `json:"state"`
}

// DecisionResponse tells the page what to suppress for a signal.
type DecisionResponse struct {
	Event          Event               `json:"event"`
	Suppress       bool                `json:"suppress"`
	ClearClipboard bool                `json:"clear_clipboard"`
	Violation      model.ViolationKind `json:"violation,omitempty"`
}

// NotificationResponse forwards a session notification.
type NotificationResponse struct {
	Event        Event              `json:"event"`
	Notification model.Notification `json:"notification"`
}

type ErrorResponse struct {
	Event Event  `json:"event"`
	Error string `json:"error"`
	Code  string `json:"code,omitempty"`
}

type PongResponse struct {
	Event Event `json:"event"`
}
