package model

import "time"

// CertificateData is everything a certificate renderer needs.
// Percentage is nil when the quiz had no questions.
type CertificateData struct {
	Name           string    `json:"name"`
	RollNumber     string    `json:"roll_number,omitempty"`
	ExamName       string    `json:"exam_name"`
	Date           time.Time `json:"date"`
	Language       string    `json:"language"`
	Score          int       `json:"score"`
	TotalQuestions int       `json:"total_questions"`
	Percentage     *float64  `json:"percentage"`
}

// MonitorSnapshot summarises a quiz for the live monitor.
type MonitorSnapshot struct {
	Quiz              QuizSummary `json:"quiz"`
	TotalAttempts     int         `json:"total_attempts"`
	TotalDisqualified int         `json:"total_disqualified"`
	AverageScore      float64     `json:"average_score"`
	LiveSessions      int         `json:"live_sessions"`
}
