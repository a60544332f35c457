package model

import (
	"fmt"
	"sort"
	"time"
)

// Track identifies which family of quizzes a quiz belongs to. Every track has
// its own quiz and attempt tables.
type Track string

const (
	TrackFree     Track = "free"
	TrackWeekly   Track = "weekly"
	TrackOfficial Track = "official"
)

// Tracks lists every known track in a stable order.
var Tracks = []Track{TrackFree, TrackWeekly, TrackOfficial}

// ParseTrack validates a track name coming from a URL or a document.
func ParseTrack(s string) (Track, error) {
	switch t := Track(s); t {
	case TrackFree, TrackWeekly, TrackOfficial:
		return t, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownTrack, s)
	}
}

// QuizTable is the table holding quiz definitions for the track.
func (t Track) QuizTable() string { return string(t) + "_quizzes" }

// AttemptTable is the table holding attempt records for the track.
func (t Track) AttemptTable() string { return string(t) + "_quiz_attempts" }

// Quiz is a quiz definition. It is immutable once loaded.
type Quiz struct {
	ID               string           `json:"id"`
	Track            Track            `json:"track"`
	Name             string           `json:"name"`
	Language         string           `json:"language"`
	Description      string           `json:"description"`
	TimeLimitMinutes *int             `json:"time_limit_minutes,omitempty"`
	ExamOpensAt      *time.Time       `json:"exam_opens_at,omitempty"`
	Questions        []Question       `json:"questions"`
	SecurityProfile  *SecurityProfile `json:"security_profile,omitempty"`
	CreatedAt        time.Time        `json:"created_at"`
	UpdatedAt        time.Time        `json:"updated_at"`
}

// TimeLimitSeconds returns the countdown length, or 0 when the quiz is untimed.
func (q *Quiz) TimeLimitSeconds() int {
	if q.TimeLimitMinutes == nil || *q.TimeLimitMinutes <= 0 {
		return 0
	}
	return *q.TimeLimitMinutes * 60
}

// OpensAfter reports whether the quiz is still closed at now.
func (q *Quiz) OpensAfter(now time.Time) bool {
	return q.ExamOpensAt != nil && now.Before(*q.ExamOpensAt)
}

// Question is a single multiple-choice question with its answer key.
type Question struct {
	ID            string            `json:"id"`
	Text          string            `json:"question"`
	Code          string            `json:"code,omitempty"`
	Options       map[string]string `json:"options"`
	CorrectAnswer string            `json:"correct_answer"`
}

// HasOption reports whether key is one of the question's choice keys.
func (q Question) HasOption(key string) bool {
	_, ok := q.Options[key]
	return ok
}

// QuestionView is a question as shown to a candidate, without the answer key.
type QuestionView struct {
	Index   int          `json:"index"`
	ID      string       `json:"id"`
	Text    string       `json:"question"`
	Code    string       `json:"code,omitempty"`
	Options []OptionView `json:"options"`
}

// OptionView is one selectable choice.
type OptionView struct {
	Key  string `json:"key"`
	Text string `json:"text"`
}

// View strips the answer key. Options are ordered by key.
func (q Question) View(index int) QuestionView {
	keys := make([]string, 0, len(q.Options))
	for k := range q.Options {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	opts := make([]OptionView, 0, len(keys))
	for _, k := range keys {
		opts = append(opts, OptionView{Key: k, Text: q.Options[k]})
	}
	return QuestionView{Index: index, ID: q.ID, Text: q.Text, Code: q.Code, Options: opts}
}

// QuizSummary is what the instructions screen needs to know about a quiz.
type QuizSummary struct {
	ID               string     `json:"id"`
	Track            Track      `json:"track"`
	Name             string     `json:"name"`
	Language         string     `json:"language"`
	Description      string     `json:"description"`
	TimeLimitMinutes *int       `json:"time_limit_minutes,omitempty"`
	ExamOpensAt      *time.Time `json:"exam_opens_at,omitempty"`
	TotalQuestions   int        `json:"total_questions"`
}

// Summary builds the instructions view of the quiz.
func (q *Quiz) Summary() QuizSummary {
	return QuizSummary{
		ID:               q.ID,
		Track:            q.Track,
		Name:             q.Name,
		Language:         q.Language,
		Description:      q.Description,
		TimeLimitMinutes: q.TimeLimitMinutes,
		ExamOpensAt:      q.ExamOpensAt,
		TotalQuestions:   len(q.Questions),
	}
}

// ImportQuizRequest is a quiz document accepted by the import tool.
type ImportQuizRequest struct {
	ID               string                  `json:"id" yaml:"id" binding:"required,max=128"`
	Track            string                  `json:"track" yaml:"track" binding:"required,oneof=free weekly official"`
	Name             string                  `json:"name" yaml:"name" binding:"required,min=3,max=255"`
	Language         string                  `json:"language" yaml:"language" binding:"omitempty,max=64"`
	Description      string                  `json:"description" yaml:"description" binding:"omitempty,max=4000"`
	TimeLimitMinutes *int                    `json:"time_limit_minutes" yaml:"time_limit_minutes" binding:"omitempty,min=1,max=480"`
	ExamOpensAt      *time.Time              `json:"exam_opens_at" yaml:"exam_opens_at" binding:"omitempty"`
	Questions        []ImportQuestionRequest `json:"questions" yaml:"questions" binding:"required,min=1,dive"`
	SecurityProfile  *SecurityProfile        `json:"security_profile" yaml:"security_profile" binding:"omitempty"`
}

// ImportQuestionRequest is one question of an imported quiz.
type ImportQuestionRequest struct {
	ID            string            `json:"id" yaml:"id" binding:"omitempty,max=128"`
	Text          string            `json:"question" yaml:"question" binding:"required"`
	Code          string            `json:"code" yaml:"code" binding:"omitempty"`
	Options       map[string]string `json:"options" yaml:"options" binding:"required,min=2,dive,keys,required,endkeys,required"`
	CorrectAnswer string            `json:"correct_answer" yaml:"correct_answer" binding:"required"`
}

// ToQuiz converts a validated document into a Quiz. The answer key of every
// question must name one of its options.
func (r *ImportQuizRequest) ToQuiz() (*Quiz, error) {
	track, err := ParseTrack(r.Track)
	if err != nil {
		return nil, err
	}

	questions := make([]Question, 0, len(r.Questions))
	for i, iq := range r.Questions {
		q := Question{
			ID:            iq.ID,
			Text:          iq.Text,
			Code:          iq.Code,
			Options:       iq.Options,
			CorrectAnswer: iq.CorrectAnswer,
		}
		if q.ID == "" {
			q.ID = fmt.Sprintf("q%d", i+1)
		}
		if !q.HasOption(q.CorrectAnswer) {
			return nil, fmt.Errorf("%w: question %d answer %q is not an option", ErrInvalidQuiz, i+1, q.CorrectAnswer)
		}
		questions = append(questions, q)
	}

	return &Quiz{
		ID:               r.ID,
		Track:            track,
		Name:             r.Name,
		Language:         r.Language,
		Description:      r.Description,
		TimeLimitMinutes: r.TimeLimitMinutes,
		ExamOpensAt:      r.ExamOpensAt,
		Questions:        questions,
		SecurityProfile:  r.SecurityProfile,
	}, nil
}
