package model

import "errors"

// Store-level errors shared by repositories and the exam engine.
var (
	ErrUnknownTrack      = errors.New("unknown track")
	ErrInvalidQuiz       = errors.New("invalid quiz")
	ErrQuizNotFound      = errors.New("quiz not found")
	ErrAttemptNotFound   = errors.New("attempt not found")
	ErrDuplicateAttempt  = errors.New("attempt already recorded")
	ErrCandidateNotFound = errors.New("candidate not found")
)
