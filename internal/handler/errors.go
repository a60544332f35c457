package handler

import (
	"errors"
	"net/http"

	"github.com/stemsi/exstem-quiz/internal/exam"
	"github.com/stemsi/exstem-quiz/internal/model"
	"github.com/stemsi/exstem-quiz/internal/response"
	"github.com/stemsi/exstem-quiz/internal/service"
)

// classify maps a service or session error to an HTTP status and error code.
func classify(err error) (int, response.ErrCode) {
	switch {
	case errors.Is(err, model.ErrUnknownTrack):
		return http.StatusBadRequest, response.ErrInvalidTrack
	case errors.Is(err, model.ErrQuizNotFound):
		return http.StatusNotFound, response.ErrQuizNotFound
	case errors.Is(err, model.ErrAttemptNotFound):
		return http.StatusNotFound, response.ErrAttemptNotFound
	case errors.Is(err, service.ErrSessionAlreadyOpen):
		return http.StatusConflict, response.ErrSessionOpen
	case errors.Is(err, exam.ErrIdentityUnresolved):
		return http.StatusForbidden, response.ErrIdentityUnresolved
	case errors.Is(err, exam.ErrQuizNotOpen):
		return http.StatusForbidden, response.ErrQuizNotOpen
	case errors.Is(err, exam.ErrAlreadyAttempted):
		return http.StatusConflict, response.ErrAlreadyAttempted
	case errors.Is(err, exam.ErrInvalidTransition), errors.Is(err, exam.ErrSubmissionInFlight):
		return http.StatusConflict, response.ErrActionNotAllowed
	case errors.Is(err, exam.ErrNotOnLastQuestion):
		return http.StatusConflict, response.ErrNotOnLastQuestion
	case errors.Is(err, exam.ErrQuestionOutOfRange), errors.Is(err, exam.ErrInvalidChoice):
		return http.StatusBadRequest, response.ErrInvalidAnswer
	case errors.Is(err, exam.ErrAlreadySubmitted):
		return http.StatusConflict, response.ErrAlreadySubmitted
	case errors.Is(err, exam.ErrSubmissionFailed):
		return http.StatusBadGateway, response.ErrSubmissionFailed
	case errors.Is(err, exam.ErrCertificateUnavailable):
		return http.StatusForbidden, response.ErrCertificateRefused
	case errors.Is(err, exam.ErrFetchFailed):
		return http.StatusBadGateway, response.ErrUpstreamUnavailable
	default:
		return http.StatusInternalServerError, response.ErrInternal
	}
}
