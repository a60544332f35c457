package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/stemsi/exstem-quiz/internal/middleware"
	"github.com/stemsi/exstem-quiz/internal/model"
	"github.com/stemsi/exstem-quiz/internal/response"
	"github.com/stemsi/exstem-quiz/internal/service"
)

// QuizHandler serves a candidate's results for a quiz.
type QuizHandler struct {
	sessionService *service.SessionService
	log            zerolog.Logger
}

// NewQuizHandler creates a new QuizHandler.
func NewQuizHandler(sessionService *service.SessionService, log zerolog.Logger) *QuizHandler {
	return &QuizHandler{
		sessionService: sessionService,
		log:            log.With().Str("component", "quiz_handler").Logger(),
	}
}

// GetAttempt godoc
// GET /api/v1/quizzes/:track/:quiz_id/attempt
// Returns the candidate's recorded attempt.
func (h *QuizHandler) GetAttempt(c *gin.Context) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return
	}

	track, err := model.ParseTrack(c.Param("track"))
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidTrack)
		return
	}

	rec, err := h.sessionService.Attempt(c.Request.Context(), track, c.Param("quiz_id"), claims.UserID)
	if err != nil {
		h.fail(c, err)
		return
	}

	response.Success(c, http.StatusOK, rec)
}

// GetCertificate godoc
// GET /api/v1/quizzes/:track/:quiz_id/certificate
// Returns certificate data for a completed, non-disqualified attempt.
func (h *QuizHandler) GetCertificate(c *gin.Context) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return
	}

	track, err := model.ParseTrack(c.Param("track"))
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidTrack)
		return
	}

	cert, err := h.sessionService.Certificate(c.Request.Context(), track, c.Param("quiz_id"), claims.UserID)
	if err != nil {
		h.fail(c, err)
		return
	}

	response.Success(c, http.StatusOK, cert)
}

func (h *QuizHandler) fail(c *gin.Context, err error) {
	status, code := classify(err)
	if status >= http.StatusInternalServerError {
		h.log.Error().Err(err).Str("path", c.FullPath()).Msg("Quiz request failed")
	}
	response.Fail(c, status, code)
}
