package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stemsi/exstem-quiz/internal/config"
	"github.com/stemsi/exstem-quiz/internal/model"
	"github.com/stemsi/exstem-quiz/internal/response"
	"github.com/stemsi/exstem-quiz/internal/service"
)

const (
	refreshInterval   = 15 * time.Second
	keepAliveInterval = 30 * time.Second
	refreshTimeout    = 5 * time.Second // prevent slow queries from blocking the SSE loop
)

// MonitorHandler streams live quiz activity to admins.
type MonitorHandler struct {
	rdb            *redis.Client
	sessionService *service.SessionService
	log            zerolog.Logger

	keepAlive time.Duration
	refresh   time.Duration
}

func NewMonitorHandler(rdb *redis.Client, sessionService *service.SessionService, log zerolog.Logger) *MonitorHandler {
	return &MonitorHandler{
		rdb:            rdb,
		sessionService: sessionService,
		log:            log.With().Str("component", "monitor_handler").Logger(),
		keepAlive:      keepAliveInterval,
		refresh:        refreshInterval,
	}
}

// MonitorQuizSSE godoc
// GET /api/v1/admin/quizzes/:track/:quiz_id/monitor
func (h *MonitorHandler) MonitorQuizSSE(c *gin.Context) {
	track, err := model.ParseTrack(c.Param("track"))
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidTrack)
		return
	}
	quizID := c.Param("quiz_id")
	reqCtx := c.Request.Context()

	snapshot, err := h.sessionService.MonitorSnapshot(reqCtx, track, quizID)
	if err != nil {
		status, code := classify(err)
		if status >= http.StatusInternalServerError {
			h.log.Error().Err(err).Str("quiz_id", quizID).Msg("Monitor snapshot failed")
		}
		response.Fail(c, status, code)
		return
	}

	// Subscribe before the first write so no event between the snapshot and
	// the subscription is lost.
	pubsub := h.rdb.Subscribe(reqCtx, config.CacheKey.QuizMonitorChannel(string(track), quizID))
	defer pubsub.Close()
	if _, err := pubsub.Receive(reqCtx); err != nil {
		h.log.Error().Err(err).Str("quiz_id", quizID).Msg("Monitor subscribe failed")
		response.Fail(c, http.StatusServiceUnavailable, response.ErrUpstreamUnavailable)
		return
	}
	ch := pubsub.Channel()

	c.Writer.Header().Set("Content-Type", "text/event-stream")
	c.Writer.Header().Set("Cache-Control", "no-cache")
	c.Writer.Header().Set("Connection", "keep-alive")

	c.SSEvent("message", gin.H{"type": "snapshot", "data": snapshot})
	c.Writer.Flush()

	keepAliveTicker := time.NewTicker(h.keepAlive)
	defer keepAliveTicker.Stop()

	refreshTicker := time.NewTicker(h.refresh)
	defer refreshTicker.Stop()

	// Skip refreshes until a session event proves someone is taking the quiz.
	active := false

	h.log.Info().Str("track", string(track)).Str("quiz_id", quizID).Msg("Admin attached to live monitor SSE")

	for {
		select {
		case <-reqCtx.Done():
			h.log.Info().Str("quiz_id", quizID).Msg("Admin disconnected from live monitor SSE")
			return

		case msg, ok := <-ch:
			if !ok {
				return
			}
			// Forward raw JSON directly, no deserialization needed.
			c.Writer.Write([]byte("event:message\ndata:"))
			c.Writer.Write([]byte(msg.Payload))
			c.Writer.Write([]byte("\n\n"))
			c.Writer.Flush()
			active = true

		case <-refreshTicker.C:
			if !active {
				continue
			}
			h.sendRefresh(c, reqCtx, track, quizID)

		case <-keepAliveTicker.C:
			c.SSEvent("message", gin.H{"type": "ping"})
			c.Writer.Flush()
		}
	}
}

// sendRefresh re-reads the aggregate counts and sends them as a refresh event.
func (h *MonitorHandler) sendRefresh(c *gin.Context, parentCtx context.Context, track model.Track, quizID string) {
	ctx, cancel := context.WithTimeout(parentCtx, refreshTimeout)
	defer cancel()

	snapshot, err := h.sessionService.MonitorSnapshot(ctx, track, quizID)
	if err != nil {
		h.log.Warn().Err(err).Str("quiz_id", quizID).Msg("Failed to refresh monitor snapshot")
		return
	}

	c.SSEvent("message", gin.H{"type": "refresh", "data": snapshot})
	c.Writer.Flush()
}
