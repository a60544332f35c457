package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"sort"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"github.com/stemsi/exstem-quiz/internal/exam"
	"github.com/stemsi/exstem-quiz/internal/logger"
	"github.com/stemsi/exstem-quiz/internal/middleware"
	"github.com/stemsi/exstem-quiz/internal/model"
	"github.com/stemsi/exstem-quiz/internal/response"
	"github.com/stemsi/exstem-quiz/internal/service"
	"github.com/stemsi/exstem-quiz/internal/validator"
	ws "github.com/stemsi/exstem-quiz/internal/websocket"
)

// closeTimeout bounds the best-effort submission run when a socket goes away.
const closeTimeout = 10 * time.Second

// buildUpgrader creates a WebSocket upgrader with origin validation.
// allowedOrigins comes from config.Config.AllowedOrigins.
// An empty slice permits all origins (development mode).
func buildUpgrader(allowedOrigins []string) websocket.Upgrader {
	return websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			if len(allowedOrigins) == 0 {
				return true
			}
			origin := r.Header.Get("Origin")
			for _, allowed := range allowedOrigins {
				if strings.EqualFold(allowed, origin) {
					return true
				}
			}
			return false
		},
	}
}

// WSHandler runs exam sessions over WebSocket.
type WSHandler struct {
	sessionService *service.SessionService
	log            zerolog.Logger
	upgrader       websocket.Upgrader
}

// NewWSHandler creates a new WSHandler.
func NewWSHandler(sessionService *service.SessionService, log zerolog.Logger, allowedOrigins []string) *WSHandler {
	return &WSHandler{
		sessionService: sessionService,
		log:            log.With().Str("component", "ws_handler").Logger(),
		upgrader:       buildUpgrader(allowedOrigins),
	}
}

// SessionStream godoc
// WS /ws/v1/quizzes/:track/:quiz_id/session
// Opens the candidate's session for the quiz and drives it with client actions.
func (h *WSHandler) SessionStream(c *gin.Context) {
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
	quizID := c.Param("quiz_id")
	userID := claims.UserID

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.log.Error().Err(err).Msg("WebSocket upgrade failed")
		return
	}
	defer conn.Close()

	wsLog := logger.Session(h.log, string(track), quizID, userID).
		With().Str("request_id", response.RequestID(c)).Logger()

	out := ws.NewWriter(conn)
	sink := exam.NotifierFunc(func(n model.Notification) {
		if err := out.Write(ws.NotificationResponse{Event: ws.EventNotification, Notification: n}); err != nil {
			wsLog.Debug().Err(err).Str("kind", string(n.Kind)).Msg("Notification not delivered")
		}
	})

	ctx := c.Request.Context()
	ctrl, err := h.sessionService.Open(ctx, track, quizID, userID, sink)
	if err != nil {
		_, code := classify(err)
		out.Error(string(code), err.Error())
		return
	}
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), closeTimeout)
		defer cancel()
		h.sessionService.Close(closeCtx, track, quizID, userID, ctrl)
	}()

	wsLog.Info().Str("phase", string(ctrl.Phase())).Msg("Candidate connected")
	h.sendState(out, ctrl)

	for {
		var raw json.RawMessage
		if err := ws.ReadJSON(conn, &raw); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				wsLog.Warn().Err(err).Msg("Unexpected close")
			} else {
				wsLog.Debug().Msg("Connection closed")
			}
			return
		}

		var env ws.RequestEnvelope
		if err := json.Unmarshal(raw, &env); err != nil {
			out.Error(string(response.ErrInvalidPayload), "malformed message")
			continue
		}

		if env.Action == ws.ActionUnload {
			wsLog.Info().Msg("Candidate unloaded the page")
			return
		}
		h.dispatch(ctx, wsLog, out, ctrl, env.Action, raw)
	}
}

func (h *WSHandler) dispatch(ctx context.Context, wsLog zerolog.Logger, out *ws.Writer, ctrl *exam.Controller, action ws.Action, raw json.RawMessage) {
	var err error

	switch action {
	case ws.ActionStart:
		err = ctrl.Start(ctx)
	case ws.ActionAnswer:
		var req ws.AnswerRequest
		if fields := validator.Decode(raw, &req); fields != nil {
			out.Error(string(response.ErrInvalidPayload), describeFields(fields))
			return
		}
		err = ctrl.SelectAnswer(*req.Index, req.Choice)
	case ws.ActionNext:
		err = ctrl.NextQuestion(ctx)
	case ws.ActionSubmit:
		err = ctrl.Submit(ctx)
	case ws.ActionRetrySubmit:
		err = ctrl.RetrySubmit(ctx)
	case ws.ActionSignal:
		var req ws.SignalRequest
		if fields := validator.Decode(raw, &req); fields != nil {
			out.Error(string(response.ErrInvalidPayload), describeFields(fields))
			return
		}
		d := ctrl.Observe(req.Signal)
		out.Write(ws.DecisionResponse{
			Event:          ws.EventDecision,
			Suppress:       d.Suppress,
			ClearClipboard: d.ClearClipboard,
			Violation:      d.Violation,
		})
		return
	case ws.ActionPing:
		out.Write(ws.PongResponse{Event: ws.EventPong})
		return
	case ws.ActionState:
	default:
		wsLog.Warn().Str("action", string(action)).Msg("Unknown action")
		out.Error(string(response.ErrUnknownAction), "unknown action: "+string(action))
		return
	}

	if err != nil {
		_, code := classify(err)
		if code == response.ErrInternal || code == response.ErrSubmissionFailed {
			wsLog.Warn().Err(err).Str("action", string(action)).Msg("Session action failed")
		}
		out.Error(string(code), exam.Describe(err))
	}
	h.sendState(out, ctrl)
}

func (h *WSHandler) sendState(out *ws.Writer, ctrl *exam.Controller) {
	out.Write(ws.StateResponse{Event: ws.EventState, State: ctrl.Snapshot()})
}

// describeFields flattens validation errors into one stable message.
func describeFields(fields map[string]string) string {
	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+": "+fields[k])
	}
	return strings.Join(parts, "; ")
}
