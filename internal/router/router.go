package router

import (
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/stemsi/exstem-quiz/internal/config"
	"github.com/stemsi/exstem-quiz/internal/handler"
	"github.com/stemsi/exstem-quiz/internal/metrics"
	"github.com/stemsi/exstem-quiz/internal/middleware"
	"github.com/stemsi/exstem-quiz/internal/response"
	"github.com/stemsi/exstem-quiz/internal/service"
)

// Handlers groups all handler instances for route setup.
type Handlers struct {
	Quiz    *handler.QuizHandler
	WS      *handler.WSHandler
	Monitor *handler.MonitorHandler
	Health  *handler.HealthHandler
}

// SetupRouter configures all Gin route groups with appropriate middlewares.
func SetupRouter(
	authService *service.AuthService,
	handlers *Handlers,
	cfg *config.Config,
) *gin.Engine {
	gin.SetMode(cfg.GinMode)
	router := gin.Default()

	// ─── CORS ──────────────────────────────────────────────────────────
	// If AllowedOrigins is set in config, restrict to that list;
	// otherwise allow all (*) so dev works without extra config.
	corsConfig := cors.DefaultConfig()
	if len(cfg.AllowedOrigins) > 0 {
		corsConfig.AllowOrigins = cfg.AllowedOrigins
	} else {
		corsConfig.AllowAllOrigins = true
	}
	corsConfig.AllowMethods = []string{"GET", "OPTIONS"}
	corsConfig.AllowHeaders = []string{"Origin", "Content-Type", "Authorization", "X-Request-ID"}
	corsConfig.ExposeHeaders = []string{"X-Request-ID"}
	corsConfig.MaxAge = 12 * time.Hour
	router.Use(cors.New(corsConfig))

	// Apply request ID middleware globally so every response includes metadata.
	router.Use(response.RequestIDMiddleware())

	router.GET("/health", handlers.Health.Health)
	router.GET("/metrics", metrics.Handler())

	// ─── 1. Candidate Group (JWT) ──────────────────────────────────────
	candidateAPI := router.Group("/api/v1/quizzes")
	candidateAPI.Use(
		middleware.RequireCandidateJWT(authService),
		middleware.CacheControl(0),
		middleware.Brotli(),
	)
	{
		candidateAPI.GET("/:track/:quiz_id/attempt", handlers.Quiz.GetAttempt)
		candidateAPI.GET("/:track/:quiz_id/certificate", handlers.Quiz.GetCertificate)
	}

	// ─── 2. Admin Group (JWT, SSE) ─────────────────────────────────────
	adminAPI := router.Group("/api/v1/admin")
	adminAPI.Use(middleware.RequireAdminJWT(authService))
	{
		adminAPI.GET("/quizzes/:track/:quiz_id/monitor", handlers.Monitor.MonitorQuizSSE)
	}

	// ─── 3. WebSocket Group (Candidate WS Auth, Rate Limited) ──────────
	wsLimiter := middleware.NewRateLimiter(cfg.WSRateLimit, cfg.WSRateBurst)
	ws := router.Group("/ws/v1")
	ws.Use(
		wsLimiter.Middleware(),
		middleware.RequireCandidateWSAuth(authService),
	)
	{
		ws.GET("/quizzes/:track/:quiz_id/session", handlers.WS.SessionStream)
	}

	return router
}
