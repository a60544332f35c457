package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/stemsi/exstem-quiz/internal/database"
)

// HealthHandler reports whether the backing stores are reachable.
type HealthHandler struct {
	probes map[string]func(context.Context) error
}

// NewHealthHandler creates a new HealthHandler over named probes.
func NewHealthHandler(probes map[string]func(context.Context) error) *HealthHandler {
	return &HealthHandler{probes: probes}
}

// Health godoc
// GET /health
func (h *HealthHandler) Health(c *gin.Context) {
	status, healthy := database.Check(c.Request.Context(), h.probes)
	code := http.StatusOK
	overall := "ok"
	if !healthy {
		code = http.StatusServiceUnavailable
		overall = "degraded"
	}
	c.JSON(code, gin.H{"status": overall, "checks": status})
}
