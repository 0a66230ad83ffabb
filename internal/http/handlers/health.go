package handlers

import (
	"context"

	"github.com/gin-gonic/gin"

	"github.com/deskmate/deskmate-backend/internal/http/response"
)

// HealthFunc aggregates per-dependency reachability; the app layer owns the
// probes so the handler stays transport-only.
type HealthFunc func(ctx context.Context) map[string]any

type HealthHandler struct {
	health HealthFunc
}

func NewHealthHandler(health HealthFunc) *HealthHandler {
	return &HealthHandler{health: health}
}

func (h *HealthHandler) Health(c *gin.Context) {
	response.RespondOK(c, h.health(c.Request.Context()))
}
