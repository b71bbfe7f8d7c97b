package handler

import (
	"net/http"

	"github.com/ErlanBelekov/distsched/internal/health"
	"github.com/gin-gonic/gin"
)

// HealthHandler exposes liveness and readiness checks over HTTP.
type HealthHandler struct {
	checker *health.Checker
}

func NewHealthHandler(checker *health.Checker) *HealthHandler {
	return &HealthHandler{checker: checker}
}

func (h *HealthHandler) Liveness(ctx *gin.Context) {
	ctx.JSON(http.StatusOK, h.checker.Liveness(ctx.Request.Context()))
}

func (h *HealthHandler) Readiness(ctx *gin.Context) {
	result := h.checker.Readiness(ctx.Request.Context())
	status := http.StatusOK
	if result.Status != "up" {
		status = http.StatusServiceUnavailable
	}
	ctx.JSON(status, result)
}
