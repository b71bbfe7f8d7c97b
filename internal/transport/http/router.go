// Package httptransport wires the client surface (entry CRUD) and health
// checks onto a gin.Engine, adapted from the reference repo's transport
// layer for a CRUD-behind-JWT resource other than jobs.
package httptransport

import (
	"log/slog"

	"github.com/ErlanBelekov/distsched/internal/transport/http/handler"
	"github.com/ErlanBelekov/distsched/internal/transport/http/middleware"
	"github.com/gin-gonic/gin"
	sloggin "github.com/samber/slog-gin"
)

// NewRouter builds the gin.Engine serving the client surface.
func NewRouter(logger *slog.Logger, entryHandler *handler.EntryHandler, healthHandler *handler.HealthHandler, jwtKey []byte) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(middleware.RequestID())
	r.Use(middleware.Security())
	r.Use(sloggin.New(logger))
	r.Use(middleware.Metrics())

	r.GET("/healthz", healthHandler.Liveness)
	r.GET("/readyz", healthHandler.Readiness)

	entries := r.Group("/entries", middleware.Auth(jwtKey))
	entries.GET("", entryHandler.List)
	entries.GET("/:key", entryHandler.Get)
	entries.PUT("/:key", entryHandler.Save)
	entries.DELETE("/:key", entryHandler.Delete)

	return r
}
