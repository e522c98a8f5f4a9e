// Package http assembles the gin engine and server of the read/admin API.
package http

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/turtacn/Issue-Intelligence/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/Issue-Intelligence/internal/interfaces/http/handlers"
	"github.com/turtacn/Issue-Intelligence/internal/interfaces/http/middleware"
)

// RouterConfig aggregates the handlers and infrastructure the route tree
// needs. Nil handlers leave their routes unmounted.
type RouterConfig struct {
	IssueHandler     *handlers.IssueHandler
	SentimentHandler *handlers.SentimentHandler
	DetectionHandler *handlers.DetectionHandler
	HealthHandler    *handlers.HealthHandler

	Logger         logging.Logger
	Logging        middleware.LoggingConfig
	Recorder       middleware.RequestRecorder
	MetricsHandler http.Handler
	MetricsPath    string
	Mode           string
}

// NewRouter builds the gin engine.
func NewRouter(cfg RouterConfig) *gin.Engine {
	if cfg.Mode != "" {
		gin.SetMode(cfg.Mode)
	}
	r := gin.New()
	r.Use(gin.Recovery(), middleware.RequestID())
	if cfg.Logger != nil {
		r.Use(middleware.RequestLogging(cfg.Logger.Named("http"), cfg.Logging))
	}
	if cfg.Recorder != nil {
		r.Use(middleware.Metrics(cfg.Recorder))
	}

	if h := cfg.HealthHandler; h != nil {
		r.GET("/healthz", h.Liveness)
		r.GET("/readyz", h.Readiness)
	}
	if cfg.MetricsHandler != nil {
		path := cfg.MetricsPath
		if path == "" {
			path = "/metrics"
		}
		r.GET(path, gin.WrapH(cfg.MetricsHandler))
	}

	api := r.Group("/api/v1")
	registerIssueRoutes(api, cfg.IssueHandler)
	registerSentimentRoutes(api, cfg.SentimentHandler)
	if h := cfg.DetectionHandler; h != nil {
		api.POST("/topics/:topic/detect", h.Trigger)
	}
	return r
}

func registerIssueRoutes(r *gin.RouterGroup, h *handlers.IssueHandler) {
	if h == nil {
		return
	}
	issues := r.Group("/issues")
	issues.GET("", h.List)
	issues.GET("/:id", h.Get)
	issues.GET("/:id/transitions", h.Transitions)
	issues.POST("/:id/archive", h.Archive)
	issues.POST("/:id/centroid", h.RebuildCentroid)
}

func registerSentimentRoutes(r *gin.RouterGroup, h *handlers.SentimentHandler) {
	if h == nil {
		return
	}
	r.GET("/sentiment/:type/:key", h.List)
	r.GET("/sentiment/:type/:key/:window", h.Snapshot)
	r.GET("/topics/:topic/baseline", h.Baseline)
}
