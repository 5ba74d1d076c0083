package api

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

// NewRouter wires the intake routes. metrics may be nil to disable /metrics.
func NewRouter(h *Handlers, metrics http.Handler, logger zerolog.Logger) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery(), requestLogger(logger))

	router.GET("/healthz", Health)
	router.GET("/version", Version)
	if metrics != nil {
		router.GET("/metrics", gin.WrapH(metrics))
	}

	v1 := router.Group("/v1")
	v1.POST("/events", h.HandleEvent)

	return router
}

func requestLogger(logger zerolog.Logger) gin.HandlerFunc {
	logger = logger.With().Str("component", "http").Logger()
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		event := logger.Debug()
		if c.Writer.Status() >= http.StatusInternalServerError {
			event = logger.Warn()
		}
		event.Str("method", c.Request.Method).
			Str("path", c.FullPath()).
			Int("status", c.Writer.Status()).
			Dur("elapsed", time.Since(start)).
			Msg("request served")
	}
}
