package server

import (
	"log/slog"
	"net/http"
	"runtime/debug"

	"github.com/gin-gonic/gin"

	"keygate/internal/auth"
	"keygate/internal/config"
	"keygate/internal/metrics"
	"keygate/internal/service"
	"keygate/internal/summarizer"
)

// Server holds the dependencies shared by all handlers.
type Server struct {
	keys       *service.KeyService
	summarizer summarizer.Summarizer
	logger     *slog.Logger
}

// NewRouter builds the gin engine with all routes registered.
func NewRouter(cfg *config.Config, keys *service.KeyService, sum summarizer.Summarizer, logger *slog.Logger) *gin.Engine {
	s := &Server{
		keys:       keys,
		summarizer: sum,
		logger:     logger.With("component", "server"),
	}

	router := gin.New()
	router.Use(customRecovery(s.logger))
	if cfg.Debug {
		router.Use(gin.Logger())
	}

	router.GET("/healthz", func(c *gin.Context) {
		c.String(http.StatusOK, "ok")
	})
	router.GET("/metrics", metrics.Handler())

	v1 := router.Group("/v1")
	{
		v1.POST("/validate", s.ValidateKeyHandler)
		v1.POST("/summarize", s.SummarizeHandler)
	}

	adminGroup := router.Group("/admin")
	adminGroup.Use(auth.AdminAuthMiddleware(cfg.Admin))
	{
		keysGroup := adminGroup.Group("/keys")
		{
			keysGroup.GET("", s.ListKeysHandler)
			keysGroup.POST("", s.CreateKeyHandler)
			keysGroup.GET("/:id", s.GetKeyHandler)
			keysGroup.PUT("/:id", s.UpdateKeyHandler)
			keysGroup.DELETE("/:id", s.DeleteKeyHandler)
		}
	}

	return router
}

// customRecovery recovers from panics and handles http.ErrAbortHandler
// gracefully.
func customRecovery(log *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if recovered := recover(); recovered != nil {
				if recovered == http.ErrAbortHandler {
					log.Warn("Client connection aborted", "path", c.Request.URL.Path)
					c.Abort()
					return
				}

				log.Error("Panic recovered",
					"error", recovered,
					"path", c.Request.URL.Path,
					"stack", string(debug.Stack()),
				)
				c.AbortWithStatus(http.StatusInternalServerError)
			}
		}()
		c.Next()
	}
}
