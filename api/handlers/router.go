package handlers

import (
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/yeet-socket/yeet/internal/logging"
	"github.com/yeet-socket/yeet/internal/ws"
)

// NewRouter wires every HTTP route of the server.
func NewRouter(service *ws.Service, logger *zap.Logger) *gin.Engine {
	logger = logging.Module(logger, "http")

	r := gin.New()
	r.Use(gin.Recovery(), requestLogger(logger))

	NewWebSocketHandler(service, logger).RegisterRoutes(r)

	api := r.Group("/api")
	{
		NewSessionHandler(service.Registry()).RegisterRoutes(api)
	}

	return r
}

// requestLogger logs each request after it completes. WebSocket requests
// are logged when the upgrade returns, not when the session ends.
func requestLogger(logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		logger.Debug("Request",
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("elapsed", time.Since(start)),
			zap.String("remote", c.ClientIP()))
	}
}
