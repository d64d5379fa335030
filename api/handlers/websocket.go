package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/yeet-socket/yeet/internal/ws"
)

// Greeting is returned to plain HTTP requests on the chat endpoint.
const Greeting = "hello!"

// WebSocketHandler serves the chat endpoint.
type WebSocketHandler struct {
	service *ws.Service
	logger  *zap.Logger
}

// NewWebSocketHandler creates a new WebSocketHandler.
func NewWebSocketHandler(service *ws.Service, logger *zap.Logger) *WebSocketHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &WebSocketHandler{
		service: service,
		logger:  logger,
	}
}

// Chat handles GET / - upgrades WebSocket requests and greets everything else.
func (h *WebSocketHandler) Chat(c *gin.Context) {
	if !websocket.IsWebSocketUpgrade(c.Request) {
		c.String(http.StatusOK, Greeting)
		return
	}

	if err := h.service.HandleConnection(c.Writer, c.Request); err != nil {
		// The upgrader has already written the HTTP error.
		h.logger.Warn("WebSocket upgrade failed",
			zap.String("remote", c.Request.RemoteAddr),
			zap.Error(err))
	}
}

// Health handles GET /health.
func (h *WebSocketHandler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":   "ok",
		"sessions": h.service.Hub().Count(),
		"driver":   h.service.Driver().Name(),
	})
}

// RegisterRoutes registers the chat and health routes on the engine root.
func (h *WebSocketHandler) RegisterRoutes(r gin.IRoutes) {
	r.GET("/", h.Chat)
	r.GET("/health", h.Health)
}
