package handlers

import (
	"net/http"

	"chatflow/internal/auth"
	"chatflow/internal/middleware"
	ws "chatflow/internal/websocket"
	"chatflow/pkg/logger"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

type WebSocketHandlers struct {
	authService *auth.Service
	hub         *ws.Hub
	upgrader    websocket.Upgrader
	log         logger.Logger
}

func NewWebSocketHandlers(authService *auth.Service, hub *ws.Hub, allowedOrigins []string, log logger.Logger) *WebSocketHandlers {
	return &WebSocketHandlers{
		authService: authService,
		hub:         hub,
		log:         log,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				return middleware.OriginAllowed(allowedOrigins, r.Header.Get("Origin"))
			},
		},
	}
}

func (h *WebSocketHandlers) HandleWebSocket(c *gin.Context) {
	// Browsers cannot set headers on a websocket handshake, so the JWT
	// travels in the query string.
	tokenStr := c.Query("token")
	if tokenStr == "" {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "missing token"})
		return
	}

	user, err := h.authService.GetUserFromToken(c.Request.Context(), tokenStr)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
		return
	}

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.log.Error("Upgrade error", "user_id", user.ID, "error", err)
		return
	}

	client := h.hub.Connect(conn, user)

	// Start client pumps
	go client.WritePump()
	go client.ReadPump()
}
