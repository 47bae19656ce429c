package handlers

import (
	"net/http"

	ws "chatflow/internal/websocket"

	"github.com/gin-gonic/gin"
)

type HealthHandlers struct {
	hub *ws.Hub
}

func NewHealthHandlers(hub *ws.Hub) *HealthHandlers {
	return &HealthHandlers{hub: hub}
}

func (h *HealthHandlers) Check(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":      "ok",
		"service":     "chatflow",
		"connections": h.hub.ConnectionCount(),
		"onlineUsers": len(h.hub.Presence().Snapshot()),
	})
}
