package handlers

import (
	"net/http"
	"strconv"

	"chatflow/internal/middleware"
	"chatflow/internal/models"
	"chatflow/internal/services"
	apperrors "chatflow/pkg/errors"
	"chatflow/pkg/logger"

	"github.com/gin-gonic/gin"
)

type MessageHandlers struct {
	messageService *services.MessageService
	log            logger.Logger
}

func NewMessageHandlers(messageService *services.MessageService, log logger.Logger) *MessageHandlers {
	return &MessageHandlers{
		messageService: messageService,
		log:            log,
	}
}

func (h *MessageHandlers) SendMessage(c *gin.Context) {
	var req models.SendMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.Error(apperrors.NewAPIError("invalid request", http.StatusBadRequest))
		return
	}

	message, err := h.messageService.SendMessage(c.Request.Context(), middleware.UserID(c), &req)
	if err != nil {
		c.Error(err)
		return
	}
	c.JSON(http.StatusCreated, message)
}

func (h *MessageHandlers) FetchMessages(c *gin.Context) {
	page, err := strconv.Atoi(c.DefaultQuery("page", "1"))
	if err != nil {
		c.Error(apperrors.NewAPIError("page must be a number", http.StatusBadRequest))
		return
	}

	result, err := h.messageService.FetchMessages(c.Request.Context(), middleware.UserID(c), c.Param("channelId"), page)
	if err != nil {
		c.Error(err)
		return
	}
	c.JSON(http.StatusOK, result)
}

func (h *MessageHandlers) EditMessage(c *gin.Context) {
	var req models.EditMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.Error(apperrors.NewAPIError("invalid request", http.StatusBadRequest))
		return
	}

	message, err := h.messageService.EditMessage(c.Request.Context(), middleware.UserID(c), &req)
	if err != nil {
		c.Error(err)
		return
	}
	c.JSON(http.StatusOK, message)
}

func (h *MessageHandlers) DeleteMessage(c *gin.Context) {
	mode := models.DeleteMode(c.DefaultQuery("mode", string(models.DeleteForEveryone)))

	message, err := h.messageService.DeleteMessage(c.Request.Context(), middleware.UserID(c), c.Param("messageId"), mode)
	if err != nil {
		c.Error(err)
		return
	}
	c.JSON(http.StatusOK, message)
}

func (h *MessageHandlers) SearchMessages(c *gin.Context) {
	messages, err := h.messageService.SearchMessages(c.Request.Context(), middleware.UserID(c), c.Query("keyword"))
	if err != nil {
		c.Error(err)
		return
	}
	c.JSON(http.StatusOK, messages)
}
