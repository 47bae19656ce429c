package handlers

import (
	"net/http"

	"chatflow/internal/middleware"
	"chatflow/internal/models"
	"chatflow/internal/services"
	apperrors "chatflow/pkg/errors"
	"chatflow/pkg/logger"

	"github.com/gin-gonic/gin"
)

type ChannelHandlers struct {
	channelService *services.ChannelService
	log            logger.Logger
}

func NewChannelHandlers(channelService *services.ChannelService, log logger.Logger) *ChannelHandlers {
	return &ChannelHandlers{
		channelService: channelService,
		log:            log,
	}
}

func (h *ChannelHandlers) CreateChannel(c *gin.Context) {
	var req models.CreateChannelRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.Error(apperrors.NewAPIError("invalid request", http.StatusBadRequest))
		return
	}

	channel, err := h.channelService.CreateChannel(c.Request.Context(), middleware.UserID(c), &req)
	if err != nil {
		c.Error(err)
		return
	}
	c.JSON(http.StatusCreated, channel)
}

func (h *ChannelHandlers) ListChannels(c *gin.Context) {
	channels, err := h.channelService.ListChannels(c.Request.Context(), middleware.UserID(c))
	if err != nil {
		c.Error(err)
		return
	}
	c.JSON(http.StatusOK, channels)
}

func (h *ChannelHandlers) JoinChannel(c *gin.Context) {
	var req models.JoinChannelRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.Error(apperrors.NewAPIError("invalid request", http.StatusBadRequest))
		return
	}

	channel, err := h.channelService.JoinChannel(c.Request.Context(), middleware.UserID(c), &req)
	if err != nil {
		c.Error(err)
		return
	}
	c.JSON(http.StatusOK, channel)
}

func (h *ChannelHandlers) LeaveChannel(c *gin.Context) {
	var req models.LeaveChannelRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.Error(apperrors.NewAPIError("invalid request", http.StatusBadRequest))
		return
	}

	channel, err := h.channelService.LeaveChannel(c.Request.Context(), middleware.UserID(c), &req)
	if err != nil {
		c.Error(err)
		return
	}
	c.JSON(http.StatusOK, channel)
}

func (h *ChannelHandlers) DeleteChannel(c *gin.Context) {
	channel, err := h.channelService.DeleteChannel(c.Request.Context(), middleware.UserID(c), c.Param("channelId"))
	if err != nil {
		c.Error(err)
		return
	}
	c.JSON(http.StatusOK, channel)
}

func (h *ChannelHandlers) Members(c *gin.Context) {
	members, err := h.channelService.ChannelMembers(c.Request.Context(), middleware.UserID(c), c.Param("channelId"))
	if err != nil {
		c.Error(err)
		return
	}
	c.JSON(http.StatusOK, members)
}
