package handlers

import (
	"net/http"

	"chatflow/internal/auth"
	"chatflow/internal/middleware"
	"chatflow/internal/models"
	apperrors "chatflow/pkg/errors"
	"chatflow/pkg/logger"

	"github.com/gin-gonic/gin"
)

type AuthHandlers struct {
	authService *auth.Service
	log         logger.Logger
}

func NewAuthHandlers(authService *auth.Service, log logger.Logger) *AuthHandlers {
	return &AuthHandlers{
		authService: authService,
		log:         log,
	}
}

func (h *AuthHandlers) Register(c *gin.Context) {
	var req models.RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.Error(apperrors.NewAPIError("invalid request", http.StatusBadRequest))
		return
	}

	response, err := h.authService.Register(c.Request.Context(), &req)
	if err != nil {
		h.log.Debug("Registration rejected", "email", req.Email, "error", err)
		c.Error(err)
		return
	}

	h.log.Info("User registered", "user_id", response.User.ID)
	c.JSON(http.StatusCreated, response)
}

func (h *AuthHandlers) Login(c *gin.Context) {
	var req models.LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.Error(apperrors.NewAPIError("invalid request", http.StatusBadRequest))
		return
	}

	response, err := h.authService.Login(c.Request.Context(), &req)
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, response)
}

// SearchUsers matches ?search= against usernames and e-mails, excluding the
// caller.
func (h *AuthHandlers) SearchUsers(c *gin.Context) {
	users, err := h.authService.SearchUsers(c.Request.Context(), middleware.UserID(c), c.Query("search"))
	if err != nil {
		c.Error(err)
		return
	}
	c.JSON(http.StatusOK, users)
}

func (h *AuthHandlers) Rename(c *gin.Context) {
	var req models.RenameRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.Error(apperrors.NewAPIError("invalid request", http.StatusBadRequest))
		return
	}

	user, err := h.authService.Rename(c.Request.Context(), middleware.UserID(c), &req)
	if err != nil {
		c.Error(err)
		return
	}
	c.JSON(http.StatusOK, user)
}
