package handlers

import (
	"chatflow/internal/auth"
	"chatflow/internal/config"
	"chatflow/internal/middleware"
	"chatflow/internal/ratelimit"
	"chatflow/internal/services"
	ws "chatflow/internal/websocket"
	"chatflow/pkg/logger"

	"github.com/gin-gonic/gin"
)

type RouterDeps struct {
	Config         *config.Config
	AuthService    *auth.Service
	ChannelService *services.ChannelService
	MessageService *services.MessageService
	Hub            *ws.Hub
	// Limiter may be nil, which disables rate limiting.
	Limiter ratelimit.Limiter
	Log     logger.Logger
}

func NewRouter(d RouterDeps) *gin.Engine {
	router := gin.New()
	router.Use(
		gin.Recovery(),
		middleware.RequestLogger(d.Log),
		middleware.CORS(d.Config.Server.AllowedOrigins),
		middleware.ErrorHandler(d.Log),
	)

	authMW := middleware.NewAuthMiddleware(d.AuthService, d.Log)
	rateMW := middleware.NewRateLimitMiddleware(d.Limiter, d.Log)

	authHandlers := NewAuthHandlers(d.AuthService, d.Log)
	channelHandlers := NewChannelHandlers(d.ChannelService, d.Log)
	messageHandlers := NewMessageHandlers(d.MessageService, d.Log)
	wsHandlers := NewWebSocketHandlers(d.AuthService, d.Hub, d.Config.Server.AllowedOrigins, d.Log)
	healthHandlers := NewHealthHandlers(d.Hub)

	router.GET("/health", healthHandlers.Check)
	router.GET("/ws", wsHandlers.HandleWebSocket)

	api := router.Group("/api")
	{
		user := api.Group("/user")
		{
			user.POST("", rateMW.ByIP("register"), authHandlers.Register)
			user.POST("/login", rateMW.ByIP("login"), authHandlers.Login)
			user.GET("", authMW.RequireAuth(), authHandlers.SearchUsers)
			user.PUT("/rename", authMW.RequireAuth(), authHandlers.Rename)
		}

		chat := api.Group("/chat")
		chat.Use(authMW.RequireAuth())
		{
			chat.POST("/channel", channelHandlers.CreateChannel)
			chat.GET("/channels", channelHandlers.ListChannels)
			chat.PUT("/channel/join", channelHandlers.JoinChannel)
			chat.PUT("/channel/leave", channelHandlers.LeaveChannel)
			chat.DELETE("/channel/:channelId", channelHandlers.DeleteChannel)
			chat.GET("/channel/:channelId/members", channelHandlers.Members)

			chat.POST("/message", rateMW.ByUser("send"), messageHandlers.SendMessage)
			chat.GET("/message/:channelId", messageHandlers.FetchMessages)
			chat.PUT("/message/edit", messageHandlers.EditMessage)
			chat.DELETE("/message/:messageId", messageHandlers.DeleteMessage)

			chat.GET("/search", messageHandlers.SearchMessages)
		}
	}

	return router
}
