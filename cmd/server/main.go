package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"chatflow/internal/auth"
	"chatflow/internal/config"
	"chatflow/internal/database"
	"chatflow/internal/handlers"
	"chatflow/internal/ratelimit"
	"chatflow/internal/services"
	"chatflow/internal/websocket"
	"chatflow/pkg/logger"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		logger.New("info").Fatal("Invalid configuration", "error", err)
	}
	log := logger.New(cfg.Log.Level).With("env", cfg.Environment)

	// Initialize database
	db, err := openDatabase(cfg.Database, log)
	if err != nil {
		log.Fatal("Failed to open database", "driver", cfg.Database.Driver, "error", err)
	}
	defer db.Close()

	// Rate limiting is optional; without Redis every request passes.
	var limiter ratelimit.Limiter
	if cfg.Redis.Addr != "" {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		client, err := ratelimit.NewRedisClient(ctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
		cancel()
		if err != nil {
			log.Fatal("Failed to connect to redis", "addr", cfg.Redis.Addr, "error", err)
		}
		defer client.Close()
		limiter = ratelimit.NewRedisLimiter(client, cfg.Redis.RateLimit, cfg.Redis.RateWindow, log)
		log.Info("Rate limiting enabled", "limit", cfg.Redis.RateLimit, "window", cfg.Redis.RateWindow)
	}

	// Initialize services
	authService := auth.NewService(db, cfg.JWT)
	channelService := services.NewChannelService(db, log)
	messageService := services.NewMessageService(db, log)

	hub := websocket.NewHub(cfg.Realtime, log)

	router := handlers.NewRouter(handlers.RouterDeps{
		Config:         cfg,
		AuthService:    authService,
		ChannelService: channelService,
		MessageService: messageService,
		Hub:            hub,
		Limiter:        limiter,
		Log:            log,
	})

	server := &http.Server{
		Addr:         cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	go func() {
		log.Info("Server started", "addr", cfg.Server.Port, "websocket", "/ws", "db", cfg.Database.Driver)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("Server error", "error", err)
		}
	}()

	// Wait for interrupt signal to gracefully shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info("Server shutting down...")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	// Hijacked websocket connections are not tracked by the http server.
	hub.Shutdown()
	if err := server.Shutdown(ctx); err != nil {
		log.Error("Graceful shutdown failed", "error", err)
	}
}

func openDatabase(cfg config.DatabaseConfig, log logger.Logger) (database.Database, error) {
	switch cfg.Driver {
	case "sqlite":
		return database.NewSQLiteDB(cfg.SQLitePath, log)
	case "memory":
		log.Warn("Using in-memory store; data is lost on restart")
		return database.NewMemoryDB(), nil
	default:
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return database.NewPostgresDB(ctx, cfg.URL, log)
	}
}
