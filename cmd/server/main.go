package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"campus_connect/internal/config"
	"campus_connect/internal/handler"
	"campus_connect/internal/hub"
	"campus_connect/internal/middleware"
	"campus_connect/internal/repository"
	"campus_connect/internal/service"
	"campus_connect/pkg/logger"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	appLogger := logger.New(cfg.Log.Level)

	dbPool, err := pgxpool.New(context.Background(), cfg.Database.DSN)
	if err != nil {
		appLogger.Fatal("Failed to connect to database", "error", err)
	}
	defer dbPool.Close()

	if err := dbPool.Ping(context.Background()); err != nil {
		appLogger.Fatal("Failed to ping database", "error", err)
	}
	appLogger.Info("Database connection established")

	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	defer rdb.Close()

	if err := rdb.Ping(context.Background()).Err(); err != nil {
		appLogger.Fatal("Failed to connect to Redis", "error", err)
	}
	appLogger.Info("Redis connection established")

	repos := repository.NewRepositories(dbPool, rdb, appLogger)

	// The room router is constructed once here and passed by reference;
	// nothing reaches it through a global.
	router := hub.New(repos.Chat, appLogger)
	defer router.Close()

	bridgeCtx, cancelBridge := context.WithCancel(context.Background())
	defer cancelBridge()
	bridge := hub.NewBridge(rdb, router, appLogger)
	router.SetBridge(bridge)
	go bridge.Listen(bridgeCtx)

	services := service.NewServices(repos, cfg, router, appLogger)

	authMiddleware := middleware.NewAuthMiddleware(services.Auth, appLogger)
	rateLimitMiddleware := middleware.NewRateLimitMiddleware(services.RateLimit, appLogger)

	handlers := handler.NewHandlers(services, router, appLogger)

	engine := setupRouter(handlers, authMiddleware, rateLimitMiddleware, cfg, appLogger)

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      engine,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		appLogger.Info("Starting server", "port", cfg.Server.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			appLogger.Fatal("Failed to start server", "error", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	appLogger.Info("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		appLogger.Fatal("Server forced to shutdown", "error", err)
	}

	appLogger.Info("Server exited")
}

func setupRouter(
	handlers *handler.Handlers,
	authMiddleware *middleware.AuthMiddleware,
	rateLimitMiddleware *middleware.RateLimitMiddleware,
	cfg *config.Config,
	appLogger logger.Logger,
) *gin.Engine {
	if cfg.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	engine := gin.New()
	engine.Use(gin.Recovery())
	engine.Use(middleware.CORS())
	engine.Use(middleware.RequestLogger(appLogger))
	engine.Use(middleware.ErrorHandler())

	engine.GET("/health", handlers.Health.Check)

	v1 := engine.Group("/api/v1")
	{
		protected := v1.Group("")
		protected.Use(authMiddleware.RequireAuth())
		{
			chats := protected.Group("/chats")
			{
				chats.POST("/one-on-one", rateLimitMiddleware.Limit(), handlers.Chat.CreateOneOnOne)
				chats.GET("", handlers.Chat.List)
				chats.GET("/:id", handlers.Chat.GetByID)
			}

			messages := protected.Group("/messages")
			{
				messages.POST("", rateLimitMiddleware.Limit(), handlers.Message.Send)
				messages.GET("/:chatId", handlers.Message.List)
				messages.GET("/files/:chatId", handlers.Message.ListFiles)
				messages.POST("/:messageId", handlers.Message.Edit)
				messages.DELETE("/:messageId", handlers.Message.Delete)
				messages.PUT("/read/:chatId", handlers.Message.MarkRead)
				messages.POST("/reaction/:messageId", handlers.Message.ToggleReaction)
				messages.POST("/report/:messageId", handlers.Message.Report)
			}
		}

		// Lifecycle hooks from the group/event service.
		internal := v1.Group("/internal")
		internal.Use(middleware.RequireHookSecret(cfg.Internal.HookSecret))
		{
			internal.POST("/:kind", handlers.Lifecycle.ParentCreated)
			internal.POST("/:kind/:id/members", handlers.Lifecycle.MemberAdded)
			internal.DELETE("/:kind/:id/members", handlers.Lifecycle.MemberRemoved)
			internal.DELETE("/:kind/:id", handlers.Lifecycle.ParentDeleted)
		}
	}

	engine.GET("/ws", handlers.WebSocket.Handle)

	return engine
}
