package main

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"

	"github.com/prepdesk/attempt-engine/internal/api"
	"github.com/prepdesk/attempt-engine/internal/config"
	"github.com/prepdesk/attempt-engine/internal/engine"
	"github.com/prepdesk/attempt-engine/internal/events"
	"github.com/prepdesk/attempt-engine/internal/handlers"
	"github.com/prepdesk/attempt-engine/internal/store"
	"github.com/prepdesk/attempt-engine/internal/validator"
)

func main() {
	// Load configuration
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	// Initialize logger
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: cfg.LogLevel,
	}))

	// Initialize snapshot store: Redis when configured, local files otherwise
	var snapshotStore store.Store
	var redisClient *redis.Client
	if cfg.RedisURL != "" {
		opts, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			log.Fatalf("Failed to parse Redis URL: %v", err)
		}
		redisClient = redis.NewClient(opts)
		snapshotStore = store.NewRedisStore(redisClient, logger)
	} else {
		snapshotStore = store.NewFileStore(cfg.DataDir, logger)
	}

	// Initialize exam API client
	apiClient, err := api.NewHTTPClient(cfg.ExamAPIURL, cfg.ExamAPIToken, 15*time.Second, logger)
	if err != nil {
		log.Fatalf("Failed to initialize exam API client: %v", err)
	}

	// Initialize event publisher: Kafka when brokers are configured,
	// in-process pub/sub otherwise
	var publisher events.Publisher
	if len(cfg.KafkaBrokers) > 0 {
		publisher, err = events.NewKafkaPublisher(cfg.KafkaBrokers, logger)
		if err != nil {
			log.Fatalf("Failed to initialize Kafka publisher: %v", err)
		}
	} else {
		publisher, _ = events.NewGoChannelPublisher(logger)
	}

	// Initialize validator
	validator := validator.New()

	// Initialize session manager
	manager := engine.NewManager(apiClient, snapshotStore, publisher, logger,
		time.Duration(cfg.AutosaveIntervalSeconds)*time.Second)

	// Initialize handlers
	handlerManager := handlers.NewHandlerManager(manager, validator, logger)

	// Setup Gin router
	if cfg.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()

	// Setup middleware
	handlers.SetupMiddleware(router, logger)

	// Setup routes
	handlerManager.SetupRoutes(router)

	// Create HTTP server
	server := &http.Server{
		Addr:    fmt.Sprintf(":%s", cfg.Port),
		Handler: router,
	}

	// Start server in a goroutine
	go func() {
		logger.Info("Starting server", "port", cfg.Port, "environment", cfg.Environment)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Failed to start server: %v", err)
		}
	}()

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down server...")

	// Graceful shutdown with timeout
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	// Shutdown HTTP server
	if err := server.Shutdown(ctx); err != nil {
		log.Printf("Server forced to shutdown: %v", err)
	}

	// Close live sessions; final snapshots are flushed as tickers stop
	if err := manager.Shutdown(ctx); err != nil {
		log.Printf("Failed to shutdown sessions: %v", err)
	}

	// Close event publisher
	publisher.Close()

	// Close Redis connection
	if redisClient != nil {
		redisClient.Close()
	}

	logger.Info("Server exited")
}
