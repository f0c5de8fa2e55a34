package main

import (
	"context"
	"fmt"
	"os"

	"github.com/redis/go-redis/v9"

	"github.com/cassiama/LicenseGuard-API/internal/clients/openai"
	"github.com/cassiama/LicenseGuard-API/internal/config"
	"github.com/cassiama/LicenseGuard-API/internal/db"
	"github.com/cassiama/LicenseGuard-API/internal/handlers"
	"github.com/cassiama/LicenseGuard-API/internal/logger"
	"github.com/cassiama/LicenseGuard-API/internal/middleware"
	"github.com/cassiama/LicenseGuard-API/internal/observability"
	"github.com/cassiama/LicenseGuard-API/internal/repos"
	"github.com/cassiama/LicenseGuard-API/internal/server"
	"github.com/cassiama/LicenseGuard-API/internal/services"
)

func main() {
	// Logger
	logMode := os.Getenv("LOG_MODE")
	if logMode == "" {
		logMode = "development"
	}
	log, err := logger.New(logMode)
	if err != nil {
		fmt.Printf("Failed to init logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	// Config
	log.Info("Loading configuration...")
	cfg := config.Load(log)

	// Tracing
	shutdownOTel := observability.InitOTel(context.Background(), log, observability.OtelConfig{
		ServiceName: cfg.ServiceName,
		Environment: cfg.Environment,
		Version:     cfg.Version,
	})
	if shutdownOTel != nil {
		defer shutdownOTel(context.Background())
	}

	// Postgres
	postgresService, err := db.NewPostgresService(log)
	if err != nil {
		log.Error("Postgres init failed", "error", err)
		os.Exit(1)
	}
	if err = postgresService.AutoMigrateAll(); err != nil {
		log.Error("Postgres auto migration failed", "error", err)
		os.Exit(1)
	}
	thePG := postgresService.DB()

	// Repos
	log.Info("Setting up repos...")
	userRepo := repos.NewUserRepo(thePG, log)
	eventRepo := repos.NewEventRepo(thePG, log)

	var recordStore repos.ProjectRecordStore
	if cfg.RecordStore == "redis" {
		rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		recordStore = repos.NewRedisProjectRecordStore(rdb, log)
	} else {
		recordStore = repos.NewProjectRecordStore(thePG, log)
	}

	// Services
	log.Info("Setting up services...")
	openaiClient, err := openai.NewClient(log)
	if err != nil {
		log.Error("Could not init OpenAI client", "error", err)
		os.Exit(1)
	}
	authService := services.NewAuthService(log, userRepo, cfg.JWTSecretKey, cfg.AccessTTL)
	userService := services.NewUserService(log, userRepo, authService)
	eventService := services.NewEventService(log, eventRepo)
	inference := services.NewOpenAIInference(log, openaiClient)
	analysisService := services.NewAnalysisService(log, eventService, recordStore, inference, cfg.InferTimeout)

	// Handlers
	log.Info("Setting up handlers...")
	userHandler := handlers.NewUserHandler(log, userService, authService)
	analyzeHandler := handlers.NewAnalyzeHandler(log, analysisService)
	healthcheckHandler := handlers.NewHealthcheckHandler()
	deprecatedHandler := handlers.NewDeprecatedHandler()

	// Middleware
	authMiddleware := middleware.NewAuthMiddleware(log, authService)

	// Router
	log.Info("Setting up router...")
	router := server.NewRouter(server.RouterConfig{
		ServiceName:        cfg.ServiceName,
		AllowOrigins:       cfg.AllowOrigins,
		TracingEnabled:     shutdownOTel != nil,
		AuthMiddleware:     authMiddleware,
		UserHandler:        userHandler,
		AnalyzeHandler:     analyzeHandler,
		HealthcheckHandler: healthcheckHandler,
		DeprecatedHandler:  deprecatedHandler,
	})

	log.Info("Server listening", "port", cfg.Port)
	if err := router.Run(":" + cfg.Port); err != nil {
		log.Error("Server failed", "error", err)
	}
}
