package main

import (
	"context"
	"docstack-api/internal/api"
	"docstack-api/internal/api/handlers"
	"docstack-api/internal/config"
	"docstack-api/internal/database"
	"docstack-api/internal/llm"
	"docstack-api/internal/middleware"
	"docstack-api/internal/repository"
	"docstack-api/internal/services"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/cors"
)

func main() {
	// Load environment variables
	if err := godotenv.Load(); err != nil {
		log.Printf("Warning: Error loading .env file: %v", err)
	}

	cfg := config.Load()

	if cfg.JWTSecret == "" {
		log.Fatal("JWT_SECRET environment variable is required")
	}

	// Initialize database connection
	db, err := database.InitDB(cfg.DatabaseURL)
	if err != nil {
		log.Fatal("Failed to connect to database:", err)
	}

	// Get underlying *sql.DB instance for connection pool settings
	sqlDB, err := db.DB()
	if err != nil {
		log.Fatal("Failed to get underlying *sql.DB instance:", err)
	}

	// Configure connection pool
	sqlDB.SetMaxOpenConns(25)
	sqlDB.SetMaxIdleConns(25)
	sqlDB.SetConnMaxLifetime(5 * time.Minute)

	// Cache is optional: without Redis the resolver hits the stores directly
	var cache services.CacheService
	if redisCache, err := services.NewRedisCacheService(&cfg.Cache); err != nil {
		log.Printf("Warning: Redis unavailable, quota lookups are uncached: %v", err)
	} else {
		cache = redisCache
	}

	telemetry := services.NewPostHogTelemetry(cfg.PostHogAPIKey, cfg.PostHogHost)
	defer telemetry.Close()

	// Initialize repositories
	userRepo := repository.NewUserRepository(db)
	apiKeyRepo := repository.NewAPIKeyRepository(db)
	profileRepo := repository.NewProfileRepository(db)
	membershipRepo := repository.NewTeamMembershipRepository(db)
	usageRepo := repository.NewAPIUsageRepository(db)
	fileRepo := repository.NewFileRepository(db)
	chunkRepo := repository.NewChunkRepository(db)

	// Initialize services
	authService := services.NewAuthService(userRepo, cfg.JWTSecret)
	quotaService := services.NewQuotaService(
		apiKeyRepo,
		profileRepo,
		membershipRepo,
		usageRepo,
		cache,
		cfg.Cache.DefaultTTL,
		cfg.Quota,
	)
	usageLogService := services.NewUsageLogService(usageRepo, cfg.Quota.StoreTimeout)
	completer := llm.NewClient(cfg.LLM)

	// Initialize middleware and handlers
	usageLimiter := middleware.NewUsageLimiter(quotaService, telemetry)
	usageRecorder := middleware.NewUsageRecorder(usageLogService)

	router := api.SetupRoutes(db, api.Handlers{
		Auth:      handlers.NewAuthHandler(authService),
		Search:    handlers.NewSearchHandler(chunkRepo),
		Chat:      handlers.NewChatHandler(chunkRepo, completer),
		UserFiles: handlers.NewUserFilesHandler(fileRepo),
		Usage:     handlers.NewUsageHandler(quotaService),
	}, authService, usageLimiter, usageRecorder)

	corsMiddleware := cors.New(cors.Options{
		AllowedOrigins: cfg.CORSOrigins,
		AllowedMethods: []string{
			http.MethodGet,
			http.MethodPost,
			http.MethodPut,
			http.MethodPatch,
			http.MethodDelete,
			http.MethodOptions,
		},
		AllowedHeaders: []string{
			"Accept",
			"Authorization",
			"Content-Type",
			"X-API-Key",
			"X-Request-Id",
		},
		AllowCredentials: true,
		MaxAge:           300,
	})

	// Create server with timeouts
	srv := &http.Server{
		Handler:      corsMiddleware.Handler(router),
		Addr:         ":" + cfg.Port,
		WriteTimeout: 15 * time.Second,
		ReadTimeout:  15 * time.Second,
	}

	go func() {
		log.Printf("Server starting on port %s...", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal(err)
		}
	}()

	// Graceful shutdown: stop accepting requests, then flush telemetry
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Printf("Server shutdown error: %v", err)
	}
}
