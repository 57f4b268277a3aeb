package api

import (
	"docstack-api/internal/api/handlers"
	"docstack-api/internal/middleware"
	"docstack-api/internal/services"

	"github.com/gorilla/mux"
	"gorm.io/gorm"
)

// Handlers bundles everything the router mounts.
type Handlers struct {
	Auth      *handlers.AuthHandler
	Search    *handlers.SearchHandler
	Chat      *handlers.ChatHandler
	UserFiles *handlers.UserFilesHandler
	Usage     *handlers.UsageHandler
}

// SetupRoutes wires the public, protected and dashboard route groups.
// Protected routes run through the usage limiter and then the usage
// recorder, so every allowed call lands in the ledger.
func SetupRoutes(
	db *gorm.DB,
	h Handlers,
	authService services.AuthService,
	usageLimiter *middleware.UsageLimiter,
	usageRecorder *middleware.UsageRecorder,
) *mux.Router {
	router := mux.NewRouter()

	// Public routes
	router.HandleFunc("/auth/register", h.Auth.Register).Methods("POST")
	router.HandleFunc("/auth/login", h.Auth.Login).Methods("POST")
	router.HandleFunc("/health", handlers.HealthCheckHandler(db)).Methods("GET")

	// API routes (protected, quota enforced per call)
	apiRouter := router.PathPrefix("/api/v1").Subrouter()
	apiRouter.Use(usageLimiter.Limit)
	apiRouter.Use(usageRecorder.Record)

	apiRouter.HandleFunc("/search", h.Search.Search).Methods("POST")
	apiRouter.HandleFunc("/chat", h.Chat.Chat).Methods("POST")
	apiRouter.HandleFunc("/user-files", h.UserFiles.ListFiles).Methods("GET")

	// Dashboard routes (session auth, lenient quota path)
	dashboardRouter := router.PathPrefix("/dashboard").Subrouter()
	dashboardRouter.Use(middleware.AuthMiddleware(authService))
	dashboardRouter.HandleFunc("/usage", h.Usage.GetCurrentUsage).Methods("GET")

	return router
}
