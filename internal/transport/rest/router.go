package rest

import (
	"net/http"
	"os"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"vocalsilence/internal/cache"
	"vocalsilence/internal/config"
	"vocalsilence/internal/service"
	"vocalsilence/internal/transport/rest/handler"
	"vocalsilence/internal/transport/rest/middleware"
	"vocalsilence/internal/transport/ws"
)

// Container holds all dependencies for the router
type Container struct {
	AuthService  *service.AuthService
	AdminService handler.SessionAdmin
	Dispatcher   handler.Submitter
	Dedupe       cache.DedupeCache
	Twilio       config.TwilioConfig
	WSHub        *ws.Hub
	Logger       *zap.Logger
}

// NewRouter creates the API router with all endpoints
func NewRouter(c *Container) http.Handler {
	r := mux.NewRouter()

	logger := c.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	// Initialize handlers
	authHandler := handler.NewAuthHandler(c.AuthService, c.Logger)
	webhookHandler := handler.NewWebhookHandler(c.Dispatcher, c.Dedupe, c.Twilio, logger)
	sessionHandler := handler.NewSessionHandler(c.AdminService, logger)
	wsHandler := ws.NewHandler(c.WSHub, c.AuthService, logger)

	// Initialize middleware
	authMW := middleware.NewAuthMiddleware(c.AuthService)

	// CORS middleware (apply first)
	r.Use(corsMiddleware)

	// Gateway webhook
	r.HandleFunc("/webhooks/twilio", webhookHandler.Twilio).Methods("POST")

	// Health check
	r.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status":"ok"}`))
	}).Methods("GET")

	// API v1 routes
	v1 := r.PathPrefix("/v1").Subrouter()

	// Public routes
	v1.HandleFunc("/auth/login", authHandler.Login).Methods("POST", "OPTIONS")

	// WebSocket routes (public with token in query param)
	v1.HandleFunc("/ws/monitor", wsHandler.MonitorWS).Methods("GET")

	// Staff routes (require staff auth)
	staffRoutes := v1.NewRoute().Subrouter()
	staffRoutes.Use(authMW.RequireStaff)

	staffRoutes.HandleFunc("/sessions", sessionHandler.List).Methods("GET", "OPTIONS")
	staffRoutes.HandleFunc("/sessions/{participant}", sessionHandler.Get).Methods("GET", "OPTIONS")
	staffRoutes.HandleFunc("/sessions/{participant}", sessionHandler.Reset).Methods("DELETE", "OPTIONS")
	staffRoutes.HandleFunc("/sessions/{participant}/crisis/close", sessionHandler.CloseCrisis).Methods("POST", "OPTIONS")
	staffRoutes.HandleFunc("/participants/{participant}/crises", sessionHandler.Crises).Methods("GET", "OPTIONS")
	staffRoutes.HandleFunc("/participants/{participant}/interactions", sessionHandler.Interactions).Methods("GET", "OPTIONS")

	return r
}

func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		allowedOrigins := os.Getenv("CORS_ALLOWED_ORIGINS")
		if allowedOrigins == "" {
			allowedOrigins = "*"
		}

		allowedMethods := os.Getenv("CORS_ALLOWED_METHODS")
		if allowedMethods == "" {
			allowedMethods = "GET, POST, DELETE, OPTIONS"
		}

		allowedHeaders := os.Getenv("CORS_ALLOWED_HEADERS")
		if allowedHeaders == "" {
			allowedHeaders = "Content-Type, Authorization"
		}

		w.Header().Set("Access-Control-Allow-Origin", allowedOrigins)
		w.Header().Set("Access-Control-Allow-Methods", allowedMethods)
		w.Header().Set("Access-Control-Allow-Headers", allowedHeaders)

		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}
