package rest

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/cors"
	"github.com/gorilla/mux"
)

// Server represents the REST API server
type Server struct {
	port   string
	server *http.Server
}

// Dependencies are the services behind the routes
type Dependencies struct {
	Health      HealthChecker
	Games       GameLister
	Picks       PickSubmitter
	Users       UserAccounts
	Imports     ImportQueue
	Auth        func(http.Handler) http.Handler
	CORSOrigins []string
}

// NewServer creates a new REST API server
func NewServer(port string, deps Dependencies) *Server {
	return &Server{
		port: port,
		server: &http.Server{
			Addr:              fmt.Sprintf(":%s", port),
			Handler:           NewRouter(deps),
			ReadHeaderTimeout: 10 * time.Second,
		},
	}
}

// NewRouter wires handlers and middleware
func NewRouter(deps Dependencies) http.Handler {
	handler := NewHandler(deps.Health, deps.Games)
	authHandler := NewAuthHandler(deps.Users)
	pickHandler := NewPickHandler(deps.Picks)
	importHandler := NewImportHandler(deps.Imports)

	router := mux.NewRouter()

	// Apply middleware
	router.Use(RecoveryMiddleware)
	router.Use(LoggingMiddleware)

	// Health check
	router.HandleFunc("/health", handler.HealthCheck).Methods("GET")

	// API v1 routes
	api := router.PathPrefix("/api/v1").Subrouter()

	// Auth
	api.HandleFunc("/auth/register", authHandler.Register).Methods("POST")
	api.HandleFunc("/auth/login", authHandler.Login).Methods("POST")

	// Authenticated routes
	secured := api.NewRoute().Subrouter()
	secured.Use(mux.MiddlewareFunc(deps.Auth))

	secured.HandleFunc("/users/me", authHandler.Me).Methods("GET")
	secured.HandleFunc("/games/upcoming", handler.GetUpcomingGames).Methods("GET")
	secured.HandleFunc("/picks", pickHandler.SubmitPick).Methods("POST")
	secured.HandleFunc("/picks", pickHandler.ListPicks).Methods("GET")

	// Import operations
	secured.HandleFunc("/imports", importHandler.HandleImportRequest).Methods("POST")
	secured.HandleFunc("/imports/status", importHandler.HandleImportStatus).Methods("GET")

	origins := deps.CORSOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}

	return cors.Handler(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Authorization", "Content-Type"},
		MaxAge:         300,
	})(router)
}

// Start starts the REST API server
func (s *Server) Start() error {
	return s.server.ListenAndServe()
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown(ctx context.Context) error {
	if s.server != nil {
		return s.server.Shutdown(ctx)
	}
	return nil
}
