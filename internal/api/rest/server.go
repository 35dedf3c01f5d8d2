package rest

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/cors"
	"github.com/gorilla/mux"
	"go.uber.org/zap"
)

// Server represents the REST API server
type Server struct {
	port   string
	server *http.Server
	logger *zap.Logger
}

// Options configures the REST server.
type Options struct {
	Port        string
	CORSOrigins []string
}

// NewServer creates a new REST API server
func NewServer(opts Options, handler *Handler, backfillHandler *BackfillHandler, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	logger = logger.Named("rest")

	return &Server{
		port:   opts.Port,
		logger: logger,
		server: &http.Server{
			Addr:              fmt.Sprintf(":%s", opts.Port),
			Handler:           NewRouter(opts, handler, backfillHandler, logger),
			ReadHeaderTimeout: 10 * time.Second,
		},
	}
}

// NewRouter builds the API routes. backfillHandler may be nil.
func NewRouter(opts Options, handler *Handler, backfillHandler *BackfillHandler, logger *zap.Logger) *mux.Router {
	if logger == nil {
		logger = zap.NewNop()
	}
	origins := opts.CORSOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}

	router := mux.NewRouter()
	router.MethodNotAllowedHandler = http.HandlerFunc(methodNotAllowed)

	// Apply middleware
	router.Use(RecoveryMiddleware(logger))
	router.Use(LoggingMiddleware(logger))
	router.Use(cors.Handler(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Authorization", "Content-Type"},
		MaxAge:         300,
	}))

	// Health check
	router.HandleFunc("/health", handler.HealthCheck).Methods("GET")

	// API v1 routes
	api := router.PathPrefix("/api/v1").Subrouter()
	// Subrouters report a method mismatch as 404 unless they carry their own handler.
	api.MethodNotAllowedHandler = http.HandlerFunc(methodNotAllowed)

	// Events
	api.HandleFunc("/events", handler.GetEventsByDate).Methods("GET")
	api.HandleFunc("/events/{eventID}", handler.GetEvent).Methods("GET")
	api.HandleFunc("/predictions", handler.GetPredictions).Methods("GET")

	// Teams and players
	api.HandleFunc("/teams/{sport}/{entity}/form", handler.GetForm).Methods("GET")

	// Pipeline
	api.HandleFunc("/pipeline/status", handler.PipelineStatus).Methods("GET")
	api.HandleFunc("/pipeline/{sport}/run", handler.RunPipeline).Methods("POST")

	// Backfill operations
	if backfillHandler != nil {
		api.HandleFunc("/backfill", backfillHandler.HandleBackfillRequest).Methods("POST")
		api.HandleFunc("/backfill/status", backfillHandler.HandleBackfillStatus).Methods("GET")
		api.HandleFunc("/backfill/{jobID}", backfillHandler.HandleCancel).Methods("DELETE")
	}

	return router
}

func methodNotAllowed(w http.ResponseWriter, r *http.Request) {
	respondError(w, http.StatusMethodNotAllowed, "method not allowed", nil)
}

// Start starts the REST API server
func (s *Server) Start() error {
	s.logger.Info("REST API listening", zap.String("port", s.port))
	if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown(ctx context.Context) error {
	if s.server != nil {
		return s.server.Shutdown(ctx)
	}
	return nil
}
