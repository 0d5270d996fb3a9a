package server

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"
	"github.com/user/video-dedup-go/internal/config"
	"github.com/user/video-dedup-go/internal/ingest"
	"github.com/user/video-dedup-go/internal/store"
	"github.com/user/video-dedup-go/internal/sweeper"
	"golang.org/x/time/rate"
)

// HealthResponse represents the health check response
type HealthResponse struct {
	Status   string `json:"status"`
	Database string `json:"database"`
	Uptime   string `json:"uptime"`
}

// Server handles HTTP requests for evaluation, retention management,
// sweep triggers, health checks and metrics
type Server struct {
	store     store.Store
	ingest    *ingest.Service
	sweeper   *sweeper.Sweeper
	limiter   *rate.Limiter
	router    *http.ServeMux
	server    *http.Server
	startTime time.Time
}

// NewServer creates a new HTTP server instance
func NewServer(st store.Store, ing *ingest.Service, sw *sweeper.Sweeper, cfg *config.ServerConfig) *Server {
	s := &Server{
		store:     st,
		ingest:    ing,
		sweeper:   sw,
		limiter:   rate.NewLimiter(rate.Limit(cfg.EvaluateRate), 1),
		router:    http.NewServeMux(),
		startTime: time.Now(),
	}

	s.setupRoutes()
	return s
}

// setupRoutes configures the HTTP routes
func (s *Server) setupRoutes() {
	s.router.HandleFunc("/health", s.handleHealth)
	s.router.Handle("/metrics", promhttp.Handler())
	s.router.HandleFunc("/evaluate", s.handleEvaluate)
	s.router.HandleFunc("/sweep", s.handleSweep)
	s.router.HandleFunc("/retention", s.handleRetention)
	s.router.HandleFunc("/features", s.handleFeatures)
}

// Start begins listening on the specified port
func (s *Server) Start(port int) error {
	addr := fmt.Sprintf(":%d", port)
	s.server = &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	log.Info().Int("port", port).Msg("Starting HTTP server")
	return s.server.ListenAndServe()
}

// Stop gracefully shuts down the server
func (s *Server) Stop(ctx context.Context) error {
	if s.server == nil {
		return nil
	}
	log.Info().Msg("Stopping HTTP server")
	return s.server.Shutdown(ctx)
}

// handleHealth returns JSON with status, database connectivity, and uptime
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	dbStatus := "healthy"
	if err := s.store.Ping(ctx); err != nil {
		dbStatus = fmt.Sprintf("unhealthy: %v", err)
	}

	uptime := time.Since(s.startTime).Round(time.Second).String()

	status := "healthy"
	if dbStatus != "healthy" {
		status = "unhealthy"
	}

	response := HealthResponse{
		Status:   status,
		Database: dbStatus,
		Uptime:   uptime,
	}

	w.Header().Set("Content-Type", "application/json")
	if status != "healthy" {
		w.WriteHeader(http.StatusServiceUnavailable)
	}

	if err := json.NewEncoder(w).Encode(response); err != nil {
		log.Error().Err(err).Msg("Failed to encode health response")
		http.Error(w, "Internal server error", http.StatusInternalServerError)
	}
}

// GetUptime returns the server uptime
func (s *Server) GetUptime() time.Duration {
	return time.Since(s.startTime)
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		log.Error().Err(err).Msg("Failed to encode response")
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
