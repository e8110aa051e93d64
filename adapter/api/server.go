// Package api provides the HTTP API for flag decisions and administration.
package api

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/felixgeelhaar/flagwise/pkg/observability"
)

// Server is the HTTP API server.
type Server struct {
	mux     *http.ServeMux
	server  *http.Server
	logger  *slog.Logger
	handler *FlagHandler
	health  *observability.HealthRegistry
	metrics *observability.InMemoryMetrics
}

// ServerConfig holds configuration for the API server.
type ServerConfig struct {
	Addr         string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration
}

// DefaultServerConfig returns the default server configuration.
func DefaultServerConfig() ServerConfig {
	return ServerConfig{
		Addr:         "0.0.0.0:8080",
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
}

// NewServer creates a new API server. health and metrics may be nil.
func NewServer(
	cfg ServerConfig,
	handler *FlagHandler,
	health *observability.HealthRegistry,
	metrics *observability.InMemoryMetrics,
	logger *slog.Logger,
) *Server {
	if logger == nil {
		logger = slog.Default()
	}

	s := &Server{
		mux:     http.NewServeMux(),
		logger:  logger,
		handler: handler,
		health:  health,
		metrics: metrics,
	}
	s.registerRoutes()

	s.server = &http.Server{
		Addr:         cfg.Addr,
		Handler:      s.Handler(),
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		IdleTimeout:  cfg.IdleTimeout,
	}

	return s
}

func (s *Server) registerRoutes() {
	s.mux.HandleFunc("GET /health", s.handleHealth)
	s.mux.HandleFunc("GET /metrics", s.handleMetrics)

	s.mux.HandleFunc("GET /api/v1/flags", s.handler.ListFlags)
	s.mux.HandleFunc("GET /api/v1/flags/{name}", s.handler.GetFlag)
	s.mux.HandleFunc("GET /api/v1/flags/{name}/enabled", s.handler.IsEnabled)
	s.mux.HandleFunc("PUT /api/v1/flags/{name}", s.handler.UpsertFlag)
	s.mux.HandleFunc("POST /api/v1/flags/{name}", s.handler.UpsertFlag)
	s.mux.HandleFunc("DELETE /api/v1/flags/{name}", s.handler.DeleteFlag)
}

// Handler returns the routed handler wrapped in request middleware.
func (s *Server) Handler() http.Handler {
	return requestContext(s.mux)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if s.health == nil {
		writeJSON(w, http.StatusOK, map[string]string{
			"status": string(observability.HealthStatusHealthy),
			"time":   time.Now().UTC().Format(time.RFC3339),
		})
		return
	}

	overall := s.health.GetOverallHealth(r.Context())
	status := http.StatusOK
	if overall.Status == observability.HealthStatusUnhealthy {
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, status, overall)
}

func (s *Server) handleMetrics(w http.ResponseWriter, _ *http.Request) {
	if s.metrics == nil {
		writeJSON(w, http.StatusOK, map[string]float64{})
		return
	}
	writeJSON(w, http.StatusOK, s.metrics.Snapshot())
}

// Start starts the API server.
func (s *Server) Start() error {
	s.logger.Info("starting flag API server", "addr", s.server.Addr)
	return s.server.ListenAndServe()
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down flag API server")
	return s.server.Shutdown(ctx)
}

// requestContext stamps request and correlation ids, honouring inbound headers.
func requestContext(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := observability.WithCorrelationID(r.Context(), r.Header.Get(headerCorrelationID))
		ctx = observability.WithRequestID(ctx, r.Header.Get(headerRequestID))

		w.Header().Set(headerRequestID, observability.RequestIDFromContext(ctx))
		w.Header().Set(headerCorrelationID, observability.CorrelationIDFromContext(ctx))
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

const (
	headerRequestID     = "X-Request-ID"
	headerCorrelationID = "X-Correlation-ID"
)

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		if err := json.NewEncoder(w).Encode(data); err != nil {
			slog.Error("failed to encode JSON response", "error", err)
		}
	}
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{
		"error":   http.StatusText(status),
		"message": message,
	})
}
