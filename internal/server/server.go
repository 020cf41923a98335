// Package server exposes the query service over an OpenAI-compatible HTTP
// API.
package server

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/n0madic/go-agentquery/internal/codec"
	"github.com/n0madic/go-agentquery/internal/config"
	"github.com/n0madic/go-agentquery/internal/models"
	"github.com/n0madic/go-agentquery/internal/observability"
	"github.com/n0madic/go-agentquery/internal/stream"
	"github.com/n0madic/go-agentquery/internal/types"
)

// maxBodyBytes limits the size of incoming request bodies.
const maxBodyBytes = 10 * 1024 * 1024 // 10 MB

// Agent is the query service behind the HTTP routes.
type Agent interface {
	IsReady() bool
	Query(ctx context.Context, prompt string, opts types.QueryOptions) <-chan stream.Event
	Stop()
	SwitchModel(id string) error
	ActiveModel() string
	ActiveProvider() string
	AvailableModels(ctx context.Context) []models.Model
}

// Server is the main HTTP server.
type Server struct {
	Config     *config.ServerConfig
	Agent      Agent
	Logger     *zap.Logger
	httpServer *http.Server
}

// New creates a new server with all routes registered. metrics may be nil,
// in which case /metrics is not served.
func New(cfg *config.ServerConfig, agent Agent, logger *zap.Logger, metrics *observability.Metrics) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Server{Config: cfg, Agent: agent, Logger: logger}

	mux := http.NewServeMux()

	// Health
	mux.HandleFunc("GET /", s.handleHealth)
	mux.HandleFunc("GET /health", s.handleHealth)

	// OpenAI-compatible routes
	mux.HandleFunc("POST /v1/chat/completions", s.handleChatCompletions)
	mux.HandleFunc("GET /v1/models", s.handleListModels)

	// Service control
	mux.HandleFunc("POST /v1/stop", s.handleStop)
	mux.HandleFunc("GET /v1/model", s.handleGetModel)
	mux.HandleFunc("POST /v1/model", s.handleSwitchModel)

	if cfg.Metrics && metrics != nil {
		mux.Handle("GET /metrics", promhttp.HandlerFor(metrics.Registry(), promhttp.HandlerOpts{}))
	}

	// OPTIONS for CORS preflight
	mux.HandleFunc("OPTIONS /", s.handleOptions)

	handler := corsMiddleware(authMiddleware(cfg, verboseMiddleware(cfg, logger, mux)))

	addr := fmt.Sprintf("%s:%d", cfg.Host, cfg.Port)
	s.httpServer = &http.Server{
		Addr:         addr,
		Handler:      handler,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 600 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	return s
}

// Handler returns the root handler with all middleware applied.
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

// Addr returns the listen address.
func (s *Server) Addr() string {
	return s.httpServer.Addr
}

// ListenAndServe starts the server.
func (s *Server) ListenAndServe() error {
	return s.httpServer.ListenAndServe()
}

// Shutdown stops any query in flight and gracefully stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.Agent.Stop()
	return s.httpServer.Shutdown(ctx)
}

func (s *Server) handleOptions(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusNoContent)
}

// --- Helpers ---

func readBody(w http.ResponseWriter, r *http.Request) ([]byte, bool) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		codec.WriteOpenAIError(w, http.StatusBadRequest, "Failed to read request body")
		return nil, false
	}
	return body, true
}
