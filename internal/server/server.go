// Package server exposes the retrieval and speech tasks over HTTP.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sanonone/kektorflow/pkg/agent"
	"github.com/sanonone/kektorflow/pkg/cluster"
	"github.com/sanonone/kektorflow/pkg/tasks"
)

// Deps are the collaborators the server routes requests to.
type Deps struct {
	APIs      *agent.APIManager
	Store     *cluster.Store
	Retrieval *tasks.RetrievalTask
	Speech    *tasks.SpeechTask
	Logger    *slog.Logger
}

// Server holds the HTTP interface over the task runners.
type Server struct {
	deps       Deps
	logger     *slog.Logger
	runs       *RunManager
	authToken  string
	handler    http.Handler
	httpServer *http.Server

	// baseCtx is the parent of asynchronous runs; cancelled on Shutdown.
	baseCtx    context.Context
	cancelRuns context.CancelFunc
}

// NewServer wires routes and middleware. An empty authToken disables auth.
func NewServer(addr, authToken string, deps Deps) (*Server, error) {
	if deps.Store == nil {
		return nil, errors.New("server: cluster store is required")
	}
	if deps.Retrieval == nil || deps.Speech == nil {
		return nil, errors.New("server: both tasks are required")
	}
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}

	ctx, cancel := context.WithCancel(context.Background())
	s := &Server{
		deps:       deps,
		logger:     logger,
		runs:       NewRunManager(),
		authToken:  authToken,
		baseCtx:    ctx,
		cancelRuns: cancel,
	}

	mux := http.NewServeMux()
	s.registerHTTPHandlers(mux)

	// Recovery -> Logging -> Auth -> Mux. Recovery must be outer-most.
	var handler http.Handler = mux
	handler = s.authMiddleware(handler)
	handler = s.LoggingMiddleware(handler)
	handler = s.RecoveryMiddleware(handler)

	rootMux := http.NewServeMux()
	rootMux.HandleFunc("GET /healthz", s.handleHealthz)
	rootMux.Handle("GET /metrics", promhttp.Handler())
	rootMux.Handle("/", handler)

	s.handler = rootMux
	s.httpServer = &http.Server{
		Addr:              addr,
		Handler:           rootMux,
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s, nil
}

// Handler returns the root handler, for tests and embedding.
func (s *Server) Handler() http.Handler { return s.handler }

// Run serves until Shutdown is called.
func (s *Server) Run() error {
	s.logger.Info("HTTP server listening", "addr", s.httpServer.Addr)
	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("HTTP server startup failed: %w", err)
	}
	return nil
}

// Shutdown stops accepting requests and cancels asynchronous runs.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("Starting graceful shutdown of HTTP server")
	err := s.httpServer.Shutdown(ctx)
	s.cancelRuns()
	return err
}
