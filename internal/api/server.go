// Package api serves the bridge's local status endpoints: the latest
// published state of every entity plus the stream connection health.
package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"rinconbridge/internal/entity"
	"rinconbridge/internal/stream"

	"go.uber.org/zap"
)

// Server provides HTTP endpoints for inspecting the bridge.
type Server struct {
	registry *entity.Registry
	stream   *stream.Client
	logger   *zap.Logger
	server   *http.Server
}

// NewServer creates a status server on the given port.
func NewServer(registry *entity.Registry, streamClient *stream.Client, logger *zap.Logger, port int) *Server {
	s := &Server{
		registry: registry,
		stream:   streamClient,
		logger:   logger.Named("api"),
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/api/state", s.handleGetState)
	mux.HandleFunc("/health", s.handleHealth)

	s.server = &http.Server{
		Addr:         fmt.Sprintf(":%d", port),
		Handler:      mux,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return s
}

// StreamStatus is the stream client portion of the state response.
type StreamStatus struct {
	Status         string  `json:"status"`
	BackoffSeconds float64 `json:"backoff_seconds"`
	LastEvent      string  `json:"last_event,omitempty"`
}

// StateResponse is the JSON response for the state endpoint.
type StateResponse struct {
	Stream   StreamStatus             `json:"stream"`
	Entities map[string]entity.Record `json:"entities"`
}

// handleGetState returns the stream health and all entity records as JSON.
func (s *Server) handleGetState(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	response := StateResponse{
		Stream: StreamStatus{
			Status:         string(s.stream.Status()),
			BackoffSeconds: s.stream.Backoff().Seconds(),
			LastEvent:      s.stream.LastEvent(),
		},
		Entities: s.registry.Snapshot(),
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(response); err != nil {
		s.logger.Error("Failed to encode response", zap.Error(err))
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	s.logger.Debug("State request served", zap.String("remote_addr", r.RemoteAddr))
}

// handleHealth returns a simple health check response.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(map[string]string{
		"status": "ok",
	})
}

// Start begins serving in a background goroutine.
func (s *Server) Start() error {
	s.logger.Info("Starting HTTP API server", zap.String("addr", s.server.Addr))

	go func() {
		if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			s.logger.Error("HTTP server error", zap.Error(err))
		}
	}()

	return nil
}

// Stop gracefully shuts down the HTTP server.
func (s *Server) Stop() error {
	s.logger.Info("Stopping HTTP API server")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := s.server.Shutdown(ctx); err != nil {
		return fmt.Errorf("failed to shutdown HTTP server: %w", err)
	}
	return nil
}

// Handler exposes the mux for tests.
func (s *Server) Handler() http.Handler {
	return s.server.Handler
}
