// Package status exposes the scan engine's operational endpoints:
// health, Prometheus metrics, and a live progress snapshot.
package status

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

// Snapshot is the live progress view served at /status.
type Snapshot struct {
	ScanID    string    `json:"scan_id"`
	RootURL   string    `json:"root_url"`
	Started   time.Time `json:"started_at"`
	PagesDone int       `json:"pages_done"`
	Running   bool      `json:"running"`
}

// Server serves the status endpoints on a dedicated listener.
type Server struct {
	srv    *http.Server
	logger *zap.Logger

	mu       sync.RWMutex
	snapshot Snapshot
}

// NewServer builds a status server bound to addr.
func NewServer(addr string, logger *zap.Logger) *Server {
	s := &Server{logger: logger}

	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Get("/healthz", s.handleHealth)
	r.Get("/status", s.handleStatus)
	r.Handle("/metrics", promhttp.Handler())

	s.srv = &http.Server{
		Addr:              addr,
		Handler:           r,
		ReadHeaderTimeout: 5 * time.Second,
	}
	return s
}

// Start begins serving in a background goroutine.
func (s *Server) Start() {
	go func() {
		if err := s.srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			s.logger.Error("status server stopped", zap.Error(err))
		}
	}()
}

// Shutdown gracefully stops the listener.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.srv.Shutdown(ctx)
}

// Update replaces the progress snapshot.
func (s *Server) Update(snapshot Snapshot) {
	s.mu.Lock()
	s.snapshot = snapshot
	s.mu.Unlock()
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func (s *Server) handleStatus(w http.ResponseWriter, _ *http.Request) {
	s.mu.RLock()
	snapshot := s.snapshot
	s.mu.RUnlock()

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(snapshot); err != nil {
		s.logger.Debug("encode status snapshot", zap.Error(err))
	}
}
