// Package server implements the HTTP API in front of the retrieval pipeline:
// PDF upload, record ingestion, search, question answering, store
// administration, and the health, readiness and metrics endpoints.
// The server is started by the `docqa serve` CLI command.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/54b3r/docqa-go/internal/logging"
	"github.com/54b3r/docqa-go/internal/pipeline"
	"github.com/54b3r/docqa-go/internal/rag"
)

// New constructs a Server around the pipeline p.
func New(p *pipeline.Pipeline, cfg *Config) (*Server, error) {
	if p == nil {
		return nil, fmt.Errorf("server: pipeline must not be nil")
	}
	return newServer(p, cfg), nil
}

func newServer(eng engine, cfg *Config) *Server {
	if cfg == nil {
		cfg = &Config{}
	}
	if cfg.Host == "" {
		cfg.Host = "127.0.0.1"
	}
	if cfg.Port == 0 {
		cfg.Port = 8000
	}
	if cfg.ReadTimeout == 0 {
		cfg.ReadTimeout = 2 * time.Minute
	}
	if cfg.WriteTimeout == 0 {
		// Uploads are embedded before the response is written.
		cfg.WriteTimeout = 10 * time.Minute
	}
	if cfg.ShutdownTimeout == 0 {
		cfg.ShutdownTimeout = 10 * time.Second
	}
	if cfg.Logger == nil {
		cfg.Logger = logging.New()
	}
	if cfg.RateLimit == 0 {
		cfg.RateLimit = defaultRateLimit
	}
	if cfg.RateBurst == 0 {
		cfg.RateBurst = defaultRateBurst
	}
	if cfg.MaxUploadBytes == 0 {
		cfg.MaxUploadBytes = defaultMaxUploadBytes
	}
	if cfg.MetricsRegistry == nil {
		cfg.MetricsRegistry = prometheus.DefaultRegisterer
	}
	if cfg.MetricsGatherer == nil {
		cfg.MetricsGatherer = prometheus.DefaultGatherer
	}

	s := &Server{
		engine:  eng,
		cfg:     cfg,
		log:     cfg.Logger,
		pingers: cfg.Pingers,
		metrics: newServerMetrics(cfg.MetricsRegistry, eng.Stats),
	}

	rl, stopRL := newRateLimiter(cfg.RateLimit, cfg.RateBurst, cfg.Logger)
	s.stopRL = stopRL

	if cfg.APIKey == "" {
		s.log.Warn("server: API key not set, /api routes are unauthenticated")
	}

	s.httpServer = &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Handler:      s.routes(rl),
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	}
	return s
}

// routes builds the handler tree. Health, readiness and metrics are neither
// authenticated nor rate limited.
func (s *Server) routes(rl *rateLimiter) http.Handler {
	mux := http.NewServeMux()

	protect := func(h http.Handler) http.Handler { return authMiddleware(s.cfg.APIKey, h) }
	limit := func(h http.Handler) http.Handler { return protect(rl.middleware(h)) }

	mux.Handle("POST /api/upload", limit(s.instrument("upload", s.handleUpload)))
	mux.Handle("POST /api/ingest", limit(s.instrument("ingest", s.handleIngest)))
	mux.Handle("POST /api/search", limit(s.instrument("search", s.handleSearch)))
	mux.Handle("POST /api/query", limit(s.instrument("query", s.handleQuery)))
	mux.Handle("GET /api/stats", protect(s.instrument("stats", s.handleStats)))
	mux.Handle("POST /api/reset", protect(s.instrument("reset", s.handleReset)))
	mux.Handle("GET /api/documents", protect(s.instrument("documents", s.handleDocuments)))

	mux.Handle("GET /api/health", s.instrument("health", s.handleHealth))
	mux.Handle("GET /api/ready", s.instrument("ready", s.handleReady))
	mux.Handle("GET /metrics", promhttp.HandlerFor(s.cfg.MetricsGatherer, promhttp.HandlerOpts{}))

	return requestLogger(s.log, mux)
}

// Handler returns the root handler, for embedding in tests or another mux.
func (s *Server) Handler() http.Handler { return s.httpServer.Handler }

// Start begins listening and serving HTTP requests. It blocks until the
// context is cancelled, then performs a graceful shutdown.
func (s *Server) Start(ctx context.Context) error {
	defer s.stopRL()

	errCh := make(chan error, 1)

	go func() {
		s.log.Info("server: listening", slog.String("addr", "http://"+s.httpServer.Addr))
		if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("server: listen error: %w", err)
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), s.cfg.ShutdownTimeout)
		defer cancel()
		if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("server: graceful shutdown failed: %w", err)
		}
		s.log.Info("server: stopped")
		return nil
	}
}

// handleHealth handles GET /api/health for liveness checks.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(r.Context(), w, http.StatusOK, map[string]string{"status": "ok"})
}

// writeJSON encodes v with the given status.
func writeJSON(ctx context.Context, w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logging.FromContext(ctx).Error("server: encode response", slog.Any("error", err))
	}
}

// writeError maps a pipeline error onto its status code and error body.
// Unknown errors are logged and reported without detail.
func writeError(ctx context.Context, w http.ResponseWriter, err error) {
	log := logging.FromContext(ctx)

	var verr *rag.ValidationError
	switch {
	case errors.As(err, &verr):
		writeJSON(ctx, w, http.StatusBadRequest, errorResponse{Error: "invalid_request", Detail: verr.Error()})
	case errors.Is(err, rag.ErrEmptyIndex):
		writeJSON(ctx, w, http.StatusConflict, errorResponse{Error: "empty_index", Detail: "No documents have been ingested yet."})
	case rag.IsCollaborator(err):
		log.Warn("server: collaborator failure", slog.Any("error", err))
		writeJSON(ctx, w, http.StatusBadGateway, errorResponse{Error: "upstream_failure", Detail: err.Error()})
	case errors.Is(err, context.DeadlineExceeded):
		writeJSON(ctx, w, http.StatusGatewayTimeout, errorResponse{Error: "timeout"})
	default:
		log.Error("server: request failed", slog.Any("error", err))
		writeJSON(ctx, w, http.StatusInternalServerError, errorResponse{Error: "internal"})
	}
}

// badRequest writes a 400 with the given detail.
func badRequest(ctx context.Context, w http.ResponseWriter, detail string) {
	writeJSON(ctx, w, http.StatusBadRequest, errorResponse{Error: "invalid_request", Detail: detail})
}
