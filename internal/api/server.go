package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/JakeFAU/asyncspider/internal/crawler"
	"github.com/JakeFAU/asyncspider/internal/metrics"
)

const (
	defaultRequestTimeout = 30 * time.Second
	maxSeedBody           = 1 << 20
)

// Frontier is the subset of the frontier client the API needs.
type Frontier interface {
	Ping(ctx context.Context) error
	Stats(ctx context.Context) (crawler.FrontierStats, error)
	Seed(ctx context.Context, raw string) (bool, error)
}

// Config tunes the HTTP surface.
type Config struct {
	RequestTimeout time.Duration
}

// Server wires HTTP handlers to the frontier.
type Server struct {
	router   chi.Router
	frontier Frontier
	logger   *zap.Logger
}

// NewServer constructs a Server with middleware and routes.
func NewServer(frontier Frontier, cfg Config, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = defaultRequestTimeout
	}
	metrics.Init()
	s := &Server{
		frontier: frontier,
		logger:   logger,
	}
	r := chi.NewRouter()
	r.Use(requestIDMiddleware)
	r.Use(loggingMiddleware(logger))
	r.Use(recoverMiddleware(logger))
	r.Use(metrics.Middleware)
	r.Use(timeoutMiddleware(cfg.RequestTimeout))

	r.Get("/healthz", s.healthz)
	r.Get("/readyz", s.readyz)
	r.Method(http.MethodGet, "/metrics", metrics.Handler())

	r.Route("/v1/frontier", func(r chi.Router) {
		r.Get("/stats", s.stats)
		r.Post("/seed", s.seed)
	})

	s.router = r
	return s
}

// Handler returns the Router for use with http.Server.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) readyz(w http.ResponseWriter, r *http.Request) {
	if err := s.frontier.Ping(r.Context()); err != nil {
		s.logger.Warn("readiness check failed", zap.Error(err))
		writeError(w, http.StatusServiceUnavailable, "frontier store unreachable")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

func (s *Server) stats(w http.ResponseWriter, r *http.Request) {
	stats, err := s.frontier.Stats(r.Context())
	if err != nil {
		s.logger.Error("frontier stats failed", zap.Error(err))
		writeError(w, storeErrorStatus(err), "frontier stats unavailable")
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

type seedRequest struct {
	URLs []string `json:"urls"`
}

type seedResponse struct {
	Seeded  []string `json:"seeded"`
	Skipped []string `json:"skipped"`
}

func (s *Server) seed(w http.ResponseWriter, r *http.Request) {
	var req seedRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxSeedBody)).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	if len(req.URLs) == 0 {
		writeError(w, http.StatusBadRequest, "urls required")
		return
	}
	resp := seedResponse{Seeded: []string{}, Skipped: []string{}}
	for _, raw := range req.URLs {
		added, err := s.frontier.Seed(r.Context(), raw)
		if err != nil {
			s.logger.Error("seed failed", zap.String("url", raw), zap.Error(err))
			writeError(w, storeErrorStatus(err), fmt.Sprintf("seed %q failed", raw))
			return
		}
		if added {
			resp.Seeded = append(resp.Seeded, raw)
		} else {
			resp.Skipped = append(resp.Skipped, raw)
		}
	}
	writeJSON(w, http.StatusOK, resp)
}

func storeErrorStatus(err error) int {
	if errors.Is(err, context.DeadlineExceeded) {
		return http.StatusGatewayTimeout
	}
	return http.StatusBadGateway
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		zap.L().Error("write JSON failed", zap.Error(err))
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
