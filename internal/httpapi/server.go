// Package httpapi exposes a runtime over HTTP.
package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/cors"

	"github.com/randalmurphal/agentrouter/pkg/agentrouter"
	"github.com/randalmurphal/agentrouter/pkg/agentrouter/checkpoint"
	"github.com/randalmurphal/agentrouter/pkg/agentrouter/runtime"
)

// maxBodyBytes caps request bodies.
const maxBodyBytes = 1 << 20

// Server serves the workflow API.
type Server struct {
	router  chi.Router
	runtime *runtime.Runtime
	logger  *slog.Logger
	metrics prometheus.Gatherer
	timeout time.Duration
}

// Option configures a Server.
type Option func(*Server)

// WithLogger sets the request logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) { s.logger = logger }
}

// WithMetrics serves g on GET /metrics.
func WithMetrics(g prometheus.Gatherer) Option {
	return func(s *Server) { s.metrics = g }
}

// WithTimeout bounds each request, runs included. Default 5m.
func WithTimeout(d time.Duration) Option {
	return func(s *Server) { s.timeout = d }
}

// New creates a Server for rt.
func New(rt *runtime.Runtime, opts ...Option) *Server {
	s := &Server{
		runtime: rt,
		logger:  slog.Default(),
		timeout: 5 * time.Minute,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.router = s.routes()
	return s
}

// Handler returns the HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) routes() chi.Router {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(s.timeout))
	r.Use(s.logRequests)
	r.Use(cors.New(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Content-Type", "Authorization"},
		MaxAge:         300,
	}).Handler)

	r.Get("/healthz", s.handleHealth)
	if s.metrics != nil {
		r.Handle("/metrics", promhttp.HandlerFor(s.metrics, promhttp.HandlerOpts{}))
	}

	r.Route("/v1", func(r chi.Router) {
		r.Get("/workflows", s.handleListWorkflows)
		r.Post("/workflows/{name}/runs", s.handleStart)
		r.Get("/runs/{id}", s.handleStatus)
		r.Post("/runs/{id}/resume", s.handleResume)
	})
	return r
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		defer func() {
			s.logger.Info("http request",
				slog.String("method", r.Method),
				slog.String("path", r.URL.Path),
				slog.Int("status", ww.Status()),
				slog.Duration("duration", time.Since(start)),
				slog.String("request_id", middleware.GetReqID(r.Context())),
			)
		}()
		next.ServeHTTP(ww, r)
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleListWorkflows(w http.ResponseWriter, _ *http.Request) {
	respondJSON(w, http.StatusOK, map[string][]string{"workflows": s.runtime.Workflows()})
}

type startRequest struct {
	WorkflowID string         `json:"workflow_id"`
	Message    string         `json:"message"`
	Fields     map[string]any `json:"fields"`
}

func (s *Server) handleStart(w http.ResponseWriter, r *http.Request) {
	var req startRequest
	if err := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes)).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}

	snap, err := s.runtime.Start(r.Context(), chi.URLParam(r, "name"), runtime.Seed{
		Content:    req.Message,
		Fields:     req.Fields,
		WorkflowID: req.WorkflowID,
	})
	if err != nil {
		s.respondRunError(w, snap, err)
		return
	}
	respondJSON(w, http.StatusCreated, snap)
}

func (s *Server) handleResume(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
	if err != nil {
		respondError(w, http.StatusBadRequest, "read body: "+err.Error())
		return
	}
	if !json.Valid(body) {
		respondError(w, http.StatusBadRequest, "resume payload must be JSON")
		return
	}

	snap, err := s.runtime.Resume(r.Context(), chi.URLParam(r, "id"), json.RawMessage(body))
	if err != nil {
		s.respondRunError(w, snap, err)
		return
	}
	respondJSON(w, http.StatusOK, snap)
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	snap, err := s.runtime.Status(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.respondRunError(w, snap, err)
		return
	}
	respondJSON(w, http.StatusOK, snap)
}

// respondRunError maps request errors to 4xx. A run that failed after
// starting still reports its snapshot with 200.
func (s *Server) respondRunError(w http.ResponseWriter, snap runtime.Snapshot, err error) {
	switch {
	case errors.Is(err, runtime.ErrWorkflowNotFound), errors.Is(err, checkpoint.ErrNotFound):
		respondError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, runtime.ErrNotAwaitingInput), errors.Is(err, runtime.ErrRunExists):
		respondError(w, http.StatusConflict, err.Error())
	case errors.Is(err, agentrouter.ErrEmptySeed):
		respondError(w, http.StatusBadRequest, err.Error())
	case snap.Status == agentrouter.StatusError:
		respondJSON(w, http.StatusOK, snap)
	default:
		s.logger.Error("request failed", slog.Any("error", err))
		respondError(w, http.StatusInternalServerError, err.Error())
	}
}

func respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		slog.Error("failed to encode response", "error", err)
	}
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{"error": message})
}

// ListenAndServe serves on addr until ctx is done, then shuts down
// gracefully.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("starting API server", slog.String("addr", addr))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return err
		}
		if err := <-errCh; !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	}
}
