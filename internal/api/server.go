package api

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/jmcadams/pulse/internal/execution"
	"github.com/jmcadams/pulse/internal/metrics"
	"github.com/jmcadams/pulse/internal/middleware"
	"github.com/jmcadams/pulse/internal/registry"
)

const requestTimeout = 15 * time.Second

// Server wires HTTP handlers to the session registry and event bus.
type Server struct {
	router   chi.Router
	registry *registry.Registry
	bus      execution.Bus
	gatherer prometheus.Gatherer
	logger   *zap.Logger
}

// NewServer constructs a Server with middleware and routes. bus may be nil,
// in which case the event-injection endpoint reports the service as not
// accepting events. httpMetrics may be nil to skip request instrumentation.
func NewServer(reg *registry.Registry, bus execution.Bus, httpMetrics *metrics.HTTPRecorder, gatherer prometheus.Gatherer, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Server{
		registry: reg,
		bus:      bus,
		gatherer: gatherer,
		logger:   logger,
	}

	r := chi.NewRouter()
	r.Use(requestIDMiddleware)
	r.Use(s.loggingMiddleware)
	if httpMetrics != nil {
		r.Use(middleware.Metrics(httpMetrics))
	}
	r.Use(s.recoverMiddleware)
	r.Use(timeoutMiddleware(requestTimeout))

	r.Get("/healthz", s.healthz)
	r.Get("/readyz", s.readyz)
	r.Method(http.MethodGet, "/metrics", s.metricsHandler())

	r.Route("/v1", func(r chi.Router) {
		r.Route("/sessions", func(r chi.Router) {
			r.Get("/", s.listSessions)
			r.Post("/", s.createSession)
			r.Route("/{session_id}", func(r chi.Router) {
				r.Get("/", s.getSession)
				r.Delete("/", s.removeSession)
				r.Get("/history", s.getHistory)
				r.Post("/start", s.startSession)
				r.Post("/complete", s.completeSession)
				r.Post("/events", s.injectEvent)
			})
		})
	})

	s.router = r
	return s
}

// Handler returns the router for use with http.Server.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) readyz(w http.ResponseWriter, _ *http.Request) {
	if s.registry == nil {
		writeError(w, http.StatusServiceUnavailable, "registry not initialized")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

func (s *Server) metricsHandler() http.Handler {
	if s.gatherer == nil {
		return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			writeError(w, http.StatusNotFound, "metrics not configured")
		})
	}
	return promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{})
}

type requestIDKey struct{}

func requestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		reqID := uuid.NewString()
		ctx := context.WithValue(r.Context(), requestIDKey{}, reqID)
		w.Header().Set("X-Request-ID", reqID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := &responseWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(ww, r)
		s.logger.Info("request completed",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", ww.status),
			zap.Int64("duration_ms", time.Since(start).Milliseconds()),
		)
	})
}

func (s *Server) recoverMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				s.logger.Error("panic recovered", zap.Any("panic", rec))
				writeError(w, http.StatusInternalServerError, "internal server error")
			}
		}()
		next.ServeHTTP(w, r)
	})
}

func timeoutMiddleware(d time.Duration) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.TimeoutHandler(next, d, "request timed out")
	}
}

type responseWriter struct {
	http.ResponseWriter
	status int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.status = code
	rw.ResponseWriter.WriteHeader(code)
}
