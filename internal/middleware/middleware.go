// Package middleware provides chi middleware shared by HTTP surfaces.
package middleware

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/jmcadams/pulse/internal/metrics"
)

// Metrics records request counts and latencies against rec. Routes are
// labeled by the matched chi pattern so path parameters do not explode
// series cardinality.
func Metrics(rec *metrics.HTTPRecorder) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := &responseWriter{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(ww, r)

			routePattern := chi.RouteContext(r.Context()).RoutePattern()
			if routePattern == "" {
				routePattern = "unknown"
			}

			rec.ObserveRequest(r.Method, routePattern, ww.status, time.Since(start))
		})
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
