package metrics

import (
	"fmt"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// HTTPRecorder owns the API's request collectors.
type HTTPRecorder struct {
	requests *prometheus.CounterVec
	duration *prometheus.HistogramVec
}

// NewHTTPRecorder registers request collectors against reg. A nil reg falls
// back to the default registerer.
func NewHTTPRecorder(reg prometheus.Registerer) (*HTTPRecorder, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	r := &HTTPRecorder{
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "pulse_http_requests_total",
			Help: "HTTP requests served, labeled by method, route, and code.",
		}, []string{"method", "route", "code"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "pulse_http_request_duration_seconds",
			Help:    "HTTP request latencies, labeled by method and route.",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "route"}),
	}
	for _, collector := range []prometheus.Collector{r.requests, r.duration} {
		if err := reg.Register(collector); err != nil {
			return nil, fmt.Errorf("register http collector: %w", err)
		}
	}
	return r, nil
}

// ObserveRequest records one served request. Route should be the matched
// route pattern, not the raw path, to keep cardinality bounded.
func (r *HTTPRecorder) ObserveRequest(method, route string, status int, elapsed time.Duration) {
	r.requests.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	r.duration.WithLabelValues(method, route).Observe(elapsed.Seconds())
}
