package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

type HTTPRecorder interface {
	RecordHTTPRequest(method string, path string, statusCode int, duration time.Duration)
}

type promHTTPRecorder struct {
	httpRequestsTotal          *prometheus.CounterVec
	httpRequestDurationSeconds *prometheus.HistogramVec
}

func NewPromHTTPRecorder(registry *prometheus.Registry, ns string) HTTPRecorder {
	factory := With(registry)
	return &promHTTPRecorder{
		httpRequestsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: ns,
			Name:      "http_requests_total",
			Help:      "Total HTTP requests served",
		}, []string{"method", "path", "status"}),
		httpRequestDurationSeconds: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: ns,
			Name:      "http_request_duration_seconds",
			Buckets:   []float64{.005, .01, .05, .1, .5, 1, 5, 30, 120},
			Help:      "Histogram of HTTP request durations",
		}, []string{"method", "path"}),
	}
}

func (p *promHTTPRecorder) RecordHTTPRequest(method string, path string, statusCode int, duration time.Duration) {
	p.httpRequestsTotal.WithLabelValues(method, path, strconv.Itoa(statusCode)).Inc()
	p.httpRequestDurationSeconds.WithLabelValues(method, path).Observe(duration.Seconds())
}

type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(status int) {
	w.status = status
	w.ResponseWriter.WriteHeader(status)
}

// NewHTTPRecordingMiddleware wraps a handler and records request outcomes
// into the supplied recorder.
func NewHTTPRecordingMiddleware(rec HTTPRecorder, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		sw := &statusWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(sw, r)
		rec.RecordHTTPRequest(r.Method, r.URL.Path, sw.status, time.Since(start))
	})
}
