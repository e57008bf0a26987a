// Package handlers provides HTTP handlers for K-Tunes. This file defines the
// Prometheus metrics exported by the server and the middleware that records
// request counts and latencies.
package handlers

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	httpRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "ktunes",
		Name:      "http_requests_total",
		Help:      "HTTP requests processed, partitioned by path and status.",
	}, []string{"path", "status"})

	httpDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "ktunes",
		Name:      "http_request_duration_seconds",
		Help:      "HTTP request latency.",
	}, []string{"path"})

	playsRecorded = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "ktunes",
		Name:      "plays_recorded_total",
		Help:      "Play events accepted by the plays endpoint.",
	})
)

// statusRecorder captures the status code written by the wrapped handler.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (sr *statusRecorder) WriteHeader(code int) {
	sr.status = code
	sr.ResponseWriter.WriteHeader(code)
}

// Metrics wraps a handler and records request counts and latencies. The
// metric path label is the registered route pattern, not the raw URL, to keep
// cardinality bounded.
func Metrics(pattern string, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		sr := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(sr, r)
		httpRequests.WithLabelValues(pattern, strconv.Itoa(sr.status)).Inc()
		httpDuration.WithLabelValues(pattern).Observe(time.Since(start).Seconds())
	})
}
