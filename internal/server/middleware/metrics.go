package middleware

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/npmwatch/npmwatch/internal/observability"
)

// HTTP metric names.
const (
	RequestsTotal        = "http_requests_total"
	RequestDuration      = "http_request_duration_ms"
	RequestSizeBytes     = "http_request_size_bytes"
	ResponseSizeBytes    = "http_response_size_bytes"
	ErrorsTotal          = "http_errors_total"
	unknownEndpointLabel = "/unknown"
)

// statusRecorder captures the status code and body size written by a handler.
type statusRecorder struct {
	http.ResponseWriter
	status  int
	written int64
}

func (rw *statusRecorder) WriteHeader(code int) {
	rw.status = code
	rw.ResponseWriter.WriteHeader(code)
}

func (rw *statusRecorder) Write(b []byte) (int, error) {
	n, err := rw.ResponseWriter.Write(b)
	rw.written += int64(n)
	return n, err
}

// getEndpointPattern returns a low-cardinality endpoint label. The chi route
// pattern is used when the request was routed by chi.
func getEndpointPattern(r *http.Request) string {
	if pattern := chi.RouteContext(r.Context()).RoutePattern(); pattern != "" {
		return pattern
	}

	path := r.URL.Path
	switch {
	case path == "/health" || strings.HasPrefix(path, "/health/"):
		return "/health/*"
	case path == "/v1/watch":
		return "/v1/watch"
	case path == "/version", path == "/metrics", path == "/":
		return path
	default:
		return unknownEndpointLabel
	}
}

// RequestMetrics emits request counters, latency and size metrics, then logs
// the completed request.
func RequestMetrics(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		telemetry := observability.TelemetrySystem
		if telemetry == nil {
			next.ServeHTTP(w, r)
			return
		}

		start := time.Now()
		recorder := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		var requestSize int64
		if size, err := strconv.ParseInt(r.Header.Get("Content-Length"), 10, 64); err == nil {
			requestSize = size
		}

		next.ServeHTTP(recorder, r)

		duration := time.Since(start)
		endpoint := getEndpointPattern(r)
		status := strconv.Itoa(recorder.status)
		labels := map[string]string{"method": r.Method, "endpoint": endpoint, "status": status}
		sizeLabels := map[string]string{"method": r.Method, "endpoint": endpoint}

		_ = telemetry.Counter(RequestsTotal, 1, labels)
		_ = telemetry.Histogram(RequestDuration, duration, labels)
		_ = telemetry.Gauge(RequestSizeBytes, float64(requestSize), sizeLabels)
		_ = telemetry.Gauge(ResponseSizeBytes, float64(recorder.written), sizeLabels)

		if recorder.status >= http.StatusBadRequest {
			errorType := "client_error"
			if recorder.status >= http.StatusInternalServerError {
				errorType = "server_error"
			}
			_ = telemetry.Counter(ErrorsTotal, 1, map[string]string{
				"method":     r.Method,
				"endpoint":   endpoint,
				"status":     status,
				"error_type": errorType,
			})
		}

		if observability.ServerLogger != nil {
			observability.ServerLogger.Info("HTTP request completed",
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.String("endpoint", endpoint),
				zap.Int("status", recorder.status),
				zap.Duration("duration", duration),
				zap.Int64("request_size", requestSize),
				zap.Int64("response_size", recorder.written),
				zap.String("requestID", GetRequestID(r.Context())),
			)
		}
	})
}
