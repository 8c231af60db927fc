package middlewares

import (
	"net/http"
	"strconv"
	"time"

	"github.com/camly-social/camly-idp/internal/metrics"
)

// WithMetrics records per-route counts, latency and in-flight gauge.
// The route label is the fixed pattern, not the raw path, to keep
// cardinality bounded.
func WithMetrics(route string) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			sw := &statusWriter{ResponseWriter: w, status: http.StatusOK}

			metrics.HTTPInflightRequests.Inc()
			next.ServeHTTP(sw, r)
			metrics.HTTPInflightRequests.Dec()

			status := strconv.Itoa(sw.status)
			metrics.HTTPRequestsTotal.
				WithLabelValues(route, r.Method, status).
				Inc()
			metrics.HTTPRequestDuration.
				WithLabelValues(route, r.Method, status).
				Observe(time.Since(start).Seconds())
		})
	}
}
