package middleware

import (
	"net/http"
	"strconv"
	"time"

	"github.com/vidstream/backend/internal/metrics"
)

// Metrics records request duration by matched route and the number of
// requests in flight.
func Metrics(c *metrics.Collectors) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if c == nil {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			c.RequestsInFlight.Inc()
			defer c.RequestsInFlight.Dec()

			wrapped := wrap(w)
			next.ServeHTTP(wrapped, r)

			route := r.Pattern
			if route == "" {
				route = "unmatched"
			}
			c.RequestDuration.
				WithLabelValues(route, r.Method, strconv.Itoa(wrapped.Status())).
				Observe(time.Since(start).Seconds())
		})
	}
}
