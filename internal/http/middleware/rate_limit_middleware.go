package middleware

import (
	"net/http"
	"time"

	"github.com/go-chi/httprate"

	"github.com/sandeepkv93/learning-portal-client/internal/http/response"
)

// RateLimit caps requests per client IP over window. A non-positive limit disables limiting.
func RateLimit(limit int, window time.Duration) func(http.Handler) http.Handler {
	if limit <= 0 {
		return func(next http.Handler) http.Handler { return next }
	}
	if window <= 0 {
		window = time.Minute
	}
	return httprate.Limit(limit, window,
		httprate.WithKeyFuncs(httprate.KeyByIP),
		httprate.WithLimitHandler(func(w http.ResponseWriter, r *http.Request) {
			response.Error(w, r, http.StatusTooManyRequests, "throttled", "Request was throttled.", nil)
		}),
	)
}
