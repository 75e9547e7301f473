package middleware

import (
	"net/http"

	"golang.org/x/time/rate"
)

// RateLimitMiddleware admits at most r requests per second with bursts of up
// to burst (token bucket). Rejected requests get 429.
func RateLimitMiddleware(r float64, burst int) Middleware {
	limiter := rate.NewLimiter(rate.Limit(r), burst)
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			if !limiter.Allow() {
				writeError(w, http.StatusTooManyRequests, "rate limit exceeded")
				return
			}
			next.ServeHTTP(w, req)
		})
	}
}
