package middleware

import (
	"net/http"
	"time"
)

// TimeOutMiddleware answers 503 when the wrapped handler has not finished
// within timeout. The handler's context is cancelled at the deadline.
func TimeOutMiddleware(timeout time.Duration) Middleware {
	return func(next http.Handler) http.Handler {
		return http.TimeoutHandler(next, timeout, `{"error":"request timed out"}`)
	}
}
