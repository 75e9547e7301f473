// Package middleware provides the HTTP middleware chain wrapped around the
// front door's router.
package middleware

import (
	"encoding/json"
	"net/http"

	"geo-lb/message"
)

type Middleware func(next http.Handler) http.Handler

// Chain composes middlewares so the first one is outermost:
//
//	Chain(A, B, C)(h) → A(B(C(h)))
func Chain(middlewares ...Middleware) Middleware {
	return func(next http.Handler) http.Handler {
		for i := len(middlewares) - 1; i >= 0; i-- {
			next = middlewares[i](next)
		}
		return next
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(message.ErrorResponse{Error: msg})
}
