package middleware

import (
	"context"
	"net/http"
	"time"
)

// Deadline bounds each request's context. Handlers that wait on
// dependencies, such as the readiness probe, stop when it expires.
func Deadline(d time.Duration) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx, cancel := context.WithTimeout(r.Context(), d)
			defer cancel()
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
