package server

import (
	"context"
	"net/http"
	"time"
)

// TimeoutMiddleware caps the request context lifetime. Handlers cooperate by
// checking the context; for chat requests the canceled context also aborts
// the in-flight agent stream.
func TimeoutMiddleware(timeout time.Duration) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx, cancel := context.WithTimeout(r.Context(), timeout)
			defer cancel()
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
