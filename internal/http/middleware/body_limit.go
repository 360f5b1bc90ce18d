package middleware

import "net/http"

// MaxBodyBytes caps every request body before any downstream reader touches
// it, so buffering middleware (signature verification, idempotency capture)
// is bounded by the same limit as the handlers.
func MaxBodyBytes(limit int64) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Body != nil {
				r.Body = http.MaxBytesReader(w, r.Body, limit)
			}
			next.ServeHTTP(w, r)
		})
	}
}
