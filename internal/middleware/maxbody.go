package middleware

import "net/http"

// MaxBodySize caps the inbound request body; oversized bodies fail the
// handler's decode with a 400 rather than exhausting memory.
func MaxBodySize(n int64) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			r.Body = http.MaxBytesReader(w, r.Body, n)
			next.ServeHTTP(w, r)
		})
	}
}
