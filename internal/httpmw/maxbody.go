package httpmw

import "net/http"

// MaxBody caps the request body. Handlers see *http.MaxBytesError from Read
// once the limit is crossed and decide how to answer.
func MaxBody(limit int64) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			r.Body = http.MaxBytesReader(w, r.Body, limit)
			next.ServeHTTP(w, r)
		})
	}
}
