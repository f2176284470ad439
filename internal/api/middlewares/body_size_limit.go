package middlewares

import "net/http"

// DefaultMaxBody caps create/update payloads; catalog forms are small.
const DefaultMaxBody int64 = 1 << 20

func BodySizeLimit(limit int64) func(http.Handler) http.Handler {
	if limit <= 0 {
		limit = DefaultMaxBody
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			switch r.Method {
			case http.MethodPost, http.MethodPut, http.MethodPatch:
				r.Body = http.MaxBytesReader(w, r.Body, limit)
			}
			next.ServeHTTP(w, r)
		})
	}
}
