package middlewares

import (
	"log"
	"net/http"
	"slices"
)

// DefaultOrigins is used when CORS_ORIGINS is unset.
var DefaultOrigins = []string{
	"http://localhost:3000",
	"http://127.0.0.1:3000",
}

// Cors lets requests through from the allowed origins only. Requests without
// an Origin header (curl, same-origin forms) are not CORS and pass untouched.
func Cors(origins []string) func(http.Handler) http.Handler {
	if len(origins) == 0 {
		origins = DefaultOrigins
	}
	allowed := func(o string) bool { return slices.Contains(origins, o) || slices.Contains(origins, "*") }

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			origin := r.Header.Get("Origin")
			if origin == "" {
				next.ServeHTTP(w, r)
				return
			}
			if !allowed(origin) {
				log.Printf("[CORS] Blocked request from origin: %s on %s %s\n",
					origin, r.Method, r.URL.Path)
				http.Error(w, "Origin not allowed", http.StatusForbidden)
				return
			}

			h := w.Header()
			h.Set("Access-Control-Allow-Origin", origin)
			h.Add("Vary", "Origin")
			h.Set("Access-Control-Allow-Headers", "Content-Type, X-Request-ID")
			h.Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
			h.Set("Access-Control-Max-Age", "3600")
			h.Set("Access-Control-Expose-Headers",
				"Location, X-Request-ID, X-RateLimit-Policy, X-RateLimit-Limit, X-RateLimit-Remaining, Retry-After, X-Response-Time")

			if r.Method == http.MethodOptions {
				h.Add("Vary", "Access-Control-Request-Method")
				h.Add("Vary", "Access-Control-Request-Headers")
				w.WriteHeader(http.StatusNoContent)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
