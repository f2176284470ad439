package middlewares

import "net/http"

// ContentSecurityPolicy allows scripts from the jQuery and jsDelivr CDNs used
// by the catalog pages.
const ContentSecurityPolicy = "default-src 'self'; script-src 'self' code.jquery.com cdn.jsdelivr.net"

// SecurityHeaders sets the helmet-style response headers. strict adds the
// cross-origin isolation trio, which breaks embeds that are not compliant.
func SecurityHeaders(strict bool) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			h := w.Header()
			h.Set("X-DNS-Prefetch-Control", "off")
			h.Set("X-Frame-Options", "DENY")
			h.Set("X-XSS-Protection", "0")
			h.Set("X-Content-Type-Options", "nosniff")
			h.Set("Referrer-Policy", "no-referrer")
			h.Set("Cache-Control", "no-store")
			h.Set("Content-Security-Policy", ContentSecurityPolicy)

			if r.TLS != nil {
				h.Set("Strict-Transport-Security", "max-age=63072000; includeSubDomains")
			}
			if strict {
				h.Set("Cross-Origin-Opener-Policy", "same-origin")
				h.Set("Cross-Origin-Embedder-Policy", "require-corp")
				h.Set("Cross-Origin-Resource-Policy", "same-origin")
			}
			h.Del("Server")

			next.ServeHTTP(w, r)
		})
	}
}
