package middlewares_test

import (
	"crypto/tls"
	"net/http"
	"net/http/httptest"
	"testing"

	mw "github.com/5w1tchy/local-library/internal/api/middlewares"
)

func TestSecurityHeaders(t *testing.T) {
	wrapped := mw.SecurityHeaders(false)(http.HandlerFunc(ok))

	rec := httptest.NewRecorder()
	wrapped.ServeHTTP(rec, httptest.NewRequest("GET", "/catalog", nil))

	tests := []struct {
		header   string
		expected string
	}{
		{"X-Content-Type-Options", "nosniff"},
		{"X-Frame-Options", "DENY"},
		{"Referrer-Policy", "no-referrer"},
		{"Cache-Control", "no-store"},
		{"Content-Security-Policy", "default-src 'self'; script-src 'self' code.jquery.com cdn.jsdelivr.net"},
		{"Strict-Transport-Security", ""},
		{"Cross-Origin-Opener-Policy", ""},
	}
	for _, tt := range tests {
		if got := rec.Header().Get(tt.header); got != tt.expected {
			t.Errorf("Header %s: expected %q, got %q", tt.header, tt.expected, got)
		}
	}
}

func TestSecurityHeaders_StrictOverTLS(t *testing.T) {
	wrapped := mw.SecurityHeaders(true)(http.HandlerFunc(ok))

	req := httptest.NewRequest("GET", "https://library.example/catalog", nil)
	req.TLS = &tls.ConnectionState{}
	rec := httptest.NewRecorder()
	wrapped.ServeHTTP(rec, req)

	if rec.Header().Get("Strict-Transport-Security") == "" {
		t.Error("Expected HSTS over TLS")
	}
	if rec.Header().Get("Cross-Origin-Opener-Policy") != "same-origin" {
		t.Error("Expected COOP in strict mode")
	}
}
