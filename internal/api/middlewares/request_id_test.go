package middlewares_test

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"

	mw "github.com/5w1tchy/local-library/internal/api/middlewares"
)

func ok(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusOK) }

func TestRequestID_GeneratesID(t *testing.T) {
	var seen string
	wrapped := mw.RequestID(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = mw.GetRequestID(r)
	}))

	rec := httptest.NewRecorder()
	wrapped.ServeHTTP(rec, httptest.NewRequest("GET", "/catalog", nil))

	rid := rec.Header().Get("X-Request-ID")
	if rid == "" || rid != seen {
		t.Fatalf("header %q, context %q", rid, seen)
	}
	if _, err := uuid.Parse(rid); err != nil {
		t.Errorf("generated id is not a uuid: %q", rid)
	}
}

func TestRequestID_UsesProvidedID(t *testing.T) {
	wrapped := mw.RequestID(http.HandlerFunc(ok))

	req := httptest.NewRequest("GET", "/catalog", nil)
	req.Header.Set("X-Request-ID", "custom-request-id")
	rec := httptest.NewRecorder()
	wrapped.ServeHTTP(rec, req)

	if rec.Header().Get("X-Request-ID") != "custom-request-id" {
		t.Errorf("Expected custom-request-id, got %s", rec.Header().Get("X-Request-ID"))
	}
}

func TestRequestID_RejectsInvalidID(t *testing.T) {
	wrapped := mw.RequestID(http.HandlerFunc(ok))

	req := httptest.NewRequest("GET", "/catalog", nil)
	req.Header.Set("X-Request-ID", "invalid@#$%id")
	rec := httptest.NewRecorder()
	wrapped.ServeHTTP(rec, req)

	rid := rec.Header().Get("X-Request-ID")
	if rid == "invalid@#$%id" || rid == "" {
		t.Errorf("Expected a fresh id, got %q", rid)
	}
}
