package middlewares

import (
	"context"
	"net/http"
	"regexp"

	"github.com/google/uuid"
)

type ctxKey int

const ctxKeyRequestID ctxKey = iota

var ridRe = regexp.MustCompile(`^[A-Za-z0-9_.\-]{1,64}$`)

// RequestID accepts a well-formed inbound X-Request-ID or mints a UUIDv7,
// which sorts by creation time in logs.
func RequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rid := r.Header.Get("X-Request-ID")
		if !ridRe.MatchString(rid) {
			rid = genRID()
		}
		r = r.WithContext(context.WithValue(r.Context(), ctxKeyRequestID, rid))
		r.Header.Set("X-Request-ID", rid)
		w.Header().Set("X-Request-ID", rid)

		next.ServeHTTP(w, r)
	})
}

// GetRequestID extracts the value previously set by RequestID middleware.
func GetRequestID(r *http.Request) string {
	if v, _ := r.Context().Value(ctxKeyRequestID).(string); v != "" {
		return v
	}
	return r.Header.Get("X-Request-ID")
}

func genRID() string {
	id, err := uuid.NewV7()
	if err != nil {
		return uuid.NewString()
	}
	return id.String()
}
