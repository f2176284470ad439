package router

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/5w1tchy/local-library/internal/api/apperr"
	"github.com/5w1tchy/local-library/internal/api/handlers/catalogapi"
	"github.com/5w1tchy/local-library/internal/api/httpx"
	mw "github.com/5w1tchy/local-library/internal/api/middlewares"
	"github.com/5w1tchy/local-library/internal/catalog"
)

type Options struct {
	CORSOrigins    []string
	MaxBodySize    int64
	StrictSecurity bool
	// RateLimit guards /catalog; nil disables limiting.
	RateLimit func(http.Handler) http.Handler
	// AccessLog enables chi's request logger.
	AccessLog bool
}

func Router(svc *catalog.Service, o Options) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RealIP)
	r.Use(mw.RequestID)
	if o.AccessLog {
		r.Use(middleware.Logger)
	}
	r.Use(mw.Recovery)
	r.Use(mw.ResponseTime)
	r.Use(mw.Cors(o.CORSOrigins))
	r.Use(mw.SecurityHeaders(o.StrictSecurity))
	r.Use(mw.BodySizeLimit(o.MaxBodySize))
	r.Use(mw.HPP(mw.DefaultHPPOptions()))
	r.Use(mw.Compression)

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		apperr.WriteStatus(w, r, http.StatusNotFound, "Not Found", "no such route")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		apperr.WriteStatus(w, r, http.StatusMethodNotAllowed, "Method Not Allowed", "")
	})

	r.Get("/", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/catalog", http.StatusFound)
	})
	r.Get("/healthz", health(svc))

	h := &catalogapi.Handler{Svc: svc}
	if o.RateLimit != nil {
		r.With(o.RateLimit).Route("/catalog", h.Routes)
	} else {
		r.Route("/catalog", h.Routes)
	}
	return r
}

func health(svc *catalog.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := svc.Ping(ctx); err != nil {
			apperr.Write(w, r, apperr.Problem{
				Status:    http.StatusServiceUnavailable,
				Title:     "Service Unavailable",
				Detail:    "store unreachable",
				Retryable: true,
			})
			return
		}
		httpx.OK(w, map[string]string{"store": "ok"})
	}
}
