// Package catalogapi serves the /catalog JSON API over a catalog.Service.
package catalogapi

import (
	"errors"
	"fmt"
	"log"
	"net/http"
	"slices"

	"github.com/go-chi/chi/v5"

	"github.com/5w1tchy/local-library/internal/api/apperr"
	"github.com/5w1tchy/local-library/internal/api/httpx"
	"github.com/5w1tchy/local-library/internal/catalog"
	"github.com/5w1tchy/local-library/internal/models"
)

type Handler struct {
	Svc *catalog.Service
}

// Routes mounts the catalog tree on r. Every {kind} is one of author, genre,
// book or bookinstance.
func (h *Handler) Routes(r chi.Router) {
	r.Get("/", h.summary)
	r.Route("/{kind}", func(r chi.Router) {
		r.Get("/", h.list)
		r.Post("/", h.create)
		r.Get("/create", h.form)
		r.Post("/create", h.create)
		r.Route("/{id}", func(r chi.Router) {
			r.Get("/", h.detail)
			r.Put("/", h.update)
			r.Delete("/", h.remove)
			r.Get("/update", h.detail)
			r.Post("/update", h.update)
			r.Get("/delete", h.detail)
			r.Post("/delete", h.remove)
		})
	})
}

var errUnknownKind = errors.New("unknown catalog kind")

func kindParam(r *http.Request) (models.Kind, error) {
	k := models.Kind(chi.URLParam(r, "kind"))
	if !slices.Contains(models.Kinds, k) {
		return "", errUnknownKind
	}
	return k, nil
}

// fail writes the problem for err and logs anything that is not a client error.
func fail(w http.ResponseWriter, r *http.Request, err error) {
	if errors.Is(err, errUnknownKind) {
		apperr.WriteStatus(w, r, http.StatusNotFound, "Not Found", "unknown catalog kind")
		return
	}
	p := apperr.FromCatalog(err)
	if p.Status >= http.StatusInternalServerError {
		log.Printf("[Catalog] %s %s rid=%s: %v", r.Method, r.URL.Path, r.Header.Get("X-Request-ID"), err)
	}
	apperr.Write(w, r, p)
}

func badBody(w http.ResponseWriter, r *http.Request, err error) {
	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		apperr.WriteStatus(w, r, http.StatusRequestEntityTooLarge, "Request Entity Too Large",
			fmt.Sprintf("request body exceeds %d bytes", tooLarge.Limit))
		return
	}
	apperr.WriteStatus(w, r, http.StatusBadRequest, "Bad Request", "invalid request body")
}

func (h *Handler) summary(w http.ResponseWriter, r *http.Request) {
	s, err := h.Svc.Summary(r.Context())
	if err != nil {
		fail(w, r, err)
		return
	}
	httpx.OK(w, s)
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	kind, err := kindParam(r)
	if err != nil {
		fail(w, r, err)
		return
	}
	ctx := r.Context()
	q := r.URL.Query()
	switch kind {
	case models.KindAuthor:
		out, err := h.Svc.ListAuthors(ctx, q.Get("name"))
		if err != nil {
			fail(w, r, err)
			return
		}
		httpx.List(w, out)
	case models.KindGenre:
		out, err := h.Svc.ListGenres(ctx)
		if err != nil {
			fail(w, r, err)
			return
		}
		httpx.List(w, out)
	case models.KindBook:
		out, err := h.Svc.ListBooks(ctx, q.Get("author"))
		if err != nil {
			fail(w, r, err)
			return
		}
		httpx.List(w, out)
	case models.KindBookInstance:
		out, err := h.Svc.ListBookInstances(ctx)
		if err != nil {
			fail(w, r, err)
			return
		}
		httpx.List(w, out)
	}
}

func (h *Handler) detail(w http.ResponseWriter, r *http.Request) {
	kind, err := kindParam(r)
	if err != nil {
		fail(w, r, err)
		return
	}
	ctx, id := r.Context(), chi.URLParam(r, "id")
	var out any
	switch kind {
	case models.KindAuthor:
		out, err = h.Svc.AuthorDetail(ctx, id)
	case models.KindGenre:
		out, err = h.Svc.GenreDetail(ctx, id)
	case models.KindBook:
		out, err = h.Svc.BookDetail(ctx, id)
	case models.KindBookInstance:
		out, err = h.Svc.BookInstanceDetail(ctx, id)
	}
	if err != nil {
		fail(w, r, err)
		return
	}
	httpx.OK(w, out)
}

// form returns the choices a create/update form needs.
func (h *Handler) form(w http.ResponseWriter, r *http.Request) {
	kind, err := kindParam(r)
	if err != nil {
		fail(w, r, err)
		return
	}
	var out any
	switch kind {
	case models.KindBook:
		out, err = h.Svc.BookFormOptions(r.Context())
	case models.KindBookInstance:
		out, err = h.Svc.InstanceFormOptions(r.Context())
	default:
		httpx.OKNoData(w)
		return
	}
	if err != nil {
		fail(w, r, err)
		return
	}
	httpx.OK(w, out)
}

func (h *Handler) remove(w http.ResponseWriter, r *http.Request) {
	kind, err := kindParam(r)
	if err != nil {
		fail(w, r, err)
		return
	}
	id := chi.URLParam(r, "id")
	if err := h.Svc.Delete(r.Context(), kind, id); err != nil {
		fail(w, r, err)
		return
	}
	log.Printf("[Catalog] deleted %s %s", kind, id)
	w.WriteHeader(http.StatusNoContent)
}
