package catalogapi

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/5w1tchy/local-library/internal/api/httpx"
	"github.com/5w1tchy/local-library/internal/catalog"
	"github.com/5w1tchy/local-library/internal/models"
)

func (h *Handler) create(w http.ResponseWriter, r *http.Request) {
	kind, err := kindParam(r)
	if err != nil {
		fail(w, r, err)
		return
	}
	defer r.Body.Close()
	ctx := r.Context()

	switch kind {
	case models.KindAuthor:
		var in catalog.AuthorInput
		if err := httpx.Decode(r, &in); err != nil {
			badBody(w, r, err)
			return
		}
		a, err := h.Svc.CreateAuthor(ctx, in)
		if err != nil {
			fail(w, r, err)
			return
		}
		httpx.Created(w, a.URL(), a)

	case models.KindGenre:
		var in catalog.GenreInput
		if err := httpx.Decode(r, &in); err != nil {
			badBody(w, r, err)
			return
		}
		g, created, err := h.Svc.CreateGenre(ctx, in)
		if err != nil {
			fail(w, r, err)
			return
		}
		if !created {
			w.Header().Set("Location", g.URL())
			httpx.OK(w, g)
			return
		}
		httpx.Created(w, g.URL(), g)

	case models.KindBook:
		var in catalog.BookInput
		if err := httpx.Decode(r, &in, models.FieldGenre); err != nil {
			badBody(w, r, err)
			return
		}
		b, err := h.Svc.CreateBook(ctx, in)
		if err != nil {
			fail(w, r, err)
			return
		}
		httpx.Created(w, b.URL(), b)

	case models.KindBookInstance:
		var in catalog.BookInstanceInput
		if err := httpx.Decode(r, &in); err != nil {
			badBody(w, r, err)
			return
		}
		bi, err := h.Svc.CreateBookInstance(ctx, in)
		if err != nil {
			fail(w, r, err)
			return
		}
		httpx.Created(w, bi.URL(), bi)
	}
}

func (h *Handler) update(w http.ResponseWriter, r *http.Request) {
	kind, err := kindParam(r)
	if err != nil {
		fail(w, r, err)
		return
	}
	defer r.Body.Close()
	ctx, id := r.Context(), chi.URLParam(r, "id")

	var out any
	switch kind {
	case models.KindAuthor:
		var in catalog.AuthorInput
		if err := httpx.Decode(r, &in); err != nil {
			badBody(w, r, err)
			return
		}
		out, err = h.Svc.UpdateAuthor(ctx, id, in)
	case models.KindGenre:
		var in catalog.GenreInput
		if err := httpx.Decode(r, &in); err != nil {
			badBody(w, r, err)
			return
		}
		out, err = h.Svc.UpdateGenre(ctx, id, in)
	case models.KindBook:
		var in catalog.BookInput
		if err := httpx.Decode(r, &in, models.FieldGenre); err != nil {
			badBody(w, r, err)
			return
		}
		out, err = h.Svc.UpdateBook(ctx, id, in)
	case models.KindBookInstance:
		var in catalog.BookInstanceInput
		if err := httpx.Decode(r, &in); err != nil {
			badBody(w, r, err)
			return
		}
		out, err = h.Svc.UpdateBookInstance(ctx, id, in)
	}
	if err != nil {
		fail(w, r, err)
		return
	}
	httpx.OK(w, out)
}
