package apperr

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/5w1tchy/local-library/internal/catalog"
)

// FromCatalog maps an error returned by the catalog service to a Problem.
// Unknown errors become a 500 without leaking their text.
func FromCatalog(err error) Problem {
	var (
		verr *catalog.ValidationError
		nf   *catalog.NotFoundError
		dep  *catalog.DependentsError
	)
	switch {
	case errors.As(err, &verr):
		return Problem{
			Type:        "/problems/validation",
			Title:       "Validation failed",
			Status:      http.StatusUnprocessableEntity,
			Detail:      verr.Error(),
			FieldErrors: verr.Fields,
			Input:       verr.Input,
		}
	case errors.As(err, &nf):
		return Problem{
			Type:   "/problems/not-found",
			Title:  "Not Found",
			Status: http.StatusNotFound,
			Detail: fmt.Sprintf("%s not found", nf.Kind),
		}
	case errors.As(err, &dep):
		return Problem{
			Type:     "/problems/has-dependents",
			Title:    "Conflict",
			Status:   http.StatusConflict,
			Detail:   fmt.Sprintf("delete the following %s(s) before deleting this %s", dep.Dependent, dep.Kind),
			Blocking: dep.Blocking,
		}
	case errors.Is(err, catalog.ErrConflict):
		return Problem{
			Type:   "/problems/conflict",
			Title:  "Conflict",
			Status: http.StatusConflict,
			Detail: "the request conflicts with the current state; retry",
		}
	case errors.Is(err, catalog.ErrStoreUnavailable):
		return Problem{
			Type:      "/problems/unavailable",
			Title:     "Service Unavailable",
			Status:    http.StatusServiceUnavailable,
			Detail:    "storage is temporarily unavailable",
			Retryable: true,
		}
	}
	return Problem{Title: "Internal Server Error", Status: http.StatusInternalServerError}
}

// WriteCatalog writes the Problem for a catalog error.
func WriteCatalog(w http.ResponseWriter, r *http.Request, err error) {
	Write(w, r, FromCatalog(err))
}
