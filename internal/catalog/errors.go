package catalog

import (
	"errors"
	"fmt"

	"github.com/5w1tchy/local-library/internal/models"
	"github.com/5w1tchy/local-library/internal/validate"
)

var (
	// ErrStoreUnavailable wraps any failure talking to the backing store.
	ErrStoreUnavailable = errors.New("store unavailable")
	// ErrConflict is returned by stores on a unique constraint violation.
	ErrConflict = errors.New("conflict")
)

// Unavailable marks err as a store failure while keeping it inspectable.
func Unavailable(err error) error {
	if err == nil || errors.Is(err, ErrStoreUnavailable) {
		return err
	}
	return fmt.Errorf("%w: %w", ErrStoreUnavailable, err)
}

type NotFoundError struct {
	Kind models.Kind
	ID   string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %q not found", e.Kind, e.ID)
}

func NotFound(kind models.Kind, id string) error {
	return &NotFoundError{Kind: kind, ID: id}
}

func IsNotFound(err error) bool {
	var nf *NotFoundError
	return errors.As(err, &nf)
}

// Ref identifies a blocking dependent.
type Ref struct {
	Title string `json:"title"`
	ID    string `json:"id"`
}

// DependentsError refuses a delete while other entities still reference the target.
type DependentsError struct {
	Kind      models.Kind
	ID        string
	Dependent models.Kind
	Blocking  []Ref
}

func (e *DependentsError) Error() string {
	return fmt.Sprintf("%s %q is referenced by %d %s(s)", e.Kind, e.ID, len(e.Blocking), e.Dependent)
}

// ValidationError carries every failed field plus the submitted input so the
// caller can redisplay it.
type ValidationError struct {
	Kind   models.Kind
	Fields []validate.FieldError
	Input  any
}

func (e *ValidationError) Error() string {
	if len(e.Fields) == 1 {
		return fmt.Sprintf("invalid %s: %s: %s", e.Kind, e.Fields[0].Field, e.Fields[0].Message)
	}
	return fmt.Sprintf("invalid %s: %d field errors", e.Kind, len(e.Fields))
}

func invalid(kind models.Kind, c *validate.Checker, input any) error {
	if c.Valid() {
		return nil
	}
	return &ValidationError{Kind: kind, Fields: c.Errors(), Input: input}
}
