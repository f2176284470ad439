package catalog

import (
	"context"
	"strings"

	"github.com/5w1tchy/local-library/internal/models"
)

type Op int

const (
	// OpEq matches a field equal to Value.
	OpEq Op = iota
	// OpContainsFold matches a case-insensitive, unanchored substring.
	OpContainsFold
	// OpHas matches a list field containing Value.
	OpHas
)

func (o Op) String() string {
	switch o {
	case OpEq:
		return "eq"
	case OpContainsFold:
		return "contains_fold"
	case OpHas:
		return "has"
	}
	return "unknown"
}

type Cond struct {
	Field string
	Op    Op
	Value string
}

// Filter combines conditions with AND, or with OR when MatchAny is set.
// The zero Filter matches every document.
type Filter struct {
	Conds    []Cond
	MatchAny bool
}

func Where(field, value string) Filter {
	return Filter{Conds: []Cond{{Field: field, Op: OpEq, Value: value}}}
}

func Has(field, value string) Filter {
	return Filter{Conds: []Cond{{Field: field, Op: OpHas, Value: value}}}
}

// AnyContains matches when any of fields contains q, ignoring case.
func AnyContains(q string, fields ...string) Filter {
	f := Filter{MatchAny: true}
	for _, name := range fields {
		f.Conds = append(f.Conds, Cond{Field: name, Op: OpContainsFold, Value: q})
	}
	return f
}

func (f Filter) Empty() bool { return len(f.Conds) == 0 }

// Match evaluates the filter in memory against e.
func (f Filter) Match(e models.Entity) bool {
	if f.Empty() {
		return true
	}
	for _, c := range f.Conds {
		hit := c.match(e.Lookup(c.Field))
		if hit && f.MatchAny {
			return true
		}
		if !hit && !f.MatchAny {
			return false
		}
	}
	return !f.MatchAny
}

func (c Cond) match(values []string) bool {
	switch c.Op {
	case OpEq:
		return len(values) == 1 && values[0] == c.Value
	case OpContainsFold:
		q := strings.ToLower(c.Value)
		for _, v := range values {
			if strings.Contains(strings.ToLower(v), q) {
				return true
			}
		}
	case OpHas:
		for _, v := range values {
			if v == c.Value {
				return true
			}
		}
	}
	return false
}

// Query describes a Find call. Sort names one field (ascending, stable);
// an empty Sort keeps insertion order. Fields is a projection hint: stores
// may return more fields, never fewer. Limit <= 0 means no limit.
type Query struct {
	Filter Filter
	Sort   string
	Fields []string
	Limit  int
}

// Collection is typed access to one persisted collection. The store assigns
// identifiers on Create.
type Collection[T any] interface {
	Create(ctx context.Context, v T) (string, error)
	Get(ctx context.Context, id string) (T, error)
	Find(ctx context.Context, q Query) ([]T, error)
	Update(ctx context.Context, id string, v T) (T, error)
	Delete(ctx context.Context, id string) error
	Count(ctx context.Context, f Filter) (int, error)
}

// Store is the injected capability every catalog operation runs against.
type Store interface {
	Authors() Collection[models.Author]
	Genres() Collection[models.Genre]
	Books() Collection[models.Book]
	BookInstances() Collection[models.BookInstance]
	Ping(ctx context.Context) error
	Close() error
}
