package catalog

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"

	"github.com/5w1tchy/local-library/internal/models"
)

// Dependency says that Dependent documents reference Kind through ForeignKey.
type Dependency struct {
	Kind       models.Kind
	Dependent  models.Kind
	ForeignKey string
	Op         Op
}

// Dependencies is the full reference table of the catalog. BookInstance has
// no dependents.
var Dependencies = []Dependency{
	{Kind: models.KindAuthor, Dependent: models.KindBook, ForeignKey: models.FieldAuthor, Op: OpEq},
	{Kind: models.KindGenre, Dependent: models.KindBook, ForeignKey: models.FieldGenre, Op: OpHas},
	{Kind: models.KindBook, Dependent: models.KindBookInstance, ForeignKey: models.FieldBook, Op: OpEq},
}

// kindOps erases the element type of a Collection so the guard can treat
// every kind the same way.
type kindOps struct {
	label  string
	exists func(ctx context.Context, id string) error
	refs   func(ctx context.Context, q Query) ([]Ref, error)
	delete func(ctx context.Context, id string) error
}

func opsFor[T models.Entity](c Collection[T], label string) kindOps {
	return kindOps{
		label: label,
		exists: func(ctx context.Context, id string) error {
			_, err := c.Get(ctx, id)
			return err
		},
		refs: func(ctx context.Context, q Query) ([]Ref, error) {
			docs, err := c.Find(ctx, q)
			if err != nil {
				return nil, err
			}
			out := make([]Ref, 0, len(docs))
			for _, d := range docs {
				out = append(out, Ref{Title: d.Label(), ID: d.Key()})
			}
			return out, nil
		},
		delete: c.Delete,
	}
}

// Guard deletes entities only when nothing references them.
type Guard struct {
	ops  map[models.Kind]kindOps
	deps map[models.Kind][]Dependency
}

func NewGuard(s Store) *Guard {
	g := &Guard{
		ops: map[models.Kind]kindOps{
			models.KindAuthor:       opsFor(s.Authors(), models.FieldFamilyName),
			models.KindGenre:        opsFor(s.Genres(), models.FieldName),
			models.KindBook:         opsFor(s.Books(), models.FieldTitle),
			models.KindBookInstance: opsFor(s.BookInstances(), models.FieldImprint),
		},
		deps: map[models.Kind][]Dependency{},
	}
	for _, d := range Dependencies {
		g.deps[d.Kind] = append(g.deps[d.Kind], d)
	}
	return g
}

// Dependents lists every document that references kind/id.
func (g *Guard) Dependents(ctx context.Context, kind models.Kind, id string) (models.Kind, []Ref, error) {
	var (
		dependent models.Kind
		blocking  []Ref
	)
	for _, d := range g.deps[kind] {
		ops, ok := g.ops[d.Dependent]
		if !ok {
			return "", nil, fmt.Errorf("no collection for %s", d.Dependent)
		}
		refs, err := ops.refs(ctx, Query{
			Filter: Filter{Conds: []Cond{{Field: d.ForeignKey, Op: d.Op, Value: id}}},
			Fields: []string{models.FieldID, ops.label},
		})
		if err != nil {
			return "", nil, fmt.Errorf("find %s dependents of %s: %w", d.Dependent, kind, err)
		}
		if len(refs) > 0 && dependent == "" {
			dependent = d.Dependent
		}
		blocking = append(blocking, refs...)
	}
	return dependent, blocking, nil
}

// Delete removes kind/id after confirming it exists and has no dependents.
//
// The dependent lookup and the delete are two separate store calls. A
// dependent created in between is not seen and ends up with a dangling
// reference; this is a known race and callers relying on strict integrity
// must serialize writers.
func (g *Guard) Delete(ctx context.Context, kind models.Kind, id string) error {
	ops, ok := g.ops[kind]
	if !ok {
		return fmt.Errorf("unknown kind %q", kind)
	}

	var (
		dependent models.Kind
		blocking  []Ref
	)
	eg, egCtx := errgroup.WithContext(ctx)
	eg.Go(func() error { return ops.exists(egCtx, id) })
	eg.Go(func() error {
		var err error
		dependent, blocking, err = g.Dependents(egCtx, kind, id)
		return err
	})
	if err := eg.Wait(); err != nil {
		return err
	}
	if len(blocking) > 0 {
		return &DependentsError{Kind: kind, ID: id, Dependent: dependent, Blocking: blocking}
	}

	if err := ops.delete(ctx, id); err != nil {
		return fmt.Errorf("delete %s: %w", kind, err)
	}
	return nil
}
