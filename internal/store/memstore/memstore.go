// Package memstore is an in-process catalog.Store used by tests and by
// STORE_DRIVER=memory.
package memstore

import (
	"context"
	"slices"
	"sync"

	"github.com/google/uuid"

	"github.com/5w1tchy/local-library/internal/catalog"
	"github.com/5w1tchy/local-library/internal/models"
	"github.com/5w1tchy/local-library/internal/store/shared"
)

type Store struct {
	authors   *collection[models.Author]
	genres    *collection[models.Genre]
	books     *collection[models.Book]
	instances *collection[models.BookInstance]
}

func New() *Store {
	return &Store{
		authors:   newCollection[models.Author](models.KindAuthor),
		genres:    newCollection[models.Genre](models.KindGenre),
		books:     newCollection[models.Book](models.KindBook),
		instances: newCollection[models.BookInstance](models.KindBookInstance),
	}
}

func (s *Store) Authors() catalog.Collection[models.Author]             { return s.authors }
func (s *Store) Genres() catalog.Collection[models.Genre]               { return s.genres }
func (s *Store) Books() catalog.Collection[models.Book]                 { return s.books }
func (s *Store) BookInstances() catalog.Collection[models.BookInstance] { return s.instances }

func (s *Store) Ping(ctx context.Context) error { return ctx.Err() }
func (s *Store) Close() error                   { return nil }

// collection keeps documents by id plus their insertion order. Values are
// cloned on the way in and out so callers never share memory with the store.
type collection[T models.Document[T]] struct {
	kind  models.Kind
	mu    sync.RWMutex
	docs  map[string]T
	order []string
}

func newCollection[T models.Document[T]](kind models.Kind) *collection[T] {
	return &collection[T]{kind: kind, docs: map[string]T{}}
}

func (c *collection[T]) Create(ctx context.Context, v T) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", catalog.Unavailable(err)
	}
	id := uuid.NewString()
	c.mu.Lock()
	defer c.mu.Unlock()
	c.docs[id] = v.WithID(id).Clone()
	c.order = append(c.order, id)
	return id, nil
}

func (c *collection[T]) Get(ctx context.Context, id string) (T, error) {
	var zero T
	if err := ctx.Err(); err != nil {
		return zero, catalog.Unavailable(err)
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	v, ok := c.docs[id]
	if !ok {
		return zero, catalog.NotFound(c.kind, id)
	}
	return v.Clone(), nil
}

func (c *collection[T]) Find(ctx context.Context, q catalog.Query) ([]T, error) {
	if err := ctx.Err(); err != nil {
		return nil, catalog.Unavailable(err)
	}
	c.mu.RLock()
	out := make([]T, 0, len(c.order))
	for _, id := range c.order {
		if v := c.docs[id]; q.Filter.Match(v) {
			out = append(out, v.Clone())
		}
	}
	c.mu.RUnlock()

	if q.Sort != "" {
		slices.SortStableFunc(out, func(a, b T) int {
			return shared.CompareFirst(a.Lookup(q.Sort), b.Lookup(q.Sort))
		})
	}
	if q.Limit > 0 && len(out) > q.Limit {
		out = out[:q.Limit]
	}
	return out, nil
}

func (c *collection[T]) Update(ctx context.Context, id string, v T) (T, error) {
	var zero T
	if err := ctx.Err(); err != nil {
		return zero, catalog.Unavailable(err)
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.docs[id]; !ok {
		return zero, catalog.NotFound(c.kind, id)
	}
	v = v.WithID(id).Clone()
	c.docs[id] = v
	return v.Clone(), nil
}

func (c *collection[T]) Delete(ctx context.Context, id string) error {
	if err := ctx.Err(); err != nil {
		return catalog.Unavailable(err)
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.docs[id]; !ok {
		return catalog.NotFound(c.kind, id)
	}
	delete(c.docs, id)
	c.order = slices.DeleteFunc(c.order, func(s string) bool { return s == id })
	return nil
}

func (c *collection[T]) Count(ctx context.Context, f catalog.Filter) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, catalog.Unavailable(err)
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	n := 0
	for _, v := range c.docs {
		if f.Match(v) {
			n++
		}
	}
	return n, nil
}
