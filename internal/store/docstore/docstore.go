// Package docstore implements catalog.Store on Cloud Firestore.
//
// Equality and list-membership filters run server-side. Substring filters
// have no Firestore equivalent, so a query that contains one is evaluated in
// process over the whole collection. Without a Sort, documents come back in
// document-id order.
package docstore

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"slices"

	"cloud.google.com/go/firestore"
	"cloud.google.com/go/firestore/apiv1/firestorepb"
	firebase "firebase.google.com/go/v4"
	"google.golang.org/api/iterator"
	"google.golang.org/api/option"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/5w1tchy/local-library/internal/catalog"
	"github.com/5w1tchy/local-library/internal/models"
	"github.com/5w1tchy/local-library/internal/store/shared"
)

// Options selects the Firebase project and credentials. With neither
// credential set the client falls back to application default credentials
// (or FIRESTORE_EMULATOR_HOST when that is exported).
type Options struct {
	ProjectID       string
	CredentialsPath string
	CredentialsJSON string
}

type Store struct {
	client    *firestore.Client
	authors   *collection[models.Author]
	genres    *collection[models.Genre]
	books     *collection[models.Book]
	instances *collection[models.BookInstance]
}

// Open initialises a Firebase app and its Firestore client.
func Open(ctx context.Context, o Options) (*Store, error) {
	var opts []option.ClientOption
	switch {
	case o.CredentialsPath != "":
		if _, err := os.Stat(o.CredentialsPath); err != nil {
			return nil, fmt.Errorf("firebase credentials: %w", err)
		}
		opts = append(opts, option.WithCredentialsFile(o.CredentialsPath))
	case o.CredentialsJSON != "":
		opts = append(opts, option.WithCredentialsJSON([]byte(o.CredentialsJSON)))
	}

	var cfg *firebase.Config
	if o.ProjectID != "" {
		cfg = &firebase.Config{ProjectID: o.ProjectID}
	}
	app, err := firebase.NewApp(ctx, cfg, opts...)
	if err != nil {
		return nil, fmt.Errorf("firebase app: %w", err)
	}
	client, err := app.Firestore(ctx)
	if err != nil {
		return nil, fmt.Errorf("firestore client: %w", err)
	}
	log.Printf("[Firestore] connected (project=%q)", o.ProjectID)
	return New(client), nil
}

// New wraps an existing Firestore client.
func New(client *firestore.Client) *Store {
	return &Store{
		client:    client,
		authors:   &collection[models.Author]{client: client, kind: models.KindAuthor},
		genres:    &collection[models.Genre]{client: client, kind: models.KindGenre},
		books:     &collection[models.Book]{client: client, kind: models.KindBook},
		instances: &collection[models.BookInstance]{client: client, kind: models.KindBookInstance},
	}
}

func (s *Store) Authors() catalog.Collection[models.Author]             { return s.authors }
func (s *Store) Genres() catalog.Collection[models.Genre]               { return s.genres }
func (s *Store) Books() catalog.Collection[models.Book]                 { return s.books }
func (s *Store) BookInstances() catalog.Collection[models.BookInstance] { return s.instances }

// Ping runs a one-document read against the author collection.
func (s *Store) Ping(ctx context.Context) error {
	iter := s.client.Collection(models.KindAuthor.Collection()).Limit(1).Documents(ctx)
	defer iter.Stop()
	if _, err := iter.Next(); err != nil && !errors.Is(err, iterator.Done) {
		return catalog.Unavailable(err)
	}
	return nil
}

func (s *Store) Close() error { return s.client.Close() }

type collection[T models.Document[T]] struct {
	client *firestore.Client
	kind   models.Kind
}

func (c *collection[T]) ref() *firestore.CollectionRef {
	return c.client.Collection(c.kind.Collection())
}

func (c *collection[T]) Create(ctx context.Context, v T) (string, error) {
	doc := c.ref().NewDoc()
	if _, err := doc.Create(ctx, v); err != nil {
		return "", mapError(c.kind, doc.ID, err)
	}
	return doc.ID, nil
}

func (c *collection[T]) Get(ctx context.Context, id string) (T, error) {
	var zero T
	if id == "" {
		return zero, catalog.NotFound(c.kind, id)
	}
	snap, err := c.ref().Doc(id).Get(ctx)
	if err != nil {
		return zero, mapError(c.kind, id, err)
	}
	return decode[T](snap)
}

func (c *collection[T]) Find(ctx context.Context, q catalog.Query) ([]T, error) {
	pushed := pushable(q.Filter)
	query := c.ref().Query
	if pushed {
		query = apply(query, q.Filter)
		if len(q.Fields) > 0 {
			query = query.Select(q.Fields...)
		}
		if q.Sort != "" {
			query = query.OrderBy(q.Sort, firestore.Asc)
		}
		if q.Limit > 0 {
			query = query.Limit(q.Limit)
		}
	}

	iter := query.Documents(ctx)
	defer iter.Stop()

	var out []T
	for {
		snap, err := iter.Next()
		if errors.Is(err, iterator.Done) {
			break
		}
		if err != nil {
			return nil, mapError(c.kind, "", err)
		}
		v, err := decode[T](snap)
		if err != nil {
			return nil, err
		}
		if !pushed && !q.Filter.Match(v) {
			continue
		}
		out = append(out, v)
	}

	if !pushed {
		if q.Sort != "" {
			slices.SortStableFunc(out, func(a, b T) int {
				return shared.CompareFirst(a.Lookup(q.Sort), b.Lookup(q.Sort))
			})
		}
		if q.Limit > 0 && len(out) > q.Limit {
			out = out[:q.Limit]
		}
	}
	return out, nil
}

func (c *collection[T]) Update(ctx context.Context, id string, v T) (T, error) {
	var zero T
	if id == "" {
		return zero, catalog.NotFound(c.kind, id)
	}
	doc := c.ref().Doc(id)
	err := c.client.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		if _, err := tx.Get(doc); err != nil {
			return err
		}
		return tx.Set(doc, v)
	})
	if err != nil {
		return zero, mapError(c.kind, id, err)
	}
	return v.WithID(id), nil
}

func (c *collection[T]) Delete(ctx context.Context, id string) error {
	if id == "" {
		return catalog.NotFound(c.kind, id)
	}
	if _, err := c.ref().Doc(id).Delete(ctx, firestore.Exists); err != nil {
		return mapError(c.kind, id, err)
	}
	return nil
}

func (c *collection[T]) Count(ctx context.Context, f catalog.Filter) (int, error) {
	if !pushable(f) {
		all, err := c.Find(ctx, catalog.Query{Filter: f})
		if err != nil {
			return 0, err
		}
		return len(all), nil
	}

	q := apply(c.ref().Query, f)
	res, err := q.NewAggregationQuery().WithCount("all").Get(ctx)
	if err != nil {
		return 0, mapError(c.kind, "", err)
	}
	v, ok := res["all"].(*firestorepb.Value)
	if !ok {
		return 0, fmt.Errorf("count %s: unexpected aggregation result %T", c.kind, res["all"])
	}
	return int(v.GetIntegerValue()), nil
}

func decode[T models.Document[T]](snap *firestore.DocumentSnapshot) (T, error) {
	var v T
	if err := snap.DataTo(&v); err != nil {
		return v, fmt.Errorf("decode %s: %w", snap.Ref.Path, err)
	}
	return v.WithID(snap.Ref.ID), nil
}

// pushable reports whether every condition maps onto a Firestore operator.
func pushable(f catalog.Filter) bool {
	for _, c := range f.Conds {
		if c.Op == catalog.OpContainsFold {
			return false
		}
	}
	return true
}

func operator(op catalog.Op) string {
	if op == catalog.OpHas {
		return "array-contains"
	}
	return "=="
}

func apply(q firestore.Query, f catalog.Filter) firestore.Query {
	if f.Empty() {
		return q
	}
	if !f.MatchAny {
		for _, c := range f.Conds {
			q = q.Where(c.Field, operator(c.Op), c.Value)
		}
		return q
	}
	or := firestore.OrFilter{}
	for _, c := range f.Conds {
		or.Filters = append(or.Filters, firestore.PropertyFilter{Path: c.Field, Operator: operator(c.Op), Value: c.Value})
	}
	return q.WhereEntity(or)
}

func mapError(kind models.Kind, id string, err error) error {
	switch status.Code(err) {
	case codes.NotFound:
		return catalog.NotFound(kind, id)
	case codes.AlreadyExists:
		return fmt.Errorf("%s %q: %w", kind, id, catalog.ErrConflict)
	}
	return catalog.Unavailable(fmt.Errorf("firestore %s: %w", kind, err))
}
