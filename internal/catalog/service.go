package catalog

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"log"
	"strings"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"
	"golang.org/x/text/collate"
	"golang.org/x/text/language"

	"github.com/5w1tchy/local-library/internal/models"
	"github.com/5w1tchy/local-library/internal/validate"
)

// joinParallelism caps concurrent lookups when resolving references.
const joinParallelism = 8

// Service runs every catalog operation against an injected Store. It holds
// no per-request state and is safe for concurrent use.
type Service struct {
	store  Store
	guard  *Guard
	locale language.Tag
	tracer trace.Tracer
}

type Option func(*Service)

// WithLocale sets the collation locale used for genre name comparison.
func WithLocale(tag language.Tag) Option {
	return func(s *Service) { s.locale = tag }
}

func NewService(store Store, opts ...Option) *Service {
	s := &Service{
		store:  store,
		guard:  NewGuard(store),
		locale: language.Und,
		tracer: otel.Tracer("local-library/catalog"),
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

func (s *Service) Ping(ctx context.Context) error { return s.store.Ping(ctx) }

func (s *Service) start(ctx context.Context, op string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	return s.tracer.Start(ctx, "catalog."+op, trace.WithAttributes(attrs...))
}

func end(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}

// ---------- Authors ----------

// ListAuthors returns authors whose first or family name contains name
// (case-insensitive), ordered by family name. An empty name lists all.
func (s *Service) ListAuthors(ctx context.Context, name string) (_ []models.Author, err error) {
	ctx, span := s.start(ctx, "ListAuthors", attribute.String("query", name))
	defer func() { end(span, err) }()

	q := Query{Sort: models.FieldFamilyName}
	if name = strings.TrimSpace(name); name != "" {
		q.Filter = AnyContains(name, models.FieldFirstName, models.FieldFamilyName)
	}
	authors, err := s.store.Authors().Find(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("list authors: %w", err)
	}
	return authors, nil
}

func (s *Service) AuthorDetail(ctx context.Context, id string) (_ AuthorDetail, err error) {
	ctx, span := s.start(ctx, "AuthorDetail", attribute.String("author.id", id))
	defer func() { end(span, err) }()

	var (
		author models.Author
		books  []models.Book
	)
	eg, egCtx := errgroup.WithContext(ctx)
	eg.Go(func() (err error) {
		author, err = s.store.Authors().Get(egCtx, id)
		return err
	})
	eg.Go(func() (err error) {
		books, err = s.store.Books().Find(egCtx, Query{
			Filter: Where(models.FieldAuthor, id),
			Sort:   models.FieldTitle,
			Fields: []string{models.FieldID, models.FieldTitle, models.FieldSummary},
		})
		return err
	})
	if err := eg.Wait(); err != nil {
		return AuthorDetail{}, fmt.Errorf("author detail: %w", err)
	}

	out := AuthorDetail{Author: author, Books: make([]BookSummary, 0, len(books))}
	for _, b := range books {
		out.Books = append(out.Books, summarize(b))
	}
	return out, nil
}

func (s *Service) CreateAuthor(ctx context.Context, in AuthorInput) (_ models.Author, err error) {
	ctx, span := s.start(ctx, "CreateAuthor")
	defer func() { end(span, err) }()

	c := validate.New()
	a := in.normalize(c)
	if err := invalid(models.KindAuthor, c, in); err != nil {
		return models.Author{}, err
	}
	id, err := s.store.Authors().Create(ctx, a)
	if err != nil {
		return models.Author{}, fmt.Errorf("create author: %w", err)
	}
	return a.WithID(id), nil
}

func (s *Service) UpdateAuthor(ctx context.Context, id string, in AuthorInput) (_ models.Author, err error) {
	ctx, span := s.start(ctx, "UpdateAuthor", attribute.String("author.id", id))
	defer func() { end(span, err) }()

	if err := s.target(ctx, models.KindAuthor, id); err != nil {
		return models.Author{}, err
	}
	c := validate.New()
	a := in.normalize(c)
	if err := invalid(models.KindAuthor, c, in); err != nil {
		return models.Author{}, err
	}
	updated, err := s.store.Authors().Update(ctx, id, a)
	if err != nil {
		return models.Author{}, fmt.Errorf("update author: %w", err)
	}
	return updated, nil
}

// ---------- Books ----------

// ListBooks returns books ordered by title with their author joined. A
// non-empty authorQuery is first resolved to at most one author; when none
// matches the result is empty.
func (s *Service) ListBooks(ctx context.Context, authorQuery string) (_ []BookView, err error) {
	ctx, span := s.start(ctx, "ListBooks", attribute.String("author.query", authorQuery))
	defer func() { end(span, err) }()

	q := Query{
		Sort:   models.FieldTitle,
		Fields: []string{models.FieldID, models.FieldTitle, models.FieldAuthor},
	}
	if authorQuery = strings.TrimSpace(authorQuery); authorQuery != "" {
		match, err := s.store.Authors().Find(ctx, Query{
			Filter: AnyContains(authorQuery, models.FieldFirstName, models.FieldFamilyName),
			Fields: []string{models.FieldID},
			Limit:  1,
		})
		if err != nil {
			return nil, fmt.Errorf("resolve author: %w", err)
		}
		if len(match) == 0 {
			return []BookView{}, nil
		}
		q.Filter = Where(models.FieldAuthor, match[0].ID)
	}

	books, err := s.store.Books().Find(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("list books: %w", err)
	}
	ids := make([]string, 0, len(books))
	for _, b := range books {
		ids = append(ids, b.Author)
	}
	authors, err := resolve(ctx, s.store.Authors(), ids)
	if err != nil {
		return nil, fmt.Errorf("join authors: %w", err)
	}

	out := make([]BookView, 0, len(books))
	for _, b := range books {
		out = append(out, viewOf(b, ptr(authors, b.Author), nil))
	}
	return out, nil
}

// BookDetail returns the book with author, genres and copies resolved.
func (s *Service) BookDetail(ctx context.Context, id string) (_ BookDetail, err error) {
	ctx, span := s.start(ctx, "BookDetail", attribute.String("book.id", id))
	defer func() { end(span, err) }()

	var (
		book      models.Book
		instances []models.BookInstance
	)
	eg, egCtx := errgroup.WithContext(ctx)
	eg.Go(func() (err error) {
		book, err = s.store.Books().Get(egCtx, id)
		return err
	})
	eg.Go(func() (err error) {
		instances, err = s.store.BookInstances().Find(egCtx, Query{Filter: Where(models.FieldBook, id)})
		return err
	})
	if err := eg.Wait(); err != nil {
		return BookDetail{}, fmt.Errorf("book detail: %w", err)
	}

	var (
		authors map[string]models.Author
		genres  map[string]models.Genre
	)
	eg, egCtx = errgroup.WithContext(ctx)
	eg.Go(func() (err error) {
		authors, err = resolve(egCtx, s.store.Authors(), []string{book.Author})
		return err
	})
	eg.Go(func() (err error) {
		genres, err = resolve(egCtx, s.store.Genres(), book.Genre)
		return err
	})
	if err := eg.Wait(); err != nil {
		return BookDetail{}, fmt.Errorf("book detail joins: %w", err)
	}

	var joined []models.Genre
	for _, gid := range book.Genre {
		if g, ok := genres[gid]; ok {
			joined = append(joined, g)
		}
	}
	if instances == nil {
		instances = []models.BookInstance{}
	}
	return BookDetail{Book: viewOf(book, ptr(authors, book.Author), joined), Instances: instances}, nil
}

func (s *Service) CreateBook(ctx context.Context, in BookInput) (_ models.Book, err error) {
	ctx, span := s.start(ctx, "CreateBook")
	defer func() { end(span, err) }()

	b, err := s.validBook(ctx, in)
	if err != nil {
		return models.Book{}, err
	}
	id, err := s.store.Books().Create(ctx, b)
	if err != nil {
		return models.Book{}, fmt.Errorf("create book: %w", err)
	}
	return b.WithID(id), nil
}

func (s *Service) UpdateBook(ctx context.Context, id string, in BookInput) (_ models.Book, err error) {
	ctx, span := s.start(ctx, "UpdateBook", attribute.String("book.id", id))
	defer func() { end(span, err) }()

	if err := s.target(ctx, models.KindBook, id); err != nil {
		return models.Book{}, err
	}
	b, err := s.validBook(ctx, in)
	if err != nil {
		return models.Book{}, err
	}
	updated, err := s.store.Books().Update(ctx, id, b)
	if err != nil {
		return models.Book{}, fmt.Errorf("update book: %w", err)
	}
	return updated, nil
}

func (s *Service) validBook(ctx context.Context, in BookInput) (models.Book, error) {
	c := validate.New()
	b := in.normalize(c)
	var checks []refCheck
	if b.Author != "" {
		checks = append(checks, refCheck{field: models.FieldAuthor, kind: models.KindAuthor, id: b.Author})
	}
	for _, g := range b.Genre {
		checks = append(checks, refCheck{field: models.FieldGenre, kind: models.KindGenre, id: g})
	}
	if err := s.checkRefs(ctx, c, checks); err != nil {
		return models.Book{}, err
	}
	return b, invalid(models.KindBook, c, in)
}

// BookFormOptions lists the authors and genres a Book can reference.
func (s *Service) BookFormOptions(ctx context.Context) (_ BookForm, err error) {
	ctx, span := s.start(ctx, "BookFormOptions")
	defer func() { end(span, err) }()

	var out BookForm
	eg, egCtx := errgroup.WithContext(ctx)
	eg.Go(func() (err error) {
		out.Authors, err = s.store.Authors().Find(egCtx, Query{Sort: models.FieldFamilyName})
		return err
	})
	eg.Go(func() (err error) {
		out.Genres, err = s.store.Genres().Find(egCtx, Query{Sort: models.FieldName})
		return err
	})
	if err := eg.Wait(); err != nil {
		return BookForm{}, fmt.Errorf("book form: %w", err)
	}
	return out, nil
}

// ---------- Genres ----------

func (s *Service) ListGenres(ctx context.Context) (_ []models.Genre, err error) {
	ctx, span := s.start(ctx, "ListGenres")
	defer func() { end(span, err) }()

	genres, err := s.store.Genres().Find(ctx, Query{Sort: models.FieldName})
	if err != nil {
		return nil, fmt.Errorf("list genres: %w", err)
	}
	return genres, nil
}

func (s *Service) GenreDetail(ctx context.Context, id string) (_ GenreDetail, err error) {
	ctx, span := s.start(ctx, "GenreDetail", attribute.String("genre.id", id))
	defer func() { end(span, err) }()

	var (
		genre models.Genre
		books []models.Book
	)
	eg, egCtx := errgroup.WithContext(ctx)
	eg.Go(func() (err error) {
		genre, err = s.store.Genres().Get(egCtx, id)
		return err
	})
	eg.Go(func() (err error) {
		books, err = s.store.Books().Find(egCtx, Query{
			Filter: Has(models.FieldGenre, id),
			Sort:   models.FieldTitle,
			Fields: []string{models.FieldID, models.FieldTitle, models.FieldSummary},
		})
		return err
	})
	if err := eg.Wait(); err != nil {
		return GenreDetail{}, fmt.Errorf("genre detail: %w", err)
	}

	out := GenreDetail{Genre: genre, Books: make([]BookSummary, 0, len(books))}
	for _, b := range books {
		out.Books = append(out.Books, summarize(b))
	}
	return out, nil
}

// CreateGenre persists a new genre unless one with the same name already
// exists under the service collation (case and accents ignored). In that
// case the existing genre is returned with created=false.
func (s *Service) CreateGenre(ctx context.Context, in GenreInput) (_ models.Genre, created bool, err error) {
	ctx, span := s.start(ctx, "CreateGenre")
	defer func() { end(span, err) }()

	c := validate.New()
	g := in.normalize(c)
	if err := invalid(models.KindGenre, c, in); err != nil {
		return models.Genre{}, false, err
	}

	existing, ok, err := s.findGenre(ctx, g.Name, "")
	if err != nil {
		return models.Genre{}, false, fmt.Errorf("genre lookup: %w", err)
	}
	if ok {
		span.SetAttributes(attribute.Bool("genre.duplicate", true))
		log.Printf("[Catalog] genre %q resolves to existing %s\n", g.Name, existing.ID)
		return existing, false, nil
	}

	id, err := s.store.Genres().Create(ctx, g)
	if errors.Is(err, ErrConflict) {
		// lost a race with a concurrent create of the same name
		if existing, ok, ferr := s.findGenre(ctx, g.Name, ""); ferr == nil && ok {
			return existing, false, nil
		}
	}
	if err != nil {
		return models.Genre{}, false, fmt.Errorf("create genre: %w", err)
	}
	return g.WithID(id), true, nil
}

func (s *Service) UpdateGenre(ctx context.Context, id string, in GenreInput) (_ models.Genre, err error) {
	ctx, span := s.start(ctx, "UpdateGenre", attribute.String("genre.id", id))
	defer func() { end(span, err) }()

	if err := s.target(ctx, models.KindGenre, id); err != nil {
		return models.Genre{}, err
	}
	c := validate.New()
	g := in.normalize(c)
	if c.Valid() {
		other, dup, err := s.findGenre(ctx, g.Name, id)
		if err != nil {
			return models.Genre{}, fmt.Errorf("genre lookup: %w", err)
		}
		c.Check(!dup, models.FieldName, "duplicate", fmt.Sprintf("Genre %q already exists.", other.Name))
	}
	if err := invalid(models.KindGenre, c, in); err != nil {
		return models.Genre{}, err
	}
	updated, err := s.store.Genres().Update(ctx, id, g)
	if err != nil {
		return models.Genre{}, fmt.Errorf("update genre: %w", err)
	}
	return updated, nil
}

// findGenre scans genres for a collation-equal name, skipping exceptID.
func (s *Service) findGenre(ctx context.Context, name, exceptID string) (models.Genre, bool, error) {
	genres, err := s.store.Genres().Find(ctx, Query{Fields: []string{models.FieldID, models.FieldName}})
	if err != nil {
		return models.Genre{}, false, err
	}
	// a Collator keeps internal buffers and must not be shared across goroutines
	col := collate.New(s.locale, collate.Loose)
	key := GenreKey(col, name)
	for _, g := range genres {
		if g.ID != exceptID && GenreKey(col, g.Name) == key {
			return g, true, nil
		}
	}
	return models.Genre{}, false, nil
}

// GenreKey is the hex encoded collation key of a genre name. Two names share
// a key exactly when col compares them equal.
func GenreKey(col *collate.Collator, name string) string {
	var buf collate.Buffer
	return hex.EncodeToString(col.KeyFromString(&buf, name))
}

// ---------- Book instances ----------

// ListBookInstances returns every copy with its book title and a
// presentation category.
func (s *Service) ListBookInstances(ctx context.Context) (_ []InstanceView, err error) {
	ctx, span := s.start(ctx, "ListBookInstances")
	defer func() { end(span, err) }()

	instances, err := s.store.BookInstances().Find(ctx, Query{})
	if err != nil {
		return nil, fmt.Errorf("list book instances: %w", err)
	}
	ids := make([]string, 0, len(instances))
	for _, bi := range instances {
		ids = append(ids, bi.Book)
	}
	books, err := resolve(ctx, s.store.Books(), ids)
	if err != nil {
		return nil, fmt.Errorf("join books: %w", err)
	}

	out := make([]InstanceView, 0, len(instances))
	for _, bi := range instances {
		out = append(out, instanceView(bi, ptr(books, bi.Book)))
	}
	return out, nil
}

func (s *Service) BookInstanceDetail(ctx context.Context, id string) (_ InstanceView, err error) {
	ctx, span := s.start(ctx, "BookInstanceDetail", attribute.String("bookinstance.id", id))
	defer func() { end(span, err) }()

	bi, err := s.store.BookInstances().Get(ctx, id)
	if err != nil {
		return InstanceView{}, fmt.Errorf("book instance detail: %w", err)
	}
	books, err := resolve(ctx, s.store.Books(), []string{bi.Book})
	if err != nil {
		return InstanceView{}, fmt.Errorf("join book: %w", err)
	}
	return instanceView(bi, ptr(books, bi.Book)), nil
}

func (s *Service) CreateBookInstance(ctx context.Context, in BookInstanceInput) (_ models.BookInstance, err error) {
	ctx, span := s.start(ctx, "CreateBookInstance")
	defer func() { end(span, err) }()

	bi, err := s.validInstance(ctx, in)
	if err != nil {
		return models.BookInstance{}, err
	}
	id, err := s.store.BookInstances().Create(ctx, bi)
	if err != nil {
		return models.BookInstance{}, fmt.Errorf("create book instance: %w", err)
	}
	return bi.WithID(id), nil
}

func (s *Service) UpdateBookInstance(ctx context.Context, id string, in BookInstanceInput) (_ models.BookInstance, err error) {
	ctx, span := s.start(ctx, "UpdateBookInstance", attribute.String("bookinstance.id", id))
	defer func() { end(span, err) }()

	if err := s.target(ctx, models.KindBookInstance, id); err != nil {
		return models.BookInstance{}, err
	}
	bi, err := s.validInstance(ctx, in)
	if err != nil {
		return models.BookInstance{}, err
	}
	updated, err := s.store.BookInstances().Update(ctx, id, bi)
	if err != nil {
		return models.BookInstance{}, fmt.Errorf("update book instance: %w", err)
	}
	return updated, nil
}

func (s *Service) validInstance(ctx context.Context, in BookInstanceInput) (models.BookInstance, error) {
	c := validate.New()
	bi := in.normalize(c)
	if bi.Book != "" {
		if err := s.checkRefs(ctx, c, []refCheck{{field: models.FieldBook, kind: models.KindBook, id: bi.Book}}); err != nil {
			return models.BookInstance{}, err
		}
	}
	return bi, invalid(models.KindBookInstance, c, in)
}

// InstanceFormOptions lists the books a copy can belong to and the statuses
// it can take.
func (s *Service) InstanceFormOptions(ctx context.Context) (_ InstanceForm, err error) {
	ctx, span := s.start(ctx, "InstanceFormOptions")
	defer func() { end(span, err) }()

	books, err := s.store.Books().Find(ctx, Query{
		Sort:   models.FieldTitle,
		Fields: []string{models.FieldID, models.FieldTitle},
	})
	if err != nil {
		return InstanceForm{}, fmt.Errorf("instance form: %w", err)
	}
	return InstanceForm{Books: books, Statuses: models.Statuses}, nil
}

// ---------- Shared ----------

// Delete removes kind/id when nothing references it. See Guard.Delete.
func (s *Service) Delete(ctx context.Context, kind models.Kind, id string) (err error) {
	ctx, span := s.start(ctx, "Delete", attribute.String("kind", kind.String()), attribute.String("id", id))
	defer func() { end(span, err) }()

	return s.guard.Delete(ctx, kind, id)
}

// Summary counts every collection plus the available copies concurrently.
func (s *Service) Summary(ctx context.Context) (_ Summary, err error) {
	ctx, span := s.start(ctx, "Summary")
	defer func() { end(span, err) }()

	var out Summary
	eg, egCtx := errgroup.WithContext(ctx)
	count := func(dst *int, fn func(context.Context, Filter) (int, error), f Filter) {
		eg.Go(func() (err error) {
			*dst, err = fn(egCtx, f)
			return err
		})
	}
	count(&out.BookCount, s.store.Books().Count, Filter{})
	count(&out.BookInstanceCount, s.store.BookInstances().Count, Filter{})
	count(&out.AvailableInstanceCount, s.store.BookInstances().Count, Where(models.FieldStatus, string(models.StatusAvailable)))
	count(&out.AuthorCount, s.store.Authors().Count, Filter{})
	count(&out.GenreCount, s.store.Genres().Count, Filter{})
	if err := eg.Wait(); err != nil {
		return Summary{}, fmt.Errorf("summary: %w", err)
	}
	return out, nil
}

// target confirms the entity an update addresses exists, so a missing id is
// reported as NotFound ahead of any field errors.
func (s *Service) target(ctx context.Context, kind models.Kind, id string) error {
	if err := s.guard.ops[kind].exists(ctx, id); err != nil {
		return fmt.Errorf("update %s: %w", kind, err)
	}
	return nil
}

type refCheck struct {
	field string
	kind  models.Kind
	id    string
}

// checkRefs records a field error for every reference that does not resolve.
func (s *Service) checkRefs(ctx context.Context, c *validate.Checker, checks []refCheck) error {
	missing := make([]bool, len(checks))
	eg, egCtx := errgroup.WithContext(ctx)
	eg.SetLimit(joinParallelism)
	for i, rc := range checks {
		eg.Go(func() error {
			err := s.guard.ops[rc.kind].exists(egCtx, rc.id)
			if IsNotFound(err) {
				missing[i] = true
				return nil
			}
			return err
		})
	}
	if err := eg.Wait(); err != nil {
		return fmt.Errorf("check references: %w", err)
	}
	for i, rc := range checks {
		if missing[i] {
			c.Add(rc.field, "not_found", fmt.Sprintf("%s %q does not exist.", rc.kind, rc.id))
		}
	}
	return nil
}

// resolve fetches the distinct ids concurrently. Ids that no longer resolve
// are left out of the result.
func resolve[T any](ctx context.Context, c Collection[T], ids []string) (map[string]T, error) {
	out := make(map[string]T, len(ids))
	var mu sync.Mutex
	eg, egCtx := errgroup.WithContext(ctx)
	eg.SetLimit(joinParallelism)
	seen := map[string]bool{}
	for _, id := range ids {
		if id == "" || seen[id] {
			continue
		}
		seen[id] = true
		eg.Go(func() error {
			v, err := c.Get(egCtx, id)
			if IsNotFound(err) {
				return nil
			}
			if err != nil {
				return err
			}
			mu.Lock()
			out[id] = v
			mu.Unlock()
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

func ptr[T any](m map[string]T, id string) *T {
	v, ok := m[id]
	if !ok {
		return nil
	}
	return &v
}
