// Package pgstore implements catalog.Store on PostgreSQL.
//
// Identifiers are generated UUID strings. Each table carries a bigserial seq
// column that gives Find its natural (insertion) order and breaks sort ties.
// Author and book references are also foreign keys, so Postgres refuses a
// delete that races with a new dependent (surfaced as catalog.ErrConflict).
package pgstore

import (
	"context"
	_ "embed"
	"fmt"
	"strings"

	"github.com/doug-martin/goqu/v9"
	_ "github.com/doug-martin/goqu/v9/dialect/postgres"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"go.opentelemetry.io/otel"
	"golang.org/x/text/collate"
	"golang.org/x/text/language"

	"github.com/5w1tchy/local-library/internal/catalog"
	"github.com/5w1tchy/local-library/internal/models"
	"github.com/5w1tchy/local-library/internal/store/dbx"
)

//go:embed schema.sql
var schema string

var dialect = goqu.Dialect("postgres")

const (
	colSeq     = "seq"
	colNameKey = "name_key"
)

type Store struct {
	db        *sqlx.DB
	authors   *table[models.Author, models.Author]
	genres    *table[models.Genre, models.Genre]
	books     *table[models.Book, bookRow]
	instances *table[models.BookInstance, models.BookInstance]
}

// New wires the tables. locale must match the catalog service collation so
// the unique genre name_key agrees with its duplicate check.
func New(db *sqlx.DB, locale language.Tag) *Store {
	tracer := otel.Tracer("local-library/pgstore")
	return &Store{
		db: db,
		authors: &table[models.Author, models.Author]{
			db: db, tracer: tracer, kind: models.KindAuthor,
			columns: []string{models.FieldID, models.FieldFirstName, models.FieldFamilyName, models.FieldDateOfBirth, models.FieldDateOfDeath},
			record: func(a models.Author) goqu.Record {
				return goqu.Record{
					models.FieldID:          a.ID,
					models.FieldFirstName:   a.FirstName,
					models.FieldFamilyName:  a.FamilyName,
					models.FieldDateOfBirth: a.DateOfBirth,
					models.FieldDateOfDeath: a.DateOfDeath,
				}
			},
			model: identity[models.Author],
		},
		genres: &table[models.Genre, models.Genre]{
			db: db, tracer: tracer, kind: models.KindGenre,
			columns: []string{models.FieldID, models.FieldName},
			record: func(g models.Genre) goqu.Record {
				return goqu.Record{
					models.FieldID:   g.ID,
					models.FieldName: g.Name,
					colNameKey:       catalog.GenreKey(collate.New(locale, collate.Loose), g.Name),
				}
			},
			model: identity[models.Genre],
		},
		books: &table[models.Book, bookRow]{
			db: db, tracer: tracer, kind: models.KindBook,
			columns: []string{models.FieldID, models.FieldTitle, models.FieldAuthor, models.FieldSummary, models.FieldISBN, models.FieldGenre},
			record: func(b models.Book) goqu.Record {
				genre := b.Genre
				if genre == nil {
					genre = []string{}
				}
				return goqu.Record{
					models.FieldID:      b.ID,
					models.FieldTitle:   b.Title,
					models.FieldAuthor:  b.Author,
					models.FieldSummary: b.Summary,
					models.FieldISBN:    b.ISBN,
					models.FieldGenre:   pq.StringArray(genre),
				}
			},
			model: bookRow.model,
		},
		instances: &table[models.BookInstance, models.BookInstance]{
			db: db, tracer: tracer, kind: models.KindBookInstance,
			columns: []string{models.FieldID, models.FieldBook, models.FieldImprint, models.FieldStatus, models.FieldDueBack},
			record: func(bi models.BookInstance) goqu.Record {
				return goqu.Record{
					models.FieldID:      bi.ID,
					models.FieldBook:    bi.Book,
					models.FieldImprint: bi.Imprint,
					models.FieldStatus:  string(bi.Status),
					models.FieldDueBack: bi.DueBack,
				}
			},
			model: identity[models.BookInstance],
		},
	}
}

func (s *Store) Authors() catalog.Collection[models.Author]             { return s.authors }
func (s *Store) Genres() catalog.Collection[models.Genre]               { return s.genres }
func (s *Store) Books() catalog.Collection[models.Book]                 { return s.books }
func (s *Store) BookInstances() catalog.Collection[models.BookInstance] { return s.instances }

func (s *Store) Ping(ctx context.Context) error { return dbx.MapPGError(s.db.PingContext(ctx)) }
func (s *Store) Close() error                   { return s.db.Close() }

// Migrate creates the tables and indexes if they do not exist yet.
func (s *Store) Migrate(ctx context.Context) error {
	return dbx.WithinTx(ctx, s.db, func(tx *sqlx.Tx) error {
		for _, stmt := range statements(schema) {
			if _, err := tx.ExecContext(ctx, stmt); err != nil {
				return fmt.Errorf("migrate: %w", dbx.MapPGError(err))
			}
		}
		return nil
	})
}

func statements(script string) []string {
	var out []string
	for _, s := range strings.Split(script, ";") {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}

// bookRow is the scan target for books; genre is a text[] column.
type bookRow struct {
	ID      string         `db:"id"`
	Title   string         `db:"title"`
	Author  string         `db:"author"`
	Summary string         `db:"summary"`
	ISBN    string         `db:"isbn"`
	Genre   pq.StringArray `db:"genre"`
}

func (r bookRow) model() models.Book {
	return models.Book{
		ID:      r.ID,
		Title:   r.Title,
		Author:  r.Author,
		Summary: r.Summary,
		ISBN:    r.ISBN,
		Genre:   []string(r.Genre),
	}
}

func identity[T any](v T) T { return v }
