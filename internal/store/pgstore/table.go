package pgstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"slices"

	"github.com/doug-martin/goqu/v9"
	"github.com/doug-martin/goqu/v9/exp"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/5w1tchy/local-library/internal/catalog"
	"github.com/5w1tchy/local-library/internal/models"
	"github.com/5w1tchy/local-library/internal/store/dbx"
	"github.com/5w1tchy/local-library/internal/store/shared"
)

// table maps one collection onto one SQL table. R is the scan target; it is
// the model itself except where a column needs a driver type.
type table[T models.Document[T], R any] struct {
	db      *sqlx.DB
	tracer  trace.Tracer
	kind    models.Kind
	columns []string
	record  func(T) goqu.Record
	model   func(R) T
}

func (t *table[T, R]) name() string { return t.kind.Collection() }

func (t *table[T, R]) span(ctx context.Context, op string) (context.Context, trace.Span) {
	return t.tracer.Start(ctx, "pgstore."+op, trace.WithAttributes(
		attribute.String("db.system", "postgresql"),
		attribute.String("db.sql.table", t.name()),
	))
}

func (t *table[T, R]) Create(ctx context.Context, v T) (string, error) {
	ctx, span := t.span(ctx, "create")
	defer span.End()

	id := uuid.NewString()
	query, args, err := dialect.Insert(t.name()).Prepared(true).Rows(t.record(v.WithID(id))).ToSQL()
	if err != nil {
		return "", fmt.Errorf("build insert %s: %w", t.name(), err)
	}
	if _, err := t.db.ExecContext(ctx, query, args...); err != nil {
		return "", fmt.Errorf("insert %s: %w", t.kind, dbx.MapPGError(err))
	}
	return id, nil
}

func (t *table[T, R]) Get(ctx context.Context, id string) (T, error) {
	var zero T
	if !shared.IsUUID(id) {
		return zero, catalog.NotFound(t.kind, id)
	}
	ctx, span := t.span(ctx, "get")
	defer span.End()

	query, args, err := dialect.From(t.name()).Prepared(true).
		Select(cols(t.columns)...).
		Where(goqu.C(models.FieldID).Eq(id)).
		ToSQL()
	if err != nil {
		return zero, fmt.Errorf("build select %s: %w", t.name(), err)
	}
	var row R
	if err := t.db.GetContext(ctx, &row, query, args...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return zero, catalog.NotFound(t.kind, id)
		}
		return zero, fmt.Errorf("get %s: %w", t.kind, dbx.MapPGError(err))
	}
	return t.model(row), nil
}

func (t *table[T, R]) Find(ctx context.Context, q catalog.Query) ([]T, error) {
	ctx, span := t.span(ctx, "find")
	defer span.End()

	query, args, err := t.selectSQL(q)
	if err != nil {
		return nil, err
	}
	var rows []R
	if err := t.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("find %s: %w", t.kind, dbx.MapPGError(err))
	}
	out := make([]T, 0, len(rows))
	for _, r := range rows {
		out = append(out, t.model(r))
	}
	span.SetAttributes(attribute.Int("db.rows", len(out)))
	return out, nil
}

func (t *table[T, R]) Update(ctx context.Context, id string, v T) (T, error) {
	var zero T
	if !shared.IsUUID(id) {
		return zero, catalog.NotFound(t.kind, id)
	}
	ctx, span := t.span(ctx, "update")
	defer span.End()

	rec := t.record(v.WithID(id))
	delete(rec, models.FieldID)
	query, args, err := dialect.Update(t.name()).Prepared(true).
		Set(rec).
		Where(goqu.C(models.FieldID).Eq(id)).
		Returning(cols(t.columns)...).
		ToSQL()
	if err != nil {
		return zero, fmt.Errorf("build update %s: %w", t.name(), err)
	}
	var row R
	if err := t.db.GetContext(ctx, &row, query, args...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return zero, catalog.NotFound(t.kind, id)
		}
		return zero, fmt.Errorf("update %s: %w", t.kind, dbx.MapPGError(err))
	}
	return t.model(row), nil
}

func (t *table[T, R]) Delete(ctx context.Context, id string) error {
	if !shared.IsUUID(id) {
		return catalog.NotFound(t.kind, id)
	}
	ctx, span := t.span(ctx, "delete")
	defer span.End()

	query, args, err := dialect.Delete(t.name()).Prepared(true).
		Where(goqu.C(models.FieldID).Eq(id)).
		ToSQL()
	if err != nil {
		return fmt.Errorf("build delete %s: %w", t.name(), err)
	}
	res, err := t.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("delete %s: %w", t.kind, dbx.MapPGError(err))
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete %s: %w", t.kind, dbx.MapPGError(err))
	}
	if n == 0 {
		return catalog.NotFound(t.kind, id)
	}
	return nil
}

func (t *table[T, R]) Count(ctx context.Context, f catalog.Filter) (int, error) {
	ctx, span := t.span(ctx, "count")
	defer span.End()

	ds := dialect.From(t.name()).Prepared(true).Select(goqu.COUNT(goqu.Star()))
	w, err := t.where(f)
	if err != nil {
		return 0, err
	}
	if w != nil {
		ds = ds.Where(w)
	}
	query, args, err := ds.ToSQL()
	if err != nil {
		return 0, fmt.Errorf("build count %s: %w", t.name(), err)
	}
	var n int
	if err := t.db.GetContext(ctx, &n, query, args...); err != nil {
		return 0, fmt.Errorf("count %s: %w", t.kind, dbx.MapPGError(err))
	}
	return n, nil
}

func (t *table[T, R]) selectSQL(q catalog.Query) (string, []any, error) {
	selected := t.columns
	if len(q.Fields) > 0 {
		selected = []string{models.FieldID}
		for _, f := range q.Fields {
			if err := t.known(f); err != nil {
				return "", nil, err
			}
			if !slices.Contains(selected, f) {
				selected = append(selected, f)
			}
		}
	}

	ds := dialect.From(t.name()).Prepared(true).Select(cols(selected)...)
	w, err := t.where(q.Filter)
	if err != nil {
		return "", nil, err
	}
	if w != nil {
		ds = ds.Where(w)
	}
	if q.Sort != "" {
		if err := t.known(q.Sort); err != nil {
			return "", nil, err
		}
		ds = ds.Order(goqu.I(q.Sort).Asc(), goqu.I(colSeq).Asc())
	} else {
		ds = ds.Order(goqu.I(colSeq).Asc())
	}
	if q.Limit > 0 {
		ds = ds.Limit(uint(q.Limit))
	}

	query, args, err := ds.ToSQL()
	if err != nil {
		return "", nil, fmt.Errorf("build select %s: %w", t.name(), err)
	}
	return query, args, nil
}

func (t *table[T, R]) where(f catalog.Filter) (exp.Expression, error) {
	if f.Empty() {
		return nil, nil
	}
	exprs := make([]exp.Expression, 0, len(f.Conds))
	for _, c := range f.Conds {
		if err := t.known(c.Field); err != nil {
			return nil, err
		}
		switch c.Op {
		case catalog.OpEq:
			exprs = append(exprs, goqu.C(c.Field).Eq(c.Value))
		case catalog.OpContainsFold:
			exprs = append(exprs, goqu.C(c.Field).ILike(shared.ContainsPattern(c.Value)))
		case catalog.OpHas:
			exprs = append(exprs, goqu.L("? @> ARRAY[?]::text[]", goqu.C(c.Field), c.Value))
		default:
			return nil, fmt.Errorf("unsupported op %s on %s.%s", c.Op, t.name(), c.Field)
		}
	}
	if f.MatchAny {
		return goqu.Or(exprs...), nil
	}
	return goqu.And(exprs...), nil
}

func (t *table[T, R]) known(field string) error {
	if !slices.Contains(t.columns, field) {
		return fmt.Errorf("unknown field %q on %s", field, t.name())
	}
	return nil
}

func cols(names []string) []any {
	out := make([]any, len(names))
	for i, n := range names {
		out[i] = n
	}
	return out
}
