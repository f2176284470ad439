package dbx

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jmoiron/sqlx"

	"github.com/5w1tchy/local-library/internal/catalog"
)

// WithinTx runs fn in a transaction (commit on nil, rollback on error).
func WithinTx(ctx context.Context, db *sqlx.DB, fn func(tx *sqlx.Tx) error) error {
	tx, err := db.BeginTxx(ctx, nil)
	if err != nil {
		return MapPGError(err)
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	return MapPGError(tx.Commit())
}

// MapPGError normalizes driver errors into catalog errors:
// unique and foreign key violations become catalog.ErrConflict, connection
// and resource failures become catalog.ErrStoreUnavailable. Other server
// errors (bad SQL, bad input) are wrapped with their SQLSTATE.
func MapPGError(err error) error {
	if err == nil || errors.Is(err, sql.ErrNoRows) {
		return err
	}
	var pg *pgconn.PgError
	if !errors.As(err, &pg) {
		// network, pool or context failure
		return catalog.Unavailable(err)
	}

	switch {
	case pg.Code == "23505", // unique_violation
		pg.Code == "23503": // foreign_key_violation
		return fmt.Errorf("%w: %s (%s)", catalog.ErrConflict, strings.TrimSpace(pg.Message), pg.ConstraintName)
	case pg.Code == "40001", // serialization_failure
		pg.Code == "40P01", // deadlock_detected
		pg.Code == "57P01", // admin_shutdown
		strings.HasPrefix(pg.Code, "08"), // connection_exception
		strings.HasPrefix(pg.Code, "53"): // insufficient_resources
		return catalog.Unavailable(err)
	}
	return fmt.Errorf("postgres %s: %w", pg.Code, err)
}
