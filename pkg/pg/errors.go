package pg

import (
	"errors"

	"github.com/jackc/pgx/v5/pgconn"
)

var (
	ErrEmptyConnectionString = errors.New("pg: PG_CONN_URL is empty")
	ErrInvalidConfig         = errors.New("pg: invalid pool config")
	ErrUnavailable           = errors.New("pg: database unavailable")
	ErrReadOnly              = errors.New("pg: connected to a read-only replica")
	ErrMigration             = errors.New("pg: migration failed")
)

// uniqueViolation is the SQLSTATE of a unique constraint violation.
const uniqueViolation = "23505"

// IsDuplicateKeyError reports whether err is a unique constraint violation.
func IsDuplicateKeyError(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == uniqueViolation
}
