package pg

import (
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

var (
	ErrFailedToOpenDBConnection   = errors.New("failed to open db connection")
	ErrEmptyConnectionString      = errors.New("empty postgres connection string, set PG_CONN_URL")
	ErrHealthcheckFailed          = errors.New("healthcheck failed, connection is not available")
	ErrFailedToParseDBConfig      = errors.New("failed to parse db config")
	ErrFailedToApplyMigrations    = errors.New("failed to apply migrations")
	ErrMigrationsDirNotFound      = errors.New("migrations directory not found")
	ErrMigrationPathNotProvided   = errors.New("migration path not provided")
	ErrMigrationsTableNotProvided = errors.New("migrations table not provided")
)

// IsNotFoundError reports whether err is pgx.ErrNoRows.
func IsNotFoundError(err error) bool {
	return err != nil && errors.Is(err, pgx.ErrNoRows)
}

// IsUndefinedTableError reports SQLSTATE 42P01, returned when migrations
// haven't been applied yet.
func IsUndefinedTableError(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "42P01"
}
