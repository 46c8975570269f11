package pg

import (
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

var (
	ErrFailedToConnect     = errors.New("failed to connect to postgres")
	ErrFailedToParseConfig = errors.New("failed to parse postgres config")
	ErrFailedToMigrate     = errors.New("failed to apply migrations")
	ErrMigrationsDirAbsent = errors.New("migrations directory not found")
	ErrHealthcheckFailed   = errors.New("postgres healthcheck failed")
)

// IsNotFound detects pgx.ErrNoRows for consistent lookup-miss handling.
func IsNotFound(err error) bool {
	return errors.Is(err, pgx.ErrNoRows)
}

// IsUniqueViolation detects PostgreSQL unique constraint violations
// (SQLSTATE 23505). The account linker depends on this to tell a lost
// creation race apart from a real failure.
func IsUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

// IsForeignKeyViolation detects referential integrity violations
// (SQLSTATE 23503).
func IsForeignKeyViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23503"
}
