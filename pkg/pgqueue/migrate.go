package pgqueue

import (
	"context"
	"embed"
	"io/fs"
	"log/slog"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/dmitrymomot/pgtask/pkg/pg"
)

//go:embed migrations/*.sql
var migrations embed.FS

// MigrationsTable records the applied queue schema versions. It is separate
// from the application's own migrations table.
const MigrationsTable = "pgtask_schema_migrations"

// Migrate creates or upgrades the pgtask_tasks table. A nil log means slog.Default.
func Migrate(ctx context.Context, pool *pgxpool.Pool, log *slog.Logger) error {
	if pool == nil {
		return ErrPoolNil
	}
	if log == nil {
		log = slog.Default()
	}

	fsys, err := fs.Sub(migrations, "migrations")
	if err != nil {
		return err
	}
	return pg.MigrateFS(ctx, pool, fsys, MigrationsTable, log)
}
