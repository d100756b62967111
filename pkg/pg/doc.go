// Package pg bootstraps a PostgreSQL connection pool on top of pgx/v5 and
// applies goose/v3 migrations through the same pool.
//
//	var cfg pg.Config
//	config.MustLoad(&cfg)
//
//	pool, err := pg.Connect(ctx, cfg)
//	if err != nil {
//	    return err
//	}
//	defer pool.Close()
//
// Connect retries with a growing delay so services that start alongside the
// database don't crash-loop. MigrateFS runs migrations from any fs.FS, which
// lets packages embed their schema; Migrate does the same for a directory on
// disk. Healthcheck adapts the pool to a readiness probe.
package pg
