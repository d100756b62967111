// Package pgqueue implements queue.Queueable on PostgreSQL using pgx/v5.
//
// Workers claim tasks with a single UPDATE fed by a SELECT ... FOR UPDATE SKIP
// LOCKED, so concurrent claims never block each other and never return the
// same row twice. A partial unique index over uniq_hash, limited to the new
// and in_progress states, makes duplicate suppression atomic across processes.
//
//	pool, _ := pg.Connect(ctx, cfg)
//	if err := pgqueue.Migrate(ctx, pool, log); err != nil {
//	    return err
//	}
//	q, err := pgqueue.New(pool, registry, pgqueue.WithLogger(log))
//
// Migrate applies the embedded goose migrations and keeps its version table
// apart from the application's. Timestamps are produced by the application
// clock, not by now() in the database.
package pgqueue
