// Command pgtaskd runs a pgtask worker pool, the recurring task scheduler and
// the admin HTTP API against one PostgreSQL database.
//
// Configuration comes from the environment (and .env files):
//
//	PG_CONN_URL           required
//	PG_MIGRATIONS_PATH    optional application migrations applied on start
//	QUEUE_*               worker pool and scheduler settings
//	HTTP_*                admin listener
//	LOG_*, APP_ENV        logging
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/dmitrymomot/pgtask/pkg/admin"
	"github.com/dmitrymomot/pgtask/pkg/config"
	"github.com/dmitrymomot/pgtask/pkg/httpserver"
	"github.com/dmitrymomot/pgtask/pkg/logger"
	"github.com/dmitrymomot/pgtask/pkg/pg"
	"github.com/dmitrymomot/pgtask/pkg/pgqueue"
	"github.com/dmitrymomot/pgtask/pkg/queue"
)

var errShutdownTimeout = errors.New("pgtaskd: shutdown timed out")

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx); err != nil {
		slog.Error("pgtaskd stopped with error", logger.Error(err))
		os.Exit(1)
	}
}

type settings struct {
	log   logger.Config
	pg    pg.Config
	queue queue.Config
	http  httpserver.Config
}

func loadSettings() (settings, error) {
	var s settings
	if err := errors.Join(
		config.Load(&s.log),
		config.Load(&s.pg),
		config.Load(&s.queue),
		config.Load(&s.http),
	); err != nil {
		return settings{}, err
	}
	return s, nil
}

func run(ctx context.Context) error {
	cfg, err := loadSettings()
	if err != nil {
		return err
	}

	log := logger.NewFromConfig(cfg.log)
	logger.SetAsDefault(log)

	pool, err := pg.Connect(ctx, cfg.pg)
	if err != nil {
		return err
	}
	defer pool.Close()

	if err := pgqueue.Migrate(ctx, pool, log); err != nil {
		return err
	}
	if cfg.pg.MigrationsPath != "" {
		if err := pg.Migrate(ctx, pool, cfg.pg, log); err != nil {
			return err
		}
	}

	reg := registry()

	q, err := pgqueue.New(pool, reg, pgqueue.WithLogger(log))
	if err != nil {
		return err
	}

	workerOpts := append(cfg.queue.WorkerOptions(), queue.WithWorkerLogger(log))
	workers, err := queue.NewWorkerPool(q, reg, cfg.queue.Workers, workerOpts...)
	if err != nil {
		return err
	}

	scheduler, err := queue.NewScheduler(q, append(cfg.queue.SchedulerOptions(), queue.WithSchedulerLogger(log))...)
	if err != nil {
		return err
	}
	if err := scheduler.AddRegistry(reg); err != nil {
		return err
	}

	checks := []httpserver.Check{
		{Name: "postgres", Probe: pg.Healthcheck(pool)},
		{Name: "task_table", Probe: q.Healthcheck()},
	}
	router, err := admin.Router(admin.Options{
		Queue:        q,
		Registry:     reg,
		Logger:       log,
		Checks:       checks,
		CheckTimeout: 2 * time.Second,
	})
	if err != nil {
		return err
	}
	srv := httpserver.NewFromConfig(cfg.http, httpserver.WithLogger(log))

	log.InfoContext(ctx, "pgtaskd starting",
		slog.Int("workers", workers.Size()),
		slog.String("task_type", cfg.queue.TaskType),
		slog.Any("recurring", scheduler.ListTasks()))

	g, gctx := errgroup.WithContext(ctx)
	g.Go(workers.Run(gctx))
	g.Go(scheduler.Run(gctx))
	g.Go(func() error { return srv.Run(gctx, router) })

	return wait(ctx, g, cfg.queue.ShutdownTimeout, log)
}

// wait returns the group result, giving in-flight tasks at most timeout to
// finish once ctx is cancelled.
func wait(ctx context.Context, g *errgroup.Group, timeout time.Duration, log *slog.Logger) error {
	done := make(chan error, 1)
	go func() { done <- g.Wait() }()

	select {
	case err := <-done:
		return err
	case <-ctx.Done():
	}

	log.Info("shutting down", slog.Duration("timeout", timeout))

	select {
	case err := <-done:
		return err
	case <-time.After(timeout):
		return fmt.Errorf("%w after %s", errShutdownTimeout, timeout)
	}
}
