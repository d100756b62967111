package pgqueue

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/dmitrymomot/pgtask/pkg/logger"
	"github.com/dmitrymomot/pgtask/pkg/pg"
	"github.com/dmitrymomot/pgtask/pkg/queue"
)

// insertAttempts bounds the insert/select dance for unique tasks
const insertAttempts = 3

// Queue implements queue.Queueable on a PostgreSQL table.
//
// Claims use FOR UPDATE SKIP LOCKED, so any number of workers in any number
// of processes can poll the same table. Due times are judged by the database
// clock, never the host's. Uniqueness relies on the partial
// unique index created by Migrate.
type Queue struct {
	pool     *pgxpool.Pool
	registry *queue.Registry
	table    string
	sql      queries
	logger   *slog.Logger
	now      func() time.Time
}

var _ queue.Queueable = (*Queue)(nil)

// New creates a queue on pool. Tasks are encoded and decoded with registry.
func New(pool *pgxpool.Pool, registry *queue.Registry, opts ...Option) (*Queue, error) {
	if pool == nil {
		return nil, ErrPoolNil
	}
	if registry == nil {
		return nil, queue.ErrRegistryNil
	}

	q := &Queue{
		pool:     pool,
		registry: registry,
		table:    DefaultTableName,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(q)
	}

	if strings.TrimSpace(q.table) == "" {
		return nil, ErrInvalidTableName
	}
	q.sql = newQueries(q.table)
	q.logger = q.logger.With(logger.Component("pgqueue"), slog.String("table", q.table))

	return q, nil
}

// InsertTask implements queue.Queueable
func (q *Queue) InsertTask(ctx context.Context, run queue.Runnable) (*queue.Task, error) {
	now, err := q.currentTime(ctx)
	if err != nil {
		return nil, err
	}
	task, err := q.registry.BuildTask(run, now)
	if err != nil {
		return nil, err
	}
	return q.insert(ctx, task)
}

// ScheduleTask implements queue.Queueable
func (q *Queue) ScheduleTask(ctx context.Context, run queue.Runnable) (*queue.Task, error) {
	now, err := q.currentTime(ctx)
	if err != nil {
		return nil, err
	}
	task, err := q.registry.BuildScheduledTask(run, now)
	if err != nil {
		return nil, err
	}
	return q.insert(ctx, task)
}

// insert writes the task or returns the pending task holding the same hash.
// ON CONFLICT DO NOTHING yields no row on a duplicate; the duplicate may
// leave the uniqueness window before it is read back, hence the retry.
func (q *Queue) insert(ctx context.Context, task *queue.Task) (*queue.Task, error) {
	for range insertAttempts {
		created, err := scanTask(q.pool.QueryRow(ctx, q.sql.insert,
			task.ID, string(task.Metadata), task.TaskType, task.UniqHash, task.ScheduledAt, task.CreatedAt))
		if err == nil {
			return created, nil
		}
		if !pg.IsNotFoundError(err) || task.UniqHash == nil {
			return nil, errors.Join(queue.ErrTaskCreate, err)
		}

		existing, err := scanTask(q.pool.QueryRow(ctx, q.sql.findPending, *task.UniqHash))
		if err == nil {
			q.logger.DebugContext(ctx, "duplicate task suppressed",
				logger.TaskID(existing.ID.String()),
				logger.Discriminator(existing.Discriminator()))
			return existing, nil
		}
		if !pg.IsNotFoundError(err) {
			return nil, errors.Join(queue.ErrTaskCreate, err)
		}
	}

	return nil, fmt.Errorf("%w: uniq hash %s is contended", queue.ErrTaskCreate, *task.UniqHash)
}

// FetchAndTouchTask implements queue.Queueable
func (q *Queue) FetchAndTouchTask(ctx context.Context, taskType string) (*queue.Task, error) {
	types := []string{queue.CommonType}
	if taskType != "" && taskType != queue.CommonType {
		types = append(types, taskType)
	}

	var claimed *queue.Task
	err := pgx.BeginFunc(ctx, q.pool, func(tx pgx.Tx) error {
		task, err := scanTask(tx.QueryRow(ctx, q.sql.claim, types, q.clockArg()))
		if err != nil {
			if pg.IsNotFoundError(err) {
				return nil
			}
			return err
		}
		claimed = task
		return nil
	})
	if err != nil {
		return nil, errors.Join(ErrFetchTask, err)
	}

	return claimed, nil
}

// UpdateTaskState implements queue.Queueable
func (q *Queue) UpdateTaskState(ctx context.Context, task *queue.Task, state queue.State) (*queue.Task, error) {
	if !state.Valid() {
		return nil, fmt.Errorf("%w: %q", queue.ErrInvalidState, state)
	}
	if task == nil {
		return nil, queue.ErrTaskNil
	}
	return q.transition(ctx, task, state, q.sql.updateState, task.ID, string(state), q.clockArg())
}

// FailTask implements queue.Queueable
func (q *Queue) FailTask(ctx context.Context, task *queue.Task, errorMessage string) (*queue.Task, error) {
	if task == nil {
		return nil, queue.ErrTaskNil
	}
	return q.transition(ctx, task, queue.StateFailed, q.sql.fail, task.ID, errorMessage, q.clockArg())
}

// RetryTask implements queue.Queueable
func (q *Queue) RetryTask(ctx context.Context, task *queue.Task, backoff time.Duration) (*queue.Task, error) {
	if task == nil {
		return nil, queue.ErrTaskNil
	}
	return q.transition(ctx, task, queue.StateNew, q.sql.retry, task.ID, backoff.Microseconds(), q.clockArg())
}

// transition runs a guarded UPDATE. When no row matches it tells a missing
// task apart from one whose state forbids the move.
func (q *Queue) transition(ctx context.Context, task *queue.Task, target queue.State, query string, args ...any) (*queue.Task, error) {
	updated, err := scanTask(q.pool.QueryRow(ctx, query, args...))
	if err == nil {
		return updated, nil
	}
	if !pg.IsNotFoundError(err) {
		return nil, errors.Join(queue.ErrFailedToUpdateTaskState, err)
	}

	current, err := q.FindTaskByID(ctx, task.ID)
	if err != nil {
		return nil, err
	}
	if current == nil {
		return nil, fmt.Errorf("%w: %s", queue.ErrTaskNotFound, task.ID)
	}
	return nil, fmt.Errorf("%w: %s -> %s", queue.ErrTerminalState, current.State, target)
}

// RemoveTask implements queue.Queueable
func (q *Queue) RemoveTask(ctx context.Context, id uuid.UUID) (int64, error) {
	return q.remove(ctx, q.sql.remove, id)
}

// RemoveTasksOfType implements queue.Queueable
func (q *Queue) RemoveTasksOfType(ctx context.Context, taskType string) (int64, error) {
	return q.remove(ctx, q.sql.removeOfType, taskType)
}

// RemoveAllTasks implements queue.Queueable
func (q *Queue) RemoveAllTasks(ctx context.Context) (int64, error) {
	return q.remove(ctx, q.sql.removeAll)
}

// RemoveAllScheduledTasks implements queue.Queueable
func (q *Queue) RemoveAllScheduledTasks(ctx context.Context) (int64, error) {
	return q.remove(ctx, q.sql.removeFuture, q.clockArg())
}

// RemoveTaskByMetadata implements queue.Queueable. Metadata is compared as
// jsonb, so key order and whitespace don't matter.
func (q *Queue) RemoveTaskByMetadata(ctx context.Context, run queue.Runnable) (int64, error) {
	metadata, err := q.registry.Encode(run)
	if err != nil {
		return 0, err
	}
	return q.remove(ctx, q.sql.removeMetadata, string(metadata))
}

func (q *Queue) remove(ctx context.Context, query string, args ...any) (int64, error) {
	tag, err := q.pool.Exec(ctx, query, args...)
	if err != nil {
		return 0, errors.Join(ErrRemoveTasks, err)
	}
	return tag.RowsAffected(), nil
}

// FindTaskByID implements queue.Queueable
func (q *Queue) FindTaskByID(ctx context.Context, id uuid.UUID) (*queue.Task, error) {
	task, err := scanTask(q.pool.QueryRow(ctx, q.sql.find, id))
	if err != nil {
		if pg.IsNotFoundError(err) {
			return nil, nil
		}
		return nil, errors.Join(ErrFindTask, err)
	}
	return task, nil
}

// currentTime is the instant new tasks are stamped and scheduled from: the
// database clock unless WithClock overrides it.
// Healthcheck returns a readiness check that fails with ErrNotMigrated until
// the task table exists.
func (q *Queue) Healthcheck() func(context.Context) error {
	return func(ctx context.Context) error {
		if _, err := q.pool.Exec(ctx, q.sql.ready); err != nil {
			if pg.IsUndefinedTableError(err) {
				return fmt.Errorf("%w: %s", ErrNotMigrated, q.table)
			}
			return errors.Join(ErrNotReady, err)
		}
		return nil
	}
}

func (q *Queue) currentTime(ctx context.Context) (time.Time, error) {
	if q.now != nil {
		return q.now(), nil
	}
	var now time.Time
	if err := q.pool.QueryRow(ctx, q.sql.now).Scan(&now); err != nil {
		return time.Time{}, errors.Join(queue.ErrTaskCreate, err)
	}
	return now, nil
}

// clockArg fills the COALESCE(..., now()) parameters; nil defers to the database
func (q *Queue) clockArg() any {
	if q.now == nil {
		return nil
	}
	return q.now()
}

// scanTask reads a row selected with the columns list
func scanTask(row pgx.Row) (*queue.Task, error) {
	var (
		task  queue.Task
		state string
	)
	err := row.Scan(
		&task.ID,
		&task.Metadata,
		&task.TaskType,
		&task.UniqHash,
		&state,
		&task.ErrorMessage,
		&task.Retries,
		&task.ScheduledAt,
		&task.CreatedAt,
		&task.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	task.State = queue.State(state)
	return &task, nil
}
