package queue

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/dmitrymomot/pgtask/pkg/logger"
)

// Worker claims tasks of one type from a Queueable and executes them one at a time.
type Worker struct {
	queue    Queueable
	registry *Registry
	workerID uuid.UUID

	taskType     string
	pollInterval time.Duration
	retention    RetentionMode
	logger       *slog.Logger

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

// NewWorker creates a worker polling q and decoding tasks with registry
func NewWorker(q Queueable, registry *Registry, opts ...WorkerOption) (*Worker, error) {
	if q == nil {
		return nil, ErrQueueNil
	}
	if registry == nil {
		return nil, ErrRegistryNil
	}

	options := defaultWorkerOptions()
	for _, opt := range opts {
		opt(options)
	}

	return newWorker(q, registry, options), nil
}

func newWorker(q Queueable, registry *Registry, options *workerOptions) *Worker {
	id := uuid.New()
	return &Worker{
		queue:        q,
		registry:     registry,
		workerID:     id,
		taskType:     options.taskType,
		pollInterval: options.pollInterval,
		retention:    options.retention,
		logger:       options.logger.With(logger.WorkerID(id.String())),
	}
}

// ID returns the worker identifier used in logs
func (w *Worker) ID() uuid.UUID {
	return w.workerID
}

// Start runs the polling loop in the background until Stop is called or ctx is done
func (w *Worker) Start(ctx context.Context) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.cancel != nil {
		return ErrWorkerAlreadyStarted
	}

	ctx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	w.cancel = cancel
	w.done = done

	go func() {
		defer close(done)
		w.loop(ctx)
	}()

	w.logger.Info("worker started",
		logger.TaskType(w.taskType),
		slog.Duration("poll_interval", w.pollInterval))

	return nil
}

// Stop stops claiming new tasks and waits for the task in flight, if any, to finish
func (w *Worker) Stop() error {
	w.mu.Lock()
	if w.cancel == nil {
		w.mu.Unlock()
		return ErrWorkerNotStarted
	}
	cancel, done := w.cancel, w.done
	w.cancel, w.done = nil, nil
	w.mu.Unlock()

	cancel()
	<-done

	w.logger.Info("worker stopped")
	return nil
}

// Run starts the worker and returns a function suitable for errgroup
func (w *Worker) Run(ctx context.Context) func() error {
	return func() error {
		if err := w.Start(ctx); err != nil {
			return err
		}

		<-ctx.Done()

		return w.Stop()
	}
}

// loop polls until ctx is cancelled. Storage errors are logged and retried
// after the poll interval; they never end the loop.
func (w *Worker) loop(ctx context.Context) {
	idle := time.NewTimer(w.pollInterval)
	defer idle.Stop()

	for {
		if ctx.Err() != nil {
			return
		}

		processed, err := w.RunOnce(ctx)
		if err != nil && ctx.Err() == nil {
			w.logger.Error("worker iteration failed", logger.Error(err))
		}
		if processed && err == nil {
			continue
		}

		// since go1.23 Reset drops a stale fire
		idle.Reset(w.pollInterval)
		select {
		case <-ctx.Done():
			return
		case <-idle.C:
		}
	}
}

// RunOnce claims and executes at most one task. It reports whether a task was claimed.
//
// Only the claim observes ctx cancellation: once a task is claimed it is
// executed and resolved to completion so shutdown never strands it in_progress.
func (w *Worker) RunOnce(ctx context.Context) (bool, error) {
	task, err := w.queue.FetchAndTouchTask(ctx, w.taskType)
	if err != nil {
		return false, errors.Join(ErrFailedToGetNextTask, err)
	}
	if task == nil {
		return false, nil
	}

	return true, w.process(context.WithoutCancel(ctx), task)
}

// process executes a claimed task and resolves its final state
func (w *Worker) process(ctx context.Context, task *Task) error {
	log := w.logger.With(logger.TaskID(task.ID.String()), logger.TaskType(task.TaskType))

	run, err := w.registry.Decode(task.Metadata)
	if err != nil {
		// Retrying can't fix a code/data mismatch
		log.Error("task can't be decoded",
			logger.Discriminator(task.Discriminator()),
			logger.Error(err))
		return w.fail(ctx, task, err.Error())
	}

	log.Debug("executing task", logger.Discriminator(task.Discriminator()))

	runCtx := logger.ContextWithAttrs(ctx, logger.TaskID(task.ID.String()), logger.TaskType(task.TaskType))
	start := time.Now()
	runErr := w.execute(runCtx, run, log)
	duration := time.Since(start)

	if runErr == nil {
		return w.finish(ctx, task, log, duration)
	}

	if task.Retries < run.MaxRetries() {
		backoff := run.Backoff(task.Retries + 1)
		if _, err := w.queue.RetryTask(ctx, task, backoff); err != nil {
			return errors.Join(ErrFailedToUpdateTaskState, fmt.Errorf("retry task %s: %w", task.ID, err))
		}

		log.Warn("task failed, retry scheduled",
			logger.RetryCount(task.Retries+1),
			slog.Int("max_retries", run.MaxRetries()),
			slog.Duration("backoff", backoff),
			logger.Duration(duration),
			logger.Error(runErr))
		return nil
	}

	log.Error("task failed permanently",
		logger.RetryCount(task.Retries),
		logger.Duration(duration),
		logger.Error(runErr))

	return w.fail(ctx, task, runErr.Error())
}

// execute runs the task body, converting a panic into an error
func (w *Worker) execute(ctx context.Context, run Runnable, log *slog.Logger) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
			log.Error("task panicked",
				slog.Any("panic", r),
				slog.String("stack", string(debug.Stack())))
		}
	}()

	return run.Run(ctx, w.queue)
}

func (w *Worker) finish(ctx context.Context, task *Task, log *slog.Logger, duration time.Duration) error {
	if _, err := w.queue.UpdateTaskState(ctx, task, StateFinished); err != nil {
		return errors.Join(ErrFailedToUpdateTaskState, fmt.Errorf("finish task %s: %w", task.ID, err))
	}

	log.Info("task finished", logger.Duration(duration))

	return w.applyRetention(ctx, task, StateFinished)
}

func (w *Worker) fail(ctx context.Context, task *Task, message string) error {
	if _, err := w.queue.FailTask(ctx, task, message); err != nil {
		return errors.Join(ErrFailedToUpdateTaskState, fmt.Errorf("fail task %s: %w", task.ID, err))
	}
	return w.applyRetention(ctx, task, StateFailed)
}

func (w *Worker) applyRetention(ctx context.Context, task *Task, state State) error {
	if !w.retention.removes(state) {
		return nil
	}
	if _, err := w.queue.RemoveTask(ctx, task.ID); err != nil {
		return fmt.Errorf("remove %s task %s: %w", state, task.ID, err)
	}
	return nil
}
