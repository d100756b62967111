package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/dmitrymomot/pgtask/pkg/logger"
)

// Scheduler materializes occurrences of recurring Runnables into the queue.
//
// On every tick each registered Runnable gets at most one pending occurrence:
// the next one after now. Missed occurrences are not backfilled. Occurrence
// hashes make duplicate materialization a no-op, whether it comes from a
// repeated tick or from another scheduler process sharing the same store.
type Scheduler struct {
	queue    Queueable
	tasks    map[string]*recurringTask
	mu       sync.RWMutex
	interval time.Duration
	logger   *slog.Logger
	now      func() time.Time
}

// recurringTask holds a registered runnable and its latest materialized occurrence
type recurringTask struct {
	key             string
	run             Runnable
	lastScheduledAt *time.Time
}

// NewScheduler creates a new task scheduler
func NewScheduler(q Queueable, opts ...SchedulerOption) (*Scheduler, error) {
	if q == nil {
		return nil, ErrQueueNil
	}

	options := &schedulerOptions{
		checkInterval: 30 * time.Second,
		logger:        slog.Default(),
		now:           time.Now,
	}
	for _, opt := range opts {
		opt(options)
	}

	return &Scheduler{
		queue:    q,
		tasks:    make(map[string]*recurringTask),
		interval: options.checkInterval,
		logger:   options.logger.With(logger.Component("scheduler")),
		now:      options.now,
	}, nil
}

// AddTask registers a recurring runnable
func (s *Scheduler) AddTask(run Runnable) error {
	if run == nil {
		return ErrRunnableNil
	}
	sched := run.Cron()
	if !sched.Recurring() {
		return fmt.Errorf("%w: %T has no recurring schedule", ErrNoScheduleSpecified, run)
	}

	key, err := taskKey(run)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.tasks[key]; exists {
		return fmt.Errorf("%w: %s", ErrTaskAlreadyRegistered, key)
	}
	s.tasks[key] = &recurringTask{key: key, run: run}

	s.logger.Info("registered recurring task",
		slog.String("task", key),
		slog.String("schedule", sched.String()))

	return nil
}

// AddRegistry registers every recurring variant of the registry
func (s *Scheduler) AddRegistry(registry *Registry) error {
	if registry == nil {
		return ErrRegistryNil
	}
	for _, run := range registry.Recurring() {
		if err := s.AddTask(run); err != nil {
			return err
		}
	}
	return nil
}

// RemoveTask unregisters a recurring runnable. Occurrences already in the queue stay there.
func (s *Scheduler) RemoveTask(run Runnable) {
	key, err := taskKey(run)
	if err != nil {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.tasks, key)

	s.logger.Info("removed recurring task", slog.String("task", key))
}

// ListTasks returns the keys of all registered recurring tasks
func (s *Scheduler) ListTasks() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	keys := make([]string, 0, len(s.tasks))
	for key := range s.tasks {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}

// Start ticks immediately and then every check interval until ctx is done
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.RLock()
	taskCount := len(s.tasks)
	s.mu.RUnlock()

	if taskCount == 0 {
		return ErrSchedulerNotConfigured
	}

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	s.Tick(ctx)

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("scheduler shutting down")
			return ctx.Err()
		case <-ticker.C:
			s.Tick(ctx)
		}
	}
}

// Run returns a function suitable for errgroup. Cancellation is not an error.
func (s *Scheduler) Run(ctx context.Context) func() error {
	return func() error {
		if err := s.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
			return err
		}
		return nil
	}
}

// Tick materializes the next occurrence of every registered task that has none pending
func (s *Scheduler) Tick(ctx context.Context) {
	s.mu.RLock()
	tasks := make([]*recurringTask, 0, len(s.tasks))
	for _, task := range s.tasks {
		tasks = append(tasks, task)
	}
	s.mu.RUnlock()

	now := s.now()

	for _, task := range tasks {
		if err := s.scheduleIfNeeded(ctx, task, now); err != nil {
			s.logger.Error("failed to schedule recurring task",
				slog.String("task", task.key),
				logger.Error(err))
		}
	}
}

func (s *Scheduler) scheduleIfNeeded(ctx context.Context, task *recurringTask, now time.Time) error {
	s.mu.RLock()
	last := task.lastScheduledAt
	s.mu.RUnlock()

	// The upcoming occurrence is already in the queue
	if last != nil && last.After(now) {
		s.logger.Debug("recurring task not due yet",
			slog.String("task", task.key),
			slog.Time("scheduled_for", *last))
		return nil
	}

	created, err := s.queue.ScheduleTask(ctx, task.run)
	if err != nil {
		return err
	}

	s.mu.Lock()
	scheduledAt := created.ScheduledAt
	task.lastScheduledAt = &scheduledAt
	s.mu.Unlock()

	s.logger.Info("recurring task scheduled",
		slog.String("task", task.key),
		logger.TaskID(created.ID.String()),
		slog.Time("scheduled_for", created.ScheduledAt))

	return nil
}

// taskKey identifies a runnable by its type and serialized fields
func taskKey(run Runnable) (string, error) {
	data, err := json.Marshal(run)
	if err != nil {
		return "", errors.Join(ErrPayloadMarshal, err)
	}
	return qualifiedStructName(run) + string(data), nil
}
