package queue

import (
	"bytes"
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemoryQueue implements Queueable in process memory, for tests and local development.
// A single mutex serializes every operation, which gives FetchAndTouchTask the
// same guarantee a skip-locked read gives in Postgres.
type MemoryQueue struct {
	mu       sync.Mutex
	registry *Registry
	tasks    map[uuid.UUID]*Task
	seq      map[uuid.UUID]uint64 // insertion order, the last tie-breaker
	lastSeq  uint64
	now      func() time.Time
}

var _ Queueable = (*MemoryQueue)(nil)

// MemoryQueueOption is a functional option for configuring a MemoryQueue
type MemoryQueueOption func(*MemoryQueue)

// WithClock replaces time.Now, useful to test scheduled work deterministically
func WithClock(now func() time.Time) MemoryQueueOption {
	return func(q *MemoryQueue) {
		if now != nil {
			q.now = now
		}
	}
}

// NewMemoryQueue creates an empty in-memory queue
func NewMemoryQueue(registry *Registry, opts ...MemoryQueueOption) (*MemoryQueue, error) {
	if registry == nil {
		return nil, ErrRegistryNil
	}

	q := &MemoryQueue{
		registry: registry,
		tasks:    make(map[uuid.UUID]*Task),
		seq:      make(map[uuid.UUID]uint64),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(q)
	}
	return q, nil
}

// InsertTask implements Queueable
func (q *MemoryQueue) InsertTask(ctx context.Context, run Runnable) (*Task, error) {
	task, err := q.registry.BuildTask(run, q.now())
	if err != nil {
		return nil, err
	}
	return q.insert(task), nil
}

// ScheduleTask implements Queueable
func (q *MemoryQueue) ScheduleTask(ctx context.Context, run Runnable) (*Task, error) {
	task, err := q.registry.BuildScheduledTask(run, q.now())
	if err != nil {
		return nil, err
	}
	return q.insert(task), nil
}

// insert stores the task unless a pending duplicate exists, in which case
// the duplicate is returned. Check and insert happen under the same lock.
func (q *MemoryQueue) insert(task *Task) *Task {
	q.mu.Lock()
	defer q.mu.Unlock()

	if task.UniqHash != nil {
		for _, existing := range q.tasks {
			if existing.UniqHash != nil && *existing.UniqHash == *task.UniqHash &&
				!existing.State.Terminal() {
				return existing.clone()
			}
		}
	}

	q.lastSeq++
	q.tasks[task.ID] = task.clone()
	q.seq[task.ID] = q.lastSeq
	return task
}

// FetchAndTouchTask implements Queueable
func (q *MemoryQueue) FetchAndTouchTask(ctx context.Context, taskType string) (*Task, error) {
	if taskType == "" {
		taskType = CommonType
	}

	q.mu.Lock()
	defer q.mu.Unlock()

	now := q.now()
	var best *Task

	for _, task := range q.tasks {
		if !task.Eligible(now) {
			continue
		}
		if task.TaskType != taskType && task.TaskType != CommonType {
			continue
		}
		if best == nil || q.older(task, best) {
			best = task
		}
	}

	if best == nil {
		return nil, nil
	}

	best.State = StateInProgress
	best.UpdatedAt = now

	return best.clone(), nil
}

// older orders by scheduled_at, then created_at, then insertion order
func (q *MemoryQueue) older(a, b *Task) bool {
	if !a.ScheduledAt.Equal(b.ScheduledAt) {
		return a.ScheduledAt.Before(b.ScheduledAt)
	}
	if !a.CreatedAt.Equal(b.CreatedAt) {
		return a.CreatedAt.Before(b.CreatedAt)
	}
	return q.seq[a.ID] < q.seq[b.ID]
}

// UpdateTaskState implements Queueable
func (q *MemoryQueue) UpdateTaskState(ctx context.Context, task *Task, state State) (*Task, error) {
	if !state.Valid() {
		return nil, fmt.Errorf("%w: %q", ErrInvalidState, state)
	}
	return q.transition(task, func(t *Task, now time.Time) error {
		if !CanTransition(t.State, state) {
			return fmt.Errorf("%w: %s -> %s", ErrTerminalState, t.State, state)
		}
		t.State = state
		return nil
	})
}

// FailTask implements Queueable
func (q *MemoryQueue) FailTask(ctx context.Context, task *Task, errorMessage string) (*Task, error) {
	return q.transition(task, func(t *Task, now time.Time) error {
		if t.State.Terminal() {
			return fmt.Errorf("%w: %s -> %s", ErrTerminalState, t.State, StateFailed)
		}
		t.State = StateFailed
		t.ErrorMessage = &errorMessage
		return nil
	})
}

// RetryTask implements Queueable
func (q *MemoryQueue) RetryTask(ctx context.Context, task *Task, backoff time.Duration) (*Task, error) {
	return q.transition(task, func(t *Task, now time.Time) error {
		if t.State.Terminal() {
			return fmt.Errorf("%w: %s -> %s", ErrTerminalState, t.State, StateNew)
		}
		t.State = StateNew
		t.Retries++
		t.ScheduledAt = now.Add(backoff)
		return nil
	})
}

func (q *MemoryQueue) transition(task *Task, apply func(t *Task, now time.Time) error) (*Task, error) {
	if task == nil {
		return nil, ErrTaskNil
	}

	q.mu.Lock()
	defer q.mu.Unlock()

	stored, ok := q.tasks[task.ID]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrTaskNotFound, task.ID)
	}

	now := q.now()
	if err := apply(stored, now); err != nil {
		return nil, err
	}
	stored.UpdatedAt = now

	return stored.clone(), nil
}

// RemoveTask implements Queueable
func (q *MemoryQueue) RemoveTask(ctx context.Context, id uuid.UUID) (int64, error) {
	return q.removeWhere(func(t *Task) bool { return t.ID == id }), nil
}

// RemoveTasksOfType implements Queueable
func (q *MemoryQueue) RemoveTasksOfType(ctx context.Context, taskType string) (int64, error) {
	return q.removeWhere(func(t *Task) bool { return t.TaskType == taskType }), nil
}

// RemoveAllTasks implements Queueable
func (q *MemoryQueue) RemoveAllTasks(ctx context.Context) (int64, error) {
	return q.removeWhere(func(*Task) bool { return true }), nil
}

// RemoveAllScheduledTasks implements Queueable
func (q *MemoryQueue) RemoveAllScheduledTasks(ctx context.Context) (int64, error) {
	now := q.now()
	return q.removeWhere(func(t *Task) bool { return t.ScheduledAt.After(now) }), nil
}

// RemoveTaskByMetadata implements Queueable
func (q *MemoryQueue) RemoveTaskByMetadata(ctx context.Context, run Runnable) (int64, error) {
	metadata, err := q.registry.Encode(run)
	if err != nil {
		return 0, err
	}
	return q.removeWhere(func(t *Task) bool { return bytes.Equal(t.Metadata, metadata) }), nil
}

func (q *MemoryQueue) removeWhere(match func(t *Task) bool) int64 {
	q.mu.Lock()
	defer q.mu.Unlock()

	var removed int64
	for id, task := range q.tasks {
		if match(task) {
			delete(q.tasks, id)
			delete(q.seq, id)
			removed++
		}
	}
	return removed
}

// FindTaskByID implements Queueable
func (q *MemoryQueue) FindTaskByID(ctx context.Context, id uuid.UUID) (*Task, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	task, ok := q.tasks[id]
	if !ok {
		return nil, nil
	}
	return task.clone(), nil
}

// Len returns the number of stored tasks in any state
func (q *MemoryQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()

	return len(q.tasks)
}
