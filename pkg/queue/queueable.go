package queue

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Queueable is the storage-facing contract shared by every queue backend.
//
// Implementations own two protocols: the atomic claim in FetchAndTouchTask,
// which must never hand the same task to two callers, and uniqueness
// suppression in InsertTask/ScheduleTask, which must never let two tasks
// with the same hash coexist in the new or in_progress states.
type Queueable interface {
	// InsertTask enqueues the runnable for immediate execution. For unique
	// runnables an existing new or in_progress task with the same hash is
	// returned unchanged instead.
	InsertTask(ctx context.Context, run Runnable) (*Task, error)

	// ScheduleTask enqueues the runnable at the instant computed from its Cron.
	ScheduleTask(ctx context.Context, run Runnable) (*Task, error)

	// FetchAndTouchTask claims the oldest eligible task of the given type (or
	// of CommonType) and moves it to in_progress. It returns nil, nil when
	// there is nothing to claim.
	FetchAndTouchTask(ctx context.Context, taskType string) (*Task, error)

	// UpdateTaskState moves the task to the given state.
	UpdateTaskState(ctx context.Context, task *Task, state State) (*Task, error)

	// FailTask moves the task to failed and records the error message.
	FailTask(ctx context.Context, task *Task, errorMessage string) (*Task, error)

	// RetryTask requeues the task as new after backoff and bumps its retry count.
	RetryTask(ctx context.Context, task *Task, backoff time.Duration) (*Task, error)

	RemoveTask(ctx context.Context, id uuid.UUID) (int64, error)
	RemoveTasksOfType(ctx context.Context, taskType string) (int64, error)
	RemoveAllTasks(ctx context.Context) (int64, error)

	// RemoveAllScheduledTasks removes tasks that are not due yet.
	RemoveAllScheduledTasks(ctx context.Context) (int64, error)

	// RemoveTaskByMetadata removes tasks whose serialized payload equals the runnable's.
	RemoveTaskByMetadata(ctx context.Context, run Runnable) (int64, error)

	// FindTaskByID returns nil, nil when the task doesn't exist.
	FindTaskByID(ctx context.Context, id uuid.UUID) (*Task, error)
}

// CanTransition reports whether a task in state from may move to state to.
func CanTransition(from, to State) bool {
	if !to.Valid() || from.Terminal() {
		return false
	}
	switch from {
	case StateNew:
		return to != StateNew
	case StateInProgress:
		return true
	}
	return false
}
