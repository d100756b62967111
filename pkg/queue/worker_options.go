package queue

import (
	"fmt"
	"log/slog"
	"time"
)

// RetentionMode decides what happens to a task record once it reaches a terminal state
type RetentionMode string

const (
	// KeepAll leaves finished and failed tasks in storage
	KeepAll RetentionMode = "keep_all"
	// RemoveAll deletes tasks once they finish or fail
	RemoveAll RetentionMode = "remove_all"
	// RemoveFinished deletes finished tasks and keeps failed ones for inspection
	RemoveFinished RetentionMode = "remove_finished"
)

// UnmarshalText lets RetentionMode be parsed from environment variables
func (m *RetentionMode) UnmarshalText(text []byte) error {
	switch mode := RetentionMode(text); mode {
	case KeepAll, RemoveAll, RemoveFinished:
		*m = mode
		return nil
	case "":
		*m = KeepAll
		return nil
	default:
		return fmt.Errorf("%w: %q", ErrInvalidRetentionMode, string(text))
	}
}

// removes reports whether a task that ended in state must be deleted
func (m RetentionMode) removes(state State) bool {
	switch m {
	case RemoveAll:
		return state.Terminal()
	case RemoveFinished:
		return state == StateFinished
	}
	return false
}

// WorkerOption is a functional option for configuring a worker
type WorkerOption func(*workerOptions)

type workerOptions struct {
	taskType     string
	pollInterval time.Duration
	retention    RetentionMode
	logger       *slog.Logger
}

func defaultWorkerOptions() *workerOptions {
	return &workerOptions{
		taskType:     CommonType,
		pollInterval: 5 * time.Second,
		retention:    KeepAll,
		logger:       slog.Default(),
	}
}

// WithTaskType sets which task type the worker claims in addition to common tasks
func WithTaskType(taskType string) WorkerOption {
	return func(o *workerOptions) {
		if taskType != "" {
			o.taskType = taskType
		}
	}
}

// WithPollInterval sets how long the worker sleeps when the queue is empty
func WithPollInterval(d time.Duration) WorkerOption {
	return func(o *workerOptions) {
		if d > 0 {
			o.pollInterval = d
		}
	}
}

// WithRetentionMode sets what happens to tasks after they finish or fail
func WithRetentionMode(mode RetentionMode) WorkerOption {
	return func(o *workerOptions) {
		switch mode {
		case KeepAll, RemoveAll, RemoveFinished:
			o.retention = mode
		}
	}
}

// WithWorkerLogger sets the logger for the worker
func WithWorkerLogger(logger *slog.Logger) WorkerOption {
	return func(o *workerOptions) {
		if logger != nil {
			o.logger = logger
		}
	}
}
