package queue

import (
	"context"
	"time"
)

// DefaultMaxRetries is the retry budget of a Runnable that doesn't override MaxRetries.
const DefaultMaxRetries = 20

// Runnable is an application-defined unit of work.
//
// A Runnable is stored as JSON inside the task metadata, so every field that
// Run needs must be exported and serializable. Embed BaseRunnable to inherit
// sensible defaults and override only what differs.
type Runnable interface {
	// Run executes the task. A non-nil error triggers the retry policy.
	Run(ctx context.Context, q Queueable) error

	// Uniq reports whether logically identical pending tasks should be collapsed
	// into a single record.
	Uniq() bool

	// TaskType routes the task to workers configured for that type.
	TaskType() string

	// Cron returns the one-shot or recurring schedule of the task, or nil.
	Cron() *Scheduled

	// MaxRetries is the number of retries allowed before the task fails permanently.
	MaxRetries() int

	// Backoff returns the delay before the given retry attempt (starting at 1).
	Backoff(attempt int) time.Duration
}

// BaseRunnable provides the default capability set for Runnables.
// It carries no data and doesn't appear in the serialized payload.
type BaseRunnable struct{}

func (BaseRunnable) Uniq() bool { return false }

func (BaseRunnable) TaskType() string { return CommonType }

func (BaseRunnable) Cron() *Scheduled { return nil }

func (BaseRunnable) MaxRetries() int { return DefaultMaxRetries }

// Backoff waits 2^attempt seconds between retries.
func (BaseRunnable) Backoff(attempt int) time.Duration {
	return DefaultBackoff().NextInterval(attempt)
}
