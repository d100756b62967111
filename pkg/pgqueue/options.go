package pgqueue

import (
	"log/slog"
	"time"
)

// DefaultTableName is the table created by Migrate
const DefaultTableName = "pgtask_tasks"

// Option configures a Queue
type Option func(*Queue)

// WithTableName points the queue at a table with the pgtask_tasks layout
func WithTableName(name string) Option {
	return func(q *Queue) {
		q.table = name
	}
}

// WithLogger sets the logger used for debug output
func WithLogger(logger *slog.Logger) Option {
	return func(q *Queue) {
		if logger != nil {
			q.logger = logger
		}
	}
}

// WithClock replaces the database clock for the timestamps the queue writes
// and compares. Meant for tests; production queues should leave it unset.
func WithClock(now func() time.Time) Option {
	return func(q *Queue) {
		if now != nil {
			q.now = now
		}
	}
}
