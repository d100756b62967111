package queue

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// CommonType is the task type assigned to Runnables that don't declare their own.
// Workers always pick up common tasks in addition to their configured type.
const CommonType = "common"

// State represents the lifecycle state of a task
type State string

const (
	StateNew        State = "new"
	StateInProgress State = "in_progress"
	StateFinished   State = "finished"
	StateFailed     State = "failed"
)

// Valid reports whether s is one of the known states
func (s State) Valid() bool {
	switch s {
	case StateNew, StateInProgress, StateFinished, StateFailed:
		return true
	}
	return false
}

// Terminal reports whether no further transition is allowed out of s
func (s State) Terminal() bool {
	return s == StateFinished || s == StateFailed
}

// Task is the persisted record of a single unit of work.
type Task struct {
	ID           uuid.UUID       `json:"id"`
	Metadata     json.RawMessage `json:"metadata"`
	TaskType     string          `json:"task_type"`
	UniqHash     *string         `json:"uniq_hash,omitempty"`
	State        State           `json:"state"`
	ErrorMessage *string         `json:"error_message,omitempty"`
	Retries      int             `json:"retries"`
	ScheduledAt  time.Time       `json:"scheduled_at"`
	CreatedAt    time.Time       `json:"created_at"`
	UpdatedAt    time.Time       `json:"updated_at"`
}

// Discriminator returns the registered variant name stored in the task metadata,
// or an empty string when the metadata carries none.
func (t *Task) Discriminator() string {
	var head struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(t.Metadata, &head); err != nil {
		return ""
	}
	return head.Type
}

// Eligible reports whether the task can be claimed at the given instant
func (t *Task) Eligible(now time.Time) bool {
	return t.State == StateNew && !t.ScheduledAt.After(now)
}

// clone returns a deep copy so callers can't mutate stored records
func (t *Task) clone() *Task {
	c := *t
	if t.Metadata != nil {
		c.Metadata = append(json.RawMessage(nil), t.Metadata...)
	}
	if t.UniqHash != nil {
		h := *t.UniqHash
		c.UniqHash = &h
	}
	if t.ErrorMessage != nil {
		m := *t.ErrorMessage
		c.ErrorMessage = &m
	}
	return &c
}
