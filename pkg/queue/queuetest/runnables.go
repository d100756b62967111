package queuetest

import (
	"context"
	"time"

	"github.com/dmitrymomot/pgtask/pkg/queue"
)

// WeirdoType is the task type of AyratTask
const WeirdoType = "weirdo"

// PepeTask is a unique task of the common type
type PepeTask struct {
	queue.BaseRunnable
	Line string `json:"line"`
}

func (PepeTask) Run(context.Context, queue.Queueable) error { return nil }

func (PepeTask) Uniq() bool { return true }

// AyratTask is a unique task routed to WeirdoType workers
type AyratTask struct {
	queue.BaseRunnable
	Number int `json:"number"`
}

func (AyratTask) Run(context.Context, queue.Queueable) error { return nil }

func (AyratTask) Uniq() bool { return true }

func (AyratTask) TaskType() string { return WeirdoType }

// ScheduledPepeTask runs once at At
type ScheduledPepeTask struct {
	queue.BaseRunnable
	Line string    `json:"line"`
	At   time.Time `json:"at"`
}

func (ScheduledPepeTask) Run(context.Context, queue.Queueable) error { return nil }

func (t ScheduledPepeTask) Cron() *queue.Scheduled {
	if t.At.IsZero() {
		return nil
	}
	return queue.ScheduleOnce(t.At)
}

// YearlyTask recurs at midnight on January 1st
type YearlyTask struct {
	queue.BaseRunnable
	Name string `json:"name"`
}

func (YearlyTask) Run(context.Context, queue.Queueable) error { return nil }

func (YearlyTask) Cron() *queue.Scheduled { return queue.ScheduleCron("@yearly") }

// PlainTask has no uniqueness constraint
type PlainTask struct {
	queue.BaseRunnable
	N int `json:"n"`
}

func (PlainTask) Run(context.Context, queue.Queueable) error { return nil }

// Registry returns a registry holding every runnable of this package
func Registry() *queue.Registry {
	return queue.MustNewRegistry(
		queue.VariantOf[PepeTask]("pepe"),
		queue.VariantOf[AyratTask]("ayrat"),
		queue.VariantOf[ScheduledPepeTask]("scheduled_pepe"),
		queue.VariantOf[YearlyTask]("yearly"),
		queue.VariantOf[PlainTask]("plain"),
	)
}
