package queue_test

import (
	"context"
	"fmt"
	"time"

	"github.com/dmitrymomot/pgtask/pkg/logger"
	"github.com/dmitrymomot/pgtask/pkg/queue"
)

type welcomeEmail struct {
	queue.BaseRunnable
	To string `json:"to"`
}

func (e welcomeEmail) Run(ctx context.Context, q queue.Queueable) error {
	fmt.Printf("sending welcome email to %s\n", e.To)
	return nil
}

func (welcomeEmail) Uniq() bool { return true }

type nightlyReport struct {
	queue.BaseRunnable
}

func (nightlyReport) Run(ctx context.Context, q queue.Queueable) error { return nil }

func (nightlyReport) Cron() *queue.Scheduled { return queue.ScheduleCron("0 2 * * *") }

// Example_oneTimeTask enqueues a task and processes it with a worker
func Example_oneTimeTask() {
	ctx := context.Background()

	registry := queue.MustNewRegistry(queue.VariantOf[welcomeEmail]("welcome_email"))
	q, err := queue.NewMemoryQueue(registry)
	if err != nil {
		panic(err)
	}

	first, _ := q.InsertTask(ctx, welcomeEmail{To: "user@example.com"})
	second, _ := q.InsertTask(ctx, welcomeEmail{To: "user@example.com"})
	fmt.Println("deduplicated:", first.ID == second.ID)

	worker, err := queue.NewWorker(q, registry, queue.WithWorkerLogger(logger.Discard()))
	if err != nil {
		panic(err)
	}

	processed, err := worker.RunOnce(ctx)
	if err != nil {
		panic(err)
	}

	task, _ := q.FindTaskByID(ctx, first.ID)
	fmt.Println("processed:", processed, "state:", task.State)

	// Output:
	// deduplicated: true
	// sending welcome email to user@example.com
	// processed: true state: finished
}

// Example_recurringTask materializes the next occurrence of a cron schedule
func Example_recurringTask() {
	ctx := context.Background()
	now := time.Date(2024, 3, 1, 15, 4, 5, 0, time.UTC)
	clock := func() time.Time { return now }

	registry := queue.MustNewRegistry(queue.VariantOf[nightlyReport]("nightly_report"))
	q, _ := queue.NewMemoryQueue(registry, queue.WithClock(clock))

	scheduler, _ := queue.NewScheduler(q,
		queue.WithSchedulerLogger(logger.Discard()),
		queue.WithSchedulerClock(clock))
	if err := scheduler.AddRegistry(registry); err != nil {
		panic(err)
	}

	scheduler.Tick(ctx)
	scheduler.Tick(ctx)

	task, _ := q.FetchAndTouchTask(ctx, queue.CommonType)
	fmt.Println("due now:", task != nil, "tasks:", q.Len())

	// Output:
	// due now: false tasks: 1
}
