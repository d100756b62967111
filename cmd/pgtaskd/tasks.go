package main

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/dmitrymomot/pgtask/pkg/queue"
)

// echoTask logs its message. Identical pending messages collapse into one task.
type echoTask struct {
	queue.BaseRunnable
	Message string `json:"message"`
}

func (t echoTask) Run(ctx context.Context, _ queue.Queueable) error {
	if t.Message == "" {
		return errors.New("empty message")
	}
	slog.InfoContext(ctx, "echo", slog.String("message", t.Message))
	return nil
}

func (echoTask) Uniq() bool { return true }

func (echoTask) Backoff(attempt int) time.Duration {
	return queue.LinearBackoff{Interval: 10 * time.Second, MaxInterval: time.Minute}.NextInterval(attempt)
}

// heartbeatTask proves the scheduler and workers are alive every five minutes.
type heartbeatTask struct {
	queue.BaseRunnable
}

func (heartbeatTask) Run(ctx context.Context, _ queue.Queueable) error {
	slog.InfoContext(ctx, "heartbeat")
	return nil
}

func (heartbeatTask) Cron() *queue.Scheduled {
	return queue.ScheduleRecurring(queue.MustCron("*/5 * * * *"))
}

func (heartbeatTask) MaxRetries() int { return 0 }

func registry() *queue.Registry {
	return queue.MustNewRegistry(
		queue.VariantOf[echoTask]("echo"),
		queue.VariantOf[heartbeatTask]("heartbeat"),
	)
}
