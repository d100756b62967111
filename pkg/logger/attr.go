package logger

import (
	"log/slog"
	"time"
)

// Error logs err under "error". A nil err yields an empty Attr, which slog drops.
func Error(err error) slog.Attr {
	if err == nil {
		return slog.Attr{}
	}
	return slog.Any("error", err)
}

// TaskID logs a task id under "task_id"; nil yields an empty Attr.
func TaskID(id any) slog.Attr {
	if id == nil {
		return slog.Attr{}
	}
	return slog.Any("task_id", id)
}

// TaskType logs a task routing tag under "task_type".
func TaskType(taskType string) slog.Attr {
	return slog.String("task_type", taskType)
}

// Discriminator logs a registered variant name under "discriminator".
func Discriminator(name string) slog.Attr {
	return slog.String("discriminator", name)
}

// WorkerID logs a worker id under "worker_id"; nil yields an empty Attr.
func WorkerID(id any) slog.Attr {
	if id == nil {
		return slog.Attr{}
	}
	return slog.Any("worker_id", id)
}

// RequestID logs an admin request id under "request_id". Empty ids are dropped.
func RequestID(id string) slog.Attr {
	if id == "" {
		return slog.Attr{}
	}
	return slog.String("request_id", id)
}

func RetryCount(count int) slog.Attr {
	return slog.Int("retry_count", count)
}

// Duration logs d in milliseconds under "duration_ms" so JSON consumers get
// a number instead of a Go duration string.
func Duration(d time.Duration) slog.Attr {
	return slog.Float64("duration_ms", float64(d)/float64(time.Millisecond))
}

func Component(name string) slog.Attr {
	return slog.String("component", name)
}
