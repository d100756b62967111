package queue

import "time"

// Config holds the configuration for the task queue
type Config struct {
	PollInterval      time.Duration `env:"QUEUE_POLL_INTERVAL" envDefault:"5s"`
	Workers           int           `env:"QUEUE_WORKERS" envDefault:"4"`
	TaskType          string        `env:"QUEUE_TASK_TYPE" envDefault:"common"`
	SchedulerInterval time.Duration `env:"QUEUE_SCHEDULER_INTERVAL" envDefault:"30s"`
	RetentionMode     RetentionMode `env:"QUEUE_RETENTION_MODE" envDefault:"keep_all"`
	ShutdownTimeout   time.Duration `env:"QUEUE_SHUTDOWN_TIMEOUT" envDefault:"30s"`
}

// WorkerOptions converts the config into options for NewWorker and NewWorkerPool
func (c Config) WorkerOptions() []WorkerOption {
	return []WorkerOption{
		WithTaskType(c.TaskType),
		WithPollInterval(c.PollInterval),
		WithRetentionMode(c.RetentionMode),
	}
}

// SchedulerOptions converts the config into options for NewScheduler
func (c Config) SchedulerOptions() []SchedulerOption {
	return []SchedulerOption{
		WithCheckInterval(c.SchedulerInterval),
	}
}
