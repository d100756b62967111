package queue

import "errors"

// Common errors
var (
	// ErrQueueNil is returned when a nil Queueable is provided
	ErrQueueNil = errors.New("queue cannot be nil")

	// ErrRegistryNil is returned when a nil registry is provided
	ErrRegistryNil = errors.New("registry cannot be nil")

	// ErrRunnableNil is returned when attempting to insert a nil runnable
	ErrRunnableNil = errors.New("runnable cannot be nil")

	// ErrTaskNil is returned when a state transition is requested for a nil task
	ErrTaskNil = errors.New("task cannot be nil")

	// ErrTaskNotFound is returned when a transition targets a task that no longer exists
	ErrTaskNotFound = errors.New("task not found")

	// ErrPayloadMarshal is returned when runnable marshaling fails
	ErrPayloadMarshal = errors.New("failed to marshal runnable to JSON")

	// ErrPayloadNotObject is returned when a runnable doesn't serialize to a JSON object
	ErrPayloadNotObject = errors.New("runnable must serialize to a JSON object")

	// ErrUnregisteredRunnable is returned when inserting a runnable whose type isn't registered
	ErrUnregisteredRunnable = errors.New("runnable type is not registered")

	// ErrUnknownDiscriminator is returned when task metadata names no registered variant
	ErrUnknownDiscriminator = errors.New("unknown task discriminator")

	// ErrCorruptMetadata is returned when task metadata can't be decoded
	ErrCorruptMetadata = errors.New("corrupt task metadata")

	// ErrDecodeTask wraps every error that makes a claimed task impossible to execute
	ErrDecodeTask = errors.New("failed to decode task")

	// ErrInvalidState is returned when a transition targets an unknown state
	ErrInvalidState = errors.New("invalid task state")

	// ErrTerminalState is returned when a transition leaves a finished or failed task
	ErrTerminalState = errors.New("task is in a terminal state")

	// ErrTaskCreate is returned when task creation in storage fails
	ErrTaskCreate = errors.New("failed to create task in storage")

	// ErrInvalidSchedule is returned when schedule format is invalid
	ErrInvalidSchedule = errors.New("invalid schedule format")

	// ErrNoScheduleSpecified is returned when a runnable without schedule is scheduled
	ErrNoScheduleSpecified = errors.New("no schedule specified for task")

	// ErrTaskAlreadyRegistered is returned when trying to register a duplicate task
	ErrTaskAlreadyRegistered = errors.New("task already registered")

	// ErrSchedulerNotConfigured is returned when scheduler has no tasks
	ErrSchedulerNotConfigured = errors.New("scheduler has no registered tasks")

	// ErrFailedToGetNextTask is returned when fetching next task fails
	ErrFailedToGetNextTask = errors.New("failed to get next task from storage")

	// ErrFailedToUpdateTaskState is returned when task state update fails
	ErrFailedToUpdateTaskState = errors.New("failed to update task state")

	// ErrWorkerAlreadyStarted is returned when Start is called twice
	ErrWorkerAlreadyStarted = errors.New("worker already started")

	// ErrWorkerNotStarted is returned when Stop is called before Start
	ErrWorkerNotStarted = errors.New("worker not started")

	// ErrInvalidRetentionMode is returned when parsing an unknown retention mode
	ErrInvalidRetentionMode = errors.New("invalid retention mode")
)
