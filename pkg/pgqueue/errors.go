package pgqueue

import "errors"

var (
	ErrPoolNil          = errors.New("pgqueue: connection pool cannot be nil")
	ErrInvalidTableName = errors.New("pgqueue: table name cannot be empty")
	ErrFetchTask        = errors.New("pgqueue: failed to claim task")
	ErrRemoveTasks      = errors.New("pgqueue: failed to remove tasks")
	ErrFindTask         = errors.New("pgqueue: failed to find task")
	ErrNotMigrated      = errors.New("pgqueue: task table is missing, migrations not applied")
	ErrNotReady         = errors.New("pgqueue: task table is not readable")
)
