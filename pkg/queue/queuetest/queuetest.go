// Package queuetest holds a conformance suite for queue.Queueable implementations.
//
// A backend passes the suite by providing a Factory that returns an empty queue
// built on the given registry:
//
//	func TestMemoryQueue(t *testing.T) {
//	    queuetest.Run(t, func(t *testing.T, registry *queue.Registry) queue.Queueable {
//	        q, err := queue.NewMemoryQueue(registry)
//	        require.NoError(t, err)
//	        return q
//	    })
//	}
//
// Subtests run sequentially so backends sharing one database can reset state
// in the factory.
package queuetest

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/pgtask/pkg/queue"
)

// Factory returns an empty queue backed by registry
type Factory func(t *testing.T, registry *queue.Registry) queue.Queueable

// tolerance absorbs storage precision (Postgres keeps microseconds) and clock skew
const tolerance = 2 * time.Second

// Run executes the conformance suite against the queues built by factory
func Run(t *testing.T, factory Factory) {
	t.Helper()

	registry := Registry()
	newQueue := func(t *testing.T) queue.Queueable {
		t.Helper()
		q := factory(t, registry)
		require.NotNil(t, q)
		return q
	}

	t.Run("insert task", func(t *testing.T) {
		testInsertTask(t, newQueue(t))
	})
	t.Run("insert unique task twice", func(t *testing.T) {
		testInsertUniqueTwice(t, newQueue(t))
	})
	t.Run("insert non-unique task twice", func(t *testing.T) {
		testInsertNonUniqueTwice(t, newQueue(t))
	})
	t.Run("unique hash is released by terminal states", func(t *testing.T) {
		testUniqueReleasedAfterFinish(t, newQueue(t))
	})
	t.Run("schedule one-shot task in the future", func(t *testing.T) {
		testScheduleFuture(t, newQueue(t))
	})
	t.Run("schedule one-shot task in the past", func(t *testing.T) {
		testSchedulePast(t, newQueue(t))
	})
	t.Run("schedule without schedule", func(t *testing.T) {
		testScheduleWithoutSchedule(t, newQueue(t))
	})
	t.Run("schedule recurring occurrence twice", func(t *testing.T) {
		testScheduleRecurringTwice(t, newQueue(t))
	})
	t.Run("fetch from empty queue", func(t *testing.T) {
		testFetchEmpty(t, newQueue(t))
	})
	t.Run("fetch claims oldest task", func(t *testing.T) {
		testFetchOldest(t, newQueue(t))
	})
	t.Run("fetch filters by task type", func(t *testing.T) {
		testFetchByType(t, newQueue(t))
	})
	t.Run("update task state", func(t *testing.T) {
		testUpdateState(t, newQueue(t))
	})
	t.Run("terminal states are final", func(t *testing.T) {
		testTerminalStates(t, newQueue(t))
	})
	t.Run("fail task", func(t *testing.T) {
		testFailTask(t, newQueue(t))
	})
	t.Run("retry task", func(t *testing.T) {
		testRetryTask(t, newQueue(t))
	})
	t.Run("remove task", func(t *testing.T) {
		testRemoveTask(t, newQueue(t))
	})
	t.Run("remove tasks of type", func(t *testing.T) {
		testRemoveTasksOfType(t, newQueue(t))
	})
	t.Run("remove all tasks", func(t *testing.T) {
		testRemoveAllTasks(t, newQueue(t))
	})
	t.Run("remove all scheduled tasks", func(t *testing.T) {
		testRemoveAllScheduledTasks(t, newQueue(t))
	})
	t.Run("remove task by metadata", func(t *testing.T) {
		testRemoveTaskByMetadata(t, newQueue(t))
	})
	t.Run("find missing task", func(t *testing.T) {
		testFindMissing(t, newQueue(t))
	})
	t.Run("concurrent claims are distinct", func(t *testing.T) {
		testConcurrentClaims(t, newQueue(t))
	})
	t.Run("concurrent unique inserts collapse", func(t *testing.T) {
		testConcurrentUniqueInserts(t, newQueue(t))
	})
}

func testInsertTask(t *testing.T, q queue.Queueable) {
	ctx := context.Background()
	before := time.Now()

	task, err := q.InsertTask(ctx, PepeTask{Line: "feels good man"})
	require.NoError(t, err)

	assert.NotEqual(t, uuid.Nil, task.ID)
	assert.Equal(t, queue.StateNew, task.State)
	assert.Equal(t, queue.CommonType, task.TaskType)
	assert.Equal(t, 0, task.Retries)
	assert.Nil(t, task.ErrorMessage)
	assert.NotNil(t, task.UniqHash)
	assert.Equal(t, "pepe", task.Discriminator())
	assert.JSONEq(t, `{"type":"pepe","line":"feels good man"}`, string(task.Metadata))
	assert.WithinDuration(t, before, task.ScheduledAt, tolerance)
	assert.WithinDuration(t, before, task.CreatedAt, tolerance)

	found, err := q.FindTaskByID(ctx, task.ID)
	require.NoError(t, err)
	require.NotNil(t, found)
	assert.Equal(t, task.ID, found.ID)
	assert.Equal(t, task.UniqHash, found.UniqHash)
}

func testInsertUniqueTwice(t *testing.T, q queue.Queueable) {
	ctx := context.Background()

	first, err := q.InsertTask(ctx, AyratTask{Number: 1})
	require.NoError(t, err)
	second, err := q.InsertTask(ctx, AyratTask{Number: 1})
	require.NoError(t, err)
	other, err := q.InsertTask(ctx, AyratTask{Number: 2})
	require.NoError(t, err)

	assert.Equal(t, first.ID, second.ID)
	assert.NotEqual(t, first.ID, other.ID)
	assert.Equal(t, WeirdoType, first.TaskType)
}

func testInsertNonUniqueTwice(t *testing.T, q queue.Queueable) {
	ctx := context.Background()

	first, err := q.InsertTask(ctx, PlainTask{N: 7})
	require.NoError(t, err)
	second, err := q.InsertTask(ctx, PlainTask{N: 7})
	require.NoError(t, err)

	assert.NotEqual(t, first.ID, second.ID)
	assert.Nil(t, first.UniqHash)
	assert.Nil(t, second.UniqHash)
}

func testUniqueReleasedAfterFinish(t *testing.T, q queue.Queueable) {
	ctx := context.Background()

	first, err := q.InsertTask(ctx, PepeTask{Line: "once"})
	require.NoError(t, err)

	claimed, err := q.FetchAndTouchTask(ctx, queue.CommonType)
	require.NoError(t, err)
	require.NotNil(t, claimed)
	assert.Equal(t, first.ID, claimed.ID)

	// in_progress still blocks duplicates
	dup, err := q.InsertTask(ctx, PepeTask{Line: "once"})
	require.NoError(t, err)
	assert.Equal(t, first.ID, dup.ID)

	_, err = q.UpdateTaskState(ctx, claimed, queue.StateFinished)
	require.NoError(t, err)

	again, err := q.InsertTask(ctx, PepeTask{Line: "once"})
	require.NoError(t, err)
	assert.NotEqual(t, first.ID, again.ID)
	assert.Equal(t, queue.StateNew, again.State)
}

func testScheduleFuture(t *testing.T, q queue.Queueable) {
	ctx := context.Background()
	at := time.Now().Add(time.Hour).UTC().Truncate(time.Second)

	task, err := q.ScheduleTask(ctx, ScheduledPepeTask{Line: "later", At: at})
	require.NoError(t, err)

	assert.True(t, at.Equal(task.ScheduledAt), "scheduled_at %s, want %s", task.ScheduledAt, at)
	assert.Nil(t, task.UniqHash)

	claimed, err := q.FetchAndTouchTask(ctx, queue.CommonType)
	require.NoError(t, err)
	assert.Nil(t, claimed, "future tasks must not be claimed")
}

func testSchedulePast(t *testing.T, q queue.Queueable) {
	ctx := context.Background()
	before := time.Now()

	task, err := q.ScheduleTask(ctx, ScheduledPepeTask{Line: "late", At: before.Add(-time.Hour)})
	require.NoError(t, err)
	assert.WithinDuration(t, before, task.ScheduledAt, tolerance)

	claimed, err := q.FetchAndTouchTask(ctx, queue.CommonType)
	require.NoError(t, err)
	require.NotNil(t, claimed)
	assert.Equal(t, task.ID, claimed.ID)
}

func testScheduleWithoutSchedule(t *testing.T, q queue.Queueable) {
	ctx := context.Background()

	task, err := q.ScheduleTask(ctx, ScheduledPepeTask{Line: "never"})
	assert.ErrorIs(t, err, queue.ErrNoScheduleSpecified)
	assert.Nil(t, task)

	task, err = q.ScheduleTask(ctx, PepeTask{Line: "never"})
	assert.ErrorIs(t, err, queue.ErrNoScheduleSpecified)
	assert.Nil(t, task)
}

func testScheduleRecurringTwice(t *testing.T, q queue.Queueable) {
	ctx := context.Background()

	first, err := q.ScheduleTask(ctx, YearlyTask{Name: "report"})
	require.NoError(t, err)
	second, err := q.ScheduleTask(ctx, YearlyTask{Name: "report"})
	require.NoError(t, err)

	assert.Equal(t, first.ID, second.ID)
	require.NotNil(t, first.UniqHash)
	assert.True(t, first.ScheduledAt.After(time.Now()))
	due := first.ScheduledAt.Local()
	assert.Equal(t, 1, due.Day())
	assert.Equal(t, time.January, due.Month())
}

func testFetchEmpty(t *testing.T, q queue.Queueable) {
	task, err := q.FetchAndTouchTask(context.Background(), queue.CommonType)
	require.NoError(t, err)
	assert.Nil(t, task)
}

func testFetchOldest(t *testing.T, q queue.Queueable) {
	ctx := context.Background()

	first, err := q.InsertTask(ctx, PlainTask{N: 1})
	require.NoError(t, err)
	second, err := q.InsertTask(ctx, PlainTask{N: 2})
	require.NoError(t, err)

	claimed, err := q.FetchAndTouchTask(ctx, queue.CommonType)
	require.NoError(t, err)
	require.NotNil(t, claimed)

	assert.Equal(t, first.ID, claimed.ID)
	assert.Equal(t, queue.StateInProgress, claimed.State)
	assert.False(t, claimed.UpdatedAt.Before(first.UpdatedAt))

	claimed, err = q.FetchAndTouchTask(ctx, queue.CommonType)
	require.NoError(t, err)
	require.NotNil(t, claimed)
	assert.Equal(t, second.ID, claimed.ID)

	claimed, err = q.FetchAndTouchTask(ctx, queue.CommonType)
	require.NoError(t, err)
	assert.Nil(t, claimed)
}

func testFetchByType(t *testing.T, q queue.Queueable) {
	ctx := context.Background()

	weird, err := q.InsertTask(ctx, AyratTask{Number: 42})
	require.NoError(t, err)

	// Common workers don't see typed tasks
	claimed, err := q.FetchAndTouchTask(ctx, queue.CommonType)
	require.NoError(t, err)
	assert.Nil(t, claimed)

	common, err := q.InsertTask(ctx, PepeTask{Line: "common"})
	require.NoError(t, err)

	// Typed workers see their own type and common tasks
	claimed, err = q.FetchAndTouchTask(ctx, WeirdoType)
	require.NoError(t, err)
	require.NotNil(t, claimed)
	assert.Equal(t, weird.ID, claimed.ID)

	claimed, err = q.FetchAndTouchTask(ctx, WeirdoType)
	require.NoError(t, err)
	require.NotNil(t, claimed)
	assert.Equal(t, common.ID, claimed.ID)
}

func testUpdateState(t *testing.T, q queue.Queueable) {
	ctx := context.Background()

	task, err := q.InsertTask(ctx, PlainTask{N: 1})
	require.NoError(t, err)

	updated, err := q.UpdateTaskState(ctx, task, queue.StateFinished)
	require.NoError(t, err)
	assert.Equal(t, queue.StateFinished, updated.State)

	found, err := q.FindTaskByID(ctx, task.ID)
	require.NoError(t, err)
	require.NotNil(t, found)
	assert.Equal(t, queue.StateFinished, found.State)

	_, err = q.UpdateTaskState(ctx, task, queue.State("paused"))
	assert.ErrorIs(t, err, queue.ErrInvalidState)
}

func testTerminalStates(t *testing.T, q queue.Queueable) {
	ctx := context.Background()

	finished, err := q.InsertTask(ctx, PlainTask{N: 1})
	require.NoError(t, err)
	_, err = q.UpdateTaskState(ctx, finished, queue.StateFinished)
	require.NoError(t, err)

	failed, err := q.InsertTask(ctx, PlainTask{N: 2})
	require.NoError(t, err)
	_, err = q.FailTask(ctx, failed, "boom")
	require.NoError(t, err)

	for _, task := range []*queue.Task{finished, failed} {
		_, err = q.UpdateTaskState(ctx, task, queue.StateNew)
		assert.ErrorIs(t, err, queue.ErrTerminalState)

		_, err = q.UpdateTaskState(ctx, task, queue.StateInProgress)
		assert.ErrorIs(t, err, queue.ErrTerminalState)

		_, err = q.FailTask(ctx, task, "again")
		assert.ErrorIs(t, err, queue.ErrTerminalState)

		_, err = q.RetryTask(ctx, task, time.Second)
		assert.ErrorIs(t, err, queue.ErrTerminalState)
	}

	found, err := q.FindTaskByID(ctx, failed.ID)
	require.NoError(t, err)
	require.NotNil(t, found)
	require.NotNil(t, found.ErrorMessage)
	assert.Equal(t, "boom", *found.ErrorMessage)
}

func testFailTask(t *testing.T, q queue.Queueable) {
	ctx := context.Background()

	_, err := q.InsertTask(ctx, PlainTask{N: 1})
	require.NoError(t, err)
	claimed, err := q.FetchAndTouchTask(ctx, queue.CommonType)
	require.NoError(t, err)
	require.NotNil(t, claimed)

	failed, err := q.FailTask(ctx, claimed, "database is on fire")
	require.NoError(t, err)

	assert.Equal(t, queue.StateFailed, failed.State)
	require.NotNil(t, failed.ErrorMessage)
	assert.Equal(t, "database is on fire", *failed.ErrorMessage)
	assert.Equal(t, claimed.Retries, failed.Retries)
}

func testRetryTask(t *testing.T, q queue.Queueable) {
	ctx := context.Background()

	_, err := q.InsertTask(ctx, PlainTask{N: 1})
	require.NoError(t, err)
	claimed, err := q.FetchAndTouchTask(ctx, queue.CommonType)
	require.NoError(t, err)
	require.NotNil(t, claimed)

	before := time.Now()
	retried, err := q.RetryTask(ctx, claimed, time.Hour)
	require.NoError(t, err)

	assert.Equal(t, queue.StateNew, retried.State)
	assert.Equal(t, claimed.Retries+1, retried.Retries)
	assert.WithinDuration(t, before.Add(time.Hour), retried.ScheduledAt, tolerance)

	// Not eligible until the backoff elapses
	next, err := q.FetchAndTouchTask(ctx, queue.CommonType)
	require.NoError(t, err)
	assert.Nil(t, next)

	retried, err = q.RetryTask(ctx, retried, 0)
	require.NoError(t, err)
	assert.Equal(t, claimed.Retries+2, retried.Retries)

	next, err = q.FetchAndTouchTask(ctx, queue.CommonType)
	require.NoError(t, err)
	require.NotNil(t, next)
	assert.Equal(t, claimed.ID, next.ID)
}

func testRemoveTask(t *testing.T, q queue.Queueable) {
	ctx := context.Background()

	task, err := q.InsertTask(ctx, PlainTask{N: 1})
	require.NoError(t, err)

	removed, err := q.RemoveTask(ctx, task.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(1), removed)

	removed, err = q.RemoveTask(ctx, task.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(0), removed)

	found, err := q.FindTaskByID(ctx, task.ID)
	require.NoError(t, err)
	assert.Nil(t, found)
}

func testRemoveTasksOfType(t *testing.T, q queue.Queueable) {
	ctx := context.Background()

	for i := range 3 {
		_, err := q.InsertTask(ctx, AyratTask{Number: i})
		require.NoError(t, err)
	}
	common, err := q.InsertTask(ctx, PlainTask{N: 1})
	require.NoError(t, err)

	removed, err := q.RemoveTasksOfType(ctx, WeirdoType)
	require.NoError(t, err)
	assert.Equal(t, int64(3), removed)

	found, err := q.FindTaskByID(ctx, common.ID)
	require.NoError(t, err)
	assert.NotNil(t, found)
}

func testRemoveAllTasks(t *testing.T, q queue.Queueable) {
	ctx := context.Background()

	_, err := q.InsertTask(ctx, PlainTask{N: 1})
	require.NoError(t, err)
	_, err = q.InsertTask(ctx, AyratTask{Number: 1})
	require.NoError(t, err)
	_, err = q.ScheduleTask(ctx, YearlyTask{Name: "all"})
	require.NoError(t, err)

	removed, err := q.RemoveAllTasks(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(3), removed)

	task, err := q.FetchAndTouchTask(ctx, WeirdoType)
	require.NoError(t, err)
	assert.Nil(t, task)
}

func testRemoveAllScheduledTasks(t *testing.T, q queue.Queueable) {
	ctx := context.Background()

	due, err := q.InsertTask(ctx, PlainTask{N: 1})
	require.NoError(t, err)
	_, err = q.ScheduleTask(ctx, ScheduledPepeTask{Line: "later", At: time.Now().Add(time.Hour)})
	require.NoError(t, err)
	_, err = q.ScheduleTask(ctx, YearlyTask{Name: "later"})
	require.NoError(t, err)

	removed, err := q.RemoveAllScheduledTasks(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2), removed)

	found, err := q.FindTaskByID(ctx, due.ID)
	require.NoError(t, err)
	assert.NotNil(t, found, "due tasks are kept")
}

func testRemoveTaskByMetadata(t *testing.T, q queue.Queueable) {
	ctx := context.Background()

	_, err := q.InsertTask(ctx, PlainTask{N: 1})
	require.NoError(t, err)
	_, err = q.InsertTask(ctx, PlainTask{N: 1})
	require.NoError(t, err)
	other, err := q.InsertTask(ctx, PlainTask{N: 2})
	require.NoError(t, err)

	removed, err := q.RemoveTaskByMetadata(ctx, PlainTask{N: 1})
	require.NoError(t, err)
	assert.Equal(t, int64(2), removed)

	found, err := q.FindTaskByID(ctx, other.ID)
	require.NoError(t, err)
	assert.NotNil(t, found)

	_, err = q.RemoveTaskByMetadata(ctx, unregistered{})
	assert.ErrorIs(t, err, queue.ErrUnregisteredRunnable)
}

func testFindMissing(t *testing.T, q queue.Queueable) {
	task, err := q.FindTaskByID(context.Background(), uuid.New())
	require.NoError(t, err)
	assert.Nil(t, task)
}

func testConcurrentClaims(t *testing.T, q queue.Queueable) {
	ctx := context.Background()
	const tasks, workers = 40, 8

	for i := range tasks {
		_, err := q.InsertTask(ctx, PlainTask{N: i})
		require.NoError(t, err)
	}

	var (
		mu      sync.Mutex
		claimed = make(map[uuid.UUID]int)
		wg      sync.WaitGroup
	)
	for range workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				task, err := q.FetchAndTouchTask(ctx, queue.CommonType)
				if !assert.NoError(t, err) || task == nil {
					return
				}
				mu.Lock()
				claimed[task.ID]++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Len(t, claimed, tasks)
	for id, n := range claimed {
		assert.Equal(t, 1, n, "task %s claimed %d times", id, n)
	}
}

func testConcurrentUniqueInserts(t *testing.T, q queue.Queueable) {
	ctx := context.Background()
	const inserters = 10

	ids := make(chan uuid.UUID, inserters)
	var wg sync.WaitGroup
	for range inserters {
		wg.Add(1)
		go func() {
			defer wg.Done()
			task, err := q.InsertTask(ctx, PepeTask{Line: "only one"})
			if assert.NoError(t, err) {
				ids <- task.ID
			}
		}()
	}
	wg.Wait()
	close(ids)

	distinct := make(map[uuid.UUID]struct{})
	for id := range ids {
		distinct[id] = struct{}{}
	}
	assert.Len(t, distinct, 1)

	removed, err := q.RemoveTaskByMetadata(ctx, PepeTask{Line: "only one"})
	require.NoError(t, err)
	assert.Equal(t, int64(1), removed)
}

type unregistered struct {
	queue.BaseRunnable
}

func (unregistered) Run(context.Context, queue.Queueable) error { return nil }
