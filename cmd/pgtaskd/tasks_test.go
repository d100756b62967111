package main

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/pgtask/pkg/logger"
	"github.com/dmitrymomot/pgtask/pkg/queue"
)

func TestRegistry(t *testing.T) {
	t.Parallel()

	reg := registry()
	assert.ElementsMatch(t, []string{"echo", "heartbeat"}, reg.Names())

	recurring := reg.Recurring()
	require.Len(t, recurring, 1)
	assert.IsType(t, heartbeatTask{}, recurring[0])
}

func TestHeartbeatSchedule(t *testing.T) {
	t.Parallel()

	from := time.Date(2024, 3, 1, 10, 2, 0, 0, time.UTC)
	next, err := heartbeatTask{}.Cron().Next(from)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2024, 3, 1, 10, 5, 0, 0, time.UTC), next.UTC())
}

func TestEchoTask(t *testing.T) {
	t.Parallel()

	reg := registry()
	q, err := queue.NewMemoryQueue(reg)
	require.NoError(t, err)
	w, err := queue.NewWorker(q, reg, queue.WithWorkerLogger(logger.Discard()))
	require.NoError(t, err)

	ctx := context.Background()

	ok, err := q.InsertTask(ctx, echoTask{Message: "hi"})
	require.NoError(t, err)
	dup, err := q.InsertTask(ctx, echoTask{Message: "hi"})
	require.NoError(t, err)
	assert.Equal(t, ok.ID, dup.ID)

	empty, err := q.InsertTask(ctx, echoTask{})
	require.NoError(t, err)

	for range 2 {
		_, err := w.RunOnce(ctx)
		require.NoError(t, err)
	}

	done, err := q.FindTaskByID(ctx, ok.ID)
	require.NoError(t, err)
	assert.Equal(t, queue.StateFinished, done.State)

	retried, err := q.FindTaskByID(ctx, empty.ID)
	require.NoError(t, err)
	assert.Equal(t, queue.StateNew, retried.State)
	assert.Equal(t, 1, retried.Retries)
	assert.Equal(t, 10*time.Second, retried.ScheduledAt.Sub(retried.UpdatedAt).Round(time.Second))
}
