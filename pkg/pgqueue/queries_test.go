package pgqueue

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNewQueries(t *testing.T) {
	t.Parallel()

	q := newQueries(`odd "name"`)

	for name, stmt := range map[string]string{
		"insert":      q.insert,
		"claim":       q.claim,
		"updateState": q.updateState,
		"remove":      q.remove,
	} {
		assert.Contains(t, stmt, `"odd ""name"""`, name)
	}

	assert.Contains(t, q.claim, "FOR UPDATE SKIP LOCKED")
	assert.Contains(t, q.claim, "RETURNING t.id, t.metadata")
	assert.Contains(t, q.insert, "ON CONFLICT (uniq_hash) WHERE state IN ('new', 'in_progress') DO NOTHING")
	assert.Equal(t, len(columns)-1, strings.Count(taskColumns, ","))
}

func TestNewQueries_Ready(t *testing.T) {
	t.Parallel()

	assert.Equal(t, `SELECT 1 FROM "jobs" LIMIT 0`, newQueries("jobs").ready)
}

func TestNewQueries_DatabaseClock(t *testing.T) {
	t.Parallel()

	q := newQueries(DefaultTableName)

	assert.Contains(t, q.claim, "scheduled_at <= COALESCE($2::timestamptz, now())")
	assert.Contains(t, q.claim, "updated_at = COALESCE($2::timestamptz, now())")
	assert.Contains(t, q.retry, "scheduled_at = COALESCE($3::timestamptz, now()) + $2::bigint * interval '1 microsecond'")
	assert.Contains(t, q.removeFuture, "scheduled_at > COALESCE($1::timestamptz, now())")
	assert.Contains(t, q.updateState, "updated_at = COALESCE($3::timestamptz, now())")
	assert.Contains(t, q.fail, "updated_at = COALESCE($3::timestamptz, now())")
}
