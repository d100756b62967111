package pgqueue

import (
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
)

// columns is the scan order of scanTask
var columns = []string{
	"id", "metadata", "task_type", "uniq_hash", "state",
	"error_message", "retries", "scheduled_at", "created_at", "updated_at",
}

var taskColumns = strings.Join(columns, ", ")

// pendingStates is the uniqueness window; it must match the partial index predicate
const pendingStates = `state IN ('new', 'in_progress')`

// dbNow binds an optional clock override; NULL falls back to the database
// clock so workers on different hosts agree on what is due.
func dbNow(param string) string {
	return "COALESCE(" + param + "::timestamptz, now())"
}

// queries holds the statements for one table
type queries struct {
	now            string
	ready          string
	insert         string
	findPending    string
	claim          string
	updateState    string
	fail           string
	retry          string
	find           string
	remove         string
	removeOfType   string
	removeAll      string
	removeFuture   string
	removeMetadata string
}

func newQueries(table string) queries {
	t := pgx.Identifier{table}.Sanitize()

	return queries{
		now:   `SELECT now()`,
		ready: fmt.Sprintf(`SELECT 1 FROM %s LIMIT 0`, t),

		insert: fmt.Sprintf(`
INSERT INTO %s (id, metadata, task_type, uniq_hash, state, retries, scheduled_at, created_at, updated_at)
VALUES ($1, $2, $3, $4, 'new', 0, $5, $6, $6)
ON CONFLICT (uniq_hash) WHERE %s DO NOTHING
RETURNING %s`, t, pendingStates, taskColumns),

		findPending: fmt.Sprintf(`
SELECT %s FROM %s
WHERE uniq_hash = $1 AND %s
LIMIT 1`, taskColumns, t, pendingStates),

		claim: fmt.Sprintf(`
WITH next AS (
    SELECT id FROM %[1]s
    WHERE state = 'new' AND scheduled_at <= %[3]s AND task_type = ANY($1)
    ORDER BY scheduled_at, created_at
    LIMIT 1
    FOR UPDATE SKIP LOCKED
)
UPDATE %[1]s AS t
SET state = 'in_progress', updated_at = %[3]s
FROM next
WHERE t.id = next.id
RETURNING %[2]s`, t, prefixed("t"), dbNow("$2")),

		updateState: fmt.Sprintf(`
UPDATE %s
SET state = $2, updated_at = %s
WHERE id = $1 AND %s AND NOT (state = 'new' AND $2 = 'new')
RETURNING %s`, t, dbNow("$3"), pendingStates, taskColumns),

		fail: fmt.Sprintf(`
UPDATE %s
SET state = 'failed', error_message = $2, updated_at = %s
WHERE id = $1 AND %s
RETURNING %s`, t, dbNow("$3"), pendingStates, taskColumns),

		retry: fmt.Sprintf(`
UPDATE %[1]s
SET state = 'new', retries = retries + 1,
    scheduled_at = %[2]s + $2::bigint * interval '1 microsecond',
    updated_at = %[2]s
WHERE id = $1 AND %[3]s
RETURNING %[4]s`, t, dbNow("$3"), pendingStates, taskColumns),

		find:           fmt.Sprintf(`SELECT %s FROM %s WHERE id = $1`, taskColumns, t),
		remove:         fmt.Sprintf(`DELETE FROM %s WHERE id = $1`, t),
		removeOfType:   fmt.Sprintf(`DELETE FROM %s WHERE task_type = $1`, t),
		removeAll:      fmt.Sprintf(`DELETE FROM %s`, t),
		removeFuture:   fmt.Sprintf(`DELETE FROM %s WHERE scheduled_at > %s`, t, dbNow("$1")),
		removeMetadata: fmt.Sprintf(`DELETE FROM %s WHERE metadata = $1::jsonb`, t),
	}
}

func prefixed(alias string) string {
	out := make([]string, len(columns))
	for i, c := range columns {
		out[i] = alias + "." + c
	}
	return strings.Join(out, ", ")
}
