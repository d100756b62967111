// Package admin exposes a queue over HTTP for operators.
//
// Router returns a chi router with liveness and readiness probes and a small
// task API: enqueue tagged metadata, look a task up by id, and remove tasks
// by id, by task type, or every task that is not due yet. Bodies are JSON;
// errors are {"error": "..."}.
package admin
