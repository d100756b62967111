// Package queue provides a storage-agnostic background task queue with
// immediate, delayed and recurring execution.
//
// Work is expressed as Runnable values: plain structs whose exported fields are
// the task payload. A Registry maps each Runnable type to a discriminator that is
// stored under the "type" key of the task metadata, so a worker can rebuild the
// concrete value from a database row. Storage is abstracted by Queueable;
// MemoryQueue implements it in process and package pgqueue implements it on
// PostgreSQL with FOR UPDATE SKIP LOCKED.
//
// # Components
//
//   - Registry   binds Runnable types to discriminators and builds task records
//   - Queueable  inserts, claims, transitions and removes tasks
//   - Worker     claims tasks one at a time and applies the retry policy
//   - WorkerPool runs several workers against one queue
//   - Scheduler  materializes occurrences of recurring Runnables
//
// # Usage
//
//	type SendReport struct {
//	    queue.BaseRunnable
//	    AccountID string `json:"account_id"`
//	}
//
//	func (r SendReport) Run(ctx context.Context, q queue.Queueable) error {
//	    return reports.Send(ctx, r.AccountID)
//	}
//
//	registry := queue.MustNewRegistry(queue.VariantOf[SendReport]("send_report"))
//	q, _ := queue.NewMemoryQueue(registry)
//
//	_, _ = q.InsertTask(ctx, SendReport{AccountID: "acc_1"})
//
//	pool, _ := queue.NewWorkerPool(q, registry, 4, queue.WithPollInterval(time.Second))
//	_ = pool.Start(ctx)
//	defer pool.Stop()
//
// Recurring work returns a schedule from Cron:
//
//	func (CleanupSessions) Cron() *queue.Scheduled {
//	    return queue.ScheduleCron("0 */5 * * * *")
//	}
//
//	s, _ := queue.NewScheduler(q, queue.WithCheckInterval(30*time.Second))
//	_ = s.AddRegistry(registry)
//	go s.Start(ctx)
//
// # Retries
//
// A failed run is retried while the task's retry count is below MaxRetries,
// after Backoff(attempt). Panics count as failures. Tasks whose metadata can't
// be decoded fail immediately.
//
// # Uniqueness
//
// Runnables whose Uniq method returns true carry a SHA-256 hash of their
// metadata. Inserting a duplicate while the original is new or in_progress
// returns the original. Recurring occurrences always carry a hash salted with
// the due time, which makes scheduling the same occurrence twice a no-op.
package queue
