// Package pipeline downloads a batch of images into a folder with a fixed
// pool of workers.
//
// A Run owns a task queue, a serial allocator seeded from the folder's
// ledger, and a progress channel. Workers pull tasks, fetch them with a
// constant-delay retry policy and commit successful payloads.
//
// # Usage
//
//	run, err := pipeline.Start(ctx, tasks, pipeline.Options{
//	    Workers:        5,
//	    MaxRetries:     3,
//	    RetryDelay:     3 * time.Second,
//	    RequestTimeout: 10 * time.Second,
//	    Folder:         folder,
//	    Ledger:         log,
//	})
//
//	// On the consumer side, poll until every task is accounted for:
//	events := run.DrainAvailable()
//
// # Commits
//
// A commit allocates the next serial, writes the file and appends the ledger
// record while holding the folder lock, so serials are handed out in commit
// order rather than dequeue order. A failed write gives the serial back. A
// failed append removes the file and skips the serial. No file is left
// without a record and no record without a file.
//
// # Cancellation
//
// Run.Cancel (or cancelling the context passed to Start):
//   - Aborts the queue; tasks that never reached a worker fail immediately
//   - Lets fetches in flight finish or time out
//   - Makes every later commit fail with ErrCancelled
//
// Every task yields exactly one Completed or Failed event, cancelled or not.
package pipeline
