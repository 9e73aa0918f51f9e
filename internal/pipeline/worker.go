package pipeline

import (
	"context"
	"time"

	"github.com/ligustah/photofetch/internal/progress"
)

// worker drains the queue until it reports closed and empty.
func (r *Run) worker(id int) {
	defer r.workers.Done()

	for {
		task, ok := r.queue.Dequeue()
		if !ok {
			return
		}
		r.process(id, task)
	}
}

// process takes one task to its terminal event.
func (r *Run) process(id int, task Task) {
	body, err := r.fetch(id, task)
	if err != nil {
		r.logf("worker %d: %v", id, err)
		r.fail(task, err)
		return
	}

	rec, err := r.commit(task, body)
	if err != nil {
		r.logf("worker %d: %v", id, err)
		r.fail(task, err)
		return
	}

	r.events.Publish(progress.CompletedEvent(task.URL, rec.Serial, rec.FileName, int64(len(body))))
}

// fetch tries task.URL up to MaxRetries times with a constant RetryDelay in
// between. Attempts already started are not interrupted by Cancel; only the
// waits between them are.
func (r *Run) fetch(id int, task Task) ([]byte, error) {
	var lastErr error

	for attempt := 1; attempt <= r.opts.MaxRetries; attempt++ {
		if attempt > 1 {
			if err := r.wait(); err != nil {
				return nil, err
			}
		}

		ctx, cancel := context.WithTimeout(context.WithoutCancel(r.ctx), r.opts.RequestTimeout)
		body, err := r.fetcher.Fetch(ctx, task.URL)
		cancel()
		if err == nil {
			return body, nil
		}

		lastErr = err
		r.logf("worker %d: attempt %d/%d for %s: %v", id, attempt, r.opts.MaxRetries, task.URL, err)
	}

	return nil, &FetchError{URL: task.URL, Attempts: r.opts.MaxRetries, Err: lastErr}
}

// wait sleeps RetryDelay, returning ErrCancelled early if the run stops.
func (r *Run) wait() error {
	if r.Cancelled() {
		return ErrCancelled
	}

	timer := time.NewTimer(r.opts.RetryDelay)
	defer timer.Stop()

	select {
	case <-r.ctx.Done():
		return ErrCancelled
	case <-timer.C:
		return nil
	}
}
