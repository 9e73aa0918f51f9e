// Package queue provides an unbounded FIFO shared by concurrent consumers.
package queue

import (
	"errors"
	"sync"
)

// ErrClosed is returned by Enqueue after Close or Abort.
var ErrClosed = errors.New("queue: closed")

// Queue is a thread-safe FIFO. Each item is handed to exactly one caller of
// Dequeue.
type Queue[T any] struct {
	mu     sync.Mutex
	cond   *sync.Cond
	items  []T
	closed bool
}

// New creates an empty, open queue.
func New[T any]() *Queue[T] {
	q := &Queue[T]{}
	q.cond = sync.NewCond(&q.mu)
	return q
}

// Enqueue appends item to the tail.
func (q *Queue[T]) Enqueue(item T) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return ErrClosed
	}
	q.items = append(q.items, item)
	q.cond.Signal()
	return nil
}

// Dequeue blocks until an item is available or the queue is closed and
// drained. ok is false only in the latter case.
func (q *Queue[T]) Dequeue() (item T, ok bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	for len(q.items) == 0 && !q.closed {
		q.cond.Wait()
	}
	if len(q.items) == 0 {
		return item, false
	}

	item = q.items[0]
	var zero T
	q.items[0] = zero
	q.items = q.items[1:]
	return item, true
}

// Close marks the end of input. Items already queued are still delivered.
func (q *Queue[T]) Close() {
	q.mu.Lock()
	q.closed = true
	q.mu.Unlock()
	q.cond.Broadcast()
}

// Abort closes the queue and removes everything not yet dequeued, returning
// it in FIFO order. Blocked and future Dequeue calls report closed.
func (q *Queue[T]) Abort() []T {
	q.mu.Lock()
	rest := q.items
	q.items = nil
	q.closed = true
	q.mu.Unlock()
	q.cond.Broadcast()
	return rest
}

// Len returns the number of items waiting.
func (q *Queue[T]) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}
