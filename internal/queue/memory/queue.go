// Package memory provides the in-process work queues that connect the
// discovery loop and the worker pools.
package memory

import (
	"context"
	"fmt"
	"sync"

	"github.com/JakeFAU/hn-crawler/internal/crawler"
)

// Queue is an unbounded FIFO queue with context-aware Dequeue and
// task acknowledgement. Enqueue never blocks.
//
// Every dequeued item must be acknowledged with Done. After Close, Enqueue fails and
// Dequeue keeps returning buffered items until the queue is empty, then
// returns crawler.ErrQueueClosed.
type Queue[T any] struct {
	mu       sync.Mutex
	items    []T
	pending  int
	closed   bool
	notify   chan struct{}
	closedCh chan struct{}
}

// NewQueue constructs an empty queue.
func NewQueue[T any]() *Queue[T] {
	return &Queue[T]{
		notify:   make(chan struct{}, 1),
		closedCh: make(chan struct{}),
	}
}

// Enqueue appends item to the queue.
func (q *Queue[T]) Enqueue(ctx context.Context, item T) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("enqueue canceled: %w", err)
	}
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return crawler.ErrQueueClosed
	}
	q.items = append(q.items, item)
	q.pending++
	q.mu.Unlock()
	q.signal()
	return nil
}

// Dequeue pops the oldest item, waiting until one is available, the queue
// is closed and empty, or ctx is done.
func (q *Queue[T]) Dequeue(ctx context.Context) (T, error) {
	var zero T
	for {
		q.mu.Lock()
		if len(q.items) > 0 {
			item := q.items[0]
			q.items[0] = zero
			q.items = q.items[1:]
			remaining := len(q.items)
			q.mu.Unlock()
			if remaining > 0 {
				q.signal()
			}
			return item, nil
		}
		if q.closed {
			q.mu.Unlock()
			return zero, crawler.ErrQueueClosed
		}
		q.mu.Unlock()

		select {
		case <-ctx.Done():
			return zero, fmt.Errorf("dequeue canceled: %w", ctx.Err())
		case <-q.notify:
		case <-q.closedCh:
		}
	}
}

// Done acknowledges one dequeued item.
func (q *Queue[T]) Done() {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.pending > 0 {
		q.pending--
	}
}

// Len returns the number of items waiting to be dequeued.
func (q *Queue[T]) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

// Pending returns the number of enqueued items not yet acknowledged.
func (q *Queue[T]) Pending() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.pending
}

// Close stops accepting new items. It is safe to call more than once.
func (q *Queue[T]) Close() {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return
	}
	q.closed = true
	close(q.closedCh)
}

func (q *Queue[T]) signal() {
	select {
	case q.notify <- struct{}{}:
	default:
	}
}
