// Package queue holds board operations waiting for the dispatcher.
//
// The queue is bounded and never blocks producers: a full or closed queue
// rejects the task and the caller reports backpressure.
package queue

import (
	"context"
	"sync"

	"github.com/google/uuid"

	"github.com/okian/area51/pkg/metrics"
)

// Default queue configuration constants.
const (
	defaultQueueCapacity = 1024
)

// Task is one unit of work. Callers close over their own request state.
type Task struct {
	ID   uuid.UUID
	Name string
	Run  func(ctx context.Context) error
	// Abort, when set, is called instead of Run for a task that will never
	// be delivered.
	Abort func(err error)
}

func (t Task) abort(err error) {
	if t.Abort != nil {
		t.Abort(err)
	}
}

// NewTask stamps fn with a fresh id.
func NewTask(name string, fn func(ctx context.Context) error) Task {
	return Task{ID: uuid.New(), Name: name, Run: fn}
}

// Queue provides non-blocking enqueue and channel-based dequeue semantics.
type Queue interface {
	// Enqueue adds a task. It returns false if the queue is full, closed or
	// ctx is done.
	Enqueue(ctx context.Context, t Task) bool

	// Dequeue returns a channel that yields tasks in FIFO order. The channel
	// is closed when the queue is closed and drained.
	Dequeue(ctx context.Context) <-chan Task

	// Len returns the current number of queued tasks.
	Len(ctx context.Context) int

	// Close stops accepting tasks.
	Close() error

	// IsClosed returns true if the queue has been closed.
	IsClosed() bool
}

// InMemoryQueue implements Queue using a buffered channel.
type InMemoryQueue struct {
	tasks    chan Task
	capacity int
	mu       sync.RWMutex
	closed   bool
}

// NewInMemoryQueue creates a new in-memory queue with configuration options.
func NewInMemoryQueue(opts ...Option) *InMemoryQueue {
	q := &InMemoryQueue{
		capacity: defaultQueueCapacity,
	}
	for _, opt := range opts {
		opt(q)
	}
	q.tasks = make(chan Task, q.capacity)

	metrics.UpdateQueueCapacity(q.capacity)
	metrics.UpdateQueueSize(0)
	return q
}

// Enqueue adds a task to the queue.
func (q *InMemoryQueue) Enqueue(ctx context.Context, t Task) bool {
	q.mu.RLock()
	defer q.mu.RUnlock()

	if q.closed {
		metrics.RecordQueueEnqueueError("closed")
		return false
	}
	if ctx.Err() != nil {
		metrics.RecordQueueEnqueueError("context_cancelled")
		return false
	}

	select {
	case q.tasks <- t:
		metrics.UpdateQueueSize(len(q.tasks))
		return true
	default:
		metrics.RecordQueueEnqueueError("queue_full")
		metrics.RecordErrorByComponent("queue", "queue_full")
		return false
	}
}

// Dequeue returns a channel that will receive tasks as they become available.
// When ctx ends, the task already taken is aborted with ErrStopped, and so is
// everything left in a closed queue.
func (q *InMemoryQueue) Dequeue(ctx context.Context) <-chan Task {
	out := make(chan Task)
	go func() {
		defer close(out)
		for t := range q.tasks {
			select {
			case out <- t:
				metrics.UpdateQueueSize(len(q.tasks))
			case <-ctx.Done():
				t.abort(ErrStopped)
				if q.IsClosed() {
					q.abortRemaining()
				}
				return
			}
		}
	}()
	return out
}

// abortRemaining fails every task still buffered in a closed queue.
func (q *InMemoryQueue) abortRemaining() {
	for t := range q.tasks {
		t.abort(ErrStopped)
	}
	metrics.UpdateQueueSize(0)
}

// Len returns the current number of queued tasks.
func (q *InMemoryQueue) Len(_ context.Context) int {
	size := len(q.tasks)
	metrics.UpdateQueueSize(size)
	return size
}

// Close gracefully shuts down the queue. Tasks already queued are still
// delivered.
func (q *InMemoryQueue) Close() error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return nil
	}
	close(q.tasks)
	q.closed = true
	return nil
}

// IsClosed returns true if the queue has been closed.
func (q *InMemoryQueue) IsClosed() bool {
	q.mu.RLock()
	defer q.mu.RUnlock()
	return q.closed
}
