// Package worker runs queued board operations one at a time.
//
// A single Dispatcher drains the task queue in order, so every mutation of
// the boards runs on one logical task queue no matter how many HTTP
// requests arrive concurrently.
package worker

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/okian/area51/internal/adapters/mq/queue"
	"github.com/okian/area51/pkg/logger"
	"github.com/okian/area51/pkg/metrics"
)

// Queue defines how the dispatcher receives and accepts tasks.
type Queue interface {
	Enqueue(ctx context.Context, t queue.Task) bool
	Dequeue(ctx context.Context) <-chan queue.Task
	IsClosed() bool
	Close() error
}

// ErrTaskPanic reports a task that panicked instead of returning.
var ErrTaskPanic = errors.New("task panicked")

// Dispatcher executes tasks sequentially.
type Dispatcher struct {
	queue Queue
	name  string

	// Shutdown control
	done chan struct{}

	logger logger.Logger
}

// NewDispatcher creates a dispatcher over q. Call Start to begin draining.
func NewDispatcher(q Queue, opts ...Option) *Dispatcher {
	d := &Dispatcher{
		queue:  q,
		name:   "dispatcher",
		done:   make(chan struct{}),
		logger: logger.Default().Named("dispatcher"),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Start runs the dispatcher loop in its own goroutine.
func (d *Dispatcher) Start(ctx context.Context) {
	d.logger.Info(ctx, "dispatcher started", logger.String("name", d.name))
	go d.Run(ctx)
}

// Run drains the queue until it is closed and empty or ctx is canceled.
func (d *Dispatcher) Run(ctx context.Context) {
	defer close(d.done)

	tasks := d.queue.Dequeue(ctx)
	for {
		if ctx.Err() != nil {
			return
		}
		select {
		case <-ctx.Done():
			return
		case t, ok := <-tasks:
			if !ok {
				return
			}
			d.process(ctx, t)
		}
	}
}

// Do enqueues fn and waits for it to finish.
func (d *Dispatcher) Do(ctx context.Context, name string, fn func(ctx context.Context) error) error {
	_, err := Submit(ctx, d, name, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, fn(ctx)
	})
	return err
}

// Submit enqueues fn on d and waits for its result. fn runs with ctx
// stripped of its cancellation: once a board operation starts it runs to
// completion even if the caller stops waiting.
func Submit[T any](ctx context.Context, d *Dispatcher, name string, fn func(ctx context.Context) (T, error)) (T, error) {
	type outcome struct {
		v   T
		err error
	}
	var zero T
	result := make(chan outcome, 1)
	runCtx := context.WithoutCancel(ctx)
	task := queue.NewTask(name, func(context.Context) (err error) {
		var v T
		defer func() {
			if r := recover(); r != nil {
				err = fmt.Errorf("%w: %v", ErrTaskPanic, r)
			}
			result <- outcome{v: v, err: err}
		}()
		v, err = fn(runCtx)
		return err
	})
	task.Abort = func(err error) {
		result <- outcome{err: err}
	}

	if !d.queue.Enqueue(ctx, task) {
		if d.queue.IsClosed() {
			return zero, queue.ErrStopped
		}
		if err := ctx.Err(); err != nil {
			return zero, err
		}
		return zero, queue.ErrQueueFull
	}

	select {
	case out := <-result:
		return out.v, out.err
	case <-ctx.Done():
		return zero, ctx.Err()
	}
}

// Shutdown stops accepting tasks and waits for the queued ones to finish.
func (d *Dispatcher) Shutdown(ctx context.Context) error {
	if err := d.queue.Close(); err != nil {
		d.logger.Error(ctx, "error closing queue", logger.Error(err))
	}

	select {
	case <-d.done:
		return nil
	case <-ctx.Done():
		d.logger.Warn(ctx, "shutdown timed out")
		return fmt.Errorf("shutdown timed out: %w", ctx.Err())
	}
}

// process runs a single task and records its latency.
func (d *Dispatcher) process(ctx context.Context, t queue.Task) {
	start := time.Now()
	err := t.Run(ctx)
	metrics.RecordTaskLatency(t.Name, float64(time.Since(start).Milliseconds()))

	switch {
	case err == nil:
	case errors.Is(err, ErrTaskPanic):
		metrics.RecordTaskError(t.Name)
		metrics.RecordErrorByComponent("dispatcher", "panic")
		d.logger.Error(ctx, "task panicked",
			logger.String("task", t.Name),
			logger.String("task_id", t.ID.String()),
			logger.Error(err),
		)
	default:
		metrics.RecordTaskError(t.Name)
		d.logger.Debug(ctx, "task returned error",
			logger.String("task", t.Name),
			logger.String("task_id", t.ID.String()),
			logger.Error(err),
		)
	}
}
