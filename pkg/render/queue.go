package render

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
)

// ErrQueueClosed is returned for work submitted to, or still waiting in, a closed queue.
var ErrQueueClosed = errors.New("render queue closed")

// taskQueue runs submitted work one item at a time on a single goroutine.
// The browser engine only tolerates one driver at a time, so every CDP
// operation goes through here.
type taskQueue struct {
	tasks chan *queuedTask
	stop  chan struct{}
	wg    sync.WaitGroup
	once  sync.Once
}

func newTaskQueue(size int) *taskQueue {
	if size < 0 {
		size = 0
	}
	q := &taskQueue{
		tasks: make(chan *queuedTask, size),
		stop:  make(chan struct{}),
	}
	q.wg.Add(1)
	go q.run()
	return q
}

func (q *taskQueue) run() {
	defer q.wg.Done()
	for {
		select {
		case <-q.stop:
			return
		case task := <-q.tasks:
			if task.claim() {
				task.run()
			}
		}
	}
}

// Do runs fn on the worker and waits for it. Work whose context has ended
// by the time the worker reaches it is skipped. Do returns as soon as ctx
// ends; fn is expected to observe the same context and wind down.
func (q *taskQueue) Do(ctx context.Context, fn func(ctx context.Context) error) error {
	done := make(chan error, 1)
	task := &queuedTask{run: func() {
		if err := ctx.Err(); err != nil {
			done <- err
			return
		}
		done <- fn(ctx)
	}}

	select {
	case <-q.stop:
		return ErrQueueClosed
	default:
	}

	renderQueueDepth.Inc()
	select {
	case q.tasks <- task:
	case <-ctx.Done():
		task.claim()
		return ctx.Err()
	case <-q.stop:
		task.claim()
		return ErrQueueClosed
	}

	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		task.claim()
		return ctx.Err()
	case <-q.stop:
		task.claim()
		return ErrQueueClosed
	}
}

// queuedTask is counted in the queue depth until it is claimed, either by
// the worker about to run it or by the caller giving up on it. A task left
// in the channel after Close has already been claimed by its caller.
type queuedTask struct {
	claimed atomic.Bool
	run     func()
}

func (t *queuedTask) claim() bool {
	if !t.claimed.CompareAndSwap(false, true) {
		return false
	}
	renderQueueDepth.Dec()
	return true
}

// Close stops the worker after the task in progress, if any, returns.
// Queued tasks are abandoned.
func (q *taskQueue) Close() {
	q.once.Do(func() {
		close(q.stop)
	})
	q.wg.Wait()
}
