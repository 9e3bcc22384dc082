package generate

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/MeKo-Tech/barcodekit/internal/render"
)

// Callback receives the outcome of an asynchronous generation.
type Callback func(buf *render.PixelBuffer, err error)

const (
	taskPending int32 = iota
	taskDelivered
	taskCancelled
)

// Task is the handle of one asynchronous generation.
type Task struct {
	state  atomic.Int32
	cancel context.CancelFunc
	done   chan struct{}
}

// Cancel prevents the callback from running. It returns true if the task was
// still pending; after a true return the callback is never invoked. It
// returns false when the result was already delivered or cancelled.
func (t *Task) Cancel() bool {
	ok := t.state.CompareAndSwap(taskPending, taskCancelled)
	t.cancel()
	return ok
}

// Cancelled reports whether the task was cancelled before delivery.
func (t *Task) Cancelled() bool { return t.state.Load() == taskCancelled }

// Done is closed when the generation goroutine has finished.
func (t *Task) Done() <-chan struct{} { return t.done }

// Wait blocks until the callback has returned or the cancelled task's
// goroutine has exited.
func (t *Task) Wait() { <-t.done }

// AsyncGenerator runs generations off the caller's goroutine. In single
// operation mode each Start cancels the task started before it.
type AsyncGenerator struct {
	gen    *Generator
	single bool

	mu      sync.Mutex
	current *Task
}

// NewAsyncGenerator wraps gen.
func NewAsyncGenerator(gen *Generator, singleOperation bool) *AsyncGenerator {
	if gen == nil {
		gen = NewGenerator(nil)
	}
	return &AsyncGenerator{gen: gen, single: singleOperation}
}

// Start validates req synchronously and then generates on a new goroutine,
// delivering the result to fn unless the task is cancelled first. If ctx ends
// before generation completes fn receives the context error.
func (a *AsyncGenerator) Start(ctx context.Context, req Request, fn Callback) (*Task, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	taskCtx, cancel := context.WithCancel(ctx)
	t := &Task{cancel: cancel, done: make(chan struct{})}

	a.mu.Lock()
	if a.single && a.current != nil {
		a.current.Cancel()
	}
	a.current = t
	a.mu.Unlock()

	go func() {
		defer close(t.done)
		defer cancel()
		buf, err := a.gen.Generate(taskCtx, req)
		if t.state.CompareAndSwap(taskPending, taskDelivered) && fn != nil {
			fn(buf, err)
		}
	}()
	return t, nil
}

// Cancel cancels the most recently started task, if any.
func (a *AsyncGenerator) Cancel() bool {
	a.mu.Lock()
	t := a.current
	a.current = nil
	a.mu.Unlock()
	if t == nil {
		return false
	}
	return t.Cancel()
}
