package task

import (
	"context"
	"time"
)

// Location tells where a task was finally executed.
type Location string

const (
	LocationLocal  Location = "local"
	LocationRemote Location = "remote"
)

// Result is the uniform outcome of a task, whether it ran locally, came from
// the cache, or was forwarded to the remote service.
type Result struct {
	TaskID    string        `json:"taskId"`
	Value     any           `json:"value"`
	Location  Location      `json:"location"`
	FromCache bool          `json:"fromCache,omitempty"`
	Attempts  int           `json:"attempts,omitempty"`
	Fallback  bool          `json:"fallback,omitempty"`
	Duration  time.Duration `json:"duration"`
}

// Future is a handle to a task running in the background.
type Future struct {
	done   chan struct{}
	result Result
	err    error
}

// Go runs fn in a new goroutine and returns a Future for its outcome.
func Go(fn func() (Result, error)) *Future {
	f := &Future{done: make(chan struct{})}
	go func() {
		defer close(f.done)
		f.result, f.err = fn()
	}()
	return f
}

// Done is closed once the outcome is available.
func (f *Future) Done() <-chan struct{} {
	return f.done
}

// Await blocks until the task finishes or ctx is done. Cancelling ctx stops
// the wait only; the task itself keeps running.
func (f *Future) Await(ctx context.Context) (Result, error) {
	select {
	case <-f.done:
		return f.result, f.err
	case <-ctx.Done():
		return Result{}, ctx.Err()
	}
}
