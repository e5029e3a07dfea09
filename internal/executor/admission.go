package executor

import (
	"context"
	"slices"

	"github.com/Iron-Ham/edgeshift/internal/task"
)

// waiter is a queued task waiting for a slot. ready is closed once a slot has
// been transferred to it.
type waiter struct {
	taskID  string
	ready   chan struct{}
	granted bool
}

// acquire takes an execution slot, queueing FIFO when the limit is reached,
// when others are already queued, or when resources are low while another
// task runs.
func (e *Executor) acquire(ctx context.Context, taskID string) error {
	limit := e.Limit()
	low := e.resourcesLow()

	e.mu.Lock()
	if e.running < limit && len(e.queue) == 0 && (e.running == 0 || !low) {
		e.running++
		e.mu.Unlock()
		return nil
	}
	w := &waiter{taskID: taskID, ready: make(chan struct{})}
	e.queue = append(e.queue, w)
	depth := len(e.queue)
	e.mu.Unlock()

	e.logger.Debug("task queued", "task_id", taskID, "queue_length", depth, "limit", limit)
	e.stateChanged(taskID, task.StateCreated, task.StateQueued, nil)

	select {
	case <-w.ready:
		return nil
	case <-ctx.Done():
		e.mu.Lock()
		if w.granted {
			// The slot arrived as ctx ended; pass it on.
			e.running--
		} else if i := slices.Index(e.queue, w); i >= 0 {
			e.queue = slices.Delete(e.queue, i, i+1)
		}
		e.drainLocked()
		e.mu.Unlock()
		return ctx.Err()
	}
}

// release returns a slot and admits queued tasks.
func (e *Executor) release() {
	e.mu.Lock()
	e.running--
	e.drainLocked()
	e.mu.Unlock()
}

// drainLocked hands free slots to the queue head in FIFO order. A queued task
// is always admitted when nothing is running, so low resources cannot stall
// the queue. Caller must hold e.mu.
func (e *Executor) drainLocked() {
	if len(e.queue) == 0 {
		return
	}
	limit := e.Limit()
	low := e.resourcesLow()
	for len(e.queue) > 0 && e.running < limit && (e.running == 0 || !low) {
		w := e.queue[0]
		e.queue[0] = nil
		e.queue = e.queue[1:]
		e.running++
		w.granted = true
		close(w.ready)
	}
}
