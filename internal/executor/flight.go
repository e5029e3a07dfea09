package executor

import (
	"context"

	"golang.org/x/sync/singleflight"
)

// sharedRun is the context of one deduplicated execution. It is detached
// from every caller and cancelled once the last caller waiting on it leaves.
type sharedRun struct {
	ctx     context.Context
	cancel  context.CancelFunc
	waiters int
}

// joinFlight registers the caller for id and starts or joins the shared
// execution. The returned leave func must be called once the caller stops
// waiting.
func (e *Executor) joinFlight(ctx context.Context, id string, fn func(context.Context) (any, error)) (<-chan singleflight.Result, func()) {
	e.flightMu.Lock()
	defer e.flightMu.Unlock()

	run, ok := e.runs[id]
	if !ok {
		shared, cancel := context.WithCancel(context.WithoutCancel(ctx))
		run = &sharedRun{ctx: shared, cancel: cancel}
		e.runs[id] = run
	}
	run.waiters++

	ch := e.flight.DoChan(id, func() (any, error) {
		return fn(run.ctx)
	})
	return ch, func() { e.leaveFlight(id, run) }
}

func (e *Executor) leaveFlight(id string, run *sharedRun) {
	e.flightMu.Lock()
	defer e.flightMu.Unlock()

	run.waiters--
	if run.waiters > 0 {
		return
	}
	run.cancel()
	if e.runs[id] == run {
		delete(e.runs, id)
	}
	// A later caller must start a fresh execution rather than join the
	// cancelled one.
	e.flight.Forget(id)
}
