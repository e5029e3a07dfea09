package executor

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/Iron-Ham/edgeshift/internal/device"
	"github.com/Iron-Ham/edgeshift/internal/errors"
	"github.com/Iron-Ham/edgeshift/internal/event"
	"github.com/Iron-Ham/edgeshift/internal/logging"
	"github.com/Iron-Ham/edgeshift/internal/processor"
	"github.com/Iron-Ham/edgeshift/internal/store"
	"github.com/Iron-Ham/edgeshift/internal/task"
	"golang.org/x/sync/singleflight"
)

// StatusProvider supplies the current device snapshot.
type StatusProvider interface {
	Status() device.Status
}

// Option configures an Executor.
type Option func(*Executor)

// WithStore persists the cache and pending set to s.
func WithStore(s store.Store) Option {
	return func(e *Executor) { e.store = s }
}

// WithBus publishes task lifecycle and eviction events on b.
func WithBus(b *event.Bus) Option {
	return func(e *Executor) { e.bus = b }
}

// WithLogger sets the logger.
func WithLogger(l *logging.Logger) Option {
	return func(e *Executor) {
		if l != nil {
			e.logger = l.WithComponent("executor")
		}
	}
}

// WithClock replaces time.Now, for tests.
func WithClock(now func() time.Time) Option {
	return func(e *Executor) { e.now = now }
}

// Executor runs tasks locally. All cache, queue, running-count and pending
// state is guarded by mu.
type Executor struct {
	cfg      Config
	registry *processor.Registry
	device   StatusProvider
	store    store.Store
	bus      *event.Bus
	logger   *logging.Logger
	now      func() time.Time

	flightMu sync.Mutex
	flight   singleflight.Group
	runs     map[string]*sharedRun

	// persistMu serializes writes to the store; acquired before mu.
	persistMu sync.Mutex

	mu       sync.Mutex
	cache    map[string]*entry
	retained map[string]*entry
	pending  map[string]struct{}
	queue    []*waiter
	running  int
	history  *history
}

// New creates an Executor and restores any persisted cache and pending set.
func New(cfg Config, registry *processor.Registry, dev StatusProvider, opts ...Option) *Executor {
	cfg = cfg.withDefaults()
	e := &Executor{
		cfg:      cfg,
		registry: registry,
		device:   dev,
		logger:   logging.NopLogger(),
		now:      time.Now,
		cache:    make(map[string]*entry),
		retained: make(map[string]*entry),
		pending:  make(map[string]struct{}),
		runs:     make(map[string]*sharedRun),
		history:  newHistory(cfg.MaxCacheSize),
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.store != nil {
		e.restore()
	}
	return e
}

// Execute runs t locally, or serves it from the cache. Concurrent calls for
// the same task ID share one execution, which keeps running while any of
// them still waits; each caller returns when its own ctx ends.
func (e *Executor) Execute(ctx context.Context, t task.Task) (task.Result, error) {
	if err := t.Validate(); err != nil {
		return task.Result{}, err
	}

	if v, ok := e.Get(t.ID); ok {
		e.logger.Debug("cache hit", "task_id", t.ID)
		return task.Result{TaskID: t.ID, Value: v, Location: task.LocationLocal, FromCache: true}, nil
	}

	fn, err := e.registry.Lookup(t.Kind, t.Operation)
	if err != nil {
		var taskErr *errors.TaskError
		if errors.As(err, &taskErr) {
			return task.Result{}, taskErr.WithTaskID(t.ID)
		}
		return task.Result{}, err
	}

	ch, leave := e.joinFlight(ctx, t.ID, func(shared context.Context) (any, error) {
		return e.run(shared, t, fn)
	})
	defer leave()

	select {
	case res := <-ch:
		if res.Err != nil {
			return task.Result{}, res.Err
		}
		return res.Val.(task.Result), nil
	case <-ctx.Done():
		return task.Result{}, errors.NewTaskError("waiting for execution", ctx.Err()).
			WithTaskID(t.ID).
			WithProcessor(t.Kind, t.Operation)
	}
}

func (e *Executor) run(ctx context.Context, t task.Task, fn processor.Func) (task.Result, error) {
	if err := e.acquire(ctx, t.ID); err != nil {
		return task.Result{}, errors.NewTaskError("waiting for an execution slot", err).
			WithTaskID(t.ID).
			WithProcessor(t.Kind, t.Operation)
	}

	// A concurrent caller may have filled the cache while this one waited.
	if v, ok := e.Get(t.ID); ok {
		e.release()
		return task.Result{TaskID: t.ID, Value: v, Location: task.LocationLocal, FromCache: true}, nil
	}

	e.stateChanged(t.ID, task.StateCreated, task.StateExecuting, nil)
	start := e.now()
	value, err := invoke(ctx, fn, t.Payload)
	end := e.now()

	rec := Record{
		TaskID:    t.ID,
		Processor: t.Key(),
		StartedAt: start,
		EndedAt:   end,
		Duration:  end.Sub(start),
		Success:   err == nil,
	}

	if err != nil {
		rec.Error = err.Error()
		e.mu.Lock()
		e.history.add(rec)
		e.running--
		e.drainLocked()
		e.mu.Unlock()

		taskErr := errors.NewTaskError("processor failed", err).
			WithTaskID(t.ID).
			WithProcessor(t.Kind, t.Operation)
		e.stateChanged(t.ID, task.StateExecuting, task.StateFailedLocal, taskErr)
		return task.Result{}, taskErr
	}

	pending := t.RequireSync && !e.device.Status().IsConnected

	e.mu.Lock()
	en := &entry{TaskID: t.ID, Result: value, CreatedAt: end, TTL: e.cfg.CacheTTL}
	e.putLocked(en)
	e.history.add(rec)
	if pending {
		e.pending[t.ID] = struct{}{}
	}
	e.running--
	e.drainLocked()
	evicted := e.cleanupLocked()
	e.mu.Unlock()

	e.stateChanged(t.ID, task.StateExecuting, task.StateCompleted, nil)
	e.publishEvicted(evicted)
	if pending {
		e.stateChanged(t.ID, task.StateCompleted, task.StatePendingSync, nil)
		if err := e.persistPending(en); err != nil {
			e.logger.Warn("persist pending result failed", "task_id", t.ID, "error", err)
		}
	}

	return task.Result{
		TaskID:   t.ID,
		Value:    value,
		Location: task.LocationLocal,
		Duration: rec.Duration,
	}, nil
}

// invoke calls fn, converting panics and errors into local execution failures.
func invoke(ctx context.Context, fn processor.Func, payload any) (value any, err error) {
	defer func() {
		if r := recover(); r != nil {
			value = nil
			err = fmt.Errorf("%w: processor panicked: %v", errors.ErrLocalExecution, r)
		}
	}()

	value, err = fn(ctx, payload)
	if err != nil && !errors.Is(err, errors.ErrLocalExecution) {
		err = fmt.Errorf("%w: %w", errors.ErrLocalExecution, err)
	}
	return value, err
}

// Limit returns the current concurrency limit.
func (e *Executor) Limit() int {
	if e.cfg.MaxConcurrent > 0 {
		return e.cfg.MaxConcurrent
	}
	return TierLimit(e.device.Status().BenchmarkLevel)
}

// resourcesLow reports whether CPU or memory usage is above its ceiling.
func (e *Executor) resourcesLow() bool {
	s := e.device.Status()
	if e.cfg.ResourceCPUCeiling > 0 && s.CPUPct > e.cfg.ResourceCPUCeiling {
		return true
	}
	return e.cfg.ResourceMemCeiling > 0 && s.MemPct > e.cfg.ResourceMemCeiling
}

// History returns the execution history, oldest first.
func (e *Executor) History() []Record {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.history.list()
}

// Snapshot is a point-in-time view of executor occupancy.
type Snapshot struct {
	Running      int `json:"running"`
	QueueLength  int `json:"queueLength"`
	Limit        int `json:"limit"`
	CacheSize    int `json:"cacheSize"`
	Retained     int `json:"retained"`
	PendingSync  int `json:"pendingSync"`
	HistoryCount int `json:"historyCount"`
}

// Snapshot returns current occupancy figures.
func (e *Executor) Snapshot() Snapshot {
	limit := e.Limit()
	e.mu.Lock()
	defer e.mu.Unlock()
	return Snapshot{
		Running:      e.running,
		QueueLength:  len(e.queue),
		Limit:        limit,
		CacheSize:    len(e.cache),
		Retained:     len(e.retained),
		PendingSync:  len(e.pending),
		HistoryCount: e.history.len(),
	}
}

// Running returns the number of executing tasks.
func (e *Executor) Running() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.running
}

// QueueLen returns the number of tasks waiting for a slot.
func (e *Executor) QueueLen() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.queue)
}

// Run performs periodic cache cleanup and persistence until ctx is done.
func (e *Executor) Run(ctx context.Context) error {
	ticker := time.NewTicker(e.cfg.CleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			e.CleanupCache()
			if err := e.Flush(); err != nil {
				e.logger.Warn("cache flush failed", "error", err)
			}
		}
	}
}

func (e *Executor) stateChanged(id string, from, to task.State, err error) {
	if e.bus != nil {
		e.bus.Publish(event.NewTaskStateChangedEvent(id, from, to, err))
	}
}
