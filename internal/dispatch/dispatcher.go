package dispatch

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/Iron-Ham/edgeshift/internal/device"
	"github.com/Iron-Ham/edgeshift/internal/errors"
	"github.com/Iron-Ham/edgeshift/internal/event"
	"github.com/Iron-Ham/edgeshift/internal/logging"
	"github.com/Iron-Ham/edgeshift/internal/retry"
	"github.com/Iron-Ham/edgeshift/internal/task"
)

// Default dispatcher settings.
const (
	DefaultMaxRetries    = 3
	DefaultRetryBackoff  = 100 * time.Millisecond
	DefaultRemoteTimeout = 10 * time.Second
)

// LocalRunner executes tasks on the device.
type LocalRunner interface {
	Execute(ctx context.Context, t task.Task) (task.Result, error)
}

// RemoteSender forwards a task to the remote service.
type RemoteSender interface {
	Send(ctx context.Context, t task.Task) (any, error)
}

// StatusProvider supplies the current device snapshot.
type StatusProvider interface {
	Status() device.Status
}

// Config holds retry and timeout settings.
type Config struct {
	// MaxRetries is the total number of local attempts.
	MaxRetries int
	// RetryBackoff is multiplied by the attempt number between attempts.
	RetryBackoff time.Duration
	// RemoteTimeout bounds each remote call.
	RemoteTimeout time.Duration
}

// DefaultConfig returns the default dispatcher configuration.
func DefaultConfig() Config {
	return Config{
		MaxRetries:    DefaultMaxRetries,
		RetryBackoff:  DefaultRetryBackoff,
		RemoteTimeout: DefaultRemoteTimeout,
	}
}

// Dispatcher routes tasks to local or remote execution and keeps Stats.
type Dispatcher struct {
	cfg     Config
	policy  *Policy
	local   LocalRunner
	remote  RemoteSender
	device  StatusProvider
	retries *retry.Manager
	bus     *event.Bus
	logger  *logging.Logger

	seq atomic.Uint64

	mu    sync.Mutex
	stats Stats
}

// New creates a Dispatcher. remote may be nil, in which case remote decisions
// and fallbacks fail with errors.ErrNoRemote.
func New(cfg Config, policy *Policy, local LocalRunner, remote RemoteSender, dev StatusProvider, bus *event.Bus, logger *logging.Logger) *Dispatcher {
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = DefaultMaxRetries
	}
	if cfg.RemoteTimeout <= 0 {
		cfg.RemoteTimeout = DefaultRemoteTimeout
	}
	if logger == nil {
		logger = logging.NopLogger()
	}
	return &Dispatcher{
		cfg:     cfg,
		policy:  policy,
		local:   local,
		remote:  remote,
		device:  dev,
		retries: retry.NewManager(),
		bus:     bus,
		logger:  logger.WithComponent("dispatcher"),
	}
}

// Policy returns the decision policy.
func (d *Dispatcher) Policy() *Policy {
	return d.policy
}

// Retrying returns the number of in-flight tasks waiting for another local attempt.
func (d *Dispatcher) Retrying() int {
	return len(d.retries.GetRetryingTasks())
}

// InFlight returns the number of tasks currently in local execution,
// including those between retries.
func (d *Dispatcher) InFlight() int {
	return d.retries.InFlight()
}

// Execute decides where t runs and runs it there.
func (d *Dispatcher) Execute(ctx context.Context, t task.Task) (task.Result, error) {
	d.count(func(s *Stats) { s.TotalTasks++ })

	if err := t.Validate(); err != nil {
		d.count(func(s *Stats) { s.Failed++ })
		return task.Result{}, err
	}

	status := d.device.Status()
	decision := d.policy.ShouldProcessLocally(t, status)
	logger := d.logger.WithTask(t.ID)
	logger.Debug("dispatch decision",
		"local", decision.Local,
		"rule", decision.Rule,
		"final_score", decision.FinalScore,
		"threshold", decision.Threshold)
	d.publish(event.NewTaskDispatchedEvent(t.ID, decision.Local, decision.Rule, decision.FinalScore, decision.Threshold))

	if !decision.Local {
		d.count(func(s *Stats) { s.RemoteTasks++ })
		return d.forward(ctx, t, false, 0)
	}

	d.count(func(s *Stats) { s.LocalTasks++ })
	start := time.Now()
	res, attempts, err := d.executeWithRetry(ctx, t)
	if err == nil {
		d.count(func(s *Stats) {
			s.Succeeded++
			if res.FromCache {
				s.CacheHits++
			}
		})
		res.Attempts = attempts
		res.Duration = time.Since(start)
		return res, nil
	}

	if !errors.Is(err, errors.ErrRetriesExhausted) {
		d.count(func(s *Stats) { s.Failed++ })
		return task.Result{}, err
	}

	logger.Warn("local retries exhausted, falling back to remote", "attempts", attempts, "error", err)
	d.count(func(s *Stats) {
		s.Fallbacks++
		s.RemoteTasks++
	})
	d.publish(event.NewTaskStateChangedEvent(t.ID, task.StateFailedLocal, task.StateForwardedRemote, err))
	return d.forward(ctx, t, true, attempts)
}

// executeWithRetry runs t locally up to MaxRetries times with linear backoff.
// Fatal and non-retryable errors return immediately; exhaustion returns an
// error matching errors.ErrRetriesExhausted that wraps the last failure.
func (d *Dispatcher) executeWithRetry(ctx context.Context, t task.Task) (task.Result, int, error) {
	key := fmt.Sprintf("%s#%d", t.ID, d.seq.Add(1))
	d.retries.GetOrCreateState(key, d.cfg.MaxRetries)
	defer func() {
		if n := d.retries.Finish(key).Retries(); n > 0 {
			d.count(func(s *Stats) { s.Retries += int64(n) })
		}
	}()

	for {
		res, err := d.local.Execute(ctx, t)
		d.retries.RecordAttempt(key, err)
		state, _ := d.retries.GetState(key)

		if err == nil {
			return res, state.Attempts, nil
		}
		if !errors.IsRetryable(err) {
			return task.Result{}, state.Attempts, err
		}
		if !d.retries.ShouldRetry(key) {
			return task.Result{}, state.Attempts, errors.NewTaskError(
				fmt.Sprintf("failed after %d attempts", state.Attempts),
				fmt.Errorf("%w: %w", errors.ErrRetriesExhausted, err),
			).WithTaskID(t.ID).WithProcessor(t.Kind, t.Operation).WithAttempt(state.Attempts)
		}

		d.publish(event.NewTaskStateChangedEvent(t.ID, task.StateFailedLocal, task.StateExecuting, err))
		d.logger.WithTask(t.ID).Debug("retrying local execution", "attempt", state.Attempts+1, "error", err)

		if err := retry.Sleep(ctx, retry.Backoff(d.cfg.RetryBackoff, state.Attempts)); err != nil {
			return task.Result{}, state.Attempts, errors.NewTaskError("retry canceled", err).
				WithTaskID(t.ID).WithAttempt(state.Attempts)
		}
	}
}

// forward sends t to the remote service once, under RemoteTimeout.
func (d *Dispatcher) forward(ctx context.Context, t task.Task, fallback bool, attempts int) (task.Result, error) {
	start := time.Now()
	value, err := d.send(ctx, t)
	if err != nil {
		d.count(func(s *Stats) { s.Failed++ })
		d.publish(event.NewTaskStateChangedEvent(t.ID, task.StateForwardedRemote, task.StateFailedRemote, err))
		d.logger.WithTask(t.ID).Warn("remote execution failed", "fallback", fallback, "error", err)
		return task.Result{}, err
	}

	d.count(func(s *Stats) { s.Succeeded++ })
	d.publish(event.NewTaskStateChangedEvent(t.ID, task.StateForwardedRemote, task.StateCompletedRemote, nil))
	return task.Result{
		TaskID:   t.ID,
		Value:    value,
		Location: task.LocationRemote,
		Attempts: attempts,
		Fallback: fallback,
		Duration: time.Since(start),
	}, nil
}

func (d *Dispatcher) send(ctx context.Context, t task.Task) (any, error) {
	if d.remote == nil {
		return nil, errors.NewRemoteError("cannot forward task", errors.ErrNoRemote)
	}
	if !d.device.Status().IsConnected {
		return nil, errors.NewRemoteError("cannot forward task", errors.ErrOffline)
	}

	rctx, cancel := context.WithTimeout(ctx, d.cfg.RemoteTimeout)
	defer cancel()

	value, err := d.remote.Send(rctx, t)
	if err == nil {
		return value, nil
	}
	if errors.Is(rctx.Err(), context.DeadlineExceeded) && ctx.Err() == nil && !errors.Is(err, errors.ErrTimeout) {
		err = errors.NewTimeoutError("remote send", d.cfg.RemoteTimeout).WithCause(err)
	}
	if !errors.Is(err, errors.ErrRemoteRequest) {
		err = errors.NewRemoteError("remote request failed", err)
	}
	return nil, err
}

func (d *Dispatcher) publish(e event.Event) {
	if d.bus != nil {
		d.bus.Publish(e)
	}
}
