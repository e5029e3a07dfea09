package syncer

import (
	"context"
	"sync"
	"time"

	"github.com/Iron-Ham/edgeshift/internal/errors"
	"github.com/Iron-Ham/edgeshift/internal/event"
	"github.com/Iron-Ham/edgeshift/internal/logging"
	"github.com/Iron-Ham/edgeshift/internal/task"
)

// DefaultInterval is the period of timer-driven syncs.
const DefaultInterval = 30 * time.Second

// Sync triggers, reported on sync events.
const (
	TriggerTimer     = "timer"
	TriggerReconnect = "reconnect"
	TriggerManual    = "manual"
)

// PendingSource owns the set of results waiting for acknowledgement.
type PendingSource interface {
	PendingResults() map[string]any
	PendingCount() int
	Acknowledge(ids []string)
}

// Pusher sends a batch of results and returns the batch ID and acknowledged task IDs.
type Pusher interface {
	SyncBatch(ctx context.Context, results map[string]any) (string, []string, error)
}

// ConnectivityProvider reports whether the remote service is reachable.
type ConnectivityProvider interface {
	IsConnected() bool
}

// Option configures a Coordinator.
type Option func(*Coordinator)

// WithInterval sets the timer period. Zero or negative disables the timer.
func WithInterval(d time.Duration) Option {
	return func(c *Coordinator) { c.interval = d }
}

// WithBus subscribes to connectivity changes and publishes sync events on b.
func WithBus(b *event.Bus) Option {
	return func(c *Coordinator) { c.bus = b }
}

// WithLogger sets the logger.
func WithLogger(l *logging.Logger) Option {
	return func(c *Coordinator) {
		if l != nil {
			c.logger = l.WithComponent("syncer")
		}
	}
}

// Stats describes sync activity since the coordinator was created.
type Stats struct {
	Batches     int64     `json:"batches"`
	Synced      int64     `json:"synced"`
	Failures    int64     `json:"failures"`
	LastSyncAt  time.Time `json:"lastSyncAt,omitzero"`
	LastBatchID string    `json:"lastBatchId,omitempty"`
	LastError   string    `json:"lastError,omitempty"`
}

// Coordinator runs batch syncs. Concurrent syncs are serialized.
type Coordinator struct {
	pending  PendingSource
	pusher   Pusher
	device   ConnectivityProvider
	bus      *event.Bus
	logger   *logging.Logger
	interval time.Duration

	// kick wakes Run after a reconnect without blocking the publisher.
	kick chan struct{}

	syncMu sync.Mutex

	mu    sync.Mutex
	stats Stats
}

// NewCoordinator creates a Coordinator. pusher may be nil when no remote is
// configured; syncs then fail with errors.ErrNoRemote while results are pending.
func NewCoordinator(pending PendingSource, pusher Pusher, dev ConnectivityProvider, opts ...Option) *Coordinator {
	c := &Coordinator{
		pending:  pending,
		pusher:   pusher,
		device:   dev,
		logger:   logging.NopLogger().WithComponent("syncer"),
		interval: DefaultInterval,
		kick:     make(chan struct{}, 1),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Sync pushes all pending results now. It is a no-op when offline or when
// nothing is pending. A failed push returns a *errors.SyncError and leaves
// the pending set unchanged.
func (c *Coordinator) Sync(ctx context.Context) error {
	return c.sync(ctx, TriggerManual)
}

func (c *Coordinator) sync(ctx context.Context, trigger string) error {
	c.syncMu.Lock()
	defer c.syncMu.Unlock()

	if !c.device.IsConnected() {
		c.logger.Debug("sync skipped, device offline", "trigger", trigger)
		return nil
	}
	results := c.pending.PendingResults()
	if len(results) == 0 {
		return nil
	}

	if c.pusher == nil {
		return c.failed(errors.NewSyncError("cannot push pending results", errors.ErrNoRemote).
			WithPending(len(results)), trigger)
	}

	batchID, acked, err := c.pusher.SyncBatch(ctx, results)
	if err != nil {
		return c.failed(errors.NewSyncError("batch push failed", err).WithPending(len(results)), trigger)
	}

	c.pending.Acknowledge(acked)

	c.mu.Lock()
	c.stats.Batches++
	c.stats.Synced += int64(len(acked))
	c.stats.LastSyncAt = time.Now()
	c.stats.LastBatchID = batchID
	c.stats.LastError = ""
	c.mu.Unlock()

	for _, id := range acked {
		c.publish(event.NewTaskStateChangedEvent(id, task.StatePendingSync, task.StateSynced, nil))
	}
	c.publish(event.NewSyncCompletedEvent(batchID, acked, trigger))

	logger := c.logger.With("batch_id", batchID, "trigger", trigger)
	if len(acked) < len(results) {
		logger.Warn("sync partially acknowledged", "sent", len(results), "acknowledged", len(acked))
	} else {
		logger.Info("sync completed", "synced", len(acked))
	}
	return nil
}

func (c *Coordinator) failed(err *errors.SyncError, trigger string) error {
	c.mu.Lock()
	c.stats.Failures++
	c.stats.LastError = err.Error()
	c.mu.Unlock()

	c.logger.Warn("sync failed, results stay pending", "trigger", trigger, "pending", err.Pending, "error", err)
	c.publish(event.NewSyncFailedEvent(err.Pending, err, trigger))
	return err
}

// Stats returns a copy of the sync counters.
func (c *Coordinator) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.stats
}

// Run syncs on every timer tick and after each offline-to-online transition
// until ctx is done. Sync failures are logged, never returned.
func (c *Coordinator) Run(ctx context.Context) error {
	if c.bus != nil {
		id := c.bus.Subscribe(event.TypeConnectivityChanged, c.handleConnectivity)
		defer c.bus.Unsubscribe(id)
	}

	var tick <-chan time.Time
	if c.interval > 0 {
		ticker := time.NewTicker(c.interval)
		defer ticker.Stop()
		tick = ticker.C
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-tick:
			_ = c.sync(ctx, TriggerTimer)
		case <-c.kick:
			_ = c.sync(ctx, TriggerReconnect)
		}
	}
}

func (c *Coordinator) handleConnectivity(e event.Event) {
	changed, ok := e.(event.ConnectivityChangedEvent)
	if !ok || !changed.Connected {
		return
	}
	select {
	case c.kick <- struct{}{}:
	default:
	}
}

func (c *Coordinator) publish(e event.Event) {
	if c.bus != nil {
		c.bus.Publish(e)
	}
}
