package engine

import (
	"context"
	"fmt"
	"sync"

	"github.com/Iron-Ham/edgeshift/internal/config"
	"github.com/Iron-Ham/edgeshift/internal/device"
	"github.com/Iron-Ham/edgeshift/internal/dispatch"
	"github.com/Iron-Ham/edgeshift/internal/errors"
	"github.com/Iron-Ham/edgeshift/internal/event"
	"github.com/Iron-Ham/edgeshift/internal/executor"
	"github.com/Iron-Ham/edgeshift/internal/logging"
	"github.com/Iron-Ham/edgeshift/internal/processor"
	"github.com/Iron-Ham/edgeshift/internal/processor/builtin"
	"github.com/Iron-Ham/edgeshift/internal/remote"
	"github.com/Iron-Ham/edgeshift/internal/store"
	"github.com/Iron-Ham/edgeshift/internal/syncer"
	"github.com/Iron-Ham/edgeshift/internal/task"
	"golang.org/x/sync/errgroup"
)

// Remote is the transport to the remote service.
type Remote interface {
	dispatch.RemoteSender
	syncer.Pusher
}

// Option configures an Engine.
type Option func(*Engine)

// WithLogger sets the logger shared by every component.
func WithLogger(l *logging.Logger) Option {
	return func(e *Engine) {
		if l != nil {
			e.logger = l
		}
	}
}

// WithStore overrides the store selected by the configuration.
func WithStore(s store.Store) Option {
	return func(e *Engine) { e.store = s }
}

// WithRegistry replaces the builtin processor registry.
func WithRegistry(r *processor.Registry) Option {
	return func(e *Engine) { e.registry = r }
}

// WithRemote overrides the HTTP client built from remote.url.
func WithRemote(r Remote) Option {
	return func(e *Engine) { e.remote = r }
}

// WithPoller overrides the host poller used when device.poll_host is set.
func WithPoller(p device.Poller) Option {
	return func(e *Engine) { e.poller = p }
}

// Status aggregates dispatcher counters, the device snapshot and pending sync state.
type Status struct {
	Dispatcher       dispatch.Stats    `json:"dispatcher"`
	Device           device.Status     `json:"device"`
	PendingSyncCount int               `json:"pendingSyncCount"`
	Executor         executor.Snapshot `json:"executor"`
	Sync             syncer.Stats      `json:"sync"`
	Retrying         int               `json:"retrying"`
	LocalInFlight    int               `json:"localInFlight"`
	RemoteEnabled    bool              `json:"remoteEnabled"`
}

// Engine composes the dispatch pipeline. It is safe for concurrent use.
type Engine struct {
	cfg      *config.Config
	logger   *logging.Logger
	bus      *event.Bus
	store    store.Store
	registry *processor.Registry
	remote   Remote
	poller   device.Poller

	monitor    *device.Monitor
	executor   *executor.Executor
	dispatcher *dispatch.Dispatcher
	syncer     *syncer.Coordinator

	mu      sync.Mutex
	started bool
	closed  bool
	cancel  context.CancelFunc
	group   *errgroup.Group
}

// New builds an Engine from cfg. A nil cfg uses config.Default().
func New(cfg *config.Config, opts ...Option) (*Engine, error) {
	if cfg == nil {
		cfg = config.Default()
	}
	e := &Engine{
		cfg:    cfg,
		logger: logging.NopLogger(),
	}
	for _, opt := range opts {
		opt(e)
	}
	e.bus = event.NewBus(e.logger)

	if e.registry == nil {
		e.registry = processor.NewRegistry()
		builtin.Register(e.registry)
	}

	if e.store == nil {
		s, err := openStore(cfg.Store)
		if err != nil {
			return nil, err
		}
		if fs, ok := s.(*store.FileStore); ok && fs.Recovered() != nil {
			e.logger.Warn("store state file was corrupt, starting empty",
				"dir", fs.Dir(), "error", fs.Recovered())
		}
		e.store = s
	}

	if e.remote == nil && cfg.Remote.URL != "" {
		client, err := remote.NewClient(cfg.Remote.URL,
			remote.WithTimeout(cfg.Remote.Timeout),
			remote.WithToken(cfg.Remote.Token),
			remote.WithLogger(e.logger),
		)
		if err != nil {
			return nil, err
		}
		e.remote = client
	}

	if e.poller == nil && cfg.Device.PollHost {
		e.poller = device.NewHostPoller()
	}
	if e.poller != nil && cfg.Device.BenchmarkLevel > 0 {
		e.poller = fixedBenchmark{e.poller}
	}

	e.monitor = device.NewMonitor(initialStatus(cfg.Device), e.bus, e.logger)

	e.executor = executor.New(executorConfig(cfg.Executor), e.registry, e.monitor,
		executor.WithStore(e.store),
		executor.WithBus(e.bus),
		executor.WithLogger(e.logger),
	)

	policy, err := dispatch.NewPolicy(
		dispatch.WithScoring(cfg.Scoring),
		dispatch.WithLocalKinds(cfg.Dispatch.LocalKinds...),
		dispatch.WithRemoteKinds(cfg.Dispatch.RemoteKinds...),
	)
	if err != nil {
		return nil, fmt.Errorf("build dispatch policy: %w", err)
	}

	// Interface fields stay nil when no remote is configured.
	var sender dispatch.RemoteSender
	var pusher syncer.Pusher
	if e.remote != nil {
		sender, pusher = e.remote, e.remote
	}

	e.dispatcher = dispatch.New(dispatch.Config{
		MaxRetries:    cfg.Dispatch.MaxRetries,
		RetryBackoff:  cfg.Dispatch.RetryBackoff,
		RemoteTimeout: cfg.Remote.Timeout,
	}, policy, e.executor, sender, e.monitor, e.bus, e.logger)

	interval := cfg.Sync.Interval
	if !cfg.Sync.Enabled {
		interval = 0
	}
	e.syncer = syncer.NewCoordinator(e.executor, pusher, e.monitor,
		syncer.WithInterval(interval),
		syncer.WithBus(e.bus),
		syncer.WithLogger(e.logger),
	)

	e.logger.WithComponent("engine").Info("engine ready",
		"remote", cfg.Remote.URL,
		"limit", e.executor.Limit(),
		"pending_sync", e.executor.PendingCount(),
	)
	return e, nil
}

func openStore(cfg config.StoreConfig) (store.Store, error) {
	switch cfg.Backend {
	case config.StoreBackendMemory:
		return store.NewMemoryStore(), nil
	case config.StoreBackendFile, "":
		s, err := store.OpenFileStore(cfg.ResolveDir())
		if err != nil {
			return nil, fmt.Errorf("open store: %w", err)
		}
		return s, nil
	default:
		return nil, fmt.Errorf("unknown store backend %q", cfg.Backend)
	}
}

func initialStatus(cfg config.DeviceConfig) device.Status {
	s := device.DefaultStatus()
	if cfg.NetworkKind != "" {
		s.NetworkKind = cfg.NetworkKind
	}
	s.IsConnected = cfg.Connected
	s.NetworkSpeedKbps = cfg.NetworkSpeedKbps
	s.BatteryPct = cfg.BatteryPct
	if cfg.BenchmarkLevel > 0 {
		s.BenchmarkLevel = cfg.BenchmarkLevel
	}
	return s
}

func executorConfig(cfg config.ExecutorConfig) executor.Config {
	return executor.Config{
		MaxConcurrent:      cfg.MaxConcurrent,
		CacheTTL:           cfg.CacheTTL,
		MaxCacheSize:       cfg.MaxCacheSize,
		CleanupInterval:    cfg.CleanupInterval,
		ResourceCPUCeiling: cfg.ResourceCPUCeiling,
		ResourceMemCeiling: cfg.ResourceMemCeiling,
	}
}

// fixedBenchmark drops the polled benchmark when one is configured.
type fixedBenchmark struct {
	device.Poller
}

func (f fixedBenchmark) Poll(ctx context.Context) (device.Reading, error) {
	r, err := f.Poller.Poll(ctx)
	r.BenchmarkLevel = nil
	return r, err
}

// Start launches the background loops: cache cleanup, sync, host polling and
// the telemetry file watcher. Calling Start twice is a no-op.
func (e *Engine) Start(ctx context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return errors.ErrEngineClosed
	}
	if e.started {
		return nil
	}
	e.started = true

	ctx, e.cancel = context.WithCancel(ctx)
	g, ctx := errgroup.WithContext(ctx)
	e.group = g

	g.Go(func() error { return e.executor.Run(ctx) })
	g.Go(func() error { return e.syncer.Run(ctx) })
	if e.poller != nil {
		interval := e.cfg.Device.PollInterval
		if interval <= 0 {
			interval = config.Default().Device.PollInterval
		}
		g.Go(func() error { return e.monitor.Run(ctx, e.poller, interval) })
	}
	if path := e.cfg.Device.TelemetryFile; path != "" {
		src := device.NewFileSource(path, e.logger)
		// A missing telemetry file must not stop the other loops.
		g.Go(func() error {
			if err := src.Run(ctx, e.monitor); err != nil {
				e.logger.WithComponent("engine").Warn("telemetry watcher stopped", "path", path, "error", err)
			}
			return nil
		})
	}
	return nil
}

// Destroy stops the background loops, waits for them, and flushes the cache
// and pending set to the store. It is idempotent; later calls return nil.
func (e *Engine) Destroy() error {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return nil
	}
	e.closed = true
	cancel, group := e.cancel, e.group
	e.mu.Unlock()

	var errs []error
	if cancel != nil {
		cancel()
		if err := group.Wait(); err != nil {
			errs = append(errs, fmt.Errorf("background loop: %w", err))
		}
	}
	if err := e.executor.Flush(); err != nil {
		errs = append(errs, fmt.Errorf("flush cache: %w", err))
	}

	e.logger.WithComponent("engine").Info("engine destroyed", "pending_sync", e.executor.PendingCount())
	return errors.Join(errs...)
}

func (e *Engine) isClosed() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.closed
}

// ExecuteTask fills defaults (medium complexity and priority, payload size
// estimated from the JSON encoding) and dispatches t.
func (e *Engine) ExecuteTask(ctx context.Context, t task.Task) (task.Result, error) {
	if e.isClosed() {
		return task.Result{}, errors.ErrEngineClosed
	}
	return e.dispatcher.Execute(ctx, t.WithDefaults())
}

// Submit runs ExecuteTask in the background.
func (e *Engine) Submit(ctx context.Context, t task.Task) *task.Future {
	return task.Go(func() (task.Result, error) {
		return e.ExecuteTask(ctx, t)
	})
}

// Status returns a snapshot of the engine.
func (e *Engine) Status() Status {
	snap := e.executor.Snapshot()
	return Status{
		Dispatcher:       e.dispatcher.Stats(),
		Device:           e.monitor.Status(),
		PendingSyncCount: snap.PendingSync,
		Executor:         snap,
		Sync:             e.syncer.Stats(),
		Retrying:         e.dispatcher.Retrying(),
		LocalInFlight:    e.dispatcher.InFlight(),
		RemoteEnabled:    e.remote != nil,
	}
}

// ForceSync pushes pending results now. It reports false when the push
// failed or when results are pending but the device is offline.
func (e *Engine) ForceSync(ctx context.Context) bool {
	if err := e.syncer.Sync(ctx); err != nil {
		return false
	}
	return e.monitor.IsConnected() || e.executor.PendingCount() == 0
}

// Sync is ForceSync with the failure reason.
func (e *Engine) Sync(ctx context.Context) error {
	if err := e.syncer.Sync(ctx); err != nil {
		return err
	}
	if n := e.executor.PendingCount(); n > 0 && !e.monitor.IsConnected() {
		return errors.NewSyncError("device offline", errors.ErrOffline).WithPending(n)
	}
	return nil
}

// ResetStats zeroes the dispatcher counters.
func (e *Engine) ResetStats() {
	e.dispatcher.ResetStats()
}

// Subscribe registers handler for eventType ("*" for all events) and returns
// the subscription ID.
func (e *Engine) Subscribe(eventType string, handler event.Handler) string {
	if eventType == "*" {
		return e.bus.SubscribeAll(handler)
	}
	return e.bus.Subscribe(eventType, handler)
}

// Unsubscribe removes a subscription.
func (e *Engine) Unsubscribe(id string) bool {
	return e.bus.Unsubscribe(id)
}

// UpdateDevice applies a telemetry reading pushed by the host.
func (e *Engine) UpdateDevice(source string, r device.Reading) device.Status {
	return e.monitor.Apply(source, r)
}

// History returns recent local executions, oldest first.
func (e *Engine) History() []executor.Record {
	return e.executor.History()
}

// ClearCache drops every cached result except those awaiting sync.
func (e *Engine) ClearCache() {
	e.executor.ClearCache()
}

// Decide returns the dispatch decision for t against the current device
// status without executing it.
func (e *Engine) Decide(t task.Task) dispatch.Decision {
	return e.dispatcher.Policy().ShouldProcessLocally(t.WithDefaults(), e.monitor.Status())
}

// Processors lists the registered processor keys.
func (e *Engine) Processors() []string {
	return e.registry.Keys()
}
