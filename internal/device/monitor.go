package device

import (
	"context"
	"sync"
	"time"

	"github.com/Iron-Ham/edgeshift/internal/event"
	"github.com/Iron-Ham/edgeshift/internal/logging"
)

// Monitor owns the device Status. Readers get copies; all writes go through
// Apply. It is safe for concurrent use.
type Monitor struct {
	// applyMu serializes Apply so events leave in the order readings were
	// applied; mu alone guards status for readers.
	applyMu sync.Mutex

	mu     sync.RWMutex
	status Status

	bus    *event.Bus
	logger *logging.Logger
	now    func() time.Time
}

// NewMonitor creates a Monitor starting from initial. A nil bus disables
// event publication.
func NewMonitor(initial Status, bus *event.Bus, logger *logging.Logger) *Monitor {
	if logger == nil {
		logger = logging.NopLogger()
	}
	m := &Monitor{
		status: initial,
		bus:    bus,
		logger: logger.WithComponent("device"),
		now:    time.Now,
	}
	if m.status.UpdatedAt.IsZero() {
		m.status.UpdatedAt = m.now()
	}
	return m
}

// Status returns a copy of the current snapshot.
func (m *Monitor) Status() Status {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.status
}

// IsConnected reports the current connectivity.
func (m *Monitor) IsConnected() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.status.IsConnected
}

// Apply merges a reading into the snapshot and publishes the resulting
// events in apply order. Readers are not blocked while events are delivered.
// Event handlers must not call Apply.
func (m *Monitor) Apply(source string, r Reading) Status {
	if r.IsEmpty() {
		return m.Status()
	}

	m.applyMu.Lock()
	defer m.applyMu.Unlock()

	m.mu.Lock()
	prev := m.status
	next := r.applyTo(prev)
	next.UpdatedAt = m.now()
	m.status = next
	m.mu.Unlock()

	if prev.IsConnected != next.IsConnected {
		m.logger.Info("connectivity changed",
			"connected", next.IsConnected,
			"network", next.NetworkKind,
			"source", source)
		m.publish(event.NewConnectivityChangedEvent(next.IsConnected, next.NetworkKind))
	}
	m.publish(event.NewDeviceUpdatedEvent(source))
	return next
}

func (m *Monitor) publish(e event.Event) {
	if m.bus != nil {
		m.bus.Publish(e)
	}
}

// Poller produces telemetry on demand.
type Poller interface {
	Poll(ctx context.Context) (Reading, error)
}

// Run polls p every interval until ctx is done. Poll errors are logged and
// do not stop the loop. An initial poll happens immediately.
func (m *Monitor) Run(ctx context.Context, p Poller, interval time.Duration) error {
	if interval <= 0 {
		interval = 5 * time.Second
	}

	m.poll(ctx, p)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			m.poll(ctx, p)
		}
	}
}

func (m *Monitor) poll(ctx context.Context, p Poller) {
	r, err := p.Poll(ctx)
	if err != nil {
		if ctx.Err() == nil {
			m.logger.Warn("telemetry poll failed", "error", err)
		}
		return
	}
	m.Apply("poll", r)
}
