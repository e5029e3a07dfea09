package device

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/Iron-Ham/edgeshift/internal/event"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func ptr[T any](v T) *T { return &v }

func TestMonitor_Apply(t *testing.T) {
	m := NewMonitor(DefaultStatus(), nil, nil)

	got := m.Apply("push", Reading{
		NetworkKind: ptr(NetworkWiFi),
		BatteryPct:  ptr(150.0),
		CPUPct:      ptr(-5.0),
	})

	assert.Equal(t, NetworkWiFi, got.NetworkKind)
	assert.Equal(t, 100.0, got.BatteryPct, "battery is clamped")
	assert.Equal(t, 0.0, got.CPUPct, "cpu is clamped")
	assert.True(t, got.IsConnected, "unset fields keep their value")
	assert.Equal(t, got, m.Status())
}

func TestMonitor_ConnectivityEvents(t *testing.T) {
	bus := event.NewBus(nil)
	m := NewMonitor(DefaultStatus(), bus, nil)

	var changes []event.ConnectivityChangedEvent
	bus.Subscribe(event.TypeConnectivityChanged, func(e event.Event) {
		changes = append(changes, e.(event.ConnectivityChangedEvent))
	})
	var updates int
	bus.Subscribe(event.TypeDeviceUpdated, func(event.Event) { updates++ })

	m.Apply("push", Connected(false))
	m.Apply("push", Connected(false))
	m.Apply("push", Reading{BatteryPct: ptr(40.0)})
	m.Apply("push", Connected(true))
	m.Apply("push", Reading{})

	require.Len(t, changes, 2)
	assert.False(t, changes[0].Connected)
	assert.True(t, changes[1].Connected)
	assert.Equal(t, 4, updates, "empty readings are ignored")
	assert.True(t, m.IsConnected())
}

func TestMonitor_ConcurrentApplyPublishesInOrder(t *testing.T) {
	bus := event.NewBus(nil)
	m := NewMonitor(DefaultStatus(), bus, nil)

	var mu sync.Mutex
	var changes []bool
	bus.Subscribe(event.TypeConnectivityChanged, func(e event.Event) {
		mu.Lock()
		defer mu.Unlock()
		changes = append(changes, e.(event.ConnectivityChangedEvent).Connected)
	})

	var wg sync.WaitGroup
	for i := range 200 {
		wg.Go(func() {
			m.Apply("push", Connected(i%2 == 0))
		})
	}
	wg.Wait()

	mu.Lock()
	defer mu.Unlock()
	require.NotEmpty(t, changes)
	assert.False(t, changes[0], "the first change leaves the connected default")
	for i := 1; i < len(changes); i++ {
		require.NotEqual(t, changes[i-1], changes[i], "change %d repeats the previous state", i)
	}
	assert.Equal(t, m.IsConnected(), changes[len(changes)-1], "last event matches the final snapshot")
}

type fakePoller struct {
	calls atomic.Int32
	err   error
}

func (f *fakePoller) Poll(context.Context) (Reading, error) {
	f.calls.Add(1)
	if f.err != nil {
		return Reading{}, f.err
	}
	return Reading{CPUPct: ptr(42.0)}, nil
}

func TestMonitor_Run(t *testing.T) {
	m := NewMonitor(DefaultStatus(), nil, nil)
	p := &fakePoller{}

	ctx, cancel := context.WithCancel(context.Background())
	var wg sync.WaitGroup
	wg.Go(func() {
		assert.NoError(t, m.Run(ctx, p, 5*time.Millisecond))
	})

	require.Eventually(t, func() bool { return p.calls.Load() >= 3 }, time.Second, time.Millisecond)
	cancel()
	wg.Wait()

	assert.Equal(t, 42.0, m.Status().CPUPct)
}

func TestMonitor_RunSurvivesPollErrors(t *testing.T) {
	m := NewMonitor(DefaultStatus(), nil, nil)
	p := &fakePoller{err: errors.New("sensor offline")}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = m.Run(ctx, p, 2*time.Millisecond)
	}()

	require.Eventually(t, func() bool { return p.calls.Load() >= 2 }, time.Second, time.Millisecond)
	cancel()
	<-done
	assert.Equal(t, DefaultStatus().CPUPct, m.Status().CPUPct)
}

func TestHostPoller(t *testing.T) {
	r, err := NewHostPoller().Poll(context.Background())
	if err != nil {
		t.Skipf("host metrics unavailable: %v", err)
	}
	require.NotNil(t, r.CPUPct)
	require.NotNil(t, r.MemPct)
	require.NotNil(t, r.BenchmarkLevel)
	assert.GreaterOrEqual(t, *r.MemPct, 0.0)
}

func TestBenchmarkForCores(t *testing.T) {
	tests := []struct {
		cores int
		want  float64
	}{
		{16, 80}, {8, 80}, {4, 50}, {2, 30}, {1, 15}, {0, 50},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, BenchmarkForCores(tt.cores), "cores=%d", tt.cores)
	}
}

func TestFileSource(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "telemetry.yaml")
	require.NoError(t, os.WriteFile(path, []byte("networkKind: 4g\nbatteryPct: 55\n"), 0644))

	bus := event.NewBus(nil)
	m := NewMonitor(DefaultStatus(), bus, nil)

	var offline atomic.Bool
	bus.Subscribe(event.TypeConnectivityChanged, func(e event.Event) {
		if !e.(event.ConnectivityChangedEvent).Connected {
			offline.Store(true)
		}
	})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		assert.NoError(t, NewFileSource(path, nil).Run(ctx, m))
	}()
	defer func() {
		cancel()
		<-done
	}()

	require.Eventually(t, func() bool { return m.Status().NetworkKind == Network4G }, 2*time.Second, 5*time.Millisecond)
	assert.Equal(t, 55.0, m.Status().BatteryPct)

	require.NoError(t, os.WriteFile(path, []byte(`{"isConnected": false}`), 0644))
	require.Eventually(t, offline.Load, 2*time.Second, 5*time.Millisecond)
	assert.False(t, m.Status().IsConnected)
	assert.Equal(t, Network4G, m.Status().NetworkKind)
}

func TestReadFile_Invalid(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("batteryPct: [1, 2"), 0644))
	_, err := ReadFile(path)
	assert.Error(t, err)
}
