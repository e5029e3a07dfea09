package engine

import (
	"bytes"
	"context"
	"maps"
	"os"
	"path/filepath"
	"slices"
	"sync"
	"testing"
	"time"

	"github.com/Iron-Ham/edgeshift/internal/config"
	"github.com/Iron-Ham/edgeshift/internal/device"
	"github.com/Iron-Ham/edgeshift/internal/errors"
	"github.com/Iron-Ham/edgeshift/internal/event"
	"github.com/Iron-Ham/edgeshift/internal/logging"
	"github.com/Iron-Ham/edgeshift/internal/store"
	"github.com/Iron-Ham/edgeshift/internal/task"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeRemote struct {
	mu      sync.Mutex
	sends   int
	batches []map[string]any
	syncErr error
}

func (r *fakeRemote) Send(_ context.Context, t task.Task) (any, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sends++
	return "remote:" + t.ID, nil
}

func (r *fakeRemote) SyncBatch(_ context.Context, results map[string]any) (string, []string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.batches = append(r.batches, maps.Clone(results))
	if r.syncErr != nil {
		return "b", nil, r.syncErr
	}
	return "b", slices.Sorted(maps.Keys(results)), nil
}

func (r *fakeRemote) Batches() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.batches)
}

func testConfig() *config.Config {
	cfg := config.Default()
	cfg.Store.Backend = config.StoreBackendMemory
	cfg.Device.PollHost = false
	cfg.Dispatch.RetryBackoff = time.Millisecond
	return cfg
}

func newEngine(t *testing.T, cfg *config.Config, opts ...Option) (*Engine, *fakeRemote) {
	t.Helper()
	rem := &fakeRemote{}
	eng, err := New(cfg, append([]Option{WithRemote(rem)}, opts...)...)
	require.NoError(t, err)
	t.Cleanup(func() { _ = eng.Destroy() })
	return eng, rem
}

func TestEngine_SumScenario(t *testing.T) {
	eng, _ := newEngine(t, testConfig())

	res, err := eng.ExecuteTask(context.Background(), task.Task{
		ID:         "sum-1",
		Kind:       "data",
		Operation:  "sum",
		Complexity: task.LevelLow,
		Payload:    map[string]any{"items": []any{1, 2, 3, 4, 5}},
	})
	require.NoError(t, err)
	assert.Equal(t, 15.0, res.Value)
	assert.Equal(t, task.LocationLocal, res.Location)

	st := eng.Status()
	assert.Equal(t, int64(1), st.Dispatcher.TotalTasks)
	assert.Equal(t, int64(1), st.Dispatcher.LocalTasks)
	assert.Equal(t, 1, st.Executor.CacheSize)
	assert.True(t, st.RemoteEnabled)
}

func TestEngine_DefaultsAndSizeEstimate(t *testing.T) {
	eng, rem := newEngine(t, testConfig())

	// No complexity, no size: a tiny payload takes the small-payload path.
	res, err := eng.ExecuteTask(context.Background(), task.Task{
		ID: "d-1", Kind: "text", Operation: "uppercase", Payload: "hi",
	})
	require.NoError(t, err)
	assert.Equal(t, "HI", res.Value)
	assert.Zero(t, rem.sends)

	d := eng.Decide(task.Task{ID: "d-2", Kind: "text", Operation: "uppercase", Payload: "hi"})
	assert.Equal(t, "small_payload", d.Rule)
}

func TestEngine_OfflineRequireSyncThenForceSync(t *testing.T) {
	eng, rem := newEngine(t, testConfig())
	ctx := context.Background()

	eng.UpdateDevice("test", device.Connected(false))

	_, err := eng.ExecuteTask(ctx, task.Task{
		ID:          "off-1",
		Kind:        "data",
		Operation:   "count",
		Payload:     []any{1, 2, 3},
		RequireSync: true,
	})
	require.NoError(t, err)
	assert.Equal(t, 1, eng.Status().PendingSyncCount)

	assert.False(t, eng.ForceSync(ctx), "cannot sync while offline")
	assert.ErrorIs(t, eng.Sync(ctx), errors.ErrOffline)
	assert.Zero(t, rem.Batches())

	eng.UpdateDevice("test", device.Connected(true))
	assert.True(t, eng.ForceSync(ctx))
	assert.Zero(t, eng.Status().PendingSyncCount)
	assert.Equal(t, 1, rem.Batches())
	assert.Equal(t, int64(1), eng.Status().Sync.Synced)
}

func TestEngine_ForceSyncFailure(t *testing.T) {
	eng, rem := newEngine(t, testConfig())
	ctx := context.Background()
	rem.syncErr = errors.New("503")

	eng.UpdateDevice("test", device.Connected(false))
	_, err := eng.ExecuteTask(ctx, task.Task{ID: "p", Kind: "data", Operation: "sum", Payload: []any{1}, RequireSync: true})
	require.NoError(t, err)
	eng.UpdateDevice("test", device.Connected(true))

	assert.False(t, eng.ForceSync(ctx))
	assert.Equal(t, 1, eng.Status().PendingSyncCount, "failed sync keeps results pending")
}

func TestEngine_ForceSyncNothingPending(t *testing.T) {
	eng, rem := newEngine(t, testConfig())
	assert.True(t, eng.ForceSync(context.Background()))
	assert.Zero(t, rem.Batches())
}

func TestEngine_ReconnectTriggersSync(t *testing.T) {
	cfg := testConfig()
	cfg.Sync.Interval = time.Hour
	eng, rem := newEngine(t, cfg)
	ctx := context.Background()

	require.NoError(t, eng.Start(ctx))
	require.Eventually(t, func() bool { return eng.bus.SubscriptionCount() > 0 }, time.Second, time.Millisecond)

	eng.UpdateDevice("test", device.Connected(false))
	_, err := eng.ExecuteTask(ctx, task.Task{ID: "r-1", Kind: "data", Operation: "max", Payload: []any{3, 9}, RequireSync: true})
	require.NoError(t, err)
	require.Equal(t, 1, eng.Status().PendingSyncCount)

	eng.UpdateDevice("test", device.Connected(true))
	require.Eventually(t, func() bool { return eng.Status().PendingSyncCount == 0 }, time.Second, 5*time.Millisecond)
	assert.Equal(t, 1, rem.Batches())
}

func TestEngine_RemoteDecision(t *testing.T) {
	eng, rem := newEngine(t, testConfig())

	res, err := eng.ExecuteTask(context.Background(), task.Task{
		ID: "heavy", Kind: "ml", Operation: "train", Complexity: task.LevelHigh,
	})
	require.NoError(t, err)
	assert.Equal(t, "remote:heavy", res.Value)
	assert.Equal(t, task.LocationRemote, res.Location)
	assert.Equal(t, 1, rem.sends)
}

func TestEngine_NoRemoteConfigured(t *testing.T) {
	eng, err := New(testConfig())
	require.NoError(t, err)
	defer eng.Destroy()

	_, err = eng.ExecuteTask(context.Background(), task.Task{
		ID: "heavy", Kind: "ml", Operation: "train", Complexity: task.LevelHigh,
	})
	assert.ErrorIs(t, err, errors.ErrNoRemote)
	assert.False(t, eng.Status().RemoteEnabled)
}

func TestEngine_Submit(t *testing.T) {
	eng, _ := newEngine(t, testConfig())

	futures := make([]*task.Future, 0, 5)
	for i := range 5 {
		futures = append(futures, eng.Submit(context.Background(), task.Task{
			ID:         string(rune('a' + i)),
			Kind:       "data",
			Operation:  "sum",
			Complexity: task.LevelLow,
			Payload:    []any{i, i},
		}))
	}
	for i, f := range futures {
		res, err := f.Await(context.Background())
		require.NoError(t, err)
		assert.Equal(t, float64(2*i), res.Value)
	}
	assert.Equal(t, int64(5), eng.Status().Dispatcher.Succeeded)
}

func TestEngine_Subscribe(t *testing.T) {
	eng, _ := newEngine(t, testConfig())

	var mu sync.Mutex
	var types []string
	id := eng.Subscribe("*", func(e event.Event) {
		mu.Lock()
		defer mu.Unlock()
		types = append(types, e.EventType())
	})

	_, err := eng.ExecuteTask(context.Background(), task.Task{ID: "s", Kind: "data", Operation: "sum", Complexity: task.LevelLow, Payload: []any{1}})
	require.NoError(t, err)

	mu.Lock()
	assert.Contains(t, types, event.TypeTaskDispatched)
	assert.Contains(t, types, event.TypeTaskStateChanged)
	mu.Unlock()

	assert.True(t, eng.Unsubscribe(id))
}

func TestEngine_DestroyFlushesAndCloses(t *testing.T) {
	mem := store.NewMemoryStore()
	eng, err := New(testConfig(), WithStore(mem))
	require.NoError(t, err)
	require.NoError(t, eng.Start(context.Background()))

	_, err = eng.ExecuteTask(context.Background(), task.Task{ID: "keep", Kind: "data", Operation: "sum", Complexity: task.LevelLow, Payload: []any{2, 3}})
	require.NoError(t, err)

	require.NoError(t, eng.Destroy())
	require.NoError(t, eng.Destroy(), "Destroy is idempotent")

	keys, err := mem.Keys("cache:")
	require.NoError(t, err)
	assert.Equal(t, []string{"cache:keep"}, keys)

	_, err = eng.ExecuteTask(context.Background(), task.Task{ID: "late", Kind: "data", Operation: "sum", Payload: []any{1}})
	assert.ErrorIs(t, err, errors.ErrEngineClosed)
	assert.ErrorIs(t, eng.Start(context.Background()), errors.ErrEngineClosed)

	// A new engine on the same store serves the flushed result from cache.
	again, err := New(testConfig(), WithStore(mem))
	require.NoError(t, err)
	defer again.Destroy()
	res, err := again.ExecuteTask(context.Background(), task.Task{ID: "keep", Kind: "data", Operation: "sum", Complexity: task.LevelLow, Payload: []any{2, 3}})
	require.NoError(t, err)
	assert.True(t, res.FromCache)
	assert.Equal(t, 5.0, res.Value)
}

func TestEngine_FileStore(t *testing.T) {
	cfg := testConfig()
	cfg.Store.Backend = config.StoreBackendFile
	cfg.Store.Dir = t.TempDir()

	eng, _ := newEngine(t, cfg)
	eng.UpdateDevice("test", device.Connected(false))
	_, err := eng.ExecuteTask(context.Background(), task.Task{ID: "f", Kind: "data", Operation: "sum", Payload: []any{1}, RequireSync: true})
	require.NoError(t, err)
	require.NoError(t, eng.Destroy())

	reopened, _ := newEngine(t, cfg)
	assert.Equal(t, 1, reopened.Status().PendingSyncCount, "pending set survives a restart")
}

func TestEngine_CorruptStoreFileStartsEmpty(t *testing.T) {
	cfg := testConfig()
	cfg.Store.Backend = config.StoreBackendFile
	cfg.Store.Dir = t.TempDir()
	statePath := filepath.Join(cfg.Store.Dir, store.StateFileName)
	require.NoError(t, os.WriteFile(statePath, []byte("entries: [this is: not: valid"), 0644))

	var logs bytes.Buffer
	eng, _ := newEngine(t, cfg, WithLogger(logging.NewWriterLogger(&logs, "warn")))
	assert.Zero(t, eng.Status().PendingSyncCount)
	assert.FileExists(t, statePath+store.CorruptSuffix)

	res, err := eng.ExecuteTask(context.Background(), task.Task{ID: "after", Kind: "data", Operation: "sum", Complexity: task.LevelLow, Payload: []any{1, 2}})
	require.NoError(t, err)
	assert.Equal(t, 3.0, res.Value)

	require.NoError(t, eng.Destroy())
	assert.Contains(t, logs.String(), "store state file was corrupt")
}

func TestEngine_ConfiguredDevice(t *testing.T) {
	cfg := testConfig()
	cfg.Device.NetworkKind = "4g"
	cfg.Device.BatteryPct = 42
	cfg.Device.BenchmarkLevel = 75
	cfg.Executor.MaxConcurrent = 0

	eng, _ := newEngine(t, cfg)
	st := eng.Status()
	assert.Equal(t, "4g", st.Device.NetworkKind)
	assert.Equal(t, 42.0, st.Device.BatteryPct)
	assert.Equal(t, 4, st.Executor.Limit, "limit derives from the benchmark tier")
	assert.Contains(t, eng.Processors(), "data.sum")
}

type stubPoller struct{}

func (stubPoller) Poll(context.Context) (device.Reading, error) {
	cpu, bench := 12.0, 10.0
	return device.Reading{CPUPct: &cpu, BenchmarkLevel: &bench}, nil
}

func TestEngine_FixedBenchmarkIgnoresPolledValue(t *testing.T) {
	cfg := testConfig()
	cfg.Device.BenchmarkLevel = 75
	cfg.Device.PollInterval = 5 * time.Millisecond

	eng, _ := newEngine(t, cfg, WithPoller(stubPoller{}))
	require.NoError(t, eng.Start(context.Background()))

	require.Eventually(t, func() bool { return eng.Status().Device.CPUPct == 12 }, time.Second, 5*time.Millisecond)
	assert.Equal(t, 75.0, eng.Status().Device.BenchmarkLevel)
}

func TestNew_InvalidRemoteURL(t *testing.T) {
	cfg := testConfig()
	cfg.Remote.URL = "ftp://nope"
	_, err := New(cfg)
	assert.Error(t, err)
}

func TestNew_InvalidKindPattern(t *testing.T) {
	cfg := testConfig()
	cfg.Dispatch.LocalKinds = []string{"[bad"}
	_, err := New(cfg)
	assert.Error(t, err)
}
