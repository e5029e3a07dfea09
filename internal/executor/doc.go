// Package executor runs tasks on the local device.
//
// An [Executor] resolves a task's processor from the static registry, admits
// it under a concurrency limit derived from the device's benchmark tier, and
// caches successful results with a TTL and a capacity bound. Tasks that cannot
// start immediately wait in a FIFO queue; a finishing task hands its slot
// directly to the queue head, so the limit is never exceeded and queued tasks
// start in arrival order.
//
// Results produced while offline for tasks that require sync are tracked in a
// pending set until the sync coordinator reports a remote acknowledgement.
// A pending result evicted from the cache is retained outside the capacity
// bound so that it can still be synced.
//
// The cache and pending set are persisted to a [store.Store] so that they
// survive restarts; malformed persisted entries are dropped as cache misses.
package executor
