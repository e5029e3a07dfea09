package executor

import (
	"slices"
	"time"

	"github.com/Iron-Ham/edgeshift/internal/event"
)

// entry is a cached result.
type entry struct {
	TaskID    string        `json:"taskId"`
	Result    any           `json:"result"`
	CreatedAt time.Time     `json:"createdAt"`
	TTL       time.Duration `json:"ttl"`
}

func (en *entry) expired(now time.Time) bool {
	return now.Sub(en.CreatedAt) >= en.TTL
}

// evictions counts what one cleanup pass removed.
type evictions struct {
	expired  int
	overflow int
	retained int
}

func (ev evictions) any() bool {
	return ev.expired+ev.overflow > 0
}

// Get returns the cached result for id if it has not expired.
func (e *Executor) Get(id string) (any, bool) {
	now := e.now()
	e.mu.Lock()
	defer e.mu.Unlock()
	en, ok := e.cache[id]
	if !ok || en.expired(now) {
		return nil, false
	}
	return en.Result, true
}

// Put stores value as the result for id, replacing any previous entry.
func (e *Executor) Put(id string, value any) {
	e.mu.Lock()
	e.putLocked(&entry{TaskID: id, Result: value, CreatedAt: e.now(), TTL: e.cfg.CacheTTL})
	evicted := e.cleanupLocked()
	e.mu.Unlock()
	e.publishEvicted(evicted)
}

func (e *Executor) putLocked(en *entry) {
	e.cache[en.TaskID] = en
	delete(e.retained, en.TaskID)
}

// CacheSize returns the number of entries in the cache, including expired
// entries not yet removed.
func (e *Executor) CacheSize() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.cache)
}

// CleanupCache removes expired entries, then evicts the oldest entries until
// the cache is within MaxCacheSize. Entries still awaiting sync move to the
// retained set instead of being dropped.
func (e *Executor) CleanupCache() {
	e.mu.Lock()
	evicted := e.cleanupLocked()
	e.mu.Unlock()
	e.publishEvicted(evicted)
}

func (e *Executor) cleanupLocked() evictions {
	var ev evictions
	now := e.now()

	for id, en := range e.cache {
		if en.expired(now) {
			e.evictLocked(id, en, &ev)
			ev.expired++
		}
	}

	if over := len(e.cache) - e.cfg.MaxCacheSize; over > 0 {
		entries := make([]*entry, 0, len(e.cache))
		for _, en := range e.cache {
			entries = append(entries, en)
		}
		slices.SortFunc(entries, func(a, b *entry) int {
			if c := a.CreatedAt.Compare(b.CreatedAt); c != 0 {
				return c
			}
			return compareStrings(a.TaskID, b.TaskID)
		})
		for _, en := range entries[:over] {
			e.evictLocked(en.TaskID, en, &ev)
			ev.overflow++
		}
	}
	return ev
}

func (e *Executor) evictLocked(id string, en *entry, ev *evictions) {
	delete(e.cache, id)
	if _, ok := e.pending[id]; ok {
		e.retained[id] = en
		ev.retained++
	}
}

// ClearCache drops every cached result. Results awaiting sync are retained.
func (e *Executor) ClearCache() {
	e.mu.Lock()
	var ev evictions
	for id, en := range e.cache {
		e.evictLocked(id, en, &ev)
		ev.overflow++
	}
	e.mu.Unlock()
	e.publishEvicted(ev)
}

func (e *Executor) publishEvicted(ev evictions) {
	if !ev.any() {
		return
	}
	e.logger.Debug("cache entries evicted",
		"expired", ev.expired,
		"overflow", ev.overflow,
		"retained", ev.retained)
	if e.bus != nil {
		e.bus.Publish(event.NewCacheEvictedEvent(ev.expired, ev.overflow, ev.retained))
	}
}

func compareStrings(a, b string) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	}
	return 0
}

// PendingCount returns the number of results awaiting sync.
func (e *Executor) PendingCount() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.pending)
}

// PendingIDs returns the IDs awaiting sync, sorted.
func (e *Executor) PendingIDs() []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	ids := make([]string, 0, len(e.pending))
	for id := range e.pending {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids
}

// PendingResults returns the result of every pending task, from the cache or
// the retained set.
func (e *Executor) PendingResults() map[string]any {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make(map[string]any, len(e.pending))
	for id := range e.pending {
		if en, ok := e.cache[id]; ok {
			out[id] = en.Result
		} else if en, ok := e.retained[id]; ok {
			out[id] = en.Result
		}
	}
	return out
}

// Acknowledge removes ids from the pending set after the remote side confirmed
// them, and drops their retained results.
func (e *Executor) Acknowledge(ids []string) {
	if len(ids) == 0 {
		return
	}
	e.mu.Lock()
	var dropped []string
	for _, id := range ids {
		delete(e.pending, id)
		if _, ok := e.retained[id]; ok {
			delete(e.retained, id)
			dropped = append(dropped, id)
		}
	}
	e.mu.Unlock()

	if err := e.persistAcknowledged(dropped); err != nil {
		e.logger.Warn("persist acknowledgement failed", "error", err)
	}
}
