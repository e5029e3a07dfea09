package executor

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/Iron-Ham/edgeshift/internal/errors"
)

// Store keys.
const (
	cacheKeyPrefix = "cache:"
	pendingKey     = "pending"
)

func cacheKey(id string) string {
	return cacheKeyPrefix + id
}

// Flush writes every cached and retained result plus the pending set to the
// store in one batch and removes stored entries that no longer exist.
func (e *Executor) Flush() error {
	if e.store == nil {
		return nil
	}
	e.persistMu.Lock()
	defer e.persistMu.Unlock()

	e.mu.Lock()
	entries := make(map[string]entry, len(e.cache)+len(e.retained))
	for id, en := range e.retained {
		entries[id] = *en
	}
	for id, en := range e.cache {
		entries[id] = *en
	}
	pending := e.pendingListLocked()
	e.mu.Unlock()

	var errs []error
	batch := make(map[string][]byte, len(entries)+1)
	for id, en := range entries {
		data, err := json.Marshal(en)
		if err != nil {
			errs = append(errs, fmt.Errorf("encode %s: %w", id, err))
			continue
		}
		batch[cacheKey(id)] = data
	}
	pendingData, err := json.Marshal(pending)
	if err != nil {
		return fmt.Errorf("encode pending set: %w", err)
	}
	batch[pendingKey] = pendingData
	if err := e.store.SetMany(batch); err != nil {
		errs = append(errs, err)
	}

	keys, err := e.store.Keys(cacheKeyPrefix)
	if err != nil {
		errs = append(errs, err)
	}
	for _, k := range keys {
		if _, ok := entries[strings.TrimPrefix(k, cacheKeyPrefix)]; !ok {
			if err := e.store.Delete(k); err != nil {
				errs = append(errs, err)
			}
		}
	}
	return errors.Join(errs...)
}

// persistPending stores one newly pending result and the pending set.
func (e *Executor) persistPending(en *entry) error {
	if e.store == nil {
		return nil
	}
	e.persistMu.Lock()
	defer e.persistMu.Unlock()

	data, err := json.Marshal(en)
	if err != nil {
		return fmt.Errorf("encode %s: %w", en.TaskID, err)
	}
	if err := e.store.Set(cacheKey(en.TaskID), data); err != nil {
		return err
	}

	e.mu.Lock()
	pending := e.pendingListLocked()
	e.mu.Unlock()
	return e.writePending(pending)
}

// persistAcknowledged rewrites the pending set and deletes dropped results.
func (e *Executor) persistAcknowledged(dropped []string) error {
	if e.store == nil {
		return nil
	}
	e.persistMu.Lock()
	defer e.persistMu.Unlock()

	var errs []error
	for _, id := range dropped {
		if err := e.store.Delete(cacheKey(id)); err != nil {
			errs = append(errs, err)
		}
	}

	e.mu.Lock()
	pending := e.pendingListLocked()
	e.mu.Unlock()
	if err := e.writePending(pending); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

func (e *Executor) pendingListLocked() []string {
	ids := make([]string, 0, len(e.pending))
	for id := range e.pending {
		ids = append(ids, id)
	}
	return ids
}

func (e *Executor) writePending(ids []string) error {
	data, err := json.Marshal(ids)
	if err != nil {
		return fmt.Errorf("encode pending set: %w", err)
	}
	return e.store.Set(pendingKey, data)
}

// restore loads persisted state. Malformed entries are deleted and treated
// as absent; pending IDs without a result are dropped.
func (e *Executor) restore() {
	keys, err := e.store.Keys(cacheKeyPrefix)
	if err != nil {
		e.logger.Warn("list persisted cache failed", "error", err)
		return
	}

	now := e.now()
	loaded := make(map[string]*entry, len(keys))
	for _, k := range keys {
		id := strings.TrimPrefix(k, cacheKeyPrefix)
		en, err := e.decodeEntry(id, k)
		if err != nil {
			e.logger.Warn("dropping persisted cache entry", "task_id", id, "error", err)
			_ = e.store.Delete(k)
			continue
		}
		loaded[id] = en
	}

	var pending []string
	if data, err := e.store.Get(pendingKey); err == nil {
		if err := json.Unmarshal(data, &pending); err != nil {
			e.logger.Warn("dropping persisted pending set",
				"error", fmt.Errorf("%w: %v", errors.ErrCacheCorrupt, err))
			pending = nil
		}
	} else if !errors.Is(err, errors.ErrKeyNotFound) {
		e.logger.Warn("read persisted pending set failed", "error", err)
	}

	e.mu.Lock()
	for _, id := range pending {
		if _, ok := loaded[id]; !ok {
			e.logger.Warn("pending result missing from store", "task_id", id)
			continue
		}
		e.pending[id] = struct{}{}
	}
	for id, en := range loaded {
		_, isPending := e.pending[id]
		if en.expired(now) && !isPending {
			continue
		}
		e.cache[id] = en
	}
	evicted := e.cleanupLocked()
	restored := len(e.cache) + len(e.retained)
	pendingCount := len(e.pending)
	e.mu.Unlock()

	if restored > 0 || pendingCount > 0 {
		e.logger.Info("restored persisted cache",
			"entries", restored,
			"pending", pendingCount,
			"evicted", evicted.expired+evicted.overflow)
	}
}

func (e *Executor) decodeEntry(id, key string) (*entry, error) {
	data, err := e.store.Get(key)
	if err != nil {
		return nil, err
	}
	var en entry
	if err := json.Unmarshal(data, &en); err != nil {
		return nil, fmt.Errorf("%w: %v", errors.ErrCacheCorrupt, err)
	}
	if en.TaskID != id || en.CreatedAt.IsZero() || en.TTL <= 0 {
		return nil, fmt.Errorf("%w: inconsistent entry for %q", errors.ErrCacheCorrupt, id)
	}
	return &en, nil
}
