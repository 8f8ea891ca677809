package cachex

import (
	"sync"
	"time"
)

type localEntry struct {
	value    []byte
	storedAt time.Time
	ttl      time.Duration
}

func (e localEntry) fresh(now time.Time) bool {
	if e.ttl <= 0 {
		return true
	}
	return now.Before(e.storedAt.Add(e.ttl))
}

// localTier is the bounded in-process tier. Expired entries are kept until
// evicted so they can back stale reads while the breaker is open.
type localTier struct {
	mu         sync.RWMutex
	entries    map[string]localEntry
	maxEntries int
}

func newLocalTier(maxEntries int) *localTier {
	return &localTier{
		entries:    make(map[string]localEntry, 64),
		maxEntries: maxEntries,
	}
}

func (t *localTier) get(key string, now time.Time) (value []byte, fresh bool, ok bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	entry, ok := t.entries[key]
	if !ok {
		return nil, false, false
	}
	return entry.value, entry.fresh(now), true
}

func (t *localTier) set(key string, value []byte, ttl time.Duration, now time.Time) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if _, exists := t.entries[key]; !exists && len(t.entries) >= t.maxEntries {
		t.evictOldestLocked()
	}
	t.entries[key] = localEntry{value: value, storedAt: now, ttl: ttl}
}

func (t *localTier) delete(key string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.entries, key)
}

func (t *localTier) evictOldestLocked() {
	var oldestKey string
	var oldestAt time.Time
	first := true
	for key, entry := range t.entries {
		if first || entry.storedAt.Before(oldestAt) {
			oldestKey = key
			oldestAt = entry.storedAt
			first = false
		}
	}
	if oldestKey != "" {
		delete(t.entries, oldestKey)
	}
}
