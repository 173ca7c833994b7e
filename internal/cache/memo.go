package cache

import (
	"strings"
	"sync"

	"github.com/objectfs/s3drive/pkg/types"
)

// Memo is an unbounded, instance-scoped memo keyed by identifier. Entries
// never expire on their own; they are removed through Invalidate and
// InvalidatePrefix when the identifier they describe is mutated.
type Memo[V any] struct {
	mu       sync.RWMutex
	name     string
	items    map[string]V
	recorder types.CacheRecorder

	stats types.CacheStats
}

// NewMemo creates an empty memo. name labels hit/miss notifications sent
// to recorder, which may be nil.
func NewMemo[V any](name string, recorder types.CacheRecorder) *Memo[V] {
	return &Memo[V]{
		name:     name,
		items:    make(map[string]V),
		recorder: recorder,
	}
}

// Get returns the memoized value for key.
func (m *Memo[V]) Get(key string) (V, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	value, ok := m.items[key]
	if ok {
		m.stats.Hits++
		if m.recorder != nil {
			m.recorder.RecordCacheHit(m.name)
		}
	} else {
		m.stats.Misses++
		if m.recorder != nil {
			m.recorder.RecordCacheMiss(m.name)
		}
	}
	m.updateHitRate()
	return value, ok
}

// Put memoizes value for key.
func (m *Memo[V]) Put(key string, value V) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.items[key] = value
	m.stats.Size = int64(len(m.items))
}

// Invalidate drops the entry for key.
func (m *Memo[V]) Invalidate(key string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.items, key)
	m.stats.Size = int64(len(m.items))
}

// InvalidatePrefix drops every entry whose key starts with prefix.
func (m *Memo[V]) InvalidatePrefix(prefix string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for key := range m.items {
		if strings.HasPrefix(key, prefix) {
			delete(m.items, key)
		}
	}
	m.stats.Size = int64(len(m.items))
}

// Stats returns a snapshot of the memo statistics.
func (m *Memo[V]) Stats() types.CacheStats {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.stats
}

func (m *Memo[V]) updateHitRate() {
	total := m.stats.Hits + m.stats.Misses
	if total > 0 {
		m.stats.HitRate = float64(m.stats.Hits) / float64(total)
	}
}
