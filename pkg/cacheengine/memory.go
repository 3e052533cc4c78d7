package cacheengine

import (
	"github.com/maypok86/otter"
)

// DefaultMemoryCapacity bounds the in-memory engine when the caller
// doesn't specify one. Cache entries are immutable once written
// (spec.md invariant 5), so this is a size-based admission policy, not
// a TTL — freshness is entirely the Fetcher's concern (spec.md §4.2),
// not the engine's.
const DefaultMemoryCapacity = 50_000

// MemoryEngine is the "In-memory" variant from spec.md §4.1: a
// concurrent-safe string→bytes map. Backed by otter instead of a plain
// mutex+map (as the teacher's InMemoryCache does) because otter is a
// high-throughput concurrent cache purpose-built for exactly this
// workload, and it is already a dependency the teacher ships but never
// calls into.
type MemoryEngine struct {
	cache otter.Cache[string, []byte]
}

// NewMemory builds an in-memory engine capped at capacity entries. A
// capacity <= 0 falls back to DefaultMemoryCapacity.
func NewMemory(capacity int) (*MemoryEngine, error) {
	if capacity <= 0 {
		capacity = DefaultMemoryCapacity
	}
	c, err := otter.MustBuilder[string, []byte](capacity).Build()
	if err != nil {
		return nil, err
	}
	return &MemoryEngine{cache: c}, nil
}

func (m *MemoryEngine) Get(key string) ([]byte, error) {
	v, ok := m.cache.Get(key)
	if !ok {
		return nil, ErrNoEntry
	}
	return v, nil
}

func (m *MemoryEngine) Set(key string, value []byte) error {
	m.cache.Set(key, value)
	return nil
}

// Close releases background resources held by the underlying otter cache.
func (m *MemoryEngine) Close() {
	m.cache.Close()
}
