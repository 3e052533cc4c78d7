package imagecodec

import (
	"sync"

	"github.com/pixvert/pixvert/pkg/cacheengine"
)

// fakeEngine is a trivial in-process cacheengine.Engine for exercising
// the per-stage caching behavior in tests without depending on a real
// backing store's eviction/admission policy.
type fakeEngine struct {
	mu      sync.Mutex
	entries map[string][]byte
}

func newFakeEngine() *fakeEngine {
	return &fakeEngine{entries: make(map[string][]byte)}
}

func (f *fakeEngine) Get(key string) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	v, ok := f.entries[key]
	if !ok {
		return nil, cacheengine.ErrNoEntry
	}
	return v, nil
}

func (f *fakeEngine) Set(key string, value []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.entries[key] = value
	return nil
}
