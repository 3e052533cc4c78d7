package cacheengine

// NullEngine always misses; Set is a no-op. Grounded on spec.md §4.1's
// "Null" variant — useful for benchmarking the pipeline with caching
// disabled. It is not selected by app.yml: a missing cache_type falls
// back to the in-memory engine.
type NullEngine struct{}

// NewNull returns a NullEngine.
func NewNull() *NullEngine { return &NullEngine{} }

func (*NullEngine) Get(string) ([]byte, error) { return nil, ErrNoEntry }

func (*NullEngine) Set(string, []byte) error { return nil }
