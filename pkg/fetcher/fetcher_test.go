package fetcher

import (
	"context"
	"net"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/pixvert/pixvert/pkg/cacheengine"
	"github.com/pixvert/pixvert/pkg/resource"
)

func newTestFetcher(t *testing.T, cfg Config) *Fetcher {
	t.Helper()
	return New(cfg, cacheengine.NewNull(), zap.NewNop())
}

// fakeEngine is a trivial in-process cacheengine.Engine for tests that
// need to exercise genuine caching behavior without depending on a real
// backing store's eviction/admission policy, mirroring the pattern in
// pkg/imagecodec/cachetest_test.go.
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

func TestFetchSuccess(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "image/png")
		_, _ = w.Write([]byte{0, 1, 2, 3, 4, 5})
	}))
	defer upstream.Close()

	f := newTestFetcher(t, Config{})
	res, err := f.Fetch(context.Background(), upstream.URL+"/image.png")
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if res.ContentType != "image/png" {
		t.Fatalf("content type = %q, want image/png", res.ContentType)
	}
	if string(res.Content) != string([]byte{0, 1, 2, 3, 4, 5}) {
		t.Fatalf("content mismatch: %v", res.Content)
	}
}

func TestFetchAllowListRejectsHost(t *testing.T) {
	f := newTestFetcher(t, Config{AllowFrom: []string{"example.com"}})
	_, err := f.Fetch(context.Background(), "https://evil.test/x.png")
	if err == nil {
		t.Fatal("expected allow-list rejection")
	}
	fe, ok := err.(*Error)
	if !ok || fe.Kind != KindNoAccess {
		t.Fatalf("expected KindNoAccess, got %#v", err)
	}
}

func TestFetchAllowListEmptyAllowsAnyHost(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer upstream.Close()

	f := newTestFetcher(t, Config{})
	if _, err := f.Fetch(context.Background(), upstream.URL+"/x.png"); err != nil {
		t.Fatalf("expected no rejection with empty allow-list: %v", err)
	}
}

func TestFetchAllowListSuffixMatch(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer upstream.Close()

	host, _, err := net.SplitHostPort(upstream.Listener.Addr().String())
	if err != nil {
		t.Fatalf("split host: %v", err)
	}
	f := newTestFetcher(t, Config{AllowFrom: []string{host}})
	if _, err := f.Fetch(context.Background(), upstream.URL+"/x.png"); err != nil {
		t.Fatalf("expected host suffix match to allow: %v", err)
	}
}

func TestFetchUpstream4xxMapsToNotFound(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer upstream.Close()

	f := newTestFetcher(t, Config{})
	_, err := f.Fetch(context.Background(), upstream.URL+"/missing.png")
	fe, ok := err.(*Error)
	if !ok || fe.Kind != KindNotFound {
		t.Fatalf("expected KindNotFound, got %#v", err)
	}
}

func TestFetchUpstream5xxMapsToNotAvailable(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer upstream.Close()

	f := newTestFetcher(t, Config{})
	_, err := f.Fetch(context.Background(), upstream.URL+"/x.png")
	fe, ok := err.(*Error)
	if !ok || fe.Kind != KindNotAvailable {
		t.Fatalf("expected KindNotAvailable, got %#v", err)
	}
}

func TestFetchImmutableServesFromCacheWithoutUpstreamHit(t *testing.T) {
	var hits int32
	var mu sync.Mutex
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		hits++
		mu.Unlock()
		w.Header().Set("Cache-Control", "immutable")
		w.Header().Set("Content-Type", "image/png")
		_, _ = w.Write([]byte{9, 9, 9})
	}))
	defer upstream.Close()

	// A stateful cache is required here: cacheengine.NewNull() never
	// retains anything, so a second Fetch would always re-hit upstream
	// regardless of Cache-Control, defeating the point of this test.
	f := New(Config{}, newFakeEngine(), zap.NewNop())
	url := upstream.URL + "/pic.png"

	first, err := f.Fetch(context.Background(), url)
	if err != nil {
		t.Fatalf("first fetch: %v", err)
	}
	second, err := f.Fetch(context.Background(), url)
	if err != nil {
		t.Fatalf("second fetch: %v", err)
	}
	if first.ID != second.ID {
		t.Fatalf("expected identical resource id across cache hits, got %q and %q", first.ID, second.ID)
	}

	mu.Lock()
	defer mu.Unlock()
	if hits != 1 {
		t.Fatalf("expected exactly one upstream hit, got %d", hits)
	}
}

func TestFetchOverrideCacheReplacesCacheControl(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Cache-Control", "max-age=5")
		w.WriteHeader(http.StatusOK)
	}))
	defer upstream.Close()

	host, _, err := net.SplitHostPort(upstream.Listener.Addr().String())
	if err != nil {
		t.Fatalf("split host: %v", err)
	}
	f := newTestFetcher(t, Config{
		OverriddenCache: []OverrideRule{{Domain: host, CacheControl: "public, max-age=31536000"}},
	})

	res, err := f.Fetch(context.Background(), upstream.URL+"/x.png")
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if got := res.CacheMetadata[resource.MetaCacheControl]; got != "public, max-age=31536000" {
		t.Fatalf("cache-control = %q, want override value", got)
	}
}

func TestFetchInvalidURL(t *testing.T) {
	f := newTestFetcher(t, Config{})
	if _, err := f.Fetch(context.Background(), "not a url"); err == nil {
		t.Fatal("expected error for invalid url")
	}
}

func TestFetchTimeoutDefault(t *testing.T) {
	f := New(Config{}, cacheengine.NewNull(), zap.NewNop())
	if f.cfg.Timeout != 30*time.Second {
		t.Fatalf("default timeout = %v, want 30s", f.cfg.Timeout)
	}
}
