// Package fetcher implements the Fetcher stage: spec.md §4.2. It
// acquires upstream bytes, applies HTTP-cache re-validation via
// pkg/httpcache, and assigns the stable Resource.id downstream stages
// key their own caches off of.
package fetcher

import (
	"context"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/pixvert/pixvert/pkg/cacheengine"
	"github.com/pixvert/pixvert/pkg/httpcache"
	"github.com/pixvert/pixvert/pkg/resource"
)

// Kind enumerates the abstract Fetcher errors from spec.md §7.
type Kind int

const (
	KindNotFound Kind = iota
	KindNotAvailable
	KindNoAccess
	KindInvalidResourceTag
	KindInvalidFormat
	KindUnknown
)

// Error is the Fetcher's error type; the Gateway maps Kind to an HTTP
// status via a single table (SPEC_FULL.md §A.2).
type Error struct {
	Kind Kind
	Msg  string
}

func (e *Error) Error() string { return e.Msg }

func newErr(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Msg: fmt.Sprintf(format, args...)}
}

// OverrideRule replaces the upstream Cache-Control for URLs whose host
// ends with Domain, per spec.md §4.2 / §6.
type OverrideRule struct {
	Domain       string
	CacheControl string
}

// Config are the Fetcher's configuration knobs (spec.md §4.2/§6).
type Config struct {
	AllowFrom       []string
	OverriddenCache []OverrideRule
	Timeout         time.Duration
}

// Fetcher is stateless apart from its cache handle and HTTP client, so a
// single instance is shared across every request worker (spec.md §5).
type Fetcher struct {
	cfg    Config
	client *http.Client
	cache  cacheengine.Engine
	logger *zap.Logger
	group  singleflight.Group
}

// New builds a Fetcher. The HTTP client's transport is tuned for many
// concurrent upstream fetches, following the teacher's pkg/ipxpress
// Fetcher (NewFetcher).
func New(cfg Config, cache cacheengine.Engine, logger *zap.Logger) *Fetcher {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	return &Fetcher{
		cfg: cfg,
		client: &http.Client{
			Timeout: cfg.Timeout,
			Transport: &http.Transport{
				MaxIdleConns:        500,
				MaxIdleConnsPerHost: 100,
				MaxConnsPerHost:     256,
				DialContext: (&net.Dialer{
					Timeout:   5 * time.Second,
					KeepAlive: 30 * time.Second,
				}).DialContext,
			},
		},
		cache:  cache,
		logger: logger,
	}
}

// preflight validates the URL and checks the allow-list (spec.md §4.2).
func (f *Fetcher) preflight(rawURL string) (*url.URL, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, newErr(KindInvalidResourceTag, "invalid resource url: %v", err)
	}
	if u.Host == "" {
		return nil, newErr(KindInvalidResourceTag, "resource url has no host")
	}
	if len(f.cfg.AllowFrom) > 0 {
		host := strings.ToLower(u.Hostname())
		allowed := false
		for _, suffix := range f.cfg.AllowFrom {
			if strings.HasSuffix(host, strings.ToLower(suffix)) {
				allowed = true
				break
			}
		}
		if !allowed {
			return nil, newErr(KindNoAccess, "host %q is not in the allow-list", u.Hostname())
		}
	}
	return u, nil
}

// Fetch acquires the Resource for url, consulting the cache first and
// applying conditional re-validation per spec.md §4.2.
func (f *Fetcher) Fetch(ctx context.Context, rawURL string) (resource.Resource, error) {
	u, err := f.preflight(rawURL)
	if err != nil {
		return resource.Resource{}, err
	}

	v, err, _ := f.group.Do(rawURL, func() (any, error) {
		return f.fetchDeduped(ctx, u, rawURL)
	})
	if err != nil {
		return resource.Resource{}, err
	}
	return v.(resource.Resource), nil
}

func (f *Fetcher) fetchDeduped(ctx context.Context, u *url.URL, rawURL string) (resource.Resource, error) {
	tag := cacheengine.Tag(rawURL)

	cached, hasCached := f.lookupCached(tag)
	decision, condHeaders := f.decideRevalidation(cached, hasCached)

	switch decision {
	case decisionServeCache:
		return cached, nil
	case decisionInvalid:
		return resource.Resource{}, newErr(KindUnknown, "stale cache entry with no prior resource for %q", rawURL)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return resource.Resource{}, newErr(KindInvalidResourceTag, "building request: %v", err)
	}
	for k, v := range condHeaders {
		req.Header.Set(k, v)
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return resource.Resource{}, newErr(KindNotAvailable, "fetching %q: %v", rawURL, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotModified:
		if !hasCached {
			return resource.Resource{}, newErr(KindUnknown, "304 Not Modified with no cached resource for %q", rawURL)
		}
		return cached, nil
	case resp.StatusCode >= 400 && resp.StatusCode < 500:
		return resource.Resource{}, newErr(KindNotFound, "upstream returned %d for %q", resp.StatusCode, rawURL)
	case resp.StatusCode >= 500:
		return resource.Resource{}, newErr(KindNotAvailable, "upstream returned %d for %q", resp.StatusCode, rawURL)
	case resp.StatusCode != http.StatusOK:
		return resource.Resource{}, newErr(KindNotAvailable, "unexpected upstream status %d for %q", resp.StatusCode, rawURL)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return resource.Resource{}, newErr(KindNotAvailable, "reading body of %q: %v", rawURL, err)
	}

	fresh := resource.Resource{
		ID:            resource.NewID(),
		ContentType:   contentTypeOrDefault(resp.Header.Get("Content-Type")),
		Content:       body,
		CacheMetadata: f.buildCacheMetadata(resp, u),
	}

	if err := f.store(tag, fresh); err != nil {
		f.logger.Warn("fetcher: failed to store cache entry", zap.String("url", rawURL), zap.Error(err))
	}

	return fresh, nil
}

type revalidationDecision int

const (
	decisionMiss revalidationDecision = iota
	decisionServeCache
	decisionConditional
	decisionInvalid
)

func (f *Fetcher) decideRevalidation(cached resource.Resource, hasCached bool) (revalidationDecision, map[string]string) {
	if !hasCached {
		return decisionMiss, nil
	}
	decision := httpcache.CanServeCache(cached.CacheMetadata, time.Now())
	switch decision.Verdict {
	case httpcache.Yes:
		return decisionServeCache, nil
	case httpcache.MustReinvalidateETag:
		return decisionConditional, map[string]string{"If-None-Match": decision.ETag}
	case httpcache.MustReinvalidateByTime:
		return decisionConditional, map[string]string{"If-Modified-Since": httpcache.FormatHTTPDate(decision.Since)}
	default:
		return decisionMiss, nil
	}
}

func (f *Fetcher) lookupCached(tag string) (resource.Resource, bool) {
	b, err := f.cache.Get(tag)
	if err != nil {
		return resource.Resource{}, false
	}
	r, err := resource.Unmarshal(b)
	if err != nil {
		f.logger.Warn("fetcher: invalid cache entry", zap.String("tag", tag), zap.Error(err))
		return resource.Resource{}, false
	}
	return r, true
}

func (f *Fetcher) store(tag string, r resource.Resource) error {
	b, err := resource.Marshal(r)
	if err != nil {
		return err
	}
	return f.cache.Set(tag, b)
}

func (f *Fetcher) buildCacheMetadata(resp *http.Response, u *url.URL) map[string]string {
	meta := map[string]string{
		resource.MetaRequestTime: time.Now().UTC().Format(time.RFC3339),
	}
	if etag := resp.Header.Get("ETag"); etag != "" {
		meta[resource.MetaETag] = etag
	}
	if expires := resp.Header.Get("Expires"); expires != "" {
		meta[resource.MetaExpires] = expires
	}
	cacheControl := resp.Header.Get("Cache-Control")
	if override, ok := f.matchOverride(u); ok {
		cacheControl = override.CacheControl
	}
	if cacheControl != "" {
		meta[resource.MetaCacheControl] = cacheControl
	}
	return meta
}

func (f *Fetcher) matchOverride(u *url.URL) (OverrideRule, bool) {
	host := strings.ToLower(u.Hostname())
	for _, rule := range f.cfg.OverriddenCache {
		if strings.HasSuffix(host, strings.ToLower(rule.Domain)) {
			return rule, true
		}
	}
	return OverrideRule{}, false
}

func contentTypeOrDefault(ct string) string {
	if ct == "" {
		return "application/octet-stream"
	}
	return ct
}
