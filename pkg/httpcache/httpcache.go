// Package httpcache isolates everything that needs to know the HTTP
// date format and Cache-Control grammar: the CanServeCache decision
// table from spec.md §4.2, kept in one module per the REDESIGN FLAGS
// ("HTTP header handling: isolate in one module").
package httpcache

import (
	"strconv"
	"strings"
	"time"

	"github.com/pixvert/pixvert/pkg/resource"
)

// HTTPDateLayout is the fixed textual format used for Expires and
// If-Modified-Since: "Mon, 02 Jan 2006 15:04:05 GMT".
const HTTPDateLayout = "Mon, 02 Jan 2006 15:04:05 GMT"

// Verdict is the four-valued CanServeCache result from spec.md §4.2.
type Verdict int

const (
	// No means the cached resource must be refetched with a plain GET.
	No Verdict = iota
	// Yes means the cached resource may be served directly.
	Yes
	// MustReinvalidateETag means a conditional GET with If-None-Match is required.
	MustReinvalidateETag
	// MustReinvalidateByTime means a conditional GET with If-Modified-Since is required.
	MustReinvalidateByTime
)

// Decision is the verdict plus whichever revalidation token applies.
type Decision struct {
	Verdict Verdict
	ETag    string    // set iff Verdict == MustReinvalidateETag
	Since   time.Time // set iff Verdict == MustReinvalidateByTime
}

// CanServeCache implements the rules table in spec.md §4.2, evaluated in
// order. meta holds whatever of Cache-Control / Expires / ETag /
// request_time the Fetcher previously stored.
func CanServeCache(meta map[string]string, now time.Time) Decision {
	cc := meta[resource.MetaCacheControl]
	etag := meta[resource.MetaETag]
	requestTime, hasRequestTime := parseRequestTime(meta[resource.MetaRequestTime])

	if cc != "" {
		directives := parseCacheControl(cc)
		if directives.immutable {
			return Decision{Verdict: Yes}
		}
		if directives.noStore {
			return Decision{Verdict: No}
		}
		if directives.hasMaxAge && hasRequestTime {
			expires := requestTime.Add(time.Duration(directives.maxAge) * time.Second)
			if now.Before(expires) {
				return Decision{Verdict: Yes}
			}
			if etag != "" {
				return Decision{Verdict: MustReinvalidateETag, ETag: etag}
			}
			return Decision{Verdict: MustReinvalidateByTime, Since: requestTime}
		}
	} else if expiresStr := meta[resource.MetaExpires]; expiresStr != "" {
		if expires, err := time.Parse(HTTPDateLayout, expiresStr); err == nil {
			if now.Before(expires) {
				return Decision{Verdict: Yes}
			}
			return Decision{Verdict: No}
		}
	}

	if etag != "" {
		return Decision{Verdict: MustReinvalidateETag, ETag: etag}
	}
	if hasRequestTime {
		return Decision{Verdict: MustReinvalidateByTime, Since: requestTime}
	}
	return Decision{Verdict: No}
}

func parseRequestTime(s string) (time.Time, bool) {
	if s == "" {
		return time.Time{}, false
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}

type cacheControlDirectives struct {
	immutable bool
	noStore   bool
	hasMaxAge bool
	maxAge    int64
}

// parseCacheControl parses the subset of Cache-Control directives this
// gateway cares about: immutable, no-store, max-age=N (spec.md §4.2).
func parseCacheControl(header string) cacheControlDirectives {
	var d cacheControlDirectives
	for _, part := range strings.Split(header, ",") {
		part = strings.TrimSpace(part)
		switch {
		case strings.EqualFold(part, "immutable"):
			d.immutable = true
		case strings.EqualFold(part, "no-store"):
			d.noStore = true
		case strings.HasPrefix(strings.ToLower(part), "max-age="):
			v := strings.TrimSpace(part[len("max-age="):])
			if n, err := strconv.ParseInt(v, 10, 64); err == nil {
				d.hasMaxAge = true
				d.maxAge = n
			}
		}
	}
	return d
}

// FormatHTTPDate renders t in the fixed HTTP date layout, for use in
// If-Modified-Since headers.
func FormatHTTPDate(t time.Time) string {
	return t.UTC().Format(HTTPDateLayout)
}
