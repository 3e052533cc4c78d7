// Package resource defines the Resource entity: the Fetcher's unit of
// work and the identity every downstream stage keys its cache off of.
package resource

import (
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
)

// Well-known cache_metadata keys, per spec.md §4.2.
const (
	MetaETag          = "ETag"
	MetaExpires       = "Expires"
	MetaCacheControl  = "Cache-Control"
	MetaLastModified  = "Last-Modified"
	MetaRequestTime   = "request_time"
)

// Resource is the Fetcher's output: upstream bytes plus enough side-band
// metadata for the HTTP-cache state machine in pkg/httpcache to decide
// whether a later request can skip re-fetching.
type Resource struct {
	ID                string
	ContentType       string
	AdditionalHeaders map[string]map[string]string
	Content           []byte
	CacheMetadata     map[string]string
}

// NewID mints a stable, opaque resource identifier for a freshly fetched
// 200 OK. It is never recomputed for the lifetime of the cached resource
// (spec.md invariant 2): a 304 response reuses the existing Resource,
// metadata and all.
func NewID() string {
	return uuid.NewString()
}

// wireResource is the on-the-wire (cache ABI) shape of a Resource. Field
// names are fixed once chosen; changing them invalidates existing on-disk
// cache entries.
type wireResource struct {
	ID                string                       `json:"id"`
	ContentType       string                       `json:"content_type"`
	AdditionalHeaders map[string]map[string]string `json:"additional_headers,omitempty"`
	Content           []byte                       `json:"content"`
	CacheMetadata     map[string]string            `json:"cache_metadata,omitempty"`
}

// Marshal serializes a Resource for storage in the Cache Engine. JSON is
// used (not gob or a language-default encoding) because the layout must
// be stable across rebuilds of this binary — see REDESIGN FLAGS in
// spec.md §9 ("pick one wire format ... do not rely on a particular
// library's default encoding").
func Marshal(r Resource) ([]byte, error) {
	return json.Marshal(wireResource(r))
}

// Unmarshal deserializes bytes previously produced by Marshal. A
// corrupted or foreign payload is reported as an error so the caller can
// treat the cache entry as invalid (spec.md §7) rather than panic.
func Unmarshal(b []byte) (Resource, error) {
	var w wireResource
	if err := json.Unmarshal(b, &w); err != nil {
		return Resource{}, fmt.Errorf("resource: invalid cache entry: %w", err)
	}
	return Resource(w), nil
}
