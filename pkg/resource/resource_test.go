package resource

import (
	"bytes"
	"testing"
)

func TestMarshalUnmarshalRoundTrip(t *testing.T) {
	r := Resource{
		ID:                NewID(),
		ContentType:       "image/png",
		AdditionalHeaders: map[string]map[string]string{"upstream": {"Vary": "Accept"}},
		Content:           []byte{0, 1, 2, 3, 4, 5},
		CacheMetadata:     map[string]string{MetaETag: "W/1", MetaRequestTime: "2026-01-01T00:00:00Z"},
	}

	b, err := Marshal(r)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}

	got, err := Unmarshal(b)
	if err != nil {
		t.Fatalf("unmarshal: %v", err)
	}

	if got.ID != r.ID || got.ContentType != r.ContentType {
		t.Fatalf("round trip mismatch: got %+v, want %+v", got, r)
	}
	if !bytes.Equal(got.Content, r.Content) {
		t.Fatalf("content mismatch: got %v, want %v", got.Content, r.Content)
	}
	if got.CacheMetadata[MetaETag] != "W/1" {
		t.Fatalf("cache metadata not preserved: %+v", got.CacheMetadata)
	}
}

func TestUnmarshalInvalidPayload(t *testing.T) {
	if _, err := Unmarshal([]byte("not json")); err == nil {
		t.Fatal("expected error for invalid payload")
	}
}

func TestNewIDIsUnique(t *testing.T) {
	if NewID() == NewID() {
		t.Fatal("expected distinct ids")
	}
}
