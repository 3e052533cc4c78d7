package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLoadMissingFileWritesDefaultAndReturnsSentinel(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "app.yml")

	_, err := Load(path)
	require.ErrorIs(t, err, ErrDefaultWritten)

	data, err := os.ReadFile(path)
	require.NoError(t, err, "expected default app.yml to be written")
	require.NotEmpty(t, data)

	// A second Load should now succeed against the written default.
	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, CacheTypeInMemory, cfg.Cache.Type)
	require.Equal(t, ":8080", cfg.ListenAddr)
	require.Equal(t, DefaultMaximumImageSize, cfg.MaximumImageSize)
}

func TestLoadParsesInMemoryCacheType(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "app.yml")
	writeFile(t, path, "listen_addr: \":9090\"\ncache:\n  cache_type: inMemory\n")

	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, CacheTypeInMemory, cfg.Cache.Type)
	require.Equal(t, ":9090", cfg.ListenAddr)
}

func TestLoadParsesFileCacheType(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "app.yml")
	writeFile(t, path, "cache:\n  cache_type:\n    file: /var/cache/pixvert\n")

	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, CacheTypeFile, cfg.Cache.Type)
	require.Equal(t, "/var/cache/pixvert", cfg.Cache.Path)
}

func TestLoadRejectsUnrecognizedCacheType(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "app.yml")
	writeFile(t, path, "cache:\n  cache_type: onDisk\n")

	_, err := Load(path)
	require.Error(t, err)
}

func TestLoadDefaultsOmittedFields(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "app.yml")
	writeFile(t, path, "cache:\n  cache_type: inMemory\n")

	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, ":8080", cfg.ListenAddr)
	require.Equal(t, DefaultMaximumImageSize, cfg.MaximumImageSize)
	require.Equal(t, "info", cfg.Log.Level)
}

func TestLoadParsesOverriddenCacheAndAllowFrom(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "app.yml")
	writeFile(t, path, `
cache:
  cache_type: inMemory
allow_from:
  - example.com
  - cdn.example.org
overridden_cache:
  - domain: static.example.com
    cache_control: "public, max-age=31536000"
`)

	cfg, err := Load(path)
	require.NoError(t, err)
	require.Len(t, cfg.AllowFrom, 2)
	require.Equal(t, "example.com", cfg.AllowFrom[0])
	require.Len(t, cfg.OverriddenCache, 1)
	require.Equal(t, "static.example.com", cfg.OverriddenCache[0].Domain)
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}
