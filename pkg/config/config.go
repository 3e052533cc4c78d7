// Package config loads app.yml (spec.md §6). If the file is missing, a
// default copy is written atomically and the process exits, mirroring
// original_source/src/main.rs's write-then-exit behavior on first run.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// CacheType discriminates the Cache Engine variant (spec.md §3/§6).
type CacheType int

const (
	CacheTypeInMemory CacheType = iota
	CacheTypeFile
)

// CacheConfig is the `cache:` section of app.yml.
type CacheConfig struct {
	Type CacheType
	Path string // set iff Type == CacheTypeFile
}

// yamlCacheConfig mirrors the YAML shape: `cache_type: inMemory | {file: path}`.
type yamlCacheConfig struct {
	CacheType any `yaml:"cache_type"`
}

// OverrideRule is one entry of `overridden_cache:` (spec.md §6).
type OverrideRule struct {
	Domain       string `yaml:"domain"`
	CacheControl string `yaml:"cache_control"`
}

// LogFileConfig is the ambient `log.file:` section (SPEC_FULL.md §A).
type LogFileConfig struct {
	Enabled    bool   `yaml:"enabled"`
	Path       string `yaml:"path"`
	MaxSizeMB  int    `yaml:"max_size_mb"`
	MaxBackups int    `yaml:"max_backups"`
	MaxAgeDays int    `yaml:"max_age_days"`
	Compress   bool   `yaml:"compress"`
}

// LogConfig is the ambient `log:` section (SPEC_FULL.md §A).
type LogConfig struct {
	Level string        `yaml:"level"`
	File  LogFileConfig `yaml:"file"`
}

// DefaultMaximumImageSize matches spec.md §6: 3840*2160.
const DefaultMaximumImageSize = 3840 * 2160

// Config is the fully parsed app.yml, ready for use by cmd/pixvertgw.
type Config struct {
	ListenAddr        string         `yaml:"listen_addr"`
	AllowFrom         []string       `yaml:"allow_from"`
	OverriddenCache   []OverrideRule `yaml:"overridden_cache"`
	MaximumImageSize  int            `yaml:"maximum_image_size"`
	Cache             CacheConfig    `yaml:"-"`
	Log               LogConfig      `yaml:"log"`
}

// yamlConfig is the raw YAML document shape; Cache is decoded separately
// because `cache_type` is a sum type (bare string or a one-key map).
type yamlConfig struct {
	ListenAddr       string          `yaml:"listen_addr"`
	AllowFrom        []string        `yaml:"allow_from"`
	OverriddenCache  []OverrideRule  `yaml:"overridden_cache"`
	MaximumImageSize int             `yaml:"maximum_image_size"`
	Cache            yamlCacheConfig `yaml:"cache"`
	Log              LogConfig       `yaml:"log"`
}

func defaultYAMLConfig() yamlConfig {
	return yamlConfig{
		ListenAddr:       ":8080",
		AllowFrom:        []string{},
		OverriddenCache:  []OverrideRule{},
		MaximumImageSize: DefaultMaximumImageSize,
		Cache:            yamlCacheConfig{CacheType: "inMemory"},
		Log:              LogConfig{Level: "info"},
	}
}

// Load reads app.yml at path. If it does not exist, a default
// configuration is written to path and ErrDefaultWritten is returned so
// the caller can exit cleanly (spec.md §6).
func Load(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		if writeErr := writeDefault(path); writeErr != nil {
			return Config{}, fmt.Errorf("config: writing default %s: %w", path, writeErr)
		}
		return Config{}, ErrDefaultWritten
	}
	if err != nil {
		return Config{}, fmt.Errorf("config: reading %s: %w", path, err)
	}

	var raw yamlConfig
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return Config{}, fmt.Errorf("config: parsing %s: %w", path, err)
	}

	cache, err := parseCacheConfig(raw.Cache)
	if err != nil {
		return Config{}, fmt.Errorf("config: %s: %w", path, err)
	}

	cfg := Config{
		ListenAddr:       raw.ListenAddr,
		AllowFrom:        raw.AllowFrom,
		OverriddenCache:  raw.OverriddenCache,
		MaximumImageSize: raw.MaximumImageSize,
		Cache:            cache,
		Log:              raw.Log,
	}
	if cfg.ListenAddr == "" {
		cfg.ListenAddr = ":8080"
	}
	if cfg.MaximumImageSize <= 0 {
		cfg.MaximumImageSize = DefaultMaximumImageSize
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	return cfg, nil
}

// ErrDefaultWritten signals Load wrote app.yml's defaults and the
// process should exit (spec.md §6: "write out a default copy and exit").
var ErrDefaultWritten = fmt.Errorf("config: default configuration written, restart with it")

func parseCacheConfig(raw yamlCacheConfig) (CacheConfig, error) {
	switch v := raw.CacheType.(type) {
	case nil:
		return CacheConfig{Type: CacheTypeInMemory}, nil
	case string:
		if v == "inMemory" {
			return CacheConfig{Type: CacheTypeInMemory}, nil
		}
		return CacheConfig{}, fmt.Errorf("unrecognized cache_type %q", v)
	case map[string]any:
		path, ok := v["file"].(string)
		if !ok || path == "" {
			return CacheConfig{}, fmt.Errorf("cache_type.file must be a non-empty string")
		}
		return CacheConfig{Type: CacheTypeFile, Path: path}, nil
	default:
		return CacheConfig{}, fmt.Errorf("unrecognized cache_type value %v", v)
	}
}

// writeDefault atomically writes the default app.yml to path (temp file
// + rename), matching the on-disk cache's atomic-write discipline.
func writeDefault(path string) error {
	out, err := yaml.Marshal(defaultYAMLConfig())
	if err != nil {
		return err
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}

	tmp, err := os.CreateTemp(dir, ".app-yml-*.tmp")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(out); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return err
	}
	return os.Rename(tmpName, path)
}
