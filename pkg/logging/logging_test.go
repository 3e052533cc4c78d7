package logging

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNewStdoutOnly(t *testing.T) {
	logger, err := New(Config{Level: "debug"})
	require.NoError(t, err)
	defer logger.Sync()
	logger.Info("hello")
}

func TestNewWithFileRequiresPath(t *testing.T) {
	_, err := New(Config{File: FileConfig{Enabled: true}})
	require.Error(t, err)
}

func TestNewWithFileWritesToDisk(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "gateway.log")

	logger, err := New(Config{Level: "info", File: FileConfig{Enabled: true, Path: path}})
	require.NoError(t, err)
	logger.Info("writing to file")
	_ = logger.Sync()
	require.FileExists(t, path)
}

func TestParseLevelDefaultsToInfo(t *testing.T) {
	require.Equal(t, parseLevel(""), parseLevel("bogus"))
}
