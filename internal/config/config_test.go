// ABOUTME: Tests for config loading precedence and atomic saving
// ABOUTME: Each test points XDG and FEEDSYNC_* variables at a temp dir

package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaultsWritesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "feedsync", "config.json")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, DefaultRefreshConcurrency, cfg.RefreshConcurrency)
	assert.Equal(t, DefaultHTTPTimeout, cfg.HTTPTimeout)
	assert.False(t, cfg.Offline)
	assert.Empty(t, cfg.CharmHost)
	assert.FileExists(t, path)
}

func TestLoadFileThenEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	require.NoError(t, os.WriteFile(path, []byte(`{
  "data_dir": "/tmp/feeds",
  "refresh_concurrency": 3,
  "http_timeout": "5s",
  "charm_host": "charm.internal"
}`), 0600))
	t.Setenv("FEEDSYNC_OFFLINE", "true")
	t.Setenv("FEEDSYNC_REFRESH_CONCURRENCY", "4")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "/tmp/feeds", cfg.GetDataDir())
	assert.Equal(t, 4, cfg.RefreshConcurrency)
	assert.Equal(t, 5*time.Second, cfg.HTTPTimeout)
	assert.True(t, cfg.Offline)
	assert.Equal(t, "charm.internal", cfg.CharmHost)
}

func TestSaveRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	cfg := &Config{DataDir: "~/feeds", RefreshConcurrency: 2, HTTPTimeout: time.Minute, Offline: true}
	require.NoError(t, cfg.SaveTo(path))

	loaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, cfg.DataDir, loaded.DataDir)
	assert.Equal(t, 2, loaded.RefreshConcurrency)
	assert.Equal(t, time.Minute, loaded.HTTPTimeout)
	assert.True(t, loaded.Offline)

	entries, err := os.ReadDir(filepath.Dir(path))
	require.NoError(t, err)
	assert.Len(t, entries, 1, "no temp files left behind")
}

func TestDataDirDefaults(t *testing.T) {
	t.Setenv("XDG_DATA_HOME", "/xdg/data")
	assert.Equal(t, "/xdg/data/feedsync", (&Config{}).GetDataDir())
	assert.Equal(t, "/xdg/data/feedsync/credentials.json", (&Config{}).CredentialsPath())

	t.Setenv("XDG_CONFIG_HOME", "/xdg/config")
	assert.Equal(t, "/xdg/config/feedsync/config.json", GetConfigPath())
}

func TestExpandPath(t *testing.T) {
	home, err := os.UserHomeDir()
	require.NoError(t, err)
	assert.Equal(t, "", ExpandPath(""))
	assert.Equal(t, home, ExpandPath("~"))
	assert.Equal(t, filepath.Join(home, "feeds"), ExpandPath("~/feeds"))
	assert.Equal(t, "/abs/path", ExpandPath("/abs/path"))
}
